package services

import (
	"errors"

	"github.com/Bruce-k901/My-App-sub010/internal/repository"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrSiteNotFound    = errors.New("site not found")
	ErrAreaNotFound    = errors.New("area not found")
	ErrReportNotFound  = errors.New("report not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoSuggestion    = errors.New("no suggestion available")
	ErrInvalidScenario = errors.New("unknown test data scenario")
	ErrSuggestDisabled = errors.New("suggestions are not configured")
)

// translate maps repository.ErrNotFound to the service-level sentinel for the entity.
func translate(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}

