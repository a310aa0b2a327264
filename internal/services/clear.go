package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
)

const (
	AuditClearAll      = "CLEAR_ALL"
	AuditClearTestData = "CLEAR_TEST_DATA"
)

// ClearService deletes health check data of a company.
type ClearService struct {
	stores Stores
	log    zerolog.Logger
}

func NewClearService(st Stores, log zerolog.Logger) *ClearService {
	return &ClearService{stores: st, log: log.With().Str("component", "clear").Logger()}
}

// ClearAll deletes every report of the company with its items and reminders.
func (s *ClearService) ClearAll(ctx context.Context, companyID uuid.UUID, actor *uuid.UUID) (*models.ClearResult, error) {
	return s.clear(ctx, companyID, actor, false)
}

// ClearTestData deletes only reports produced by the test-data generator.
func (s *ClearService) ClearTestData(ctx context.Context, companyID uuid.UUID, actor *uuid.UUID) (*models.ClearResult, error) {
	return s.clear(ctx, companyID, actor, true)
}

// clear deletes one report per transaction so a failure part way keeps what was
// already removed and leaves the rest intact.
func (s *ClearService) clear(ctx context.Context, companyID uuid.UUID, actor *uuid.UUID, testOnly bool) (*models.ClearResult, error) {
	if _, err := s.stores.Sites.GetCompany(ctx, companyID); err != nil {
		return nil, translate(err, ErrCompanyNotFound)
	}
	ids, err := s.stores.Reports.ListIDs(ctx, companyID, testOnly)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	action := AuditClearAll
	if testOnly {
		action = AuditClearTestData
	}

	res := &models.ClearResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var deleted bool
		err := s.stores.WithTx(ctx, func(ctx context.Context) error {
			var err error
			deleted, err = s.stores.Reports.Delete(ctx, companyID, id)
			if err != nil || !deleted {
				return err
			}
			// The report row is gone, so its id is kept in the details only.
			return s.stores.Audit.Log(ctx, &models.AuditLog{
				CompanyID: companyID,
				ActorID:   actor,
				Action:    action,
				Details:   map[string]any{"report_id": id.String(), "test_only": testOnly},
			})
		})
		if err != nil {
			return res, fmt.Errorf("delete report %s: %w", id, err)
		}
		if deleted {
			res.ReportsDeleted++
		}
	}

	s.log.Info().Str("company_id", companyID.String()).Str("action", action).
		Int("reports", res.ReportsDeleted).Msg("health check data cleared")
	return res, nil
}
