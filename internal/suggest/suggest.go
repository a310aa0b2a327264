// Package suggest asks an external AI service for a corrected value for an item.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/transport"
)

// ErrUnavailable means the service produced no usable suggestion.
var ErrUnavailable = errors.New("no suggestion available")

// Suggester proposes a value for an item.
type Suggester interface {
	Suggest(ctx context.Context, item models.Item) (models.Suggestion, error)
}

type request struct {
	Module       models.Module     `json:"module"`
	Field        string            `json:"field"`
	Label        string            `json:"label"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	RecordName   string            `json:"record_name"`
	CurrentValue models.FieldValue `json:"current_value"`
}

type response struct {
	Value      models.FieldValue `json:"value"`
	Confidence int               `json:"confidence"`
}

// HTTP calls a JSON endpoint that answers {"value": {...}, "confidence": 0..100}.
type HTTP struct {
	url    string
	token  string
	client *transport.Client
}

// NewHTTP builds an HTTP suggester. token is sent as a bearer token when set.
func NewHTTP(url, token string, timeout time.Duration, retries int, log zerolog.Logger) *HTTP {
	return &HTTP{
		url:   url,
		token: token,
		client: transport.NewClient(transport.Options{
			Timeout: timeout,
			Retries: retries,
			Logger:  log.With().Str("component", "suggest").Logger(),
		}),
	}
}

func (h *HTTP) Suggest(ctx context.Context, item models.Item) (models.Suggestion, error) {
	var headers map[string]string
	if h.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + h.token}
	}

	var resp response
	err := h.client.PostJSON(ctx, h.url, headers, request{
		Module:       item.Module,
		Field:        item.FieldName,
		Label:        item.FieldLabel,
		Title:        item.Title,
		Description:  item.Description,
		RecordName:   item.RecordName,
		CurrentValue: item.CurrentValue,
	}, &resp)
	if err != nil {
		return models.Suggestion{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.Value.IsZero() {
		return models.Suggestion{}, ErrUnavailable
	}
	return models.Suggestion{Value: resp.Value, Confidence: clamp(resp.Confidence)}, nil
}

func clamp(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
