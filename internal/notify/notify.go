// Package notify delivers reminder and escalation messages to users. Delivery is
// best-effort: a failed delivery leaves the reminder unsent for the next scheduler pass.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/transport"
)

// Message is one notification addressed to a user.
type Message struct {
	ReminderID uuid.UUID           `json:"reminder_id"`
	CompanyID  uuid.UUID           `json:"company_id"`
	ItemID     uuid.UUID           `json:"item_id"`
	Recipient  uuid.UUID           `json:"recipient"`
	Type       models.ReminderType `json:"type"`
	Text       string              `json:"text"`
	Metadata   map[string]string   `json:"metadata,omitempty"`
}

// Notifier delivers a message. delivered is false when the sink accepted nothing.
type Notifier interface {
	Notify(ctx context.Context, msg Message) (delivered bool, err error)
}

// Webhook posts messages as JSON to a URL.
type Webhook struct {
	url    string
	client *transport.Client
}

// NewWebhook builds a webhook notifier. retries counts attempts after the first.
func NewWebhook(url string, timeout time.Duration, retries int, log zerolog.Logger) *Webhook {
	return &Webhook{
		url: url,
		client: transport.NewClient(transport.Options{
			Timeout: timeout,
			Retries: retries,
			Logger:  log.With().Str("component", "notify").Logger(),
		}),
	}
}

func (w *Webhook) Notify(ctx context.Context, msg Message) (bool, error) {
	if err := w.client.PostJSON(ctx, w.url, nil, msg, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Log writes messages to the structured log. It is the sink used when no webhook is
// configured and always reports delivery.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, msg Message) (bool, error) {
	l.log.Info().
		Str("reminder_id", msg.ReminderID.String()).
		Str("item_id", msg.ItemID.String()).
		Str("recipient", msg.Recipient.String()).
		Str("type", string(msg.Type)).
		Msg(msg.Text)
	return true, nil
}
