package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReminderRepository handles health_check_reminders.
//
// At most one unsent, uncancelled reminder exists per (item_id, reminder_type); the
// partial unique index uq_reminders_pending enforces it.
type ReminderRepository struct{}

func NewReminderRepository() *ReminderRepository {
	return &ReminderRepository{}
}

const reminderColumns = `id, item_id, company_id, reminder_type, scheduled_for, sent_at, cancelled_at,
	recipient, message, attempts, last_error, created_at`

func scanReminder(row pgx.Row) (*models.Reminder, error) {
	var rm models.Reminder
	err := row.Scan(
		&rm.ID, &rm.ItemID, &rm.CompanyID, &rm.Type, &rm.ScheduledFor, &rm.SentAt, &rm.CancelledAt,
		&rm.Recipient, &rm.Message, &rm.Attempts, &rm.LastError, &rm.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// Create schedules a reminder unless an equivalent pending one already exists.
//
// Returns:
//   - bool: true if a row was inserted, false if a pending reminder of the same type exists
//   - error: Database error, nil otherwise
//
// Side Effects:
//   - Sets rm.ID and rm.CreatedAt when inserted
func (r *ReminderRepository) Create(ctx context.Context, rm *models.Reminder) (bool, error) {
	query := `
		INSERT INTO health_check_reminders (item_id, company_id, reminder_type, scheduled_for, recipient, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, reminder_type) WHERE sent_at IS NULL AND cancelled_at IS NULL DO NOTHING
		RETURNING id, created_at
	`

	err := database.Conn(ctx).QueryRow(ctx, query,
		rm.ItemID, rm.CompanyID, rm.Type, rm.ScheduledFor, rm.Recipient, rm.Message,
	).Scan(&rm.ID, &rm.CreatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CancelPending cancels every pending reminder of an item.
//
// Returns:
//   - int64: Number of reminders cancelled
func (r *ReminderRepository) CancelPending(ctx context.Context, itemID uuid.UUID, at time.Time) (int64, error) {
	tag, err := database.Conn(ctx).Exec(ctx, `
		UPDATE health_check_reminders SET cancelled_at = $2
		WHERE item_id = $1 AND sent_at IS NULL AND cancelled_at IS NULL`, itemID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListDue returns pending reminders scheduled at or before now that have not used up
// their delivery attempts. Rows a concurrent scheduler has claimed are skipped.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - now: Delivery cutoff
//   - maxAttempts: Reminders with this many failed attempts are left alone
//   - limit: Maximum rows
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM health_check_reminders
		WHERE sent_at IS NULL AND cancelled_at IS NULL
		  AND scheduled_for <= $1 AND attempts < $2
		ORDER BY scheduled_for
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`

	rows, err := database.Conn(ctx).Query(ctx, query, now, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}
	return out, rows.Err()
}

// Claim locks one reminder for delivery until the surrounding transaction ends.
//
// Returns:
//   - bool: false if the reminder was sent, cancelled or out of attempts since it was
//     listed, or is held by a concurrent scheduler
//   - error: Database error, nil otherwise
//
// Database: SELECT ... FOR UPDATE SKIP LOCKED, must run inside database.WithTx
func (r *ReminderRepository) Claim(ctx context.Context, id uuid.UUID, maxAttempts int) (bool, error) {
	if !database.InTx(ctx) {
		return false, fmt.Errorf("reminder claim requires a transaction")
	}
	var claimed uuid.UUID
	err := database.Conn(ctx).QueryRow(ctx, `
		SELECT id FROM health_check_reminders
		WHERE id = $1 AND sent_at IS NULL AND cancelled_at IS NULL AND attempts < $2
		FOR UPDATE SKIP LOCKED`, id, maxAttempts).Scan(&claimed)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByItem returns the full reminder history of an item, oldest first.
func (r *ReminderRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.Reminder, error) {
	rows, err := database.Conn(ctx).Query(ctx,
		`SELECT `+reminderColumns+` FROM health_check_reminders WHERE item_id = $1 ORDER BY created_at`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}
	return out, rows.Err()
}

// MarkSent records a successful delivery. A reminder cancelled meanwhile stays cancelled.
//
// Returns:
//   - bool: false if the reminder was no longer pending
func (r *ReminderRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := database.Conn(ctx).Exec(ctx, `
		UPDATE health_check_reminders SET sent_at = $2, attempts = attempts + 1, last_error = NULL
		WHERE id = $1 AND sent_at IS NULL AND cancelled_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed records a failed delivery attempt; the reminder stays pending.
func (r *ReminderRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := database.Conn(ctx).Exec(ctx, `
		UPDATE health_check_reminders SET attempts = attempts + 1, last_error = $2
		WHERE id = $1`, id, reason)
	return err
}
