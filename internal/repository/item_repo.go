// This file implements item persistence for health check reports, including the
// per-report tallies counters are derived from and the scheduler's due-date queries.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ItemRepository handles all database operations on health_check_items.
//
// Field values are stored as jsonb in the {"type","value"} wire form produced by
// models.EncodeValue.
type ItemRepository struct{}

// NewItemRepository creates and returns a new ItemRepository instance.
//
// Example:
//
//	repo := repository.NewItemRepository()
//	items, err := repo.ListByReport(ctx, reportID)
func NewItemRepository() *ItemRepository {
	return &ItemRepository{}
}

const itemColumns = `id, report_id, company_id, site_id, module, field_name, field_label,
	severity, title, description, record_id, record_name,
	current_value, ai_suggested_value, ai_confidence, status,
	delegated_to, delegated_by, delegated_at, delegation_message, due_date, conversation_id,
	reminder_count, last_reminder_sent_at, next_reminder_at,
	escalated_to, escalation_reason, escalated_at,
	resolved_by, resolved_at, created_at, updated_at`

func scanItem(row pgx.Row) (*models.Item, error) {
	var (
		it                 models.Item
		current, suggested []byte
	)
	err := row.Scan(
		&it.ID, &it.ReportID, &it.CompanyID, &it.SiteID, &it.Module, &it.FieldName, &it.FieldLabel,
		&it.Severity, &it.Title, &it.Description, &it.RecordID, &it.RecordName,
		&current, &suggested, &it.AIConfidence, &it.Status,
		&it.DelegatedTo, &it.DelegatedBy, &it.DelegatedAt, &it.DelegationMessage, &it.DueDate, &it.ConversationID,
		&it.ReminderCount, &it.LastReminderSentAt, &it.NextReminderAt,
		&it.EscalatedTo, &it.EscalationReason, &it.EscalatedAt,
		&it.ResolvedBy, &it.ResolvedAt, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cv, err := models.DecodeValue(current)
	if err != nil {
		return nil, fmt.Errorf("item %s current_value: %w", it.ID, err)
	}
	if cv != nil {
		it.CurrentValue = *cv
	}
	if it.AISuggestedValue, err = models.DecodeValue(suggested); err != nil {
		return nil, fmt.Errorf("item %s ai_suggested_value: %w", it.ID, err)
	}
	return &it, nil
}

func scanItems(rows pgx.Rows) ([]models.Item, error) {
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Create inserts one item.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - item: Item to create (ReportID, CompanyID, SiteID, Module, Severity, Status required)
//
// Returns:
//   - error: Database error if insert fails, nil on success
//
// Side Effects:
//   - Sets item.ID, item.CreatedAt and item.UpdatedAt from the database
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	current, err := models.EncodeValue(&item.CurrentValue)
	if err != nil {
		return err
	}
	suggested, err := models.EncodeValue(item.AISuggestedValue)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO health_check_items (
			report_id, company_id, site_id, module, field_name, field_label,
			severity, title, description, record_id, record_name,
			current_value, ai_suggested_value, ai_confidence, status,
			resolved_by, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`

	return database.Conn(ctx).QueryRow(ctx, query,
		item.ReportID, item.CompanyID, item.SiteID, item.Module, item.FieldName, item.FieldLabel,
		item.Severity, item.Title, item.Description, item.RecordID, item.RecordName,
		current, suggested, item.AIConfidence, item.Status,
		item.ResolvedBy, item.ResolvedAt,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

// GetByID retrieves an item scoped to its company.
//
// Returns:
//   - error: ErrNotFound if the item does not exist in this company
func (r *ItemRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM health_check_items WHERE id = $1 AND company_id = $2`

	it, err := scanItem(database.Conn(ctx).QueryRow(ctx, query, id, companyID))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// LockByID retrieves an item and holds its row lock for the rest of the transaction.
func (r *ItemRepository) LockByID(ctx context.Context, companyID, id uuid.UUID) (*models.Item, error) {
	if !database.InTx(ctx) {
		return nil, fmt.Errorf("item lock requires a transaction")
	}
	query := `SELECT ` + itemColumns + ` FROM health_check_items WHERE id = $1 AND company_id = $2 FOR UPDATE`

	it, err := scanItem(database.Conn(ctx).QueryRow(ctx, query, id, companyID))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// ReportOf returns the report an item belongs to, so callers can lock the report
// before the item.
func (r *ItemRepository) ReportOf(ctx context.Context, companyID, id uuid.UUID) (uuid.UUID, error) {
	var reportID uuid.UUID
	err := database.Conn(ctx).QueryRow(ctx,
		`SELECT report_id FROM health_check_items WHERE id = $1 AND company_id = $2`,
		id, companyID).Scan(&reportID)
	if err != nil {
		return uuid.Nil, notFound(err)
	}
	return reportID, nil
}

// ListByReport returns the items of a report, most severe first.
func (r *ItemRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM health_check_items
		WHERE report_id = $1
		ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, module, created_at
	`

	rows, err := database.Conn(ctx).Query(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// Update persists every mutable column of an item after a lifecycle transition.
//
// Side Effects:
//   - Sets item.UpdatedAt from the database
func (r *ItemRepository) Update(ctx context.Context, item *models.Item) error {
	current, err := models.EncodeValue(&item.CurrentValue)
	if err != nil {
		return err
	}
	suggested, err := models.EncodeValue(item.AISuggestedValue)
	if err != nil {
		return err
	}

	query := `
		UPDATE health_check_items SET
			current_value = $2, ai_suggested_value = $3, ai_confidence = $4, status = $5,
			resolved_by = $6, resolved_at = $7,
			delegated_to = $8, delegated_by = $9, delegated_at = $10, delegation_message = $11,
			due_date = $12, conversation_id = $13,
			reminder_count = $14, last_reminder_sent_at = $15, next_reminder_at = $16,
			escalated_to = $17, escalation_reason = $18, escalated_at = $19,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = database.Conn(ctx).QueryRow(ctx, query, item.ID,
		current, suggested, item.AIConfidence, item.Status,
		item.ResolvedBy, item.ResolvedAt,
		item.DelegatedTo, item.DelegatedBy, item.DelegatedAt, item.DelegationMessage,
		item.DueDate, item.ConversationID,
		item.ReminderCount, item.LastReminderSentAt, item.NextReminderAt,
		item.EscalatedTo, item.EscalationReason, item.EscalatedAt,
	).Scan(&item.UpdatedAt)
	return notFound(err)
}

// SetSuggestion stores an AI suggestion on an item without changing its status.
func (r *ItemRepository) SetSuggestion(ctx context.Context, id uuid.UUID, s models.Suggestion) error {
	raw, err := models.EncodeValue(&s.Value)
	if err != nil {
		return err
	}
	tag, err := database.Conn(ctx).Exec(ctx,
		`UPDATE health_check_items SET ai_suggested_value = $2, ai_confidence = $3, updated_at = NOW() WHERE id = $1`,
		id, raw, s.Confidence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordReminderSent bumps the reminder counters mirrored on the item.
func (r *ItemRepository) RecordReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := database.Conn(ctx).Exec(ctx, `
		UPDATE health_check_items SET
			reminder_count = reminder_count + 1,
			last_reminder_sent_at = $2,
			next_reminder_at = NULL,
			updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

// Tally counts a report's items grouped by severity and status.
//
// Database: GROUP BY on idx_items_report
func (r *ItemRepository) Tally(ctx context.Context, reportID uuid.UUID) (scoring.Tally, error) {
	query := `
		SELECT severity, status, COUNT(*)
		FROM health_check_items
		WHERE report_id = $1
		GROUP BY severity, status
	`

	t := scoring.NewTally()
	rows, err := database.Conn(ctx).Query(ctx, query, reportID)
	if err != nil {
		return t, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sev    models.Severity
			status models.ItemStatus
			n      int
		)
		if err := rows.Scan(&sev, &status, &n); err != nil {
			return t, err
		}
		t.Add(sev, status, n)
	}
	return t, rows.Err()
}

// ListDelegated returns delegated items that carry a due date, oldest due first.
// The scheduler escalates overdue items from it. The assignee may be gone
// (delegated_to is cleared when their profile is deleted); escalation targets the
// delegator, so those items are listed too.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - dueBefore: Only items due strictly before this instant. Zero means no bound
//   - limit: Maximum rows
func (r *ItemRepository) ListDelegated(ctx context.Context, dueBefore time.Time, limit int) ([]models.Item, error) {
	var bound *time.Time
	if !dueBefore.IsZero() {
		bound = &dueBefore
	}
	query := `
		SELECT ` + itemColumns + `
		FROM health_check_items
		WHERE status = 'delegated' AND due_date IS NOT NULL
		  AND ($1::timestamptz IS NULL OR due_date < $1)
		ORDER BY due_date
		LIMIT $2
	`

	rows, err := database.Conn(ctx).Query(ctx, query, bound, limit)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// ListAwaitingReminder returns delegated items, oldest due first, that still need
// their due_soon reminder for the current delegation: an assignee is set, the item
// is due after dueAfter, no due_soon reminder is pending and none was sent since it
// was delegated. The filter runs in SQL so the limit only counts items that need work.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - dueAfter: Items due at or before this instant are overdue and left to escalation
//   - limit: Maximum rows
func (r *ItemRepository) ListAwaitingReminder(ctx context.Context, dueAfter time.Time, limit int) ([]models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM health_check_items i
		WHERE i.status = 'delegated' AND i.due_date IS NOT NULL AND i.delegated_to IS NOT NULL
		  AND i.due_date > $1
		  AND (i.last_reminder_sent_at IS NULL
		       OR i.last_reminder_sent_at < COALESCE(i.delegated_at, i.updated_at))
		  AND NOT EXISTS (
		      SELECT 1 FROM health_check_reminders rm
		      WHERE rm.item_id = i.id AND rm.reminder_type = 'due_soon'
		        AND rm.sent_at IS NULL AND rm.cancelled_at IS NULL)
		ORDER BY i.due_date
		LIMIT $2
	`

	rows, err := database.Conn(ctx).Query(ctx, query, dueAfter, limit)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}
