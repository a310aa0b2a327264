// This file implements the audit trail for item transitions, scheduler actions and
// administrative clears.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

// AuditRepository handles all database operations related to audit logging.
//
// Immutability Note:
//
//	Audit rows are never updated or deleted by the engine. Deleting a report nulls
//	the report_id and item_id references instead of removing history.
type AuditRepository struct{}

// NewAuditRepository creates and returns a new AuditRepository instance.
//
// Example:
//
//	repo := repository.NewAuditRepository()
//	err := repo.Log(ctx, entry)
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Log creates a new audit entry. Inside a transaction the entry commits or rolls back
// together with the change it describes.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - entry: AuditLog entry to create (CompanyID, Action required; ActorID nil for the scheduler)
//
// Returns:
//   - error: Database error if logging fails, nil on success
//
// Side Effects:
//   - Sets entry.ID and entry.CreatedAt
//
// Common Action Types:
//   - "ITEM_FIX", "ITEM_DELEGATE", "ITEM_ESCALATE", ...
//   - "CLEAR_ALL", "CLEAR_TEST_DATA"
func (r *AuditRepository) Log(ctx context.Context, entry *models.AuditLog) error {
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		if details, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}

	query := `
		INSERT INTO health_check_audit (company_id, actor_id, action, report_id, item_id, from_status, to_status, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	return database.Conn(ctx).QueryRow(ctx, query,
		entry.CompanyID, entry.ActorID, entry.Action, entry.ReportID, entry.ItemID,
		entry.FromStatus, entry.ToStatus, details,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByItem retrieves the audit history of one item, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - companyID: Tenant scope
//   - itemID: Item whose history to read
//   - limit: Maximum number of entries
func (r *AuditRepository) ListByItem(ctx context.Context, companyID, itemID uuid.UUID, limit int) ([]models.AuditLog, error) {
	query := `
		SELECT id, company_id, actor_id, action, report_id, item_id, from_status, to_status, details, created_at
		FROM health_check_audit
		WHERE company_id = $1 AND item_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := database.Conn(ctx).Query(ctx, query, companyID, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			log     models.AuditLog
			details []byte
		)
		if err := rows.Scan(
			&log.ID,
			&log.CompanyID,
			&log.ActorID, // NULL for scheduler actions
			&log.Action,
			&log.ReportID,
			&log.ItemID,
			&log.FromStatus,
			&log.ToStatus,
			&details,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &log.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
