// This file implements report persistence: creating versioned snapshots, locking a
// report while its counters are recomputed, and the deletes used by clear operations.
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

// ReportRepository handles all database operations on health_check_reports.
//
// Reports are append-only snapshots: a scan always inserts a new row and never edits
// an earlier report's items. Only counters, status and the follow-up references of a
// report change after creation.
type ReportRepository struct{}

// NewReportRepository creates a new instance of ReportRepository.
//
// Returns:
//   - *ReportRepository: Initialized repository instance
func NewReportRepository() *ReportRepository {
	return &ReportRepository{}
}

const reportColumns = `id, company_id, site_id, status,
	total_items, critical_count, medium_count, low_count,
	open_critical_count, open_medium_count, open_low_count,
	pending_items, completed_items, delegated_items, ignored_items, escalated_items,
	health_score, resolution_percent, previous_week_score, is_test_data,
	calendar_task_id, archive_key, created_at, updated_at`

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.SiteID, &r.Status,
		&r.TotalItems, &r.CriticalCount, &r.MediumCount, &r.LowCount,
		&r.OpenCritical, &r.OpenMedium, &r.OpenLow,
		&r.PendingItems, &r.CompletedItems, &r.DelegatedItems, &r.IgnoredItems, &r.EscalatedItems,
		&r.HealthScore, &r.ResolutionPercent, &r.PreviousWeekScore, &r.IsTestData,
		&r.CalendarTaskID, &r.ArchiveKey, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a report header with its initial counters.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - report: Report to create (CompanyID, SiteID, Status and Counters required)
//
// Returns:
//   - error: Database error if insert fails, nil on success
//
// Side Effects:
//   - Sets report.ID, report.CreatedAt and report.UpdatedAt from the database
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO health_check_reports (
			company_id, site_id, status,
			total_items, critical_count, medium_count, low_count,
			open_critical_count, open_medium_count, open_low_count,
			pending_items, completed_items, delegated_items, ignored_items, escalated_items,
			health_score, resolution_percent, previous_week_score, is_test_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at
	`

	c := report.Counters
	return database.Conn(ctx).QueryRow(ctx, query,
		report.CompanyID, report.SiteID, report.Status,
		c.TotalItems, c.CriticalCount, c.MediumCount, c.LowCount,
		c.OpenCritical, c.OpenMedium, c.OpenLow,
		c.PendingItems, c.CompletedItems, c.DelegatedItems, c.IgnoredItems, c.EscalatedItems,
		c.HealthScore, c.ResolutionPercent, report.PreviousWeekScore, report.IsTestData,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
}

// GetByID retrieves a report scoped to its company.
//
// Returns:
//   - *models.Report: The report
//   - error: ErrNotFound if the report does not exist in this company
func (r *ReportRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM health_check_reports WHERE id = $1 AND company_id = $2`

	report, err := scanReport(database.Conn(ctx).QueryRow(ctx, query, id, companyID))
	if err != nil {
		return nil, notFound(err)
	}
	return report, nil
}

// LockByID is GetByID with a row lock held until the surrounding transaction ends.
// Every item transition takes this lock first, so concurrent transitions on one
// report serialize their counter recomputation.
//
// Database: SELECT ... FOR UPDATE, must run inside database.WithTx
func (r *ReportRepository) LockByID(ctx context.Context, companyID, id uuid.UUID) (*models.Report, error) {
	if !database.InTx(ctx) {
		return nil, fmt.Errorf("report lock requires a transaction")
	}
	query := `SELECT ` + reportColumns + ` FROM health_check_reports WHERE id = $1 AND company_id = $2 FOR UPDATE`

	report, err := scanReport(database.Conn(ctx).QueryRow(ctx, query, id, companyID))
	if err != nil {
		return nil, notFound(err)
	}
	return report, nil
}

// ReportFilter narrows List results.
type ReportFilter struct {
	CompanyID       uuid.UUID
	SiteID          *uuid.UUID
	IncludeTestData bool
	Limit           int
}

// List returns reports of a company newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - f: Filter. A zero Limit means 50
//
// Returns:
//   - []models.Report: Matching reports ordered by created_at DESC
//   - error: Database error if query fails, nil on success
func (r *ReportRepository) List(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := `
		SELECT ` + reportColumns + `
		FROM health_check_reports
		WHERE company_id = $1
		  AND ($2::uuid IS NULL OR site_id = $2)
		  AND ($3 OR NOT is_test_data)
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := database.Conn(ctx).Query(ctx, query, f.CompanyID, f.SiteID, f.IncludeTestData, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// PreviousWeekScore returns the health score of the most recent non-test report of
// the site created at or before cutoff, or nil when there is none.
//
// Database: Uses idx_reports_site_created (site_id, created_at DESC)
func (r *ReportRepository) PreviousWeekScore(ctx context.Context, siteID uuid.UUID, cutoff time.Time) (*float64, error) {
	query := `
		SELECT health_score FROM health_check_reports
		WHERE site_id = $1 AND created_at <= $2 AND NOT is_test_data
		ORDER BY created_at DESC
		LIMIT 1
	`

	var score *float64
	err := database.Conn(ctx).QueryRow(ctx, query, siteID, cutoff).Scan(&score)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return score, nil
}

// UpdateCounters stores freshly derived counters and status on a report.
//
// Side Effects:
//   - Bumps updated_at
func (r *ReportRepository) UpdateCounters(ctx context.Context, id uuid.UUID, c models.Counters, status models.ReportStatus) error {
	query := `
		UPDATE health_check_reports SET
			status = $2,
			total_items = $3, critical_count = $4, medium_count = $5, low_count = $6,
			open_critical_count = $7, open_medium_count = $8, open_low_count = $9,
			pending_items = $10, completed_items = $11, delegated_items = $12,
			ignored_items = $13, escalated_items = $14,
			health_score = $15, resolution_percent = $16,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := database.Conn(ctx).Exec(ctx, query, id, status,
		c.TotalItems, c.CriticalCount, c.MediumCount, c.LowCount,
		c.OpenCritical, c.OpenMedium, c.OpenLow,
		c.PendingItems, c.CompletedItems, c.DelegatedItems,
		c.IgnoredItems, c.EscalatedItems,
		c.HealthScore, c.ResolutionPercent,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCalendarTask links the follow-up task created for a report.
func (r *ReportRepository) SetCalendarTask(ctx context.Context, id, taskID uuid.UUID) error {
	_, err := database.Conn(ctx).Exec(ctx,
		`UPDATE health_check_reports SET calendar_task_id = $2, updated_at = NOW() WHERE id = $1`,
		id, taskID)
	return err
}

// SetArchiveKey records where the report snapshot was archived.
func (r *ReportRepository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := database.Conn(ctx).Exec(ctx,
		`UPDATE health_check_reports SET archive_key = $2, updated_at = NOW() WHERE id = $1`,
		id, key)
	return err
}

// ListIDs returns the ids of a company's reports, optionally only those flagged as test data.
func (r *ReportRepository) ListIDs(ctx context.Context, companyID uuid.UUID, testOnly bool) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM health_check_reports
		WHERE company_id = $1 AND (NOT $2 OR is_test_data)
		ORDER BY created_at
	`

	rows, err := database.Conn(ctx).Query(ctx, query, companyID, testOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a report. Its items and their reminders go with it through
// ON DELETE CASCADE; audit rows keep their history with the reference nulled.
//
// Returns:
//   - bool: false if the report was already gone
//   - error: Database error, nil on success
func (r *ReportRepository) Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error) {
	tag, err := database.Conn(ctx).Exec(ctx,
		`DELETE FROM health_check_reports WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
