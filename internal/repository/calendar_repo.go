// This file writes follow-up tasks into the host application's calendar.
package repository

import (
	"context"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
)

// CalendarRepository inserts follow-up tasks for reports with serious findings.
type CalendarRepository struct{}

// NewCalendarRepository creates a new instance of CalendarRepository.
func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{}
}

// CreateFollowUp inserts a task due on task.DueDate and linked back to its report.
//
// Side Effects:
//   - Sets task.ID
//
// Database Schema:
//   - Table: tasks (owned by the host application)
//   - source = 'health_check' marks engine-created tasks
func (r *CalendarRepository) CreateFollowUp(ctx context.Context, task *models.FollowUpTask) error {
	query := `
		INSERT INTO tasks (company_id, site_id, title, description, due_date, source, source_report_id)
		VALUES ($1, $2, $3, $4, $5, 'health_check', $6)
		RETURNING id
	`

	return database.Conn(ctx).QueryRow(ctx, query,
		task.CompanyID, task.SiteID, task.Title, task.Description, task.DueDate, task.ReportID,
	).Scan(&task.ID)
}
