// Package services provides the business logic layer of the Health Check engine:
// scanning, item transitions, the reminder scheduler, rollups, test data and clears.
//
// Services depend on the narrow store interfaces below rather than on concrete
// repositories so they can be exercised against in-memory stores in tests.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/repository"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
)

type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Report, error)
	LockByID(ctx context.Context, companyID, id uuid.UUID) (*models.Report, error)
	List(ctx context.Context, f repository.ReportFilter) ([]models.Report, error)
	PreviousWeekScore(ctx context.Context, siteID uuid.UUID, cutoff time.Time) (*float64, error)
	UpdateCounters(ctx context.Context, id uuid.UUID, c models.Counters, status models.ReportStatus) error
	SetCalendarTask(ctx context.Context, id, taskID uuid.UUID) error
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error
	ListIDs(ctx context.Context, companyID uuid.UUID, testOnly bool) ([]uuid.UUID, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error)
}

type ItemStore interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Item, error)
	LockByID(ctx context.Context, companyID, id uuid.UUID) (*models.Item, error)
	ReportOf(ctx context.Context, companyID, id uuid.UUID) (uuid.UUID, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	SetSuggestion(ctx context.Context, id uuid.UUID, s models.Suggestion) error
	RecordReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Tally(ctx context.Context, reportID uuid.UUID) (scoring.Tally, error)
	ListDelegated(ctx context.Context, dueBefore time.Time, limit int) ([]models.Item, error)
	ListAwaitingReminder(ctx context.Context, dueAfter time.Time, limit int) ([]models.Item, error)
}

type ReminderStore interface {
	Create(ctx context.Context, rm *models.Reminder) (bool, error)
	CancelPending(ctx context.Context, itemID uuid.UUID, at time.Time) (int64, error)
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.Reminder, error)
	Claim(ctx context.Context, id uuid.UUID, maxAttempts int) (bool, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type AuditStore interface {
	Log(ctx context.Context, entry *models.AuditLog) error
	ListByItem(ctx context.Context, companyID, itemID uuid.UUID, limit int) ([]models.AuditLog, error)
}

type SiteStore interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetSite(ctx context.Context, companyID, id uuid.UUID) (*models.Site, error)
	GetArea(ctx context.Context, companyID, id uuid.UUID) (*models.Area, error)
	ListActiveSites(ctx context.Context, companyID uuid.UUID, areaID *uuid.UUID) ([]models.Site, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, companyID, id uuid.UUID) (*models.Profile, error)
}

type CalendarStore interface {
	CreateFollowUp(ctx context.Context, task *models.FollowUpTask) error
}

type RollupStore interface {
	LatestPerSite(ctx context.Context, companyID uuid.UUID, areaID *uuid.UUID, includeTest bool) ([]models.SiteSummary, error)
}

// TxFunc runs fn in a transaction carried by the context it passes to fn.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Stores bundles every store a service may need.
type Stores struct {
	Reports   ReportStore
	Items     ItemStore
	Reminders ReminderStore
	Audit     AuditStore
	Sites     SiteStore
	Users     ProfileStore
	Calendar  CalendarStore // nil disables follow-up tasks
	Rollups   RollupStore
	WithTx    TxFunc
}

// DefaultStores wires the PostgreSQL repositories and database.WithTx.
func DefaultStores() Stores {
	return Stores{
		Reports:   repository.NewReportRepository(),
		Items:     repository.NewItemRepository(),
		Reminders: repository.NewReminderRepository(),
		Audit:     repository.NewAuditRepository(),
		Sites:     repository.NewSiteRepository(),
		Users:     repository.NewUserRepository(),
		Calendar:  repository.NewCalendarRepository(),
		Rollups:   repository.NewRollupRepository(),
		WithTx:    database.WithTx,
	}
}

// recount re-derives a report's counters from its items' statuses and stores them.
// Callers hold the report lock.
func recount(ctx context.Context, st Stores, reportID uuid.UUID, w scoring.Weights) (models.Counters, models.ReportStatus, error) {
	tally, err := st.Items.Tally(ctx, reportID)
	if err != nil {
		return models.Counters{}, "", err
	}
	c := scoring.Summarize(tally, w)
	status := scoring.Status(c)
	if err := st.Reports.UpdateCounters(ctx, reportID, c, status); err != nil {
		return models.Counters{}, "", err
	}
	return c, status, nil
}
