// Package models defines the domain entities and view models for the Health Check engine.
// It includes database models mapped to PostgreSQL tables, the finding shape produced by
// rules, and the aggregate views returned to API callers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Enumerations
// ============================================================================

// Severity weights a finding's impact on the health score.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities for display, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// ItemStatus is the lifecycle state of a single finding.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusInProgress ItemStatus = "in_progress"
	StatusResolved   ItemStatus = "resolved"
	StatusIgnored    ItemStatus = "ignored"
	StatusDelegated  ItemStatus = "delegated"
	StatusEscalated  ItemStatus = "escalated"
	StatusAIFixed    ItemStatus = "ai_fixed"
)

// Open reports whether an item in this status still carries a score penalty.
func (s ItemStatus) Open() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDelegated, StatusEscalated:
		return true
	}
	return false
}

// ReportStatus summarises remediation progress of a whole report.
type ReportStatus string

const (
	ReportOpen       ReportStatus = "open"
	ReportInProgress ReportStatus = "in_progress"
	ReportResolved   ReportStatus = "resolved"
)

// Module identifies the business module a rule inspects.
type Module string

const (
	ModuleStock      Module = "stock"
	ModuleSuppliers  Module = "suppliers"
	ModulePurchasing Module = "purchasing"
	ModuleStaff      Module = "staff"
	ModuleAssets     Module = "assets"
	ModuleScheduling Module = "scheduling"
	ModuleRecipes    Module = "recipes"
	ModuleCompliance Module = "compliance"
)

// Modules lists every shipped module in registry order.
var Modules = []Module{
	ModuleStock,
	ModuleSuppliers,
	ModulePurchasing,
	ModuleStaff,
	ModuleAssets,
	ModuleScheduling,
	ModuleRecipes,
	ModuleCompliance,
}

// ReminderType distinguishes reminders scheduled for the same item.
type ReminderType string

const (
	ReminderDueSoon    ReminderType = "due_soon"
	ReminderEscalation ReminderType = "escalation"
)

// ============================================================================
// Domain Models (Database Entities)
// ============================================================================

// Finding is a single integrity issue produced by one rule for one site.
// Findings are transient; the scanner materializes each one as an Item.
type Finding struct {
	Module       Module
	Severity     Severity
	Field        string
	Label        string
	Title        string
	Description  string
	CurrentValue FieldValue
	RecordID     string
	RecordName   string
}

// Report is the versioned snapshot of all findings for one site from one scan run.
//
// Database Table: health_check_reports
// Related: Item (one-to-many, cascade delete)
type Report struct {
	ID                uuid.UUID    `db:"id" json:"id"`
	CompanyID         uuid.UUID    `db:"company_id" json:"company_id"`
	SiteID            uuid.UUID    `db:"site_id" json:"site_id"`
	Status            ReportStatus `db:"status" json:"status"`
	PreviousWeekScore *float64     `db:"previous_week_score" json:"previous_week_score"`
	IsTestData        bool         `db:"is_test_data" json:"is_test_data"`
	CalendarTaskID    *uuid.UUID   `db:"calendar_task_id" json:"calendar_task_id,omitempty"`
	ArchiveKey        *string      `db:"archive_key" json:"archive_key,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`

	Counters
}

// Counters are the stored aggregates of a report. They are always derived from the
// statuses of the report's items, never overwritten from a caller-held copy.
type Counters struct {
	TotalItems        int      `db:"total_items" json:"total_items"`
	CriticalCount     int      `db:"critical_count" json:"critical_count"`
	MediumCount       int      `db:"medium_count" json:"medium_count"`
	LowCount          int      `db:"low_count" json:"low_count"`
	OpenCritical      int      `db:"open_critical_count" json:"open_critical_count"`
	OpenMedium        int      `db:"open_medium_count" json:"open_medium_count"`
	OpenLow           int      `db:"open_low_count" json:"open_low_count"`
	PendingItems      int      `db:"pending_items" json:"pending_items"`
	CompletedItems    int      `db:"completed_items" json:"completed_items"`
	DelegatedItems    int      `db:"delegated_items" json:"delegated_items"`
	IgnoredItems      int      `db:"ignored_items" json:"ignored_items"`
	EscalatedItems    int      `db:"escalated_items" json:"escalated_items"`
	HealthScore       *float64 `db:"health_score" json:"health_score"`
	ResolutionPercent int      `db:"resolution_percent" json:"resolution_percent"`
}

// Item is one finding materialized as a trackable unit of work within a report.
//
// Database Table: health_check_items
// Related: Report (many-to-one), Reminder (one-to-many)
type Item struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	ReportID         uuid.UUID   `db:"report_id" json:"report_id"`
	CompanyID        uuid.UUID   `db:"company_id" json:"company_id"`
	SiteID           uuid.UUID   `db:"site_id" json:"site_id"`
	Module           Module      `db:"module" json:"module"`
	FieldName        string      `db:"field_name" json:"field_name"`
	FieldLabel       string      `db:"field_label" json:"field_label"`
	Severity         Severity    `db:"severity" json:"severity"`
	Title            string      `db:"title" json:"title"`
	Description      string      `db:"description" json:"description"`
	RecordID         string      `db:"record_id" json:"record_id"`
	RecordName       string      `db:"record_name" json:"record_name"`
	CurrentValue     FieldValue  `db:"current_value" json:"current_value"`
	AISuggestedValue *FieldValue `db:"ai_suggested_value" json:"ai_suggested_value,omitempty"`
	AIConfidence     *int        `db:"ai_confidence" json:"ai_confidence,omitempty"`
	Status           ItemStatus  `db:"status" json:"status"`
	ResolvedBy       *uuid.UUID  `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`

	Delegation
	ReminderState
	Escalation
}

// Delegation holds who an item was handed to, by whom, and by when.
type Delegation struct {
	DelegatedTo       *uuid.UUID `db:"delegated_to" json:"delegated_to,omitempty"`
	DelegatedBy       *uuid.UUID `db:"delegated_by" json:"delegated_by,omitempty"`
	DelegatedAt       *time.Time `db:"delegated_at" json:"delegated_at,omitempty"`
	DelegationMessage *string    `db:"delegation_message" json:"delegation_message,omitempty"`
	DueDate           *time.Time `db:"due_date" json:"due_date,omitempty"`
	ConversationID    *string    `db:"conversation_id" json:"conversation_id,omitempty"`
}

// ReminderState mirrors the reminder history onto the item for cheap listing.
type ReminderState struct {
	ReminderCount      int        `db:"reminder_count" json:"reminder_count"`
	LastReminderSentAt *time.Time `db:"last_reminder_sent_at" json:"last_reminder_sent_at,omitempty"`
	NextReminderAt     *time.Time `db:"next_reminder_at" json:"next_reminder_at,omitempty"`
}

// Escalation records the forced handoff of an overdue item.
type Escalation struct {
	EscalatedTo      *uuid.UUID `db:"escalated_to" json:"escalated_to,omitempty"`
	EscalationReason *string    `db:"escalation_reason" json:"escalation_reason,omitempty"`
	EscalatedAt      *time.Time `db:"escalated_at" json:"escalated_at,omitempty"`
}

// Reminder is one scheduled notification tied to an item.
//
// Database Table: health_check_reminders
// Constraint: one unsent, uncancelled reminder per (item_id, reminder_type)
type Reminder struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	ItemID       uuid.UUID    `db:"item_id" json:"item_id"`
	CompanyID    uuid.UUID    `db:"company_id" json:"company_id"`
	Type         ReminderType `db:"reminder_type" json:"reminder_type"`
	ScheduledFor time.Time    `db:"scheduled_for" json:"scheduled_for"`
	SentAt       *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
	CancelledAt  *time.Time   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Recipient    uuid.UUID    `db:"recipient" json:"recipient"`
	Message      string       `db:"message" json:"message"`
	Attempts     int          `db:"attempts" json:"attempts"`
	LastError    *string      `db:"last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Pending reports whether the reminder still waits for delivery.
func (r Reminder) Pending() bool {
	return r.SentAt == nil && r.CancelledAt == nil
}

// FollowUpTask is the calendar task payload produced for reports with serious findings.
//
// Database Table: tasks
type FollowUpTask struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CompanyID     uuid.UUID `db:"company_id" json:"company_id"`
	SiteID        uuid.UUID `db:"site_id" json:"site_id"`
	ReportID      uuid.UUID `db:"source_report_id" json:"source_report_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	DueDate       time.Time `db:"due_date" json:"due_date"`
	CriticalCount int       `json:"critical_count"`
	MediumCount   int       `json:"medium_count"`
	LowCount      int       `json:"low_count"`
}

// AuditLog records item transitions and administrative actions on health check data.
//
// Database Table: health_check_audit
// Immutability: entries are never updated or deleted by the engine
type AuditLog struct {
	ID         int64          `json:"id"`
	CompanyID  uuid.UUID      `json:"company_id"`
	ActorID    *uuid.UUID     `json:"actor_id"` // Nil for scheduler actions
	Action     string         `json:"action"`   // e.g. "ITEM_FIX", "ITEM_ESCALATE", "CLEAR_ALL"
	ReportID   *uuid.UUID     `json:"report_id,omitempty"`
	ItemID     *uuid.UUID     `json:"item_id,omitempty"`
	FromStatus *ItemStatus    `json:"from_status,omitempty"`
	ToStatus   *ItemStatus    `json:"to_status,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Suggestion is the AI generator's proposed value for an item.
type Suggestion struct {
	Value      FieldValue `json:"value"`
	Confidence int        `json:"confidence"` // 0..100
}

// ============================================================================
// Results and View Models
// ============================================================================

// ScanResult aggregates the outcome of a scan across all processed sites.
// Errors hold per-site failures; ScanErrors hold per-rule failures.
type ScanResult struct {
	ReportsCreated       int      `json:"reports_created"`
	ItemsCreated         int      `json:"items_created"`
	CalendarTasksCreated int      `json:"calendar_tasks_created"`
	Errors               []string `json:"errors"`
	ScanErrors           []string `json:"scan_errors"`
}

// GenerateResult is returned by the test-data generator.
type GenerateResult struct {
	ReportsCreated int      `json:"reports_created"`
	ItemsCreated   int      `json:"items_created"`
	Errors         []string `json:"errors"`
}

// ClearResult reports how much data a clear removed.
type ClearResult struct {
	ReportsDeleted int `json:"reports_deleted"`
}

// TransitionResult is what every lifecycle mutation returns: the item after the
// change and the owning report's freshly derived counters.
type TransitionResult struct {
	Item     Item         `json:"item"`
	Report   Counters     `json:"report"`
	ReportID uuid.UUID    `json:"report_id"`
	Status   ReportStatus `json:"report_status"`
}

// ReportView is a report with its items and presentation helpers.
type ReportView struct {
	Report
	SiteName string `json:"site_name"`
	Posture  string `json:"posture"`
	Trend    *Trend `json:"trend,omitempty"`
	Items    []Item `json:"items,omitempty"`
}

// Trend is the week-over-week change of a report's health score.
type Trend struct {
	DeltaScore   float64 `json:"delta_score"`
	DeltaPercent float64 `json:"delta_percent"`
	Direction    string  `json:"direction"`
	From         float64 `json:"from"`
	To           float64 `json:"to"`
}

// SiteSummary is one site's contribution to an area or company rollup.
type SiteSummary struct {
	SiteID        uuid.UUID  `json:"site_id"`
	SiteName      string     `json:"site_name"`
	AreaID        *uuid.UUID `json:"area_id,omitempty"`
	ReportID      *uuid.UUID `json:"report_id,omitempty"`
	HealthScore   *float64   `json:"health_score"`
	CriticalCount int        `json:"critical_count"`
	MediumCount   int        `json:"medium_count"`
	LowCount      int        `json:"low_count"`
	ResolvedCount int        `json:"resolved_count"`
	TotalItems    int        `json:"total_items"`
	ReportedAt    *time.Time `json:"reported_at,omitempty"`
}

// Rollup summarises the latest reports of a set of sites.
type Rollup struct {
	Scope         string        `json:"scope"` // "area" or "company"
	ScopeID       uuid.UUID     `json:"scope_id"`
	AvgScore      *float64      `json:"avg_score"`
	CriticalTotal int           `json:"critical_total"`
	MediumTotal   int           `json:"medium_total"`
	LowTotal      int           `json:"low_total"`
	ResolvedTotal int           `json:"resolved_total"`
	TotalItems    int           `json:"total_items"`
	PerSite       []SiteSummary `json:"per_site"`
}
