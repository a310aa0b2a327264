package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/lifecycle"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/repository"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

// memStore backs every store interface with maps. Transactions are not rolled back;
// they are serialized by txMu, which stands in for the row locks taken inside them.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	companies map[uuid.UUID]models.Company
	areas     map[uuid.UUID]models.Area
	sites     []models.Site
	profiles  map[uuid.UUID]models.Profile
	reports   map[uuid.UUID]*models.Report
	items     map[uuid.UUID]*models.Item
	itemOrder []uuid.UUID
	reminders []*models.Reminder
	audit     []models.AuditLog
	tasks     []models.FollowUpTask

	calendarErr error
	markSentErr map[uuid.UUID]error
	now         func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		companies: map[uuid.UUID]models.Company{},
		areas:     map[uuid.UUID]models.Area{},
		profiles:  map[uuid.UUID]models.Profile{},
		reports:   map[uuid.UUID]*models.Report{},
		items:     map[uuid.UUID]*models.Item{},
		now:       now,
	}
}

func (m *memStore) stores() Stores {
	return Stores{
		Reports:   memReports{m},
		Items:     memItems{m},
		Reminders: memReminders{m},
		Audit:     memAudit{m},
		Sites:     memSites{m},
		Users:     memSites{m},
		Calendar:  memSites{m},
		Rollups:   memSites{m},
		WithTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			m.txMu.Lock()
			defer m.txMu.Unlock()
			return fn(ctx)
		},
	}
}

func (m *memStore) report(id uuid.UUID) models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reports[id]
}

func (m *memStore) item(id uuid.UUID) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *memStore) itemsOf(reportID uuid.UUID) []models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Item
	for _, id := range m.itemOrder {
		if it, ok := m.items[id]; ok && it.ReportID == reportID {
			out = append(out, *it)
		}
	}
	return out
}

func (m *memStore) allReports() []models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) remindersOf(itemID uuid.UUID) []models.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reminder
	for _, rm := range m.reminders {
		if rm.ItemID == itemID {
			out = append(out, *rm)
		}
	}
	return out
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.audit {
		out = append(out, a.Action)
	}
	return out
}

type memReports struct{ m *memStore }

func (s memReports) Create(_ context.Context, r *models.Report) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = s.m.now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.m.reports[r.ID] = &cp
	return nil
}

func (s memReports) GetByID(_ context.Context, companyID, id uuid.UUID) (*models.Report, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.reports[id]
	if !ok || r.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s memReports) LockByID(ctx context.Context, companyID, id uuid.UUID) (*models.Report, error) {
	return s.GetByID(ctx, companyID, id)
}

func (s memReports) List(_ context.Context, f repository.ReportFilter) ([]models.Report, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Report
	for _, r := range s.m.reports {
		if r.CompanyID != f.CompanyID || (f.SiteID != nil && r.SiteID != *f.SiteID) || (r.IsTestData && !f.IncludeTestData) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s memReports) PreviousWeekScore(_ context.Context, siteID uuid.UUID, cutoff time.Time) (*float64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var best *models.Report
	for _, r := range s.m.reports {
		if r.SiteID != siteID || r.IsTestData || r.CreatedAt.After(cutoff) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil || best.HealthScore == nil {
		return nil, nil
	}
	v := *best.HealthScore
	return &v, nil
}

func (s memReports) UpdateCounters(_ context.Context, id uuid.UUID, c models.Counters, status models.ReportStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Counters = c
	r.Status = status
	r.UpdatedAt = s.m.now()
	return nil
}

func (s memReports) SetCalendarTask(_ context.Context, id, taskID uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.reports[id].CalendarTaskID = &taskID
	return nil
}

func (s memReports) SetArchiveKey(_ context.Context, id uuid.UUID, key string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.reports[id].ArchiveKey = &key
	return nil
}

func (s memReports) ListIDs(_ context.Context, companyID uuid.UUID, testOnly bool) ([]uuid.UUID, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []uuid.UUID
	for id, r := range s.m.reports {
		if r.CompanyID == companyID && (!testOnly || r.IsTestData) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s memReports) Delete(_ context.Context, companyID, id uuid.UUID) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.reports[id]
	if !ok || r.CompanyID != companyID {
		return false, nil
	}
	delete(s.m.reports, id)
	gone := map[uuid.UUID]bool{}
	for itemID, it := range s.m.items {
		if it.ReportID == id {
			gone[itemID] = true
			delete(s.m.items, itemID)
		}
	}
	kept := s.m.reminders[:0]
	for _, rm := range s.m.reminders {
		if !gone[rm.ItemID] {
			kept = append(kept, rm)
		}
	}
	s.m.reminders = kept
	return true, nil
}

type memItems struct{ m *memStore }

func (s memItems) Create(_ context.Context, it *models.Item) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	it.ID = uuid.New()
	it.CreatedAt = s.m.now()
	it.UpdatedAt = it.CreatedAt
	cp := *it
	s.m.items[it.ID] = &cp
	s.m.itemOrder = append(s.m.itemOrder, it.ID)
	return nil
}

func (s memItems) GetByID(_ context.Context, companyID, id uuid.UUID) (*models.Item, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	it, ok := s.m.items[id]
	if !ok || it.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s memItems) LockByID(ctx context.Context, companyID, id uuid.UUID) (*models.Item, error) {
	return s.GetByID(ctx, companyID, id)
}

func (s memItems) ReportOf(ctx context.Context, companyID, id uuid.UUID) (uuid.UUID, error) {
	it, err := s.GetByID(ctx, companyID, id)
	if err != nil {
		return uuid.Nil, err
	}
	return it.ReportID, nil
}

func (s memItems) ListByReport(_ context.Context, reportID uuid.UUID) ([]models.Item, error) {
	out := s.m.itemsOf(reportID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity.Rank() < out[j].Severity.Rank() })
	return out, nil
}

func (s memItems) Update(_ context.Context, it *models.Item) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.items[it.ID]; !ok {
		return repository.ErrNotFound
	}
	it.UpdatedAt = s.m.now()
	cp := *it
	s.m.items[it.ID] = &cp
	return nil
}

func (s memItems) SetSuggestion(_ context.Context, id uuid.UUID, sg models.Suggestion) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	it, ok := s.m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	v, c := sg.Value, sg.Confidence
	it.AISuggestedValue = &v
	it.AIConfidence = &c
	return nil
}

func (s memItems) RecordReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	it := s.m.items[id]
	it.ReminderCount++
	it.LastReminderSentAt = &at
	it.NextReminderAt = nil
	return nil
}

func (s memItems) Tally(_ context.Context, reportID uuid.UUID) (scoring.Tally, error) {
	t := scoring.NewTally()
	for _, it := range s.m.itemsOf(reportID) {
		t.Add(it.Severity, it.Status, 1)
	}
	return t, nil
}

func (s memItems) ListDelegated(_ context.Context, dueBefore time.Time, limit int) ([]models.Item, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Item
	for _, id := range s.m.itemOrder {
		it, ok := s.m.items[id]
		if !ok || it.Status != models.StatusDelegated || it.DueDate == nil {
			continue
		}
		if !dueBefore.IsZero() && !it.DueDate.Before(dueBefore) {
			continue
		}
		out = append(out, *it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memItems) ListAwaitingReminder(_ context.Context, dueAfter time.Time, limit int) ([]models.Item, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	pending := map[uuid.UUID]bool{}
	for _, r := range s.m.reminders {
		if r.Type == models.ReminderDueSoon && r.Pending() {
			pending[r.ItemID] = true
		}
	}
	var out []models.Item
	for _, id := range s.m.itemOrder {
		it, ok := s.m.items[id]
		if !ok || it.Status != models.StatusDelegated || it.DueDate == nil || it.DelegatedTo == nil {
			continue
		}
		if !it.DueDate.After(dueAfter) || pending[it.ID] {
			continue
		}
		delegatedAt := it.UpdatedAt
		if it.DelegatedAt != nil {
			delegatedAt = *it.DelegatedAt
		}
		if it.LastReminderSentAt != nil && !it.LastReminderSentAt.Before(delegatedAt) {
			continue
		}
		out = append(out, *it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memReminders struct{ m *memStore }

func (s memReminders) Create(_ context.Context, rm *models.Reminder) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.reminders {
		if r.ItemID == rm.ItemID && r.Type == rm.Type && r.Pending() {
			return false, nil
		}
	}
	rm.ID = uuid.New()
	rm.CreatedAt = s.m.now()
	cp := *rm
	s.m.reminders = append(s.m.reminders, &cp)
	return true, nil
}

func (s memReminders) CancelPending(_ context.Context, itemID uuid.UUID, at time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, r := range s.m.reminders {
		if r.ItemID == itemID && r.Pending() {
			t := at
			r.CancelledAt = &t
			n++
		}
	}
	return n, nil
}

func (s memReminders) ListDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]models.Reminder, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Reminder
	for _, r := range s.m.reminders {
		if r.Pending() && !r.ScheduledFor.After(now) && r.Attempts < maxAttempts {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memReminders) Claim(_ context.Context, id uuid.UUID, maxAttempts int) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.reminders {
		if r.ID == id {
			return r.Pending() && r.Attempts < maxAttempts, nil
		}
	}
	return false, nil
}

func (s memReminders) ListByItem(_ context.Context, itemID uuid.UUID) ([]models.Reminder, error) {
	return s.m.remindersOf(itemID), nil
}

func (s memReminders) MarkSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.markSentErr[id]; err != nil {
		return false, err
	}
	for _, r := range s.m.reminders {
		if r.ID == id && r.Pending() {
			t := at
			r.SentAt = &t
			r.Attempts++
			r.LastError = nil
			return true, nil
		}
	}
	return false, nil
}

func (s memReminders) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.reminders {
		if r.ID == id {
			msg := reason
			r.Attempts++
			r.LastError = &msg
		}
	}
	return nil
}

type memAudit struct{ m *memStore }

func (s memAudit) Log(_ context.Context, e *models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e.ID = int64(len(s.m.audit) + 1)
	e.CreatedAt = s.m.now()
	s.m.audit = append(s.m.audit, *e)
	return nil
}

func (s memAudit) ListByItem(_ context.Context, companyID, itemID uuid.UUID, limit int) ([]models.AuditLog, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.AuditLog
	for i := len(s.m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		a := s.m.audit[i]
		if a.CompanyID == companyID && a.ItemID != nil && *a.ItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

// memSites serves the host tables: companies, areas, sites, profiles and tasks.
type memSites struct{ m *memStore }

func (s memSites) GetCompany(_ context.Context, id uuid.UUID) (*models.Company, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s memSites) GetSite(_ context.Context, companyID, id uuid.UUID) (*models.Site, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, site := range s.m.sites {
		if site.ID == id && site.CompanyID == companyID {
			cp := site
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memSites) GetArea(_ context.Context, companyID, id uuid.UUID) (*models.Area, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.areas[id]
	if !ok || a.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s memSites) ListActiveSites(_ context.Context, companyID uuid.UUID, areaID *uuid.UUID) ([]models.Site, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.Site
	for _, site := range s.m.sites {
		if site.CompanyID != companyID || !site.Active {
			continue
		}
		if areaID != nil && (site.AreaID == nil || *site.AreaID != *areaID) {
			continue
		}
		out = append(out, site)
	}
	return out, nil
}

func (s memSites) GetProfile(_ context.Context, companyID, id uuid.UUID) (*models.Profile, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.profiles[id]
	if !ok || p.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s memSites) CreateFollowUp(_ context.Context, task *models.FollowUpTask) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.calendarErr != nil {
		return s.m.calendarErr
	}
	task.ID = uuid.New()
	s.m.tasks = append(s.m.tasks, *task)
	return nil
}

func (s memSites) LatestPerSite(_ context.Context, companyID uuid.UUID, areaID *uuid.UUID, includeTest bool) ([]models.SiteSummary, error) {
	sites, _ := s.ListActiveSites(context.Background(), companyID, areaID)
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []models.SiteSummary
	for _, site := range sites {
		sum := models.SiteSummary{SiteID: site.ID, SiteName: site.Name, AreaID: site.AreaID}
		var latest *models.Report
		for _, r := range s.m.reports {
			if r.SiteID != site.ID || (r.IsTestData && !includeTest) {
				continue
			}
			if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
				latest = r
			}
		}
		if latest != nil {
			id, at := latest.ID, latest.CreatedAt
			sum.ReportID = &id
			sum.ReportedAt = &at
			sum.HealthScore = latest.HealthScore
			sum.CriticalCount = latest.CriticalCount
			sum.MediumCount = latest.MediumCount
			sum.LowCount = latest.LowCount
			sum.ResolvedCount = latest.CompletedItems
			sum.TotalItems = latest.TotalItems
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteName < out[j].SiteName })
	return out, nil
}

// ----------------------------------------------------------------------------
// Fixture
// ----------------------------------------------------------------------------

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *testClock
	mem     *memStore
	st      Stores
	company models.Company
	area    models.Area
	sites   []models.Site
	manager models.Profile
	staff   models.Profile
	items   *ItemService
}

var siteNames = []string{"Camden", "Soho", "Brixton", "Hackney"}

func newFixture(t *testing.T, nSites int) *fixture {
	t.Helper()
	clock := &testClock{t: baseTime}
	mem := newMemStore(clock.Now)

	f := &fixture{clock: clock, mem: mem}
	f.company = models.Company{ID: uuid.New(), Name: "Acme Kitchens"}
	f.area = models.Area{ID: uuid.New(), CompanyID: f.company.ID, Name: "London"}
	f.manager = models.Profile{ID: uuid.New(), CompanyID: f.company.ID, FullName: "Morgan Manager"}
	f.staff = models.Profile{ID: uuid.New(), CompanyID: f.company.ID, FullName: "Sam Staff"}

	mem.companies[f.company.ID] = f.company
	mem.areas[f.area.ID] = f.area
	mem.profiles[f.manager.ID] = f.manager
	mem.profiles[f.staff.ID] = f.staff
	for i := 0; i < nSites; i++ {
		areaID := f.area.ID
		site := models.Site{ID: uuid.New(), CompanyID: f.company.ID, AreaID: &areaID, Name: siteNames[i], Active: true}
		f.sites = append(f.sites, site)
		mem.sites = append(mem.sites, site)
	}

	f.st = mem.stores()
	f.items = NewItemService(f.st, security.NewValidationService(nil), nil,
		lifecycle.Policy{ReminderLead: 24 * time.Hour}, scoring.DefaultWeights(), zerolog.Nop())
	f.items.now = clock.Now
	return f
}

// seedReport stores a report for site with one pending item per severity given.
func (f *fixture) seedReport(t *testing.T, site models.Site, sevs ...models.Severity) (models.Report, []models.Item) {
	t.Helper()
	var findings []models.Finding
	for i, sev := range sevs {
		findings = append(findings, models.Finding{
			Module:       models.ModuleStock,
			Severity:     sev,
			Field:        "on_hand_qty",
			Title:        "Negative stock on hand",
			RecordName:   siteNames[i%len(siteNames)],
			CurrentValue: models.NumberValue(-1),
		})
	}
	report, items := buildReport(site, findings, scoring.DefaultWeights())
	ctx := context.Background()
	if err := f.st.Reports.Create(ctx, report); err != nil {
		t.Fatal(err)
	}
	for i := range items {
		items[i].ReportID = report.ID
		if err := f.st.Items.Create(ctx, &items[i]); err != nil {
			t.Fatal(err)
		}
	}
	return *report, items
}

var errBoom = errors.New("boom")
