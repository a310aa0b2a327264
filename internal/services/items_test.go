package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bruce-k901/My-App-sub010/internal/lifecycle"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
	"github.com/Bruce-k901/My-App-sub010/internal/suggest"
)

type fakeSuggester struct {
	sg    models.Suggestion
	err   error
	calls int
}

func (f *fakeSuggester) Suggest(context.Context, models.Item) (models.Suggestion, error) {
	f.calls++
	return f.sg, f.err
}

func assertPartition(t *testing.T, c models.Counters) {
	t.Helper()
	assert.Equal(t, c.TotalItems, c.CriticalCount+c.MediumCount+c.LowCount, "severity sum")
	assert.Equal(t, c.TotalItems,
		c.PendingItems+c.CompletedItems+c.DelegatedItems+c.IgnoredItems+c.EscalatedItems, "outcome partition")
}

func TestEscalateFromPendingRejected(t *testing.T) {
	f := newFixture(t, 1)
	report, items := f.seedReport(t, f.sites[0], models.SeverityCritical)
	ctx := context.Background()

	_, err := f.items.Escalate(ctx, f.company.ID, items[0].ID, &f.staff.ID, f.manager.ID, "stuck")

	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	assert.Equal(t, models.StatusPending, f.mem.item(items[0].ID).Status)
	assert.Equal(t, report.Counters, f.mem.report(report.ID).Counters)
	assert.Empty(t, f.mem.auditActions())
}

func TestFix_UpdatesCountersAndAudits(t *testing.T) {
	f := newFixture(t, 1)
	report, items := f.seedReport(t, f.sites[0], models.SeverityCritical, models.SeverityLow)
	ctx := context.Background()

	res, err := f.items.Fix(ctx, f.company.ID, items[0].ID, f.staff.ID, models.NumberValue(12))

	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, res.Item.Status)
	assert.Equal(t, models.NumberValue(12), res.Item.CurrentValue)
	assert.Equal(t, &f.staff.ID, res.Item.ResolvedBy)
	assert.Equal(t, report.ID, res.ReportID)
	assert.Equal(t, 1, res.Report.CompletedItems)
	assert.Equal(t, 98.0, *res.Report.HealthScore)
	assert.Equal(t, 50, res.Report.ResolutionPercent)
	assert.Equal(t, models.ReportInProgress, res.Status)
	assertPartition(t, res.Report)

	stored := f.mem.report(report.ID)
	assert.Equal(t, res.Report, stored.Counters)
	assert.Equal(t, []string{"ITEM_FIX"}, f.mem.auditActions())
}

func TestFix_ValidatesValue(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityLow)

	_, err := f.items.Fix(context.Background(), f.company.ID, items[0].ID, f.staff.ID, models.TextValue("  "))

	assert.ErrorIs(t, err, lifecycle.ErrValidation)
	assert.Equal(t, models.StatusPending, f.mem.item(items[0].ID).Status)
}

func TestTransitions_KeepInvariants(t *testing.T) {
	f := newFixture(t, 1)
	report, items := f.seedReport(t, f.sites[0],
		models.SeverityCritical, models.SeverityCritical, models.SeverityMedium, models.SeverityLow, models.SeverityLow)
	ctx := context.Background()
	due := baseTime.Add(72 * time.Hour)

	score := *report.HealthScore
	step := func(res *models.TransitionResult, err error) {
		t.Helper()
		require.NoError(t, err)
		assertPartition(t, res.Report)
		assert.GreaterOrEqual(t, *res.Report.HealthScore, score, "resolving never lowers the score")
		score = *res.Report.HealthScore
	}

	step(f.items.Start(ctx, f.company.ID, items[0].ID, f.staff.ID))
	step(f.items.Fix(ctx, f.company.ID, items[0].ID, f.staff.ID, models.NumberValue(3)))
	step(f.items.Ignore(ctx, f.company.ID, items[3].ID, f.staff.ID))
	step(f.items.Delegate(ctx, f.company.ID, items[1].ID, f.manager.ID, DelegateInput{Assignee: f.staff.ID, Message: "count it", DueDate: &due}))
	step(f.items.Escalate(ctx, f.company.ID, items[1].ID, &f.staff.ID, f.manager.ID, "no access to the store room"))

	final := f.mem.report(report.ID)
	assert.Equal(t, 1, final.CompletedItems)
	assert.Equal(t, 1, final.IgnoredItems)
	assert.Equal(t, 1, final.EscalatedItems)
	assert.Equal(t, 2, final.PendingItems)
	assert.Equal(t, 40, final.ResolutionPercent)
	assert.Equal(t, []string{"ITEM_START", "ITEM_FIX", "ITEM_IGNORE", "ITEM_DELEGATE", "ITEM_ESCALATE"}, f.mem.auditActions())
}

func TestIgnoreClosesReport(t *testing.T) {
	f := newFixture(t, 1)
	report, items := f.seedReport(t, f.sites[0], models.SeverityMedium)

	res, err := f.items.Ignore(context.Background(), f.company.ID, items[0].ID, f.staff.ID)

	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, res.Status)
	assert.Equal(t, 100.0, *res.Report.HealthScore)
	assert.Equal(t, models.ReportResolved, f.mem.report(report.ID).Status)

	_, err = f.items.Delegate(context.Background(), f.company.ID, items[0].ID, f.manager.ID, DelegateInput{Assignee: f.staff.ID, Message: "reopen"})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestDelegate_SchedulesAndReplacesReminder(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityCritical)
	ctx := context.Background()
	due := baseTime.Add(72 * time.Hour)

	res, err := f.items.Delegate(ctx, f.company.ID, items[0].ID, f.manager.ID, DelegateInput{Assignee: f.staff.ID, Message: "please fix", DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelegated, res.Item.Status)
	assert.Equal(t, &f.staff.ID, res.Item.DelegatedTo)
	assert.Equal(t, &f.manager.ID, res.Item.DelegatedBy)
	assert.Equal(t, 1, res.Report.DelegatedItems)
	require.NotNil(t, res.Item.NextReminderAt)
	assert.Equal(t, due.Add(-24*time.Hour), *res.Item.NextReminderAt)

	rms := f.mem.remindersOf(items[0].ID)
	require.Len(t, rms, 1)
	assert.Equal(t, models.ReminderDueSoon, rms[0].Type)
	assert.Equal(t, f.staff.ID, rms[0].Recipient)
	assert.Equal(t, due.Add(-24*time.Hour), rms[0].ScheduledFor)

	// Re-delegating to the manager cancels the first reminder.
	later := due.Add(24 * time.Hour)
	_, err = f.items.Delegate(ctx, f.company.ID, items[0].ID, f.staff.ID, DelegateInput{Assignee: f.manager.ID, Message: "over to you", DueDate: &later})
	require.NoError(t, err)

	rms = f.mem.remindersOf(items[0].ID)
	require.Len(t, rms, 2)
	assert.NotNil(t, rms[0].CancelledAt)
	assert.True(t, rms[1].Pending())
	assert.Equal(t, f.manager.ID, rms[1].Recipient)
}

func TestDelegate_Validation(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityLow)
	ctx := context.Background()
	past := baseTime.Add(-time.Hour)

	_, err := f.items.Delegate(ctx, f.company.ID, items[0].ID, f.manager.ID, DelegateInput{Assignee: f.staff.ID, Message: " "})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	_, err = f.items.Delegate(ctx, f.company.ID, items[0].ID, f.manager.ID, DelegateInput{Assignee: f.staff.ID, Message: "x", DueDate: &past})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	_, err = f.items.Delegate(ctx, f.company.ID, items[0].ID, f.manager.ID, DelegateInput{Assignee: uuid.New(), Message: "x"})
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.Equal(t, models.StatusPending, f.mem.item(items[0].ID).Status)
}

func TestItem_OtherCompanyNotFound(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityLow)

	_, err := f.items.Start(context.Background(), uuid.New(), items[0].ID, f.staff.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.items.Get(context.Background(), f.company.ID, uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestAIFix(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityCritical, models.SeverityLow)
	ctx := context.Background()

	_, err := f.items.AIFix(ctx, f.company.ID, items[0].ID, f.staff.ID)
	assert.ErrorIs(t, err, ErrSuggestDisabled)

	sg := &fakeSuggester{sg: models.Suggestion{Value: models.NumberValue(4), Confidence: 87}}
	f.items.suggester = sg

	res, err := f.items.AIFix(ctx, f.company.ID, items[0].ID, f.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAIFixed, res.Item.Status)
	assert.Equal(t, models.NumberValue(4), res.Item.CurrentValue)
	require.NotNil(t, res.Item.AIConfidence)
	assert.Equal(t, 87, *res.Item.AIConfidence)
	assert.Equal(t, 1, res.Report.CompletedItems)
	assert.Equal(t, 98.0, *res.Report.HealthScore)

	_, err = f.items.Ignore(ctx, f.company.ID, items[0].ID, f.staff.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestAIFix_UsesStoredSuggestion(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityMedium)
	ctx := context.Background()
	sg := &fakeSuggester{sg: models.Suggestion{Value: models.TextValue("orders@bidfood.example"), Confidence: 64}}
	f.items.suggester = sg

	stored, err := f.items.Suggest(ctx, f.company.ID, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 64, stored.Confidence)
	assert.Equal(t, models.StatusPending, f.mem.item(items[0].ID).Status)

	res, err := f.items.AIFix(ctx, f.company.ID, items[0].ID, f.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sg.calls)
	assert.Equal(t, models.TextValue("orders@bidfood.example"), res.Item.CurrentValue)
}

func TestSuggest_Unavailable(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityMedium)
	f.items.suggester = &fakeSuggester{err: suggest.ErrUnavailable}

	_, err := f.items.Suggest(context.Background(), f.company.ID, items[0].ID)
	assert.ErrorIs(t, err, ErrNoSuggestion)

	f.items.suggester = &fakeSuggester{sg: models.Suggestion{Value: models.TextValue(""), Confidence: 90}}
	_, err = f.items.AIFix(context.Background(), f.company.ID, items[0].ID, f.staff.ID)
	assert.ErrorIs(t, err, ErrNoSuggestion)
	assert.Nil(t, f.mem.item(items[0].ID).AISuggestedValue)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, 1)
	_, items := f.seedReport(t, f.sites[0], models.SeverityCritical)
	ctx := context.Background()
	due := baseTime.Add(48 * time.Hour)

	_, err := f.items.Delegate(ctx, f.company.ID, items[0].ID, f.manager.ID, DelegateInput{Assignee: f.staff.ID, Message: "x", DueDate: &due})
	require.NoError(t, err)
	_, err = f.items.Fix(ctx, f.company.ID, items[0].ID, f.staff.ID, models.NumberValue(1))
	require.NoError(t, err)

	h, err := f.items.History(ctx, f.company.ID, items[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, h.Item.Status)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionDelegate}, h.Allowed)
	require.Len(t, h.Audit, 2)
	assert.Equal(t, "ITEM_FIX", h.Audit[0].Action)
	require.Len(t, h.Reminders, 1)
	assert.NotNil(t, h.Reminders[0].CancelledAt)
}

func TestItemService_ConcurrentTransitionsOnOneReport(t *testing.T) {
	f := newFixture(t, 1)
	var sevs []models.Severity
	for range 4 {
		sevs = append(sevs, models.SeverityCritical, models.SeverityMedium, models.SeverityLow)
	}
	report, items := f.seedReport(t, f.sites[0], sevs...)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, len(items))
	for i, it := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.items.Fix(ctx, f.company.ID, it.ID, f.staff.ID, models.TextValue("done"))
			} else {
				_, errs[i] = f.items.Ignore(ctx, f.company.ID, it.ID, f.staff.ID)
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "item %d", i)
	}

	// No transition may overwrite the counters written by another.
	r := f.mem.report(report.ID)
	assert.Equal(t, 6, r.CompletedItems)
	assert.Equal(t, 6, r.IgnoredItems)
	assert.Zero(t, r.PendingItems)
	assert.Equal(t, models.ReportResolved, r.Status)

	tally, err := f.st.Items.Tally(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, scoring.Summarize(tally, scoring.DefaultWeights()), r.Counters)
	assert.Len(t, f.mem.auditActions(), len(items))
}
