package scoring_test

import (
	"testing"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestSummarize_CountersAndInvariants(t *testing.T) {
	tally := scoring.NewTally()
	tally.Add(models.SeverityCritical, models.StatusPending, 2)
	tally.Add(models.SeverityCritical, models.StatusResolved, 1)
	tally.Add(models.SeverityMedium, models.StatusDelegated, 1)
	tally.Add(models.SeverityMedium, models.StatusEscalated, 1)
	tally.Add(models.SeverityLow, models.StatusIgnored, 2)
	tally.Add(models.SeverityLow, models.StatusAIFixed, 1)
	tally.Add(models.SeverityLow, models.StatusInProgress, 1)

	c := scoring.Summarize(tally, scoring.DefaultWeights())

	assert.Equal(t, 9, c.TotalItems)
	assert.Equal(t, c.TotalItems, c.CriticalCount+c.MediumCount+c.LowCount)
	assert.Equal(t, c.TotalItems,
		c.CompletedItems+c.IgnoredItems+c.DelegatedItems+c.EscalatedItems+c.PendingItems)

	assert.Equal(t, 2, c.CompletedItems, "resolved and ai_fixed both count as completed")
	assert.Equal(t, 3, c.PendingItems, "pending and in_progress both count as pending")
	assert.Equal(t, 2, c.OpenCritical)
	assert.Equal(t, 2, c.OpenMedium)
	assert.Equal(t, 1, c.OpenLow)

	require.NotNil(t, c.HealthScore)
	// 100 - (2*10 + 2*5 + 1*2)
	assert.Equal(t, 68.0, *c.HealthScore)
	// (2 completed + 2 ignored) / 9
	assert.Equal(t, 44, c.ResolutionPercent)
	assert.Equal(t, models.ReportInProgress, scoring.Status(c))
}

func TestSummarize_EmptyReport(t *testing.T) {
	c := scoring.Summarize(scoring.NewTally(), scoring.DefaultWeights())

	require.NotNil(t, c.HealthScore)
	assert.Equal(t, 100.0, *c.HealthScore)
	assert.Equal(t, 100, c.ResolutionPercent)
	assert.Equal(t, models.ReportResolved, scoring.Status(c))
}

func TestScore_FloorsAtZero(t *testing.T) {
	c := models.Counters{OpenCritical: 15}
	assert.Equal(t, 0.0, scoring.Score(c, scoring.DefaultWeights()))
}

// TestScore_Monotonic moves items one at a time out of open states and checks the
// score never decreases.
func TestScore_Monotonic(t *testing.T) {
	sevs := []models.Severity{
		models.SeverityCritical, models.SeverityCritical, models.SeverityMedium,
		models.SeverityMedium, models.SeverityLow, models.SeverityLow,
	}
	closing := []models.ItemStatus{
		models.StatusResolved, models.StatusIgnored, models.StatusAIFixed,
		models.StatusResolved, models.StatusIgnored, models.StatusAIFixed,
	}
	statuses := make([]models.ItemStatus, len(sevs))
	for i := range statuses {
		statuses[i] = models.StatusPending
	}

	prev := -1.0
	for step := 0; step <= len(sevs); step++ {
		if step > 0 {
			statuses[step-1] = closing[step-1]
		}
		tally := scoring.NewTally()
		for i, s := range sevs {
			tally.Add(s, statuses[i], 1)
		}
		c := scoring.Summarize(tally, scoring.DefaultWeights())
		assert.GreaterOrEqual(t, *c.HealthScore, prev, "step %d", step)
		prev = *c.HealthScore
	}
	assert.Equal(t, 100.0, prev)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		c    models.Counters
		want models.ReportStatus
	}{
		{"untouched", models.Counters{TotalItems: 2, PendingItems: 2, OpenLow: 2}, models.ReportOpen},
		{"partly delegated", models.Counters{TotalItems: 2, PendingItems: 1, DelegatedItems: 1, OpenLow: 2}, models.ReportInProgress},
		{"all closed", models.Counters{TotalItems: 2, CompletedItems: 1, IgnoredItems: 1}, models.ReportResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoring.Status(tt.c))
		})
	}
}

func TestTrend(t *testing.T) {
	assert.Nil(t, scoring.Trend(nil, ptr(80)))

	up := scoring.Trend(ptr(80), ptr(90))
	require.NotNil(t, up)
	assert.Equal(t, "up", up.Direction)
	assert.Equal(t, 10.0, up.DeltaScore)
	assert.Equal(t, 12.5, up.DeltaPercent)

	flat := scoring.Trend(ptr(0), ptr(0))
	assert.Equal(t, "flat", flat.Direction)
	assert.Equal(t, 0.0, flat.DeltaPercent)

	down := scoring.Trend(ptr(90), ptr(60))
	assert.Equal(t, "down", down.Direction)
}

func TestPosture(t *testing.T) {
	assert.Equal(t, "good", scoring.Posture(ptr(95)))
	assert.Equal(t, "fair", scoring.Posture(ptr(70)))
	assert.Equal(t, "poor", scoring.Posture(ptr(50)))
	assert.Equal(t, "critical", scoring.Posture(ptr(49.99)))
	assert.Equal(t, "unknown", scoring.Posture(nil))
}

func TestMean_ExcludesMissingScores(t *testing.T) {
	m := scoring.Mean([]*float64{ptr(80), ptr(40), nil})
	require.NotNil(t, m)
	assert.Equal(t, 60.0, *m)

	assert.Nil(t, scoring.Mean([]*float64{nil, nil}))
}
