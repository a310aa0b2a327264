// Package scoring derives report counters, the health score and the resolution
// percentage from item statuses. Everything here is a pure function of stored counts.
package scoring

import (
	"math"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
)

// Weights is the per-severity penalty applied to each open item.
type Weights struct {
	Critical float64 `mapstructure:"critical"`
	Medium   float64 `mapstructure:"medium"`
	Low      float64 `mapstructure:"low"`
}

// DefaultWeights returns critical 10, medium 5, low 2.
func DefaultWeights() Weights {
	return Weights{Critical: 10, Medium: 5, Low: 2}
}

// Tally counts items of one report by severity and by status.
type Tally struct {
	Total      int
	BySeverity map[models.Severity]int
	Open       map[models.Severity]int
	ByStatus   map[models.ItemStatus]int
}

// NewTally returns an empty tally ready for Add.
func NewTally() Tally {
	return Tally{
		BySeverity: make(map[models.Severity]int),
		Open:       make(map[models.Severity]int),
		ByStatus:   make(map[models.ItemStatus]int),
	}
}

// Add records n items with the given severity and status.
func (t *Tally) Add(sev models.Severity, status models.ItemStatus, n int) {
	if n <= 0 {
		return
	}
	t.Total += n
	t.BySeverity[sev] += n
	t.ByStatus[status] += n
	if status.Open() {
		t.Open[sev] += n
	}
}

// Summarize turns a tally into stored report counters.
// Completed counts resolved and ai_fixed items; pending counts pending and in_progress.
func Summarize(t Tally, w Weights) models.Counters {
	c := models.Counters{
		TotalItems:     t.Total,
		CriticalCount:  t.BySeverity[models.SeverityCritical],
		MediumCount:    t.BySeverity[models.SeverityMedium],
		LowCount:       t.BySeverity[models.SeverityLow],
		OpenCritical:   t.Open[models.SeverityCritical],
		OpenMedium:     t.Open[models.SeverityMedium],
		OpenLow:        t.Open[models.SeverityLow],
		PendingItems:   t.ByStatus[models.StatusPending] + t.ByStatus[models.StatusInProgress],
		CompletedItems: t.ByStatus[models.StatusResolved] + t.ByStatus[models.StatusAIFixed],
		DelegatedItems: t.ByStatus[models.StatusDelegated],
		IgnoredItems:   t.ByStatus[models.StatusIgnored],
		EscalatedItems: t.ByStatus[models.StatusEscalated],
	}
	score := Score(c, w)
	c.HealthScore = &score
	c.ResolutionPercent = Resolution(c)
	return c
}

// Score is 100 minus the weighted count of open items, floored at 0.
func Score(c models.Counters, w Weights) float64 {
	penalty := float64(c.OpenCritical)*w.Critical +
		float64(c.OpenMedium)*w.Medium +
		float64(c.OpenLow)*w.Low
	return math.Max(0, round(100-penalty, 2))
}

// Resolution is the rounded share of completed and ignored items. An empty report
// counts as fully resolved.
func Resolution(c models.Counters) int {
	if c.TotalItems == 0 {
		return 100
	}
	return int(math.Round(float64(c.CompletedItems+c.IgnoredItems) / float64(c.TotalItems) * 100))
}

// Status reports the overall remediation state implied by the counters.
func Status(c models.Counters) models.ReportStatus {
	open := c.OpenCritical + c.OpenMedium + c.OpenLow
	switch {
	case open == 0:
		return models.ReportResolved
	case c.PendingItems == c.TotalItems:
		return models.ReportOpen
	default:
		return models.ReportInProgress
	}
}

// Trend compares this week's score against the previous week's snapshot.
// It returns nil when either score is unknown.
func Trend(prev, curr *float64) *models.Trend {
	if prev == nil || curr == nil {
		return nil
	}
	d := *curr - *prev

	dir := "flat"
	if d > 0.00001 {
		dir = "up"
	} else if d < -0.00001 {
		dir = "down"
	}

	dp := 0.0
	if math.Abs(*prev) > 0.00001 {
		dp = (d / *prev) * 100.0
	}

	return &models.Trend{
		DeltaScore:   round(d, 2),
		DeltaPercent: round(dp, 2),
		Direction:    dir,
		From:         round(*prev, 2),
		To:           round(*curr, 2),
	}
}

// Posture buckets a score for display.
func Posture(score *float64) string {
	if score == nil {
		return "unknown"
	}
	switch {
	case *score >= 90:
		return "good"
	case *score >= 70:
		return "fair"
	case *score >= 50:
		return "poor"
	default:
		return "critical"
	}
}

// Mean averages the non-nil scores. Nil scores are excluded from both numerator
// and denominator; an all-nil input yields nil.
func Mean(scores []*float64) *float64 {
	var sum float64
	n := 0
	for _, s := range scores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return nil
	}
	m := round(sum/float64(n), 2)
	return &m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
