package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/rules"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
)

// Scenario selects the shape of generated test data.
type Scenario string

const (
	ScenarioMixed    Scenario = "mixed"
	ScenarioCritical Scenario = "critical"
	ScenarioModerate Scenario = "moderate"
	ScenarioClean    Scenario = "clean"
)

// ParseScenario validates a scenario name. An empty name means mixed.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(s); sc {
	case "":
		return ScenarioMixed, nil
	case ScenarioMixed, ScenarioCritical, ScenarioModerate, ScenarioClean:
		return sc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScenario, s)
}

// span is an inclusive range of finding counts.
type span struct{ min, max int }

// scenarioMix is how many findings of each severity a site gets, and the share of
// them that arrives already resolved or ignored.
type scenarioMix struct {
	critical, medium, low span
	preResolved           float64
}

var scenarioMixes = map[Scenario]scenarioMix{
	ScenarioMixed:    {critical: span{0, 3}, medium: span{1, 4}, low: span{1, 5}, preResolved: 0.2},
	ScenarioCritical: {critical: span{3, 6}, medium: span{2, 4}, low: span{1, 3}},
	ScenarioModerate: {medium: span{2, 5}, low: span{2, 5}},
	ScenarioClean:    {low: span{0, 2}},
}

var recordNames = map[models.Module][]string{
	models.ModuleStock:      {"Whole milk 2L", "Plain flour 16kg", "Unsalted butter", "Free range eggs", "Arborio rice"},
	models.ModuleSuppliers:  {"Fresh Direct", "Bidfood", "Brakes", "Local Dairy Co", "Harvest Greens"},
	models.ModulePurchasing: {"PO-10231", "PO-10245", "PO-10258", "PO-10302", "PO-10317"},
	models.ModuleStaff:      {"Alex Morgan", "Sam Patel", "Jordan Lee", "Casey Brown", "Riley Evans"},
	models.ModuleAssets:     {"Walk-in fridge", "Combi oven", "Dishwasher", "Ice machine", "Fryer 2"},
	models.ModuleScheduling: {"Chef Mon 07:00", "Server Fri 17:00", "Porter Sat 09:00", "Barista Sun 08:00"},
	models.ModuleRecipes:    {"Chicken katsu", "Vegan burger", "Caesar salad", "Sticky toffee pudding"},
	models.ModuleCompliance: {"Fridge temperature log", "Fire alarm test", "Pest control visit", "Deep clean"},
}

// Generator writes synthetic reports flagged as test data.
type Generator struct {
	stores    Stores
	weights   scoring.Weights
	templates []rules.Template
	seed      uint64
	log       zerolog.Logger
	now       func() time.Time
}

// NewGenerator creates a generator. A zero seed draws a new seed from the clock on
// every call; any other seed makes each call reproducible.
func NewGenerator(st Stores, w scoring.Weights, seed uint64, log zerolog.Logger) *Generator {
	return &Generator{
		stores:    st,
		weights:   w,
		templates: rules.Templates(),
		seed:      seed,
		log:       log.With().Str("component", "testdata").Logger(),
		now:       time.Now,
	}
}

// Generate writes one test report per active site of the company.
func (g *Generator) Generate(ctx context.Context, companyID uuid.UUID, scenario Scenario) (*models.GenerateResult, error) {
	mix, ok := scenarioMixes[scenario]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScenario, scenario)
	}
	company, err := g.stores.Sites.GetCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, ErrCompanyNotFound)
	}
	sites, err := g.stores.Sites.ListActiveSites(ctx, company.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	seed := g.seed
	if seed == 0 {
		seed = uint64(g.now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now := g.now().UTC()

	res := &models.GenerateResult{Errors: []string{}}
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		report, items := g.siteReport(rng, site, mix, now)
		err := g.stores.WithTx(ctx, func(ctx context.Context) error {
			if err := g.stores.Reports.Create(ctx, report); err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			for i := range items {
				items[i].ReportID = report.ID
				if err := g.stores.Items.Create(ctx, &items[i]); err != nil {
					return fmt.Errorf("create item: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", site.Name, err))
			continue
		}
		res.ReportsCreated++
		res.ItemsCreated += len(items)
	}

	g.log.Info().Str("company_id", company.ID.String()).Str("scenario", string(scenario)).
		Uint64("seed", seed).Int("reports", res.ReportsCreated).Int("items", res.ItemsCreated).
		Msg("test data generated")
	return res, nil
}

func (g *Generator) siteReport(rng *rand.Rand, site models.Site, mix scenarioMix, now time.Time) (*models.Report, []models.Item) {
	var items []models.Item
	for _, want := range []struct {
		sev models.Severity
		n   span
	}{
		{models.SeverityCritical, mix.critical},
		{models.SeverityMedium, mix.medium},
		{models.SeverityLow, mix.low},
	} {
		pool := g.templatesOf(want.sev)
		if len(pool) == 0 {
			continue
		}
		for range draw(rng, want.n) {
			tpl := pool[rng.IntN(len(pool))]
			item := itemFromFinding(site, fakeFinding(rng, tpl, now))
			if rng.Float64() < mix.preResolved {
				at := now.Add(-time.Duration(rng.IntN(72)) * time.Hour)
				item.ResolvedAt = &at
				item.Status = models.StatusResolved
				if rng.IntN(4) == 0 {
					item.Status = models.StatusIgnored
				}
			}
			items = append(items, item)
		}
	}

	tally := scoring.NewTally()
	for _, it := range items {
		tally.Add(it.Severity, it.Status, 1)
	}
	c := scoring.Summarize(tally, g.weights)

	report := &models.Report{
		CompanyID:  site.CompanyID,
		SiteID:     site.ID,
		Status:     scoring.Status(c),
		IsTestData: true,
		Counters:   c,
	}
	if len(items) > 0 {
		prev := math.Max(0, math.Min(100, *c.HealthScore+float64(rng.IntN(31)-15)))
		report.PreviousWeekScore = &prev
	}
	return report, items
}

func (g *Generator) templatesOf(sev models.Severity) []rules.Template {
	var out []rules.Template
	for _, t := range g.templates {
		if t.Severity == sev {
			out = append(out, t)
		}
	}
	return out
}

func draw(rng *rand.Rand, s span) int {
	if s.max <= s.min {
		return s.min
	}
	return s.min + rng.IntN(s.max-s.min+1)
}

// fakeFinding fills a template with a plausible record and a value of the template's kind.
func fakeFinding(rng *rand.Rand, tpl rules.Template, now time.Time) models.Finding {
	names := recordNames[tpl.Module]
	name := names[rng.IntN(len(names))]

	var v models.FieldValue
	switch tpl.Kind {
	case models.KindNumber:
		if tpl.Severity == models.SeverityCritical {
			v = models.NumberValue(-float64(1 + rng.IntN(20)))
		} else {
			v = models.NumberValue(0)
		}
	case models.KindDate:
		v = models.DateValue(now.AddDate(0, 0, -(1 + rng.IntN(60))))
	case models.KindBoolean:
		v = models.BoolValue(false)
	case models.KindSelection:
		v = models.SelectionValue()
	default:
		v = models.TextValue("")
	}

	return models.Finding{
		Module:       tpl.Module,
		Severity:     tpl.Severity,
		Field:        tpl.Field,
		Label:        tpl.Label,
		Title:        tpl.Title,
		Description:  fmt.Sprintf(tpl.Describe, name),
		CurrentValue: v,
		RecordID:     fmt.Sprintf("test-%08x", rng.Uint32()),
		RecordName:   name,
	}
}
