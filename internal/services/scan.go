package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/rules"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
)

// Archiver stores a snapshot of a finished report and returns its key.
type Archiver interface {
	PutReport(ctx context.Context, view models.ReportView) (string, error)
}

// ScanOptions tunes a Scanner.
type ScanOptions struct {
	RuleTimeout     time.Duration
	SiteConcurrency int
	CalendarTasks   bool
	FollowUpDays    int
	Weights         scoring.Weights
}

// Scanner runs every registered rule against a company's sites and stores one
// report per site.
//
// Concurrency:
//   - Sites fan out through an errgroup bounded by SiteConcurrency
//   - Within a site every rule runs in its own goroutine under its own timeout
//   - Each site's report and items are written in one transaction
type Scanner struct {
	stores   Stores
	registry *rules.Registry
	opts     ScanOptions
	archive  Archiver
	log      zerolog.Logger
	now      func() time.Time
}

// NewScanner creates a scanner. Zero options fall back to a 20s rule timeout and a
// concurrency of 1.
func NewScanner(st Stores, registry *rules.Registry, opts ScanOptions, log zerolog.Logger) *Scanner {
	if opts.RuleTimeout <= 0 {
		opts.RuleTimeout = 20 * time.Second
	}
	if opts.SiteConcurrency < 1 {
		opts.SiteConcurrency = 1
	}
	if opts.FollowUpDays <= 0 {
		opts.FollowUpDays = 7
	}
	return &Scanner{
		stores:   st,
		registry: registry,
		opts:     opts,
		log:      log.With().Str("component", "scanner").Logger(),
		now:      time.Now,
	}
}

// WithArchive enables report snapshots.
func (s *Scanner) WithArchive(a Archiver) *Scanner {
	s.archive = a
	return s
}

// Scan scans one site, or every active site of the company when siteID is nil.
//
// Parameters:
//   - ctx: Cancelling ctx stops sites that have not started; finished sites stay committed
//   - companyID: Tenant to scan
//   - siteID: Optional single site, which must be active and belong to the company
//
// Returns:
//   - *models.ScanResult: Totals plus per-site Errors and per-rule ScanErrors
//   - error: ErrCompanyNotFound, ErrSiteNotFound, a database error resolving sites, or
//     the context error when the scan was interrupted (the result is still returned)
func (s *Scanner) Scan(ctx context.Context, companyID uuid.UUID, siteID *uuid.UUID) (*models.ScanResult, error) {
	company, err := s.stores.Sites.GetCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, ErrCompanyNotFound)
	}

	sites, err := s.targetSites(ctx, company.ID, siteID)
	if err != nil {
		return nil, err
	}

	runAt := s.now().UTC()
	res := &models.ScanResult{Errors: []string{}, ScanErrors: []string{}}
	var mu sync.Mutex

	s.log.Info().Str("company_id", company.ID.String()).Int("sites", len(sites)).
		Int("rules", s.registry.Len()).Msg("scan started")

	var g errgroup.Group
	g.SetLimit(s.opts.SiteConcurrency)
	for _, site := range sites {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out := s.scanSite(ctx, site, runAt)

			mu.Lock()
			defer mu.Unlock()
			if out.reportID != uuid.Nil {
				res.ReportsCreated++
				res.ItemsCreated += out.items
			}
			if out.calendarTask {
				res.CalendarTasksCreated++
			}
			res.Errors = append(res.Errors, out.errors...)
			res.ScanErrors = append(res.ScanErrors, out.scanErrors...)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().Str("company_id", company.ID.String()).
		Int("reports", res.ReportsCreated).Int("items", res.ItemsCreated).
		Int("errors", len(res.Errors)).Int("scan_errors", len(res.ScanErrors)).
		Msg("scan finished")

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("scan interrupted: %w", err)
	}
	return res, nil
}

func (s *Scanner) targetSites(ctx context.Context, companyID uuid.UUID, siteID *uuid.UUID) ([]models.Site, error) {
	if siteID == nil {
		sites, err := s.stores.Sites.ListActiveSites(ctx, companyID, nil)
		if err != nil {
			return nil, fmt.Errorf("list sites: %w", err)
		}
		return sites, nil
	}
	site, err := s.stores.Sites.GetSite(ctx, companyID, *siteID)
	if err != nil {
		return nil, translate(err, ErrSiteNotFound)
	}
	if !site.Active {
		return nil, fmt.Errorf("%w: site %s is inactive", ErrSiteNotFound, site.Name)
	}
	return []models.Site{*site}, nil
}

type siteOutcome struct {
	reportID     uuid.UUID
	items        int
	calendarTask bool
	errors       []string
	scanErrors   []string
}

func (s *Scanner) scanSite(ctx context.Context, site models.Site, runAt time.Time) siteOutcome {
	var out siteOutcome
	log := s.log.With().Str("site_id", site.ID.String()).Str("site", site.Name).Logger()

	findings, scanErrors, unscannable := s.runRules(ctx, site)
	out.scanErrors = scanErrors
	if unscannable {
		// No rule could read the site; a clean report would claim a perfect score.
		out.errors = append(out.errors, fmt.Sprintf("%s: site unscannable", site.Name))
		log.Error().Int("rule_errors", len(scanErrors)).Msg("every rule failed, no report stored")
		return out
	}

	prev, err := s.stores.Reports.PreviousWeekScore(ctx, site.ID, runAt.AddDate(0, 0, -7))
	if err != nil {
		out.errors = append(out.errors, fmt.Sprintf("%s: previous week score: %v", site.Name, err))
		log.Error().Err(err).Msg("previous week lookup failed")
		return out
	}

	report, items := buildReport(site, findings, s.opts.Weights)
	report.PreviousWeekScore = prev

	err = s.stores.WithTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Reports.Create(ctx, report); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		for i := range items {
			items[i].ReportID = report.ID
			if err := s.stores.Items.Create(ctx, &items[i]); err != nil {
				return fmt.Errorf("create item %s/%s: %w", items[i].Module, items[i].FieldName, err)
			}
		}
		return nil
	})
	if err != nil {
		out.errors = append(out.errors, fmt.Sprintf("%s: %v", site.Name, err))
		log.Error().Err(err).Msg("report not stored")
		return out
	}
	out.reportID = report.ID
	out.items = len(items)

	log.Info().Str("report_id", report.ID.String()).Int("items", len(items)).
		Float64("health_score", *report.HealthScore).Msg("report created")

	if s.wantsFollowUp(report) {
		if err := s.createFollowUp(ctx, site, report, runAt); err != nil {
			out.errors = append(out.errors, fmt.Sprintf("%s: calendar task: %v", site.Name, err))
			log.Warn().Err(err).Msg("follow-up task not created")
		} else {
			out.calendarTask = true
		}
	}

	if s.archive != nil {
		view := models.ReportView{Report: *report, SiteName: site.Name, Posture: scoring.Posture(report.HealthScore), Items: items}
		key, err := s.archive.PutReport(ctx, view)
		if err == nil {
			err = s.stores.Reports.SetArchiveKey(ctx, report.ID, key)
		}
		if err != nil {
			out.errors = append(out.errors, fmt.Sprintf("%s: archive: %v", site.Name, err))
			log.Warn().Err(err).Msg("report not archived")
		}
	}
	return out
}

// runRules evaluates every registered rule concurrently and returns the findings in
// registry order plus one diagnostic per failed check or rule. unscannable is true
// when rules are registered and each of them failed without a usable finding.
func (s *Scanner) runRules(ctx context.Context, site models.Site) (findings []models.Finding, errs []string, unscannable bool) {
	registered := s.registry.Rules()
	evals := make([]rules.Evaluation, len(registered))

	var wg sync.WaitGroup
	for i, rule := range registered {
		wg.Add(1)
		go func() {
			defer wg.Done()
			evals[i] = s.runRule(ctx, site.ID, rule)
		}()
	}
	wg.Wait()

	failed := 0
	for i, ev := range evals {
		module := registered[i].Module()
		usable := 0
		for _, f := range ev.Findings {
			if f.Module == "" {
				f.Module = module
			}
			if !f.Severity.Valid() {
				errs = append(errs, fmt.Sprintf("%s/%s: finding %q has invalid severity %q", site.Name, module, f.Field, f.Severity))
				continue
			}
			findings = append(findings, f)
			usable++
		}
		for _, e := range ev.Errors {
			errs = append(errs, fmt.Sprintf("%s/%s: %s", site.Name, module, e))
		}
		if len(ev.Errors) > 0 && usable == 0 {
			failed++
		}
	}
	return findings, errs, len(registered) > 0 && failed == len(registered)
}

// runRule isolates one rule: a panic, a timeout or a cancelled scan becomes a
// single error with no findings.
func (s *Scanner) runRule(ctx context.Context, siteID uuid.UUID, rule rules.Rule) rules.Evaluation {
	rctx, cancel := context.WithTimeout(ctx, s.opts.RuleTimeout)
	defer cancel()

	done := make(chan rules.Evaluation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- rules.Evaluation{Errors: []string{fmt.Sprintf("rule panicked: %v", r)}}
			}
		}()
		done <- rule.Evaluate(rctx, siteID)
	}()

	select {
	case ev := <-done:
		return ev
	case <-rctx.Done():
		if ctx.Err() != nil {
			return rules.Evaluation{Errors: []string{ctx.Err().Error()}}
		}
		return rules.Evaluation{Errors: []string{fmt.Sprintf("timed out after %s", s.opts.RuleTimeout)}}
	}
}

// buildReport materializes findings as pending items and derives the initial counters.
func buildReport(site models.Site, findings []models.Finding, w scoring.Weights) (*models.Report, []models.Item) {
	items := make([]models.Item, 0, len(findings))
	tally := scoring.NewTally()
	for _, f := range findings {
		items = append(items, itemFromFinding(site, f))
		tally.Add(f.Severity, models.StatusPending, 1)
	}
	c := scoring.Summarize(tally, w)
	return &models.Report{
		CompanyID: site.CompanyID,
		SiteID:    site.ID,
		Status:    scoring.Status(c),
		Counters:  c,
	}, items
}

func itemFromFinding(site models.Site, f models.Finding) models.Item {
	return models.Item{
		CompanyID:    site.CompanyID,
		SiteID:       site.ID,
		Module:       f.Module,
		FieldName:    f.Field,
		FieldLabel:   f.Label,
		Severity:     f.Severity,
		Title:        f.Title,
		Description:  f.Description,
		RecordID:     f.RecordID,
		RecordName:   f.RecordName,
		CurrentValue: f.CurrentValue,
		Status:       models.StatusPending,
	}
}

func (s *Scanner) wantsFollowUp(r *models.Report) bool {
	return s.opts.CalendarTasks && s.stores.Calendar != nil && r.CriticalCount+r.MediumCount > 0
}

func (s *Scanner) createFollowUp(ctx context.Context, site models.Site, r *models.Report, runAt time.Time) error {
	task := &models.FollowUpTask{
		CompanyID:     r.CompanyID,
		SiteID:        r.SiteID,
		ReportID:      r.ID,
		Title:         fmt.Sprintf("Health check follow-up: %s", site.Name),
		Description:   followUpDescription(r.Counters),
		DueDate:       runAt.AddDate(0, 0, s.opts.FollowUpDays),
		CriticalCount: r.CriticalCount,
		MediumCount:   r.MediumCount,
		LowCount:      r.LowCount,
	}
	if err := s.stores.Calendar.CreateFollowUp(ctx, task); err != nil {
		return err
	}
	r.CalendarTaskID = &task.ID
	return s.stores.Reports.SetCalendarTask(ctx, r.ID, task.ID)
}

func followUpDescription(c models.Counters) string {
	return fmt.Sprintf("Health check found %d critical, %d medium and %d low issues (score %.0f). Review and resolve them in the health check report.",
		c.CriticalCount, c.MediumCount, c.LowCount, *c.HealthScore)
}
