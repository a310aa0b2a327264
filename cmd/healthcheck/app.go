package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Bruce-k901/My-App-sub010/internal/archive"
	"github.com/Bruce-k901/My-App-sub010/internal/config"
	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/lifecycle"
	"github.com/Bruce-k901/My-App-sub010/internal/notify"
	"github.com/Bruce-k901/My-App-sub010/internal/rules"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
	"github.com/Bruce-k901/My-App-sub010/internal/services"
	"github.com/Bruce-k901/My-App-sub010/internal/suggest"
)

// engine is the fully wired service graph shared by every subcommand.
type engine struct {
	cfg       *config.Config
	logger    *security.Logger
	log       zerolog.Logger
	validator *security.ValidationService

	scanner   *services.Scanner
	generator *services.Generator
	clearer   *services.ClearService
	items     *services.ItemService
	reports   *services.ReportService
	rollups   *services.RollupService
	scheduler *services.Scheduler
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, *security.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := security.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	log.Logger = logger.Zerolog()
	return cfg, logger, nil
}

// bootstrap connects the database and wires the services. The caller closes the
// database with database.Close.
func bootstrap(ctx context.Context) (*engine, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	if err := database.Connect(ctx, database.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}); err != nil {
		return nil, err
	}

	e, err := wire(ctx, cfg, logger)
	if err != nil {
		database.Close()
		return nil, err
	}
	return e, nil
}

func wire(ctx context.Context, cfg *config.Config, logger *security.Logger) (*engine, error) {
	zl := logger.Zerolog()
	st := services.DefaultStores()
	validator := security.NewValidationService(&cfg.Security)

	registry, err := rules.Default(database.DB)
	if err != nil {
		return nil, fmt.Errorf("rule registry: %w", err)
	}

	scanner := services.NewScanner(st, registry, services.ScanOptions{
		RuleTimeout:     cfg.Scan.RuleTimeout,
		SiteConcurrency: cfg.Scan.SiteConcurrency,
		CalendarTasks:   cfg.Scan.CalendarTasks,
		FollowUpDays:    cfg.Scan.FollowUpDays,
		Weights:         cfg.Scoring,
	}, zl)

	if cfg.Archive.Endpoint != "" {
		store, err := archive.New(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		scanner.WithArchive(store)
		zl.Info().Str("bucket", cfg.Archive.Bucket).Msg("report archive enabled")
	}

	var suggester suggest.Suggester
	if cfg.AI.URL != "" {
		suggester = suggest.NewHTTP(cfg.AI.URL, cfg.AI.Token, cfg.AI.Timeout, cfg.AI.Retries, zl)
	}

	var notifier notify.Notifier = notify.NewLog(zl)
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout, cfg.Notify.Retries, zl)
	}

	items := services.NewItemService(st, validator, suggester,
		lifecycle.Policy{ReminderLead: cfg.Reminders.Lead}, cfg.Scoring, zl)

	return &engine{
		cfg:       cfg,
		logger:    logger,
		log:       zl,
		validator: validator,
		scanner:   scanner,
		generator: services.NewGenerator(st, cfg.Scoring, cfg.Scan.Seed, zl),
		clearer:   services.NewClearService(st, zl),
		items:     items,
		reports:   services.NewReportService(st),
		rollups:   services.NewRollupService(st),
		scheduler: services.NewScheduler(st, items, notifier, services.SchedulerOptions{
			Lead:        cfg.Reminders.Lead,
			Grace:       cfg.Reminders.Grace,
			Batch:       cfg.Reminders.Batch,
			MaxAttempts: cfg.Reminders.MaxAttempts,
		}, zl),
	}, nil
}
