package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/handlers"
	"github.com/Bruce-k901/My-App-sub010/internal/middleware"
	"github.com/Bruce-k901/My-App-sub010/internal/services"
)

func newServeCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if migrateFirst {
				if err := database.RunMigrations(e.cfg.Database.MigrationsPath, e.cfg.Database.URL); err != nil {
					return err
				}
			}
			return serve(ctx, e)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, e *engine) error {
	sm := middleware.NewSecurityMiddleware(e.logger, &e.cfg.Security)
	limiters := handlers.NewLimiters(&e.cfg.Security)

	app := fiber.New(fiber.Config{
		AppName:               "healthcheck",
		BodyLimit:             e.cfg.Server.BodyLimit,
		ErrorHandler:          handlers.NewErrorHandler(e.log),
		DisableStartupMessage: true,
	})

	// Panic recovery (should be first)
	app.Use(recover.New())
	app.Use(sm.RequestLogger())
	app.Use(sm.SecureHeaders())
	app.Use(sm.InputValidation())

	handlers.Register(app, handlers.Deps{
		Scanner:   e.scanner,
		Generator: e.generator,
		Clearer:   e.clearer,
		Reminders: e.scheduler,
		Items:     e.items,
		Reports:   e.reports,
		Rollups:   e.rollups,
		Ping:      database.IsConnected,
		Validator: e.validator,
		Logger:    e.logger,
		Security:  sm,
		Limiters:  limiters,
	})

	bg, cancel := context.WithCancel(ctx)
	defer cancel()

	if interval := e.cfg.Reminders.Interval; interval > 0 {
		go e.scheduler.Run(bg, interval)
	}
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-bg.Done():
				return
			case <-ticker.C:
				if n := limiters.Sweep(); n > 0 {
					e.log.Debug().Int("buckets", n).Msg("idle rate limit buckets dropped")
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		e.log.Info().Str("addr", e.cfg.Server.Addr).Msg("server starting")
		errCh <- app.Listen(e.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	e.log.Info().Msg("shutting down")
	cancel()
	if err := app.ShutdownWithTimeout(e.cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newScanCmd() *cobra.Command {
	var company, site string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the health check for a company's sites and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			companyID, err := parseID("company", company)
			if err != nil {
				return err
			}
			var siteID *uuid.UUID
			if site != "" {
				id, err := parseID("site", site)
				if err != nil {
					return err
				}
				siteID = &id
			}

			e, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := e.scanner.Scan(cmd.Context(), companyID, siteID)
			if res != nil {
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "Company id (required)")
	cmd.Flags().StringVar(&site, "site", "", "Scan only this site")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newRemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder pass: schedule, escalate overdue items and deliver due reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := e.scheduler.Pass(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var company, scenario string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic test reports for every active site of a company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			companyID, err := parseID("company", company)
			if err != nil {
				return err
			}
			sc, err := services.ParseScenario(scenario)
			if err != nil {
				return err
			}

			e, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := e.generator.Generate(cmd.Context(), companyID, sc)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "Company id (required)")
	cmd.Flags().StringVar(&scenario, "scenario", string(services.ScenarioMixed), "mixed, critical, moderate or clean")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newClearCmd() *cobra.Command {
	var (
		company  string
		testOnly bool
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a company's health check reports with their items and reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			companyID, err := parseID("company", company)
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to clear without --yes")
			}

			e, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			run := e.clearer.ClearAll
			if testOnly {
				run = e.clearer.ClearTestData
			}
			res, err := run(cmd.Context(), companyID, nil)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "Company id (required)")
	cmd.Flags().BoolVar(&testOnly, "test-only", false, "Delete only reports flagged as test data")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			source, url := cfg.Database.MigrationsPath, cfg.Database.URL

			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			switch action {
			case "down":
				return database.RollbackMigration(source, url)
			case "version":
				version, dirty, err := database.GetMigrationVersion(source, url)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"version": version, "dirty": dirty})
			}
			return database.RunMigrations(source, url)
		},
	}
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s must be a valid UUID: %w", name, err)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
