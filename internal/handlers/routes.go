package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Bruce-k901/My-App-sub010/internal/middleware"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

// Limiters holds one token bucket limiter per endpoint class.
type Limiters struct {
	Scan     *security.RateLimiter
	Mutation *security.RateLimiter
	Clear    *security.RateLimiter
	Read     *security.RateLimiter
}

// NewLimiters builds the limiters from the configured per-minute rates.
func NewLimiters(cfg *security.SecurityConfig) Limiters {
	return Limiters{
		Scan:     security.NewRateLimiter(cfg.RateLimitScan),
		Mutation: security.NewRateLimiter(cfg.RateLimitMutation),
		Clear:    security.NewRateLimiter(cfg.RateLimitClear),
		Read:     security.NewRateLimiter(cfg.RateLimitRead),
	}
}

// Sweep drops idle buckets from every limiter.
func (l Limiters) Sweep() int {
	return l.Scan.Sweep() + l.Mutation.Sweep() + l.Clear.Sweep() + l.Read.Sweep()
}

// Deps is everything the API routes call into.
type Deps struct {
	Scanner   Scanner
	Generator Generator
	Clearer   Clearer
	Reminders ReminderRunner
	Items     Items
	Reports   Reports
	Rollups   Rollups

	// Ping reports whether the database is reachable. Nil means always healthy.
	Ping func(ctx context.Context) bool

	Validator *security.ValidationService
	Logger    *security.Logger
	Security  *middleware.SecurityMiddleware
	Limiters  Limiters
}

// Register mounts GET /healthz and the company scoped API under /api/v1.
//
// Example:
//
//	app := fiber.New(fiber.Config{ErrorHandler: handlers.NewErrorHandler(log)})
//	handlers.Register(app, deps)
func Register(app *fiber.App, d Deps) {
	admin := NewAdminHandler(d.Scanner, d.Generator, d.Clearer, d.Reminders, d.Validator, d.Logger)
	items := NewItemHandler(d.Items, d.Validator, d.Logger)
	reports := NewReportHandler(d.Reports, d.Rollups, d.Validator)

	app.Get("/healthz", Health(d.Ping))

	sm, lim := d.Security, d.Limiters
	read := sm.RateLimit(lim.Read, "read")
	mutate := sm.RateLimit(lim.Mutation, "mutation")

	api := app.Group("/api/v1/companies/:company", middleware.Tenant(d.Validator))

	api.Post("/scan", sm.RateLimit(lim.Scan, "scan"), admin.Scan)
	api.Post("/test-data", sm.RateLimit(lim.Scan, "test-data"), admin.GenerateTestData)
	api.Delete("/reports", sm.RateLimit(lim.Clear, "clear"), sm.RequireConfirm(), admin.Clear)
	api.Post("/reminders/run", sm.RateLimit(lim.Scan, "reminders"), admin.RunReminders)

	api.Get("/reports", read, reports.List)
	api.Get("/reports/:id", read, reports.Get)
	api.Get("/rollup", read, reports.CompanyRollup)
	api.Get("/areas/:area/rollup", read, reports.AreaRollup)

	api.Get("/items/:id", read, items.Get)
	api.Get("/items/:id/history", read, items.History)
	api.Post("/items/:id/suggest", mutate, items.Suggest)

	actor := middleware.RequireActor()
	api.Post("/items/:id/start", actor, mutate, items.Start)
	api.Post("/items/:id/fix", actor, mutate, items.Fix)
	api.Post("/items/:id/ignore", actor, mutate, items.Ignore)
	api.Post("/items/:id/delegate", actor, mutate, items.Delegate)
	api.Post("/items/:id/escalate", actor, mutate, items.Escalate)
	api.Post("/items/:id/ai-fix", actor, mutate, items.AIFix)
}

// Health answers 200 when the database is reachable and 503 otherwise.
//
// Route: GET /healthz
func Health(ping func(ctx context.Context) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if !ping(ctx) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "database": false})
			}
		}
		return c.JSON(fiber.Map{"status": "ok", "database": true})
	}
}
