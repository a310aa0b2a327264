package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/middleware"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
	"github.com/Bruce-k901/My-App-sub010/internal/services"
)

// Scanner runs health checks. Implemented by services.Scanner.
type Scanner interface {
	Scan(ctx context.Context, companyID uuid.UUID, siteID *uuid.UUID) (*models.ScanResult, error)
}

// Generator writes synthetic reports. Implemented by services.Generator.
type Generator interface {
	Generate(ctx context.Context, companyID uuid.UUID, scenario services.Scenario) (*models.GenerateResult, error)
}

// Clearer deletes reports. Implemented by services.ClearService.
type Clearer interface {
	ClearAll(ctx context.Context, companyID uuid.UUID, actor *uuid.UUID) (*models.ClearResult, error)
	ClearTestData(ctx context.Context, companyID uuid.UUID, actor *uuid.UUID) (*models.ClearResult, error)
}

// ReminderRunner runs one scheduler pass. Implemented by services.Scheduler.
type ReminderRunner interface {
	Pass(ctx context.Context) (*services.PassResult, error)
}

// AdminHandler handles company-wide operations: scans, test data, clears and
// on-demand reminder passes.
type AdminHandler struct {
	scanner   Scanner
	generator Generator
	clearer   Clearer
	reminders ReminderRunner
	validator *security.ValidationService
	logger    *security.Logger
}

// NewAdminHandler creates a new instance of AdminHandler.
func NewAdminHandler(scanner Scanner, generator Generator, clearer Clearer, reminders ReminderRunner, v *security.ValidationService, logger *security.Logger) *AdminHandler {
	return &AdminHandler{
		scanner:   scanner,
		generator: generator,
		clearer:   clearer,
		reminders: reminders,
		validator: v,
		logger:    logger,
	}
}

// Scan runs the health check for every active site of the company, or for the
// single site named by ?site=.
//
// Rule and site failures do not fail the request; they are listed in the result's
// errors and scan_errors. An interrupted scan answers 503 with the partial result.
//
// Route: POST /api/v1/companies/:company/scan
func (h *AdminHandler) Scan(c *fiber.Ctx) error {
	companyID := middleware.CompanyID(c)

	var siteID *uuid.UUID
	if raw := c.Query("site"); raw != "" {
		id, err := h.validator.ValidateID("site", raw)
		if err != nil {
			return badRequest(err)
		}
		siteID = &id
	}

	res, err := h.scanner.Scan(c.UserContext(), companyID, siteID)
	if err != nil {
		if res != nil {
			return c.Status(StatusFor(err)).JSON(fiber.Map{"error": err.Error(), "result": res})
		}
		return err
	}

	h.logger.SecurityEvent(security.EventScanRun, middleware.ActorID(c), companyID, c.IP(), c.Get("User-Agent"),
		map[string]any{
			"reports_created": res.ReportsCreated,
			"items_created":   res.ItemsCreated,
			"errors":          len(res.Errors) + len(res.ScanErrors),
		})

	return c.JSON(res)
}

type generateRequest struct {
	Scenario string `json:"scenario"`
}

// GenerateTestData writes one synthetic report per active site. The scenario comes
// from the JSON body or ?scenario= and defaults to mixed.
//
// Route: POST /api/v1/companies/:company/test-data
func (h *AdminHandler) GenerateTestData(c *fiber.Ctx) error {
	companyID := middleware.CompanyID(c)

	req := generateRequest{Scenario: c.Query("scenario")}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(err)
		}
	}
	scenario, err := services.ParseScenario(req.Scenario)
	if err != nil {
		return err
	}

	res, err := h.generator.Generate(c.UserContext(), companyID, scenario)
	if err != nil {
		return err
	}

	h.logger.SecurityEvent(security.EventTestDataGenerate, middleware.ActorID(c), companyID, c.IP(), c.Get("User-Agent"),
		map[string]any{"scenario": string(scenario), "reports_created": res.ReportsCreated})

	return c.Status(fiber.StatusCreated).JSON(res)
}

// Clear deletes the company's reports with their items and reminders. With
// ?test_only=true only test data is removed. Routed behind RequireConfirm.
//
// Route: DELETE /api/v1/companies/:company/reports
func (h *AdminHandler) Clear(c *fiber.Ctx) error {
	companyID := middleware.CompanyID(c)
	actor := middleware.ActorID(c)
	testOnly := c.QueryBool("test_only", false)

	var (
		res *models.ClearResult
		err error
	)
	if testOnly {
		res, err = h.clearer.ClearTestData(c.UserContext(), companyID, actor)
	} else {
		res, err = h.clearer.ClearAll(c.UserContext(), companyID, actor)
	}
	if err != nil {
		return err
	}

	h.logger.SecurityEvent(security.EventDataClear, actor, companyID, c.IP(), c.Get("User-Agent"),
		map[string]any{"test_only": testOnly, "reports_deleted": res.ReportsDeleted})

	return c.JSON(res)
}

// RunReminders runs one reminder pass immediately. The pass covers every company;
// the route is company scoped only for rate limiting and the audit trail.
//
// Route: POST /api/v1/companies/:company/reminders/run
func (h *AdminHandler) RunReminders(c *fiber.Ctx) error {
	res, err := h.reminders.Pass(c.UserContext())
	if err != nil {
		return err
	}

	h.logger.SecurityEvent(security.EventReminderRun, middleware.ActorID(c), middleware.CompanyID(c), c.IP(), c.Get("User-Agent"),
		map[string]any{"sent": res.Sent, "escalated": res.Escalated})

	return c.JSON(res)
}
