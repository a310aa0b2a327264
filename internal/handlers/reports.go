package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/middleware"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/repository"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

// Reports reads reports. Implemented by services.ReportService.
type Reports interface {
	GetReport(ctx context.Context, companyID, reportID uuid.UUID) (*models.ReportView, error)
	List(ctx context.Context, f repository.ReportFilter) ([]models.ReportView, error)
}

// Rollups aggregates site scores. Implemented by services.RollupService.
type Rollups interface {
	RollupArea(ctx context.Context, companyID, areaID uuid.UUID, includeTest bool) (*models.Rollup, error)
	RollupCompany(ctx context.Context, companyID uuid.UUID, includeTest bool) (*models.Rollup, error)
}

// ReportHandler serves the read side: reports and rollups.
type ReportHandler struct {
	reports   Reports
	rollups   Rollups
	validator *security.ValidationService
}

// NewReportHandler creates a new instance of ReportHandler.
func NewReportHandler(reports Reports, rollups Rollups, v *security.ValidationService) *ReportHandler {
	return &ReportHandler{reports: reports, rollups: rollups, validator: v}
}

// List returns the company's reports newest first, without items.
//
// Query: site (uuid), include_test (bool), limit (1..200, default 50).
//
// Route: GET /api/v1/companies/:company/reports
func (h *ReportHandler) List(c *fiber.Ctx) error {
	f := repository.ReportFilter{
		CompanyID:       middleware.CompanyID(c),
		IncludeTestData: c.QueryBool("include_test", false),
		Limit:           c.QueryInt("limit", 50),
	}
	if f.Limit < 1 || f.Limit > 200 {
		return badRequest(fmt.Errorf("limit must be between 1 and 200"))
	}
	if raw := c.Query("site"); raw != "" {
		id, err := h.validator.ValidateID("site", raw)
		if err != nil {
			return badRequest(err)
		}
		f.SiteID = &id
	}

	views, err := h.reports.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	if views == nil {
		views = []models.ReportView{}
	}
	return c.JSON(fiber.Map{"reports": views})
}

// Get returns one report with its items, posture and trend.
//
// Route: GET /api/v1/companies/:company/reports/:id
func (h *ReportHandler) Get(c *fiber.Ctx) error {
	id, err := h.validator.ValidateID("report id", c.Params("id"))
	if err != nil {
		return badRequest(err)
	}
	view, err := h.reports.GetReport(c.UserContext(), middleware.CompanyID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// CompanyRollup aggregates the latest report of every active site.
//
// Route: GET /api/v1/companies/:company/rollup
func (h *ReportHandler) CompanyRollup(c *fiber.Ctx) error {
	r, err := h.rollups.RollupCompany(c.UserContext(), middleware.CompanyID(c), c.QueryBool("include_test", false))
	if err != nil {
		return err
	}
	return c.JSON(r)
}

// AreaRollup aggregates the latest report of every active site in one area.
//
// Route: GET /api/v1/companies/:company/areas/:area/rollup
func (h *ReportHandler) AreaRollup(c *fiber.Ctx) error {
	areaID, err := h.validator.ValidateID("area id", c.Params("area"))
	if err != nil {
		return badRequest(err)
	}
	r, err := h.rollups.RollupArea(c.UserContext(), middleware.CompanyID(c), areaID, c.QueryBool("include_test", false))
	if err != nil {
		return err
	}
	return c.JSON(r)
}
