package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/middleware"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
	"github.com/Bruce-k901/My-App-sub010/internal/services"
)

// Items applies lifecycle actions. Implemented by services.ItemService.
type Items interface {
	Get(ctx context.Context, companyID, itemID uuid.UUID) (*services.ItemDetail, error)
	History(ctx context.Context, companyID, itemID uuid.UUID, limit int) (*services.ItemHistory, error)
	Start(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error)
	Fix(ctx context.Context, companyID, itemID, actor uuid.UUID, value models.FieldValue) (*models.TransitionResult, error)
	Ignore(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error)
	Delegate(ctx context.Context, companyID, itemID, actor uuid.UUID, in services.DelegateInput) (*models.TransitionResult, error)
	Escalate(ctx context.Context, companyID, itemID uuid.UUID, actor *uuid.UUID, target uuid.UUID, reason string) (*models.TransitionResult, error)
	Suggest(ctx context.Context, companyID, itemID uuid.UUID) (*models.Suggestion, error)
	AIFix(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error)
}

// ItemHandler serves the item endpoints. Every mutation answers with the updated item
// and the owning report's counters.
type ItemHandler struct {
	items     Items
	validator *security.ValidationService
	logger    *security.Logger
}

// NewItemHandler creates a new instance of ItemHandler.
func NewItemHandler(items Items, v *security.ValidationService, logger *security.Logger) *ItemHandler {
	return &ItemHandler{items: items, validator: v, logger: logger}
}

type fixRequest struct {
	Value *models.FieldValue `json:"value"`
}

type delegateRequest struct {
	Assignee       string     `json:"assignee"`
	Message        string     `json:"message"`
	DueDate        *time.Time `json:"due_date"`
	ConversationID *string    `json:"conversation_id"`
}

type escalateRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Get returns an item with the actions currently allowed on it.
//
// Route: GET /api/v1/companies/:company/items/:id
func (h *ItemHandler) Get(c *fiber.Ctx) error {
	itemID, err := h.itemID(c)
	if err != nil {
		return err
	}
	detail, err := h.items.Get(c.UserContext(), middleware.CompanyID(c), itemID)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

// History returns an item with its audit trail and reminders. ?limit= caps the
// audit entries (default 50).
//
// Route: GET /api/v1/companies/:company/items/:id/history
func (h *ItemHandler) History(c *fiber.Ctx) error {
	itemID, err := h.itemID(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		return badRequest(fmt.Errorf("limit must be between 1 and 500"))
	}
	hist, err := h.items.History(c.UserContext(), middleware.CompanyID(c), itemID, limit)
	if err != nil {
		return err
	}
	return c.JSON(hist)
}

// Start marks an item as in progress.
//
// Route: POST /api/v1/companies/:company/items/:id/start
func (h *ItemHandler) Start(c *fiber.Ctx) error {
	return h.act(c, func(ctx context.Context, company, item, actor uuid.UUID) (*models.TransitionResult, error) {
		return h.items.Start(ctx, company, item, actor)
	})
}

// Fix resolves an item with the value in the body: {"value": {"type": ..., "value": ...}}.
//
// Route: POST /api/v1/companies/:company/items/:id/fix
func (h *ItemHandler) Fix(c *fiber.Ctx) error {
	var req fixRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if req.Value == nil {
		return badRequest(fmt.Errorf("value is required"))
	}
	return h.act(c, func(ctx context.Context, company, item, actor uuid.UUID) (*models.TransitionResult, error) {
		return h.items.Fix(ctx, company, item, actor, *req.Value)
	})
}

// Ignore closes an item without changing its value.
//
// Route: POST /api/v1/companies/:company/items/:id/ignore
func (h *ItemHandler) Ignore(c *fiber.Ctx) error {
	return h.act(c, func(ctx context.Context, company, item, actor uuid.UUID) (*models.TransitionResult, error) {
		return h.items.Ignore(ctx, company, item, actor)
	})
}

// Delegate hands an item to another profile of the company.
//
// Route: POST /api/v1/companies/:company/items/:id/delegate
func (h *ItemHandler) Delegate(c *fiber.Ctx) error {
	var req delegateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	assignee, err := h.validator.ValidateID("assignee", req.Assignee)
	if err != nil {
		return badRequest(err)
	}
	in := services.DelegateInput{
		Assignee:       assignee,
		Message:        req.Message,
		DueDate:        req.DueDate,
		ConversationID: req.ConversationID,
	}
	return h.act(c, func(ctx context.Context, company, item, actor uuid.UUID) (*models.TransitionResult, error) {
		return h.items.Delegate(ctx, company, item, actor, in)
	})
}

// Escalate hands a delegated item to the target profile.
//
// Route: POST /api/v1/companies/:company/items/:id/escalate
func (h *ItemHandler) Escalate(c *fiber.Ctx) error {
	var req escalateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	target, err := h.validator.ValidateID("target", req.Target)
	if err != nil {
		return badRequest(err)
	}
	err = h.act(c, func(ctx context.Context, company, item, actor uuid.UUID) (*models.TransitionResult, error) {
		return h.items.Escalate(ctx, company, item, &actor, target, req.Reason)
	})
	if err != nil {
		return err
	}

	h.logger.SecurityEvent(security.EventItemEscalated, middleware.ActorID(c), middleware.CompanyID(c), c.IP(), c.Get("User-Agent"),
		map[string]any{"item_id": c.Params("id"), "target": target.String()})
	return nil
}

// Suggest asks the suggestion service for a value and stores it on the item without
// changing its status.
//
// Route: POST /api/v1/companies/:company/items/:id/suggest
func (h *ItemHandler) Suggest(c *fiber.Ctx) error {
	itemID, err := h.itemID(c)
	if err != nil {
		return err
	}
	sg, err := h.items.Suggest(c.UserContext(), middleware.CompanyID(c), itemID)
	if err != nil {
		return err
	}
	return c.JSON(sg)
}

// AIFix resolves an item with its suggested value.
//
// Route: POST /api/v1/companies/:company/items/:id/ai-fix
func (h *ItemHandler) AIFix(c *fiber.Ctx) error {
	return h.act(c, func(ctx context.Context, company, item, actor uuid.UUID) (*models.TransitionResult, error) {
		return h.items.AIFix(ctx, company, item, actor)
	})
}

type actionFunc func(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error)

// act runs one transition for the calling actor. Routes using it sit behind
// RequireActor.
func (h *ItemHandler) act(c *fiber.Ctx, fn actionFunc) error {
	itemID, err := h.itemID(c)
	if err != nil {
		return err
	}
	actor := middleware.ActorID(c)
	if actor == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "X-Actor-ID header is required")
	}
	companyID := middleware.CompanyID(c)

	res, err := fn(c.UserContext(), companyID, itemID, *actor)
	if err != nil {
		return err
	}

	h.logger.SecurityEvent(security.EventItemTransition, actor, companyID, c.IP(), c.Get("User-Agent"),
		map[string]any{"item_id": itemID.String(), "status": string(res.Item.Status)})

	return c.JSON(res)
}

func (h *ItemHandler) itemID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := h.validator.ValidateID("item id", c.Params("id"))
	if err != nil {
		return uuid.Nil, badRequest(err)
	}
	return id, nil
}
