// Package middleware provides HTTP middleware for the Health Check API: tenant and
// actor scoping, rate limiting, request logging and input hardening.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

// Context locals set by the scoping middleware.
const (
	LocalCompanyID = "company_id"
	LocalActorID   = "actor_id"
)

// ActorHeader carries the profile id of the caller.
const ActorHeader = "X-Actor-ID"

// Tenant scopes a request to the company named by the :company path parameter and
// records the optional actor from the X-Actor-ID header.
//
// This middleware should be applied to the company route group. Every downstream
// handler reads the company from CompanyID and never from the raw path.
//
// Parameters:
//   - v: Validation service used to parse the identifiers
//
// Returns:
//   - fiber.Handler: Middleware function for a route group
//
// Context Locals Set:
//   - company_id: uuid.UUID
//   - actor_id: uuid.UUID, only when the header is present
//
// Example:
//
//	api := app.Group("/api/v1/companies/:company", middleware.Tenant(v))
func Tenant(v *security.ValidationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := v.ValidateID("company", c.Params("company"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		c.Locals(LocalCompanyID, companyID)

		if raw := c.Get(ActorHeader); raw != "" {
			actorID, err := v.ValidateID("actor", raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			c.Locals(LocalActorID, actorID)
		}

		return c.Next()
	}
}

// RequireActor rejects requests without an X-Actor-ID header. It MUST be used after
// Tenant, which parses the header.
//
// Example:
//
//	items := api.Group("/items", middleware.RequireActor())
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ActorID(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "X-Actor-ID header is required"})
		}
		return c.Next()
	}
}

// CompanyID returns the company the request is scoped to, or uuid.Nil outside Tenant.
func CompanyID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(LocalCompanyID).(uuid.UUID)
	return id
}

// ActorID returns the calling profile, or nil when the request carries none.
func ActorID(c *fiber.Ctx) *uuid.UUID {
	id, ok := c.Locals(LocalActorID).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
