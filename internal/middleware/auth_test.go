// This file contains unit tests for tenant and actor scoping.
package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

func newScopedApp() *fiber.App {
	app := fiber.New()
	v := security.NewValidationService(nil)
	api := app.Group("/api/v1/companies/:company", Tenant(v))
	api.Get("/whoami", func(c *fiber.Ctx) error {
		actor := "none"
		if id := ActorID(c); id != nil {
			actor = id.String()
		}
		return c.SendString(CompanyID(c).String() + " " + actor)
	})
	api.Post("/act", RequireActor(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

// TestTenant_SetsCompanyAndActor verifies both ids reach the handler.
func TestTenant_SetsCompanyAndActor(t *testing.T) {
	app := newScopedApp()
	company, actor := uuid.New(), uuid.New()

	req := httptest.NewRequest("GET", "/api/v1/companies/"+company.String()+"/whoami", nil)
	req.Header.Set(ActorHeader, actor.String())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, company.String()+" "+actor.String(), string(body))
}

// TestTenant_ActorIsOptional verifies read requests work without an actor.
func TestTenant_ActorIsOptional(t *testing.T) {
	app := newScopedApp()
	company := uuid.New()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/companies/"+company.String()+"/whoami", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, company.String()+" none", string(body))
}

// TestTenant_RejectsBadIDs verifies malformed company and actor ids are 400s.
func TestTenant_RejectsBadIDs(t *testing.T) {
	app := newScopedApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/companies/not-a-uuid/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest("GET", "/api/v1/companies/"+uuid.NewString()+"/whoami", nil)
	req.Header.Set(ActorHeader, "42")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestRequireActor verifies mutations need an actor.
func TestRequireActor(t *testing.T) {
	app := newScopedApp()
	path := "/api/v1/companies/" + uuid.NewString() + "/act"

	resp, err := app.Test(httptest.NewRequest("POST", path, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("POST", path, nil)
	req.Header.Set(ActorHeader, uuid.NewString())
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCompanyID_OutsideTenant(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Equal(t, uuid.Nil, CompanyID(c))
		assert.Nil(t, ActorID(c))
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
}
