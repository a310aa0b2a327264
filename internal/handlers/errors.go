// Package handlers implements the JSON HTTP API of the Health Check engine.
// Handlers parse and validate requests, call the services and return JSON; every
// error they return is mapped to a status code by ErrorHandler.
package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/lifecycle"
	"github.com/Bruce-k901/My-App-sub010/internal/services"
)

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, services.ErrCompanyNotFound),
		errors.Is(err, services.ErrSiteNotFound),
		errors.Is(err, services.ErrAreaNotFound),
		errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, services.ErrItemNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, lifecycle.ErrValidation),
		errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrInvalidScenario):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNoSuggestion),
		errors.Is(err, services.ErrSuggestDisabled):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// NewErrorHandler returns the app error handler. Server errors are logged and their
// details hidden from the client.
//
// Example:
//
//	app := fiber.New(fiber.Config{ErrorHandler: handlers.NewErrorHandler(log)})
func NewErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)
		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
			if code == fiber.StatusInternalServerError {
				msg = "internal server error"
			}
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
