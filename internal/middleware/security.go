package middleware

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

// ConfirmHeader must carry the configured confirmation token on destructive requests.
const ConfirmHeader = "X-Confirm"

// SecurityMiddleware provides centralized security functionality.
type SecurityMiddleware struct {
	logger *security.Logger
	config *security.SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance.
func NewSecurityMiddleware(logger *security.Logger, config *security.SecurityConfig) *SecurityMiddleware {
	if config == nil {
		config = security.DefaultSecurityConfig()
	}
	return &SecurityMiddleware{logger: logger, config: config}
}

// RateLimit applies limiter per company and actor. Requests without an actor are
// keyed by client IP.
func (sm *SecurityMiddleware) RateLimit(limiter *security.RateLimiter, endpointName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.IP()
		if actor := ActorID(c); actor != nil {
			identifier = actor.String()
		}
		identifier = CompanyID(c).String() + ":" + identifier

		wait, ok := limiter.Reserve(identifier)
		if !ok {
			sm.logger.SecurityEvent(security.EventRateLimitExceeded, ActorID(c), CompanyID(c), c.IP(), c.Get("User-Agent"),
				map[string]any{
					"endpoint":   endpointName,
					"identifier": identifier,
				})

			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).
				JSON(fiber.Map{"error": "rate limit exceeded, please try again later"})
		}

		return c.Next()
	}
}

// RequireConfirm guards destructive endpoints: the X-Confirm header must match the
// configured token.
func (sm *SecurityMiddleware) RequireConfirm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(ConfirmHeader) != sm.config.ConfirmToken {
			sm.logger.SecurityEvent(security.EventClearUnconfirmed, ActorID(c), CompanyID(c), c.IP(), c.Get("User-Agent"),
				map[string]any{
					"method": c.Method(),
					"path":   c.Path(),
				})
			return c.Status(fiber.StatusPreconditionRequired).
				JSON(fiber.Map{"error": "confirmation required: set the " + ConfirmHeader + " header"})
		}
		return c.Next()
	}
}

// RequestLogger logs every request once its final status is known. Errors returned by
// the chain are rendered by the app's error handler first.
func (sm *SecurityMiddleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		sm.logger.HTTPRequest(
			c.Method(),
			c.Path(),
			c.Response().StatusCode(),
			time.Since(start),
			c.IP(),
			c.Get("User-Agent"),
		)
		return nil
	}
}

// SecureHeaders adds security headers to responses.
func (sm *SecurityMiddleware) SecureHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")

		return c.Next()
	}
}

// InputValidation rejects request bodies carrying common injection payloads.
func (sm *SecurityMiddleware) InputValidation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := string(c.Body())
		if body == "" {
			return c.Next()
		}

		var event security.SecurityEventType
		switch {
		case detectSQLInjection(body):
			event = security.EventSQLInjectionAttempt
		case detectXSSAttempt(body):
			event = security.EventXSSAttempt
		default:
			return c.Next()
		}

		sm.logger.SecurityEvent(event, nil, companyFromPath(c), c.IP(), c.Get("User-Agent"),
			map[string]any{
				"path":   c.Path(),
				"method": c.Method(),
			})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input detected"})
	}
}

// companyFromPath is used by global middleware that runs before Tenant.
func companyFromPath(c *fiber.Ctx) uuid.UUID {
	if id := CompanyID(c); id != uuid.Nil {
		return id
	}
	parts := strings.Split(c.Path(), "/")
	for i, p := range parts {
		if p == "companies" && i+1 < len(parts) {
			id, _ := uuid.Parse(parts[i+1])
			return id
		}
	}
	return uuid.Nil
}

// detectSQLInjection checks for common SQL injection patterns.
func detectSQLInjection(input string) bool {
	input = strings.ToLower(input)
	patterns := []string{
		"' or '1'='1",
		"' or 1=1",
		"'; drop table",
		"'; delete from",
		"union select",
	}

	for _, pattern := range patterns {
		if strings.Contains(input, pattern) {
			return true
		}
	}

	return false
}

// detectXSSAttempt checks for common XSS attack patterns.
func detectXSSAttempt(input string) bool {
	input = strings.ToLower(input)
	patterns := []string{
		"<script",
		"javascript:",
		"onerror=",
		"onload=",
		"onclick=",
		"<iframe",
	}

	for _, pattern := range patterns {
		if strings.Contains(input, pattern) {
			return true
		}
	}

	return false
}
