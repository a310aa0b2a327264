// Package security provides request hardening for the Health Check API: rate limits,
// input validation and the structured security log.
package security

import (
	"time"
)

// SecurityConfig holds all security-related configuration values.
// Rate limits are requests per minute per company and actor.
type SecurityConfig struct {
	// Rate limiting
	RateLimitScan     int `mapstructure:"rate_limit_scan"`     // POST /scan and /test-data
	RateLimitMutation int `mapstructure:"rate_limit_mutation"` // item transitions
	RateLimitClear    int `mapstructure:"rate_limit_clear"`    // DELETE /reports
	RateLimitRead     int `mapstructure:"rate_limit_read"`     // GET endpoints

	// Input validation
	MaxMessageLength int           `mapstructure:"max_message_length"` // delegation message, escalation reason
	MaxValueLength   int           `mapstructure:"max_value_length"`   // text payload of a fix
	MaxSelection     int           `mapstructure:"max_selection"`      // options in a selection value
	MaxDueHorizon    time.Duration `mapstructure:"max_due_horizon"`    // latest accepted due date from now

	// ConfirmToken is the X-Confirm header value required by destructive endpoints.
	ConfirmToken string `mapstructure:"confirm_token"`
}

// DefaultSecurityConfig returns security configuration with recommended defaults.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		RateLimitScan:     6,
		RateLimitMutation: 120,
		RateLimitClear:    2,
		RateLimitRead:     300,

		MaxMessageLength: 2000,
		MaxValueLength:   4000,
		MaxSelection:     50,
		MaxDueHorizon:    365 * 24 * time.Hour,

		ConfirmToken: "clear",
	}
}
