package security

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// ValidationService provides centralized input validation functions.
// All validation methods return descriptive errors that are safe to show to users.
type ValidationService struct {
	config *SecurityConfig
	now    func() time.Time
}

// NewValidationService creates a new validation service with security configuration.
func NewValidationService(config *SecurityConfig) *ValidationService {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	return &ValidationService{config: config, now: time.Now}
}

// ValidateID parses a UUID path or body parameter.
func (v *ValidationService) ValidateID(fieldName, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", fieldName)
	}
	return id, nil
}

// ValidateMessage checks a free-text field such as a delegation message or an
// escalation reason and returns it sanitized.
func (v *ValidationService) ValidateMessage(fieldName, value string) (string, error) {
	value = v.SanitizeString(value)
	if err := v.ValidateRequired(fieldName, value); err != nil {
		return "", err
	}
	if err := v.ValidateLength(fieldName, value, 1, v.config.MaxMessageLength); err != nil {
		return "", err
	}
	return value, nil
}

// ValidateFieldValue checks a value supplied for a fix before it reaches the state machine.
func (v *ValidationService) ValidateFieldValue(value *models.FieldValue) error {
	if value == nil || value.IsZero() {
		return fmt.Errorf("value is required")
	}
	switch value.Kind {
	case models.KindText:
		if strings.TrimSpace(value.Text) == "" {
			return fmt.Errorf("text value cannot be empty")
		}
		if utf8.RuneCountInString(value.Text) > v.config.MaxValueLength {
			return fmt.Errorf("text value must be %d characters or less", v.config.MaxValueLength)
		}
	case models.KindNumber:
		if math.IsNaN(value.Number) || math.IsInf(value.Number, 0) {
			return fmt.Errorf("number value must be finite")
		}
	case models.KindDate:
		if value.Date.IsZero() {
			return fmt.Errorf("date value is required")
		}
	case models.KindBoolean:
	case models.KindSelection:
		if len(value.Selection) > v.config.MaxSelection {
			return fmt.Errorf("selection must have %d options or fewer", v.config.MaxSelection)
		}
		for _, opt := range value.Selection {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("selection options cannot be empty")
			}
		}
	default:
		return fmt.Errorf("unknown value type %q", value.Kind)
	}
	return nil
}

// ValidateDueDate rejects due dates in the past or beyond the configured horizon.
func (v *ValidationService) ValidateDueDate(due *time.Time) error {
	return v.ValidateDueDateAt(due, v.now())
}

// ValidateDueDateAt is ValidateDueDate against an explicit clock.
func (v *ValidationService) ValidateDueDateAt(due *time.Time, now time.Time) error {
	if due == nil {
		return nil
	}
	if due.Before(now) {
		return fmt.Errorf("due date must be in the future")
	}
	if v.config.MaxDueHorizon > 0 && due.After(now.Add(v.config.MaxDueHorizon)) {
		return fmt.Errorf("due date must be within %d days", int(v.config.MaxDueHorizon.Hours()/24))
	}
	return nil
}

// SanitizeString removes control characters (except newline and tab) and trims whitespace.
func (v *ValidationService) SanitizeString(input string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(input, ""))
}

// ValidateRequired checks if a required field is present and non-empty.
func (v *ValidationService) ValidateRequired(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	return nil
}

// ValidateLength validates string length is within bounds.
func (v *ValidationService) ValidateLength(fieldName string, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}

	if length > max {
		return fmt.Errorf("%s must be %d characters or less", fieldName, max)
	}

	return nil
}
