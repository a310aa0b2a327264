package security

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SecurityEventType names an auditable event in the structured log.
type SecurityEventType string

const (
	EventScanRun             SecurityEventType = "SCAN_RUN"
	EventTestDataGenerate    SecurityEventType = "TEST_DATA_GENERATE"
	EventDataClear           SecurityEventType = "DATA_CLEAR"
	EventItemTransition      SecurityEventType = "ITEM_TRANSITION"
	EventItemEscalated       SecurityEventType = "ITEM_ESCALATED"
	EventReminderRun         SecurityEventType = "REMINDER_RUN"
	EventRateLimitExceeded   SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventSQLInjectionAttempt SecurityEventType = "SQL_INJECTION_ATTEMPT"
	EventXSSAttempt          SecurityEventType = "XSS_ATTEMPT"
	EventClearUnconfirmed    SecurityEventType = "CLEAR_UNCONFIRMED"
)

// Logger writes JSON log lines through zerolog. The zero value is not usable; use NewLogger.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger returns a logger writing JSON to w at the given level ("debug", "info", ...).
// Unknown levels fall back to info. When pretty is set the output is human readable.
func NewLogger(w io.Writer, level string, pretty bool) *Logger {
	if w == nil {
		w = os.Stdout
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zl := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "healthcheck").Logger()
	return &Logger{zl: zl}
}

// Zerolog exposes the underlying logger for packages that log with structured fields.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l *Logger) Error(msg string, err error) {
	l.zl.Error().Err(err).Msg(msg)
}

// Critical logs at error level with a critical marker so alerting can match on it.
func (l *Logger) Critical(msg string, err error) {
	l.zl.WithLevel(zerolog.ErrorLevel).Bool("critical", true).Err(err).Msg(msg)
}

// SecurityEvent records an auditable action with its actor and request origin.
func (l *Logger) SecurityEvent(event SecurityEventType, actorID *uuid.UUID, companyID uuid.UUID, ip, userAgent string, extra map[string]any) {
	e := l.zl.Warn().
		Str("category", "security").
		Str("event_type", string(event)).
		Str("company_id", companyID.String()).
		Str("ip_address", ip).
		Str("user_agent", userAgent)
	if actorID != nil {
		e = e.Str("actor_id", actorID.String())
	}
	if len(extra) > 0 {
		e = e.Interface("extra", extra)
	}
	e.Msg(string(event))
}

// HTTPRequest records one served request.
func (l *Logger) HTTPRequest(method, path string, status int, latency time.Duration, ip, userAgent string) {
	var e *zerolog.Event
	switch {
	case status >= 500:
		e = l.zl.Error()
	case status >= 400:
		e = l.zl.Warn()
	default:
		e = l.zl.Info()
	}
	e.Str("method", method).
		Str("path", path).
		Int("status", status).
		Int64("latency_ms", latency.Milliseconds()).
		Str("ip_address", ip).
		Str("user_agent", userAgent).
		Msg(fmt.Sprintf("%s %s %d", method, path, status))
}
