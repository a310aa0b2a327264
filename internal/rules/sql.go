package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

// check is one SQL probe within a module rule. The query takes the site id as $1 and
// must select exactly (record_id text, record_name text, value) where value has the
// column type matching kind, possibly NULL.
type check struct {
	field    string
	label    string
	severity models.Severity
	title    string
	describe string // fmt pattern taking the record name
	kind     models.ValueKind
	query    string
}

// sqlRule evaluates a fixed list of checks for one module. Each check fails
// independently of its siblings.
type sqlRule struct {
	module models.Module
	db     database.Querier
	checks []check
}

func (r *sqlRule) Module() models.Module { return r.module }

func (r *sqlRule) Evaluate(ctx context.Context, siteID uuid.UUID) Evaluation {
	var ev Evaluation
	for _, c := range r.checks {
		if err := ctx.Err(); err != nil {
			ev.Errors = append(ev.Errors, fmt.Sprintf("%s: %v", c.field, err))
			continue
		}
		findings, errs := r.run(ctx, c, siteID)
		ev.Findings = append(ev.Findings, findings...)
		ev.Errors = append(ev.Errors, errs...)
	}
	return ev
}

func (r *sqlRule) run(ctx context.Context, c check, siteID uuid.UUID) ([]models.Finding, []string) {
	rows, err := r.db.Query(ctx, c.query, siteID)
	if err != nil {
		return nil, []string{fmt.Sprintf("%s: query failed: %v", c.field, err)}
	}
	defer rows.Close()

	var (
		findings []models.Finding
		errs     []string
	)
	for rows.Next() {
		var recordID, recordName string
		value, dest := valueDest(c.kind)
		if err := rows.Scan(&recordID, &recordName, dest); err != nil {
			errs = append(errs, fmt.Sprintf("%s: unreadable row: %v", c.field, err))
			continue
		}
		findings = append(findings, models.Finding{
			Module:       r.module,
			Severity:     c.severity,
			Field:        c.field,
			Label:        c.label,
			Title:        c.title,
			Description:  fmt.Sprintf(c.describe, recordName),
			CurrentValue: value(),
			RecordID:     recordID,
			RecordName:   recordName,
		})
	}
	if err := rows.Err(); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", c.field, err))
	}
	return findings, errs
}

// valueDest returns a scan destination for kind and a function converting what was
// scanned into a FieldValue. NULL columns become the zero FieldValue.
func valueDest(kind models.ValueKind) (func() models.FieldValue, any) {
	switch kind {
	case models.KindNumber:
		var f *float64
		return func() models.FieldValue {
			if f == nil {
				return models.FieldValue{}
			}
			return models.NumberValue(*f)
		}, &f
	case models.KindDate:
		var t *time.Time
		return func() models.FieldValue {
			if t == nil {
				return models.FieldValue{}
			}
			return models.DateValue(*t)
		}, &t
	case models.KindBoolean:
		var b *bool
		return func() models.FieldValue {
			if b == nil {
				return models.FieldValue{}
			}
			return models.BoolValue(*b)
		}, &b
	case models.KindSelection:
		var s []string
		return func() models.FieldValue {
			return models.SelectionValue(s...)
		}, &s
	default:
		var s *string
		return func() models.FieldValue {
			if s == nil || *s == "" {
				return models.FieldValue{}
			}
			return models.TextValue(*s)
		}, &s
	}
}
