package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRule struct{ module models.Module }

func (s stubRule) Module() models.Module { return s.module }
func (s stubRule) Evaluate(context.Context, uuid.UUID) Evaluation {
	return Evaluation{}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(stubRule{models.ModuleStock}))
	err := reg.Register(stubRule{models.ModuleStock})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(stubRule{}))
}

func TestRegistry_PreservesOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stubRule{models.ModuleAssets}))
	require.NoError(t, reg.Register(stubRule{models.ModuleStock}))

	assert.Equal(t, []models.Module{models.ModuleAssets, models.ModuleStock}, reg.Modules())
	rule, ok := reg.Get(models.ModuleStock)
	require.True(t, ok)
	assert.Equal(t, models.ModuleStock, rule.Module())
	_, ok = reg.Get(models.ModuleRecipes)
	assert.False(t, ok)
}

func TestDefault_RegistersEveryModule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg, err := Default(mock)

	require.NoError(t, err)
	assert.Equal(t, models.Modules, reg.Modules())
	for _, m := range models.Modules {
		assert.GreaterOrEqual(t, Checks(m), 2, "module %s", m)
		for _, c := range moduleChecks[m] {
			assert.True(t, c.severity.Valid(), "%s/%s", m, c.field)
			assert.NotEmpty(t, c.title)
			assert.Contains(t, c.describe, "%s")
		}
	}
}

// TestSQLRule_PartialFailure verifies a failing check is reported while sibling
// checks still produce findings.
func TestSQLRule_PartialFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	site := uuid.New()
	qty := -4.0
	rule := &sqlRule{module: models.ModuleStock, db: mock, checks: moduleChecks[models.ModuleStock]}

	mock.ExpectQuery("SELECT id::text, name, on_hand_qty").
		WithArgs(site).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "on_hand_qty"}).
			AddRow("sku-1", "Whole milk", &qty))
	mock.ExpectQuery("SELECT id::text, name, par_level").
		WithArgs(site).
		WillReturnError(errors.New(`relation "stock_items" does not exist`))
	mock.ExpectQuery("SELECT id::text, name, unit_cost").
		WithArgs(site).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "unit_cost"}).
			AddRow("sku-2", "Butter", nil))

	ev := rule.Evaluate(context.Background(), site)

	require.Len(t, ev.Findings, 2)
	require.Len(t, ev.Errors, 1)
	assert.Contains(t, ev.Errors[0], "par_level")

	neg := ev.Findings[0]
	assert.Equal(t, models.SeverityCritical, neg.Severity)
	assert.Equal(t, models.NumberValue(-4), neg.CurrentValue)
	assert.Equal(t, "Whole milk shows a negative on-hand quantity", neg.Description)
	assert.Equal(t, "sku-1", neg.RecordID)

	missing := ev.Findings[1]
	assert.True(t, missing.CurrentValue.IsZero(), "NULL columns become absent values")
	assert.Equal(t, models.SeverityLow, missing.Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRule_TypedValues(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	site := uuid.New()
	expired := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	verified := false
	rule := &sqlRule{module: models.ModuleStaff, db: mock, checks: moduleChecks[models.ModuleStaff]}

	mock.ExpectQuery("FROM training_records").
		WithArgs(site).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "expires_at"}).
			AddRow("tr-1", "Sam Lee - Food hygiene", &expired))
	mock.ExpectQuery("SELECT id::text, full_name, right_to_work_verified").
		WithArgs(site).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "verified"}).
			AddRow("st-1", "Sam Lee", &verified))
	mock.ExpectQuery("SELECT id::text, full_name, emergency_contact").
		WithArgs(site).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "contact"}))

	ev := rule.Evaluate(context.Background(), site)

	assert.Empty(t, ev.Errors)
	require.Len(t, ev.Findings, 2)
	assert.Equal(t, models.DateValue(expired), ev.Findings[0].CurrentValue)
	assert.Equal(t, models.BoolValue(false), ev.Findings[1].CurrentValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRule_CancelledContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rule := &sqlRule{module: models.ModuleSuppliers, db: mock, checks: moduleChecks[models.ModuleSuppliers]}

	ev := rule.Evaluate(ctx, uuid.New())

	assert.Empty(t, ev.Findings)
	assert.Len(t, ev.Errors, Checks(models.ModuleSuppliers))
}

func TestTemplates_CoverEveryCheck(t *testing.T) {
	templates := Templates()

	total := 0
	for _, m := range models.Modules {
		total += Checks(m)
	}
	require.Len(t, templates, total)
	assert.Equal(t, models.ModuleStock, templates[0].Module)
	for _, tpl := range templates {
		assert.True(t, tpl.Severity.Valid(), tpl.Field)
		assert.NotEmpty(t, tpl.Kind, tpl.Field)
		assert.Contains(t, tpl.Describe, "%s", tpl.Field)
	}
}
