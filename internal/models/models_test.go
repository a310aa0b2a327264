// Package models_test provides unit tests for data model structures.
// Tests validate enum helpers and the tagged value encoding without requiring
// database connections or external dependencies.
package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestItemStatus_Open verifies which statuses carry a score penalty.
//
// Open statuses: pending, in_progress, delegated, escalated
// Closed statuses: resolved, ignored, ai_fixed
func TestItemStatus_Open(t *testing.T) {
	tests := []struct {
		status models.ItemStatus
		open   bool
	}{
		{models.StatusPending, true},
		{models.StatusInProgress, true},
		{models.StatusDelegated, true},
		{models.StatusEscalated, true},
		{models.StatusResolved, false},
		{models.StatusIgnored, false},
		{models.StatusAIFixed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.open, tt.status.Open())
		})
	}
}

func TestSeverity_ValidAndRank(t *testing.T) {
	assert.True(t, models.SeverityCritical.Valid())
	assert.False(t, models.Severity("urgent").Valid())
	assert.Less(t, models.SeverityCritical.Rank(), models.SeverityMedium.Rank())
	assert.Less(t, models.SeverityMedium.Rank(), models.SeverityLow.Rank())
}

// TestFieldValue_JSON verifies every union member encodes with its tag and
// decodes back to the same member.
func TestFieldValue_JSON(t *testing.T) {
	due := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value models.FieldValue
		wire  string
	}{
		{"text", models.TextValue("orders@acme.test"), `{"type":"text","value":"orders@acme.test"}`},
		{"number", models.NumberValue(-4.5), `{"type":"number","value":-4.5}`},
		{"date", models.DateValue(due), `{"type":"date","value":"2026-03-14"}`},
		{"boolean", models.BoolValue(false), `{"type":"boolean","value":false}`},
		{"selection", models.SelectionValue("gluten", "nuts"), `{"type":"selection","value":["gluten","nuts"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wire, string(raw))

			var got models.FieldValue
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestFieldValue_ZeroIsNull(t *testing.T) {
	raw, err := json.Marshal(models.FieldValue{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	enc, err := models.EncodeValue(&models.FieldValue{})
	require.NoError(t, err)
	assert.Nil(t, enc, "absent values are stored as NULL")

	dec, err := models.DecodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, dec)
}

func TestFieldValue_RejectsMismatchedPayload(t *testing.T) {
	tests := []string{
		`{"type":"number","value":"ten"}`,
		`{"type":"date","value":"14/03/2026"}`,
		`{"type":"colour","value":"red"}`,
		`[1,2,3]`,
	}

	for _, in := range tests {
		var v models.FieldValue
		err := json.Unmarshal([]byte(in), &v)
		assert.ErrorIs(t, err, models.ErrInvalidValue, in)
	}
}

func TestFieldValue_String(t *testing.T) {
	assert.Equal(t, "12.5", models.NumberValue(12.5).String())
	assert.Equal(t, "true", models.BoolValue(true).String())
	assert.Equal(t, "a, b", models.SelectionValue("a", "b").String())
	assert.Equal(t, "", models.FieldValue{}.String())
}

func TestReminder_Pending(t *testing.T) {
	now := time.Now()
	assert.True(t, models.Reminder{}.Pending())
	assert.False(t, models.Reminder{SentAt: &now}.Pending())
	assert.False(t, models.Reminder{CancelledAt: &now}.Pending())
}
