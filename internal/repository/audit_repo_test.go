package repository_test

import (
	"context"
	"testing"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/repository"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditRepository_Log tests audit entry creation with details encoded as jsonb.
func TestAuditRepository_Log(t *testing.T) {
	mock := setupMock(t)

	actor := uuid.New()
	report := uuid.New()
	item := uuid.New()
	from, to := models.StatusPending, models.StatusDelegated
	entry := &models.AuditLog{
		CompanyID:  uuid.New(),
		ActorID:    &actor,
		Action:     "ITEM_DELEGATE",
		ReportID:   &report,
		ItemID:     &item,
		FromStatus: &from,
		ToStatus:   &to,
		Details:    map[string]any{"assignee": "sam"},
	}

	mock.ExpectQuery("INSERT INTO health_check_audit").
		WithArgs(entry.CompanyID, &actor, "ITEM_DELEGATE", &report, &item, &from, &to, []byte(`{"assignee":"sam"}`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), testTime))

	err := repository.NewAuditRepository().Log(context.Background(), entry)

	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ID)
	assert.Equal(t, testTime, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListByItem(t *testing.T) {
	mock := setupMock(t)
	company, item := uuid.New(), uuid.New()
	to := models.StatusEscalated

	mock.ExpectQuery("FROM health_check_audit").
		WithArgs(company, item, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_id", "actor_id", "action", "report_id", "item_id", "from_status", "to_status", "details", "created_at",
		}).AddRow(int64(3), company, (*uuid.UUID)(nil), "ITEM_ESCALATE", (*uuid.UUID)(nil), &item,
			(*models.ItemStatus)(nil), &to, []byte(`{"reason":"reminders exhausted"}`), testTime))

	logs, err := repository.NewAuditRepository().ListByItem(context.Background(), company, item, 20)

	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].ActorID, "scheduler actions have no actor")
	assert.Equal(t, "reminders exhausted", logs[0].Details["reason"])
	assert.Equal(t, models.StatusEscalated, *logs[0].ToStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
