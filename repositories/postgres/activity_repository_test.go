package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestActivityRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewActivityRepository(db, zap.NewNop())

	companyID := uuid.New()
	log := models.NewActivityLog(uuid.New(), models.ActivityActionMessageBlocked, models.ActivityStatusBlocked)
	log.WithCompany(&companyID)
	log.WithFlags([]string{"PII"})
	log.WithRequest("req-1", "203.0.113.9", "curl/8.0")

	mock.ExpectExec("INSERT INTO activity_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_Insert_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewActivityRepository(db, zap.NewNop())

	log := models.NewActivityLog(uuid.New(), models.ActivityActionLogin, models.ActivityStatusOK)

	mock.ExpectExec("INSERT INTO activity_logs").
		WillReturnError(errors.New("disk full"))

	err := repo.Insert(context.Background(), log)
	assert.ErrorContains(t, err, "failed to insert activity log")
}
