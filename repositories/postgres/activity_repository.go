package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

// ActivityRepository implements the repositories.ActivityRepository interface
type ActivityRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *DB, logger *zap.Logger) repositories.ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists an activity record
func (r *ActivityRepository) Insert(ctx context.Context, log *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (id, company_id, user_id, action, status, flags, details, ip_address, user_agent, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.CompanyID,
		log.UserID,
		log.Action,
		log.Status,
		pq.Array(log.Flags),
		log.Details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}

	r.logger.Debug("activity logged",
		zap.String("action", string(log.Action)),
		zap.String("status", log.Status))
	return nil
}
