package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

// uniqueViolation is the postgres error code for unique constraint violations
const uniqueViolation = "23505"

// SessionRepository implements the repositories.SessionRepository interface
type SessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB, logger *zap.Logger) repositories.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session. A token collision surfaces as
// ErrDuplicateToken; the existing session is never overwritten.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, email, first_name, last_name, company_id, company_name, role_level, test_role, created_at, expires_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.UserID,
		session.Email,
		session.FirstName,
		session.LastName,
		session.CompanyID,
		session.CompanyName,
		session.RoleLevel,
		session.TestRole,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastAccessedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repositories.ErrDuplicateToken
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("session created",
		zap.String("user_id", session.UserID.String()),
		zap.Time("expires_at", session.ExpiresAt))
	return nil
}

// GetByToken retrieves a session by exact token
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT token, user_id, email, first_name, last_name, company_id, company_name, role_level, test_role, created_at, expires_at, last_accessed_at
		FROM sessions
		WHERE token = $1
	`

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.Email,
		&session.FirstName,
		&session.LastName,
		&session.CompanyID,
		&session.CompanyName,
		&session.RoleLevel,
		&session.TestRole,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastAccessedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// TouchLastAccessed bumps last_accessed_at. The update is idempotent
// and order-independent; expires_at is deliberately untouched.
func (r *SessionRepository) TouchLastAccessed(ctx context.Context, token string, at time.Time) error {
	query := `UPDATE sessions SET last_accessed_at = $2 WHERE token = $1`

	result, err := r.db.ExecContext(ctx, query, token, at)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrSessionNotFound
	}

	return nil
}

// SetTestRole stores a validated developer override and optional
// company switch. A nil companyID leaves the session's company as is.
func (r *SessionRepository) SetTestRole(ctx context.Context, token string, testRole *models.RoleName, companyID *uuid.UUID) error {
	query := `
		UPDATE sessions
		SET test_role = $2,
		    company_id = COALESCE($3, company_id)
		WHERE token = $1
	`

	result, err := r.db.ExecContext(ctx, query, token, testRole, companyID)
	if err != nil {
		return fmt.Errorf("failed to set test role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrSessionNotFound
	}

	r.logger.Debug("session test role updated")
	return nil
}

// Delete removes a session by token
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE token = $1`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrSessionNotFound
	}

	return nil
}

// DeleteExpired removes sessions whose expiry precedes the cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		r.logger.Info("expired sessions swept", zap.Int64("count", rowsAffected))
	}
	return rowsAffected, nil
}
