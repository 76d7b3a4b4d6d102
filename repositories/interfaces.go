package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
)

var (
	// ErrSessionNotFound is returned when a token has no session record.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateToken is returned when session creation collides with
	// an existing token. The caller must treat this as fatal; a session
	// is never silently overwritten.
	ErrDuplicateToken = errors.New("session token already exists")
)

// SessionRepository persists tenant-scoped session records. Lookup is
// by exact token only; sessions are not enumerable.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	// TouchLastAccessed bumps last_accessed_at. Expiry is fixed at
	// issuance and is never extended here.
	TouchLastAccessed(ctx context.Context, token string, at time.Time) error
	// SetTestRole stores a validated developer override, and optionally
	// moves the session to another company. A nil testRole clears the
	// override.
	SetTestRole(ctx context.Context, token string, testRole *models.RoleName, companyID *uuid.UUID) error
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes sessions past their expiry. Out-of-band
	// maintenance only; verification re-checks expiry itself.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RoleRepository persists per-company role ladders.
type RoleRepository interface {
	GetLadder(ctx context.Context, companyID uuid.UUID) (models.Ladder, error)
	SeedLadder(ctx context.Context, companyID uuid.UUID, ladder models.Ladder) error
}

// ActivityRepository persists activity records for audit.
type ActivityRepository interface {
	Insert(ctx context.Context, log *models.ActivityLog) error
}
