package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

// tokenBytes is the entropy of an issued token. 32 bytes = 256 bits.
const tokenBytes = 32

// LadderResolver provides the per-tenant role ladder operations the
// session services need.
type LadderResolver interface {
	// LadderFor returns the (auto-seeded) ladder for a company. A nil
	// companyID yields the canonical default ladder.
	LadderFor(ctx context.Context, companyID *uuid.UUID) (models.Ladder, error)
	// Resolve computes the effective authorization level. testRole is
	// assumed to have been validated when it was set.
	Resolve(ctx context.Context, companyID *uuid.UUID, roleLevel int, isDeveloper bool, testRole *models.RoleName) (int, error)
}

// Identity describes the verified identity a session is issued for.
type Identity struct {
	UserID      uuid.UUID
	Email       string
	FirstName   string
	LastName    string
	CompanyID   *uuid.UUID
	CompanyName string
	RoleLevel   int
}

// Issuer creates sessions backed by cryptographically random tokens.
type Issuer struct {
	sessions repositories.SessionRepository
	cache    *Cache
	ladders  LadderResolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewIssuer creates a new Issuer
func NewIssuer(sessions repositories.SessionRepository, cache *Cache, ladders LadderResolver, logger *zap.Logger) *Issuer {
	return &Issuer{
		sessions: sessions,
		cache:    cache,
		ladders:  ladders,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue creates and persists a session for a verified identity. The
// role level must exist on the issuing tenant's ladder, and the expiry
// is fixed now: nothing later extends it.
func (i *Issuer) Issue(ctx context.Context, identity Identity, ttl time.Duration) (*models.Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}

	ladder, err := i.ladders.LadderFor(ctx, identity.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role ladder: %w", err)
	}
	if !ladder.HasLevel(identity.RoleLevel) {
		return nil, fmt.Errorf("role level %d not present on tenant ladder", identity.RoleLevel)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := i.now()
	session := &models.Session{
		Token:          token,
		UserID:         identity.UserID,
		Email:          identity.Email,
		FirstName:      identity.FirstName,
		LastName:       identity.LastName,
		CompanyID:      identity.CompanyID,
		CompanyName:    identity.CompanyName,
		RoleLevel:      identity.RoleLevel,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}

	if err := i.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrDuplicateToken) {
			// A 256-bit collision means the generator is broken or the
			// store is compromised. Never overwrite; surface as fatal.
			i.logger.Error("session token collision",
				zap.String("user_id", identity.UserID.String()))
			return nil, fmt.Errorf("token collision on session create: %w", err)
		}
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	i.cache.Put(session)

	i.logger.Info("session issued",
		zap.String("user_id", identity.UserID.String()),
		zap.Int("role_level", identity.RoleLevel),
		zap.Time("expires_at", session.ExpiresAt))

	return session, nil
}

// Revoke deletes a session and drops it from cache. The cache entry is
// dropped even when store deletion fails.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	i.cache.Invalidate(token)

	if err := i.sessions.Delete(ctx, token); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// generateToken returns an unguessable URL-safe token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
