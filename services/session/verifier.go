package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNoToken is returned when no token was presented at all.
	ErrNoToken = errors.New("no session token")

	// ErrInvalidToken is returned when the token matches no session.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrExpiredToken is returned when the session is past its fixed
	// expiry. Callers should clear the transport cookie on this error.
	ErrExpiredToken = errors.New("session expired")

	// ErrStoreUnavailable wraps ErrInvalidToken so that store outages
	// fail closed while staying distinguishable in logs.
	ErrStoreUnavailable = fmt.Errorf("session store unavailable: %w", ErrInvalidToken)
)

// Verifier resolves raw tokens into authorization contexts.
type Verifier struct {
	cache      *Cache
	sessions   repositories.SessionRepository
	ladders    LadderResolver
	developers map[string]struct{} // immutable allowlist, fixed at construction
	logger     *zap.Logger
	now        func() time.Time
}

// NewVerifier creates a new Verifier. The developer allowlist is
// injected here and never mutated afterwards.
func NewVerifier(cache *Cache, sessions repositories.SessionRepository, ladders LadderResolver, developerEmails []string, logger *zap.Logger) *Verifier {
	developers := make(map[string]struct{}, len(developerEmails))
	for _, email := range developerEmails {
		developers[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &Verifier{
		cache:      cache,
		sessions:   sessions,
		ladders:    ladders,
		developers: developers,
		logger:     logger,
		now:        time.Now,
	}
}

// Verify resolves a raw token into an AuthContext. Expiry is always
// re-checked here regardless of cache state, so a missing sweep can
// never grant access.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*models.AuthContext, error) {
	if rawToken == "" {
		return nil, ErrNoToken
	}

	now := v.now()

	sess := v.cache.Get(rawToken, now)
	if sess == nil {
		stored, err := v.sessions.GetByToken(ctx, rawToken)
		if err != nil {
			if errors.Is(err, repositories.ErrSessionNotFound) {
				return nil, ErrInvalidToken
			}
			// Store outage fails closed. Logged distinctly so operators
			// can tell an outage from a flood of bad tokens.
			v.logger.Error("session store unavailable", zap.Error(err))
			return nil, ErrStoreUnavailable
		}
		sess = stored
		v.cache.Put(sess)
	}

	if sess.IsExpired(now) {
		v.cache.Invalidate(rawToken)
		return nil, ErrExpiredToken
	}

	// Informational only; a failed bump never fails verification.
	if err := v.sessions.TouchLastAccessed(ctx, rawToken, now); err != nil {
		v.logger.Warn("failed to update session last access",
			zap.String("user_id", sess.UserID.String()),
			zap.Error(err))
	}

	isDeveloper := v.IsDeveloper(sess.Email)

	effective, err := v.ladders.Resolve(ctx, sess.CompanyID, sess.RoleLevel, isDeveloper, sess.TestRole)
	if err != nil {
		// Degrade to the stored level rather than failing the request.
		v.logger.Warn("role resolution failed, using stored level",
			zap.String("user_id", sess.UserID.String()),
			zap.Error(err))
		effective = sess.RoleLevel
	}

	return &models.AuthContext{
		UserID:             sess.UserID,
		Email:              sess.Email,
		FirstName:          sess.FirstName,
		LastName:           sess.LastName,
		CompanyID:          sess.CompanyID,
		CompanyName:        sess.CompanyName,
		RoleLevel:          sess.RoleLevel,
		IsDeveloper:        isDeveloper,
		EffectiveRoleLevel: effective,
	}, nil
}

// IsDeveloper reports whether an email is on the fixed allowlist.
func (v *Verifier) IsDeveloper(email string) bool {
	_, ok := v.developers[strings.ToLower(email)]
	return ok
}

// Session returns the raw session for a token, applying the same
// cache/store/expiry rules as Verify but without resolving roles.
// Used by handlers that mutate the session (test-role switch).
func (v *Verifier) Session(ctx context.Context, rawToken string) (*models.Session, error) {
	if rawToken == "" {
		return nil, ErrNoToken
	}

	now := v.now()

	if sess := v.cache.Get(rawToken, now); sess != nil {
		return sess, nil
	}

	sess, err := v.sessions.GetByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		v.logger.Error("session store unavailable", zap.Error(err))
		return nil, ErrStoreUnavailable
	}
	if sess.IsExpired(now) {
		return nil, ErrExpiredToken
	}
	return sess, nil
}
