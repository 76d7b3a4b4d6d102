// Package roles manages per-tenant role ladders and computes effective
// authorization levels, including the developer test-role override.
package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"go.uber.org/zap"
)

// ErrInvalidRole is returned when a test role name does not exist on
// the target company's ladder.
var ErrInvalidRole = errors.New("invalid role")

// Service provides role ladder lookups with auto-seeding and effective
// level resolution.
type Service struct {
	roles    repositories.RoleRepository
	sessions repositories.SessionRepository
	logger   *zap.Logger
}

// NewService creates a new roles Service
func NewService(roles repositories.RoleRepository, sessions repositories.SessionRepository, logger *zap.Logger) *Service {
	return &Service{
		roles:    roles,
		sessions: sessions,
		logger:   logger,
	}
}

// Ladder returns a company's role ladder, seeding the canonical five
// levels when the ladder is empty on first query.
func (s *Service) Ladder(ctx context.Context, companyID uuid.UUID) (models.Ladder, error) {
	ladder, err := s.roles.GetLadder(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ladder: %w", err)
	}
	if len(ladder) > 0 {
		return ladder, nil
	}

	seed := models.DefaultLadder(companyID)
	if err := s.roles.SeedLadder(ctx, companyID, seed); err != nil {
		return nil, fmt.Errorf("failed to seed ladder: %w", err)
	}
	return seed, nil
}

// LadderFor returns the ladder for an optional company. A nil company
// yields the canonical default ladder without touching the store.
func (s *Service) LadderFor(ctx context.Context, companyID *uuid.UUID) (models.Ladder, error) {
	if companyID == nil {
		return models.DefaultLadder(uuid.Nil), nil
	}
	return s.Ladder(ctx, *companyID)
}

// Resolve computes the effective authorization level. The stored role
// level passes through unchanged unless a developer override is
// active, in which case the ladder's value for the test role applies.
// testRole was validated when set and is not re-validated here; if the
// ladder no longer maps it, the stored level applies.
func (s *Service) Resolve(ctx context.Context, companyID *uuid.UUID, roleLevel int, isDeveloper bool, testRole *models.RoleName) (int, error) {
	if !isDeveloper || testRole == nil {
		return roleLevel, nil
	}

	ladder, err := s.LadderFor(ctx, companyID)
	if err != nil {
		return roleLevel, err
	}

	level, ok := ladder.LevelOf(*testRole)
	if !ok {
		s.logger.Warn("test role missing from ladder, using stored level",
			zap.String("test_role", string(*testRole)))
		return roleLevel, nil
	}
	return level, nil
}

// NameFor returns the ladder's name for a level, or empty when the
// level has no named role.
func (s *Service) NameFor(ctx context.Context, companyID *uuid.UUID, level int) models.RoleName {
	ladder, err := s.LadderFor(ctx, companyID)
	if err != nil {
		return ""
	}
	name, _ := ladder.NameOf(level)
	return name
}

// SetTestRole validates a developer test role against the target
// company's ladder (auto-seeding it if empty) and persists it on the
// session. An empty name clears the override. Returns the resulting
// effective level.
func (s *Service) SetTestRole(ctx context.Context, sess *models.Session, testRole models.RoleName, companyID *uuid.UUID) (int, error) {
	target := sess.CompanyID
	if companyID != nil {
		target = companyID
	}

	if testRole == "" {
		if err := s.sessions.SetTestRole(ctx, sess.Token, nil, companyID); err != nil {
			return 0, fmt.Errorf("failed to clear test role: %w", err)
		}
		sess.TestRole = nil
		if companyID != nil {
			sess.CompanyID = companyID
		}
		return sess.RoleLevel, nil
	}

	ladder, err := s.LadderFor(ctx, target)
	if err != nil {
		return 0, err
	}

	level, ok := ladder.LevelOf(testRole)
	if !ok {
		return 0, fmt.Errorf("role %q not on ladder: %w", testRole, ErrInvalidRole)
	}

	if err := s.sessions.SetTestRole(ctx, sess.Token, &testRole, companyID); err != nil {
		return 0, fmt.Errorf("failed to persist test role: %w", err)
	}

	sess.TestRole = &testRole
	if companyID != nil {
		sess.CompanyID = companyID
	}

	s.logger.Info("developer test role set",
		zap.String("user_id", sess.UserID.String()),
		zap.String("test_role", string(testRole)),
		zap.Int("effective_level", level))

	return level, nil
}
