package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/stretchr/testify/mock"
)

// mockSessionRepo mocks repositories.SessionRepository
type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockSessionRepo) TouchLastAccessed(ctx context.Context, token string, at time.Time) error {
	args := m.Called(ctx, token, at)
	return args.Error(0)
}

func (m *mockSessionRepo) SetTestRole(ctx context.Context, token string, testRole *models.RoleName, companyID *uuid.UUID) error {
	args := m.Called(ctx, token, testRole, companyID)
	return args.Error(0)
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// fakeLadders is a LadderResolver with pluggable behavior. The defaults
// serve the canonical five-level ladder and pass stored levels through.
type fakeLadders struct {
	ladderFn  func(ctx context.Context, companyID *uuid.UUID) (models.Ladder, error)
	resolveFn func(ctx context.Context, companyID *uuid.UUID, roleLevel int, isDeveloper bool, testRole *models.RoleName) (int, error)
}

func (f *fakeLadders) LadderFor(ctx context.Context, companyID *uuid.UUID) (models.Ladder, error) {
	if f.ladderFn != nil {
		return f.ladderFn(ctx, companyID)
	}
	return models.DefaultLadder(uuid.Nil), nil
}

func (f *fakeLadders) Resolve(ctx context.Context, companyID *uuid.UUID, roleLevel int, isDeveloper bool, testRole *models.RoleName) (int, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, companyID, roleLevel, isDeveloper, testRole)
	}
	if isDeveloper && testRole != nil {
		if level, ok := models.DefaultLadder(uuid.Nil).LevelOf(*testRole); ok {
			return level, nil
		}
	}
	return roleLevel, nil
}
