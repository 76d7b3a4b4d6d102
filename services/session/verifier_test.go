package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestVerifier(repo *mockSessionRepo, cache *Cache, developers []string) *Verifier {
	return NewVerifier(cache, repo, &fakeLadders{}, developers, zap.NewNop())
}

func storedSession(token, email string, level int, expiresAt time.Time) *models.Session {
	companyID := uuid.New()
	return &models.Session{
		Token:          token,
		UserID:         uuid.New(),
		Email:          email,
		FirstName:      "Dana",
		LastName:       "Okafor",
		CompanyID:      &companyID,
		CompanyName:    "Acme",
		RoleLevel:      level,
		CreatedAt:      time.Now().Add(-time.Hour),
		ExpiresAt:      expiresAt,
		LastAccessedAt: time.Now().Add(-time.Minute),
	}
}

func TestVerifier_NoToken(t *testing.T) {
	v := newTestVerifier(new(mockSessionRepo), NewCache(10, time.Minute), nil)

	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestVerifier_UnknownToken(t *testing.T) {
	repo := new(mockSessionRepo)
	repo.On("GetByToken", mock.Anything, "bogus").Return(nil, repositories.ErrSessionNotFound)
	v := newTestVerifier(repo, NewCache(10, time.Minute), nil)

	_, err := v.Verify(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_StoreUnavailableFailsClosed(t *testing.T) {
	repo := new(mockSessionRepo)
	repo.On("GetByToken", mock.Anything, "tok").Return(nil, errors.New("connection refused"))
	v := newTestVerifier(repo, NewCache(10, time.Minute), nil)

	_, err := v.Verify(context.Background(), "tok")

	require.ErrorIs(t, err, ErrStoreUnavailable)
	// An outage must read as an invalid session to callers, never as a
	// grant.
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_ExpiredSession(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "bob@example.com", models.LevelUser, time.Now().Add(-time.Minute))
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	v := newTestVerifier(repo, NewCache(10, time.Minute), nil)

	_, err := v.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifier_ExpiryCheckedRegardlessOfCache(t *testing.T) {
	repo := new(mockSessionRepo)
	cache := NewCache(10, time.Minute)
	sess := storedSession("tok", "bob@example.com", models.LevelUser, time.Now().Add(30*time.Millisecond))
	cache.Put(sess)
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	repo.On("TouchLastAccessed", mock.Anything, "tok", mock.Anything).Return(nil)
	v := newTestVerifier(repo, cache, nil)

	_, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = v.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifier_ValidSession(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "carol@example.com", models.LevelAdministrator, time.Now().Add(time.Hour))
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	repo.On("TouchLastAccessed", mock.Anything, "tok", mock.Anything).Return(nil)
	cache := NewCache(10, time.Minute)
	v := newTestVerifier(repo, cache, nil)

	auth, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, sess.UserID, auth.UserID)
	assert.Equal(t, "carol@example.com", auth.Email)
	assert.Equal(t, sess.CompanyID, auth.CompanyID)
	assert.Equal(t, models.LevelAdministrator, auth.RoleLevel)
	assert.Equal(t, models.LevelAdministrator, auth.EffectiveRoleLevel)
	assert.False(t, auth.IsDeveloper)
	assert.False(t, auth.IsAnonymous())

	// The store hit populated the cache; a second verify is served from
	// it.
	assert.NotNil(t, cache.Get("tok", time.Now()))
	repo.AssertNumberOfCalls(t, "GetByToken", 1)
}

func TestVerifier_TouchFailureDoesNotFailVerification(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "carol@example.com", models.LevelUser, time.Now().Add(time.Hour))
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	repo.On("TouchLastAccessed", mock.Anything, "tok", mock.Anything).Return(errors.New("write timeout"))
	v := newTestVerifier(repo, NewCache(10, time.Minute), nil)

	auth, err := v.Verify(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, models.LevelUser, auth.EffectiveRoleLevel)
}

func TestVerifier_DeveloperAllowlist(t *testing.T) {
	v := newTestVerifier(new(mockSessionRepo), NewCache(10, time.Minute),
		[]string{"  Dev@Example.COM ", "other@example.com"})

	assert.True(t, v.IsDeveloper("dev@example.com"))
	assert.True(t, v.IsDeveloper("DEV@EXAMPLE.COM"))
	assert.True(t, v.IsDeveloper("other@example.com"))
	assert.False(t, v.IsDeveloper("stranger@example.com"))
}

func TestVerifier_TestRoleOverrideForDeveloper(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "dev@example.com", models.LevelSuperUser, time.Now().Add(time.Hour))
	owner := models.RoleOwner
	sess.TestRole = &owner
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	repo.On("TouchLastAccessed", mock.Anything, "tok", mock.Anything).Return(nil)
	v := newTestVerifier(repo, NewCache(10, time.Minute), []string{"dev@example.com"})

	auth, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)

	// The override lowers the effective level; the stored level is
	// reported unchanged.
	assert.True(t, auth.IsDeveloper)
	assert.Equal(t, models.LevelSuperUser, auth.RoleLevel)
	assert.Equal(t, models.LevelOwner, auth.EffectiveRoleLevel)
}

func TestVerifier_TestRoleIgnoredForNonDeveloper(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "user@example.com", models.LevelUser, time.Now().Add(time.Hour))
	owner := models.RoleOwner
	sess.TestRole = &owner
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	repo.On("TouchLastAccessed", mock.Anything, "tok", mock.Anything).Return(nil)
	v := newTestVerifier(repo, NewCache(10, time.Minute), nil)

	auth, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)

	assert.False(t, auth.IsDeveloper)
	assert.Equal(t, models.LevelUser, auth.EffectiveRoleLevel)
}

func TestVerifier_RoleResolutionFailureDegradesToStoredLevel(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "dev@example.com", models.LevelUser, time.Now().Add(time.Hour))
	owner := models.RoleOwner
	sess.TestRole = &owner
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	repo.On("TouchLastAccessed", mock.Anything, "tok", mock.Anything).Return(nil)

	ladders := &fakeLadders{
		resolveFn: func(context.Context, *uuid.UUID, int, bool, *models.RoleName) (int, error) {
			return 0, errors.New("ladder store down")
		},
	}
	v := NewVerifier(NewCache(10, time.Minute), repo, ladders, []string{"dev@example.com"}, zap.NewNop())

	auth, err := v.Verify(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, models.LevelUser, auth.EffectiveRoleLevel)
}

// snapshotStore serves a copy of its session per lookup, the way the
// postgres repository scans a fresh row each query.
type snapshotStore struct {
	mu   sync.Mutex
	sess models.Session
}

func (s *snapshotStore) Create(ctx context.Context, session *models.Session) error { return nil }

func (s *snapshotStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.sess.Token {
		return nil, repositories.ErrSessionNotFound
	}
	copied := s.sess
	return &copied, nil
}

func (s *snapshotStore) TouchLastAccessed(ctx context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.LastAccessedAt = at
	return nil
}

func (s *snapshotStore) SetTestRole(ctx context.Context, token string, testRole *models.RoleName, companyID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.TestRole = testRole
	if companyID != nil {
		s.sess.CompanyID = companyID
	}
	return nil
}

func (s *snapshotStore) Delete(ctx context.Context, token string) error { return nil }

func (s *snapshotStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// Exercises verification under a concurrent role switch: readers verify
// the token while another goroutine fetches the session, mutates its
// private copy and re-caches it, the way the role-switch handler does.
// Under -race this fails if the cache hands the same session instance
// to the mutating path and to concurrent verifies.
func TestVerifier_ConcurrentVerifyDuringRoleSwitch(t *testing.T) {
	store := &snapshotStore{
		sess: *storedSession("tok", "dev@example.com", models.LevelSuperUser, time.Now().Add(time.Hour)),
	}
	cache := NewCache(10, time.Minute)
	v := NewVerifier(cache, store, &fakeLadders{}, []string{"dev@example.com"}, zap.NewNop())

	_, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				auth, err := v.Verify(context.Background(), "tok")
				if !assert.NoError(t, err) {
					return
				}
				// With the override on the effective level is owner,
				// without it the stored super-user level.
				assert.Contains(t, []int{models.LevelOwner, models.LevelSuperUser}, auth.EffectiveRoleLevel)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		owner := models.RoleOwner
		for j := 0; j < 50; j++ {
			sess, err := v.Session(context.Background(), "tok")
			if !assert.NoError(t, err) {
				return
			}
			testRole := &owner
			if j%2 == 1 {
				testRole = nil
			}
			sess.TestRole = testRole
			if !assert.NoError(t, store.SetTestRole(context.Background(), "tok", testRole, nil)) {
				return
			}
			cache.Invalidate("tok")
			cache.Put(sess)
		}
	}()

	wg.Wait()
}

func TestVerifier_Session(t *testing.T) {
	repo := new(mockSessionRepo)
	sess := storedSession("tok", "dev@example.com", models.LevelUser, time.Now().Add(time.Hour))
	repo.On("GetByToken", mock.Anything, "tok").Return(sess, nil)
	v := newTestVerifier(repo, NewCache(10, time.Minute), nil)

	got, err := v.Session(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	_, err = v.Session(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}
