package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/app"
	"github.com/quorumhq/chatgate/middleware"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/repositories"
	"github.com/quorumhq/chatgate/services/activity"
	"github.com/quorumhq/chatgate/services/providers"
	"github.com/quorumhq/chatgate/services/roles"
	"github.com/quorumhq/chatgate/services/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testHandoffSecret = "handler-test-secret"

// fakeSessionStore is an in-memory repositories.SessionRepository
type fakeSessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*models.Session
	failDelete bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.Session)}
}

func (s *fakeSessionStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.Token]; exists {
		return repositories.ErrDuplicateToken
	}
	copied := *sess
	s.sessions[sess.Token] = &copied
	return nil
}

func (s *fakeSessionStore) GetByToken(_ context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *fakeSessionStore) TouchLastAccessed(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	sess.LastAccessedAt = at
	return nil
}

func (s *fakeSessionStore) SetTestRole(_ context.Context, token string, testRole *models.RoleName, companyID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	sess.TestRole = testRole
	if companyID != nil {
		sess.CompanyID = companyID
	}
	return nil
}

func (s *fakeSessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return errors.New("store down")
	}
	if _, ok := s.sessions[token]; !ok {
		return repositories.ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *fakeSessionStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

// fakeRoleStore always serves the canonical ladder
type fakeRoleStore struct{}

func (fakeRoleStore) GetLadder(_ context.Context, companyID uuid.UUID) (models.Ladder, error) {
	return models.DefaultLadder(companyID), nil
}

func (fakeRoleStore) SeedLadder(context.Context, uuid.UUID, models.Ladder) error {
	return nil
}

// fakeActivityStore records inserted activity logs
type fakeActivityStore struct {
	mu   sync.Mutex
	logs []*models.ActivityLog
}

func (s *fakeActivityStore) Insert(_ context.Context, log *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *fakeActivityStore) snapshot() []*models.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ActivityLog, len(s.logs))
	copy(out, s.logs)
	return out
}

type testHarness struct {
	deps     *app.Dependencies
	store    *fakeSessionStore
	activity *fakeActivityStore
}

func newTestHarness(t *testing.T, developerEmails []string) *testHarness {
	t.Helper()
	logger := zap.NewNop()

	store := newFakeSessionStore()
	activityStore := &fakeActivityStore{}
	cache := session.NewCache(100, time.Minute)
	rolesSvc := roles.NewService(fakeRoleStore{}, store, logger)
	issuer := session.NewIssuer(store, cache, rolesSvc, logger)
	verifier := session.NewVerifier(cache, store, rolesSvc, developerEmails, logger)
	handoff := session.NewHandoff([]byte(testHandoffSecret), issuer, rolesSvc, time.Hour, logger)

	activitySvc := activity.NewService(activityStore, logger, activity.Config{BufferSize: 100, WorkerCount: 1})
	require.NoError(t, activitySvc.Start())
	t.Cleanup(func() { activitySvc.Stop(time.Second) })

	registry := providers.NewRegistry(logger)
	registry.Register(providers.EchoProvider{})

	auth := middleware.NewAuth(verifier, nil, middleware.CookieConfig{
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   time.Hour,
	}, logger)

	return &testHarness{
		deps: &app.Dependencies{
			Logger:       logger,
			SessionRepo:  store,
			RoleRepo:     fakeRoleStore{},
			ActivityRepo: activityStore,
			SessionCache: cache,
			Roles:        rolesSvc,
			Issuer:       issuer,
			Verifier:     verifier,
			Handoff:      handoff,
			Activity:     activitySvc,
			Providers:    registry,
			Auth:         auth,
		},
		store:    store,
		activity: activityStore,
	}
}

// seedSession issues a real session and returns it
func (h *testHarness) seedSession(t *testing.T, email string, level int) *models.Session {
	t.Helper()
	companyID := uuid.New()
	sess, err := h.deps.Issuer.Issue(context.Background(), session.Identity{
		UserID:      uuid.New(),
		Email:       email,
		FirstName:   "Test",
		LastName:    "User",
		CompanyID:   &companyID,
		CompanyName: "Acme",
		RoleLevel:   level,
	}, time.Hour)
	require.NoError(t, err)
	return sess
}

// authedContext mirrors what the auth middleware attaches
func authedContext(ctx context.Context, sess *models.Session, isDeveloper bool) context.Context {
	ctx = middleware.WithAuth(ctx, &models.AuthContext{
		UserID:             sess.UserID,
		Email:              sess.Email,
		FirstName:          sess.FirstName,
		LastName:           sess.LastName,
		CompanyID:          sess.CompanyID,
		CompanyName:        sess.CompanyName,
		RoleLevel:          sess.RoleLevel,
		IsDeveloper:        isDeveloper,
		EffectiveRoleLevel: sess.RoleLevel,
	})
	return middleware.WithToken(ctx, sess.Token)
}
