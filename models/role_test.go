package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLadder(t *testing.T) {
	companyID := uuid.New()
	ladder := DefaultLadder(companyID)

	require.Len(t, ladder, 5)

	tests := []struct {
		name  RoleName
		level int
	}{
		{RoleDemo, 0},
		{RoleUser, 1},
		{RoleAdministrator, 998},
		{RoleOwner, 999},
		{RoleSuperUser, 1000},
	}
	for _, tt := range tests {
		level, ok := ladder.LevelOf(tt.name)
		assert.True(t, ok)
		assert.Equal(t, tt.level, level)

		name, ok := ladder.NameOf(tt.level)
		assert.True(t, ok)
		assert.Equal(t, tt.name, name)
	}

	// Ordered lowest level first.
	for i := 1; i < len(ladder); i++ {
		assert.Greater(t, ladder[i].Level, ladder[i-1].Level)
	}
}

func TestLadder_UnknownLookups(t *testing.T) {
	ladder := DefaultLadder(uuid.Nil)

	_, ok := ladder.LevelOf("wizard")
	assert.False(t, ok)

	_, ok = ladder.NameOf(42)
	assert.False(t, ok)

	assert.False(t, ladder.HasLevel(500))
	assert.True(t, ladder.HasLevel(LevelOwner))
}

func TestSession_IsExpired(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	sess := &Session{ExpiresAt: expiry}

	assert.False(t, sess.IsExpired(expiry.Add(-time.Second)))
	// Exactly at expiry counts as expired.
	assert.True(t, sess.IsExpired(expiry))
	assert.True(t, sess.IsExpired(expiry.Add(time.Second)))
}

func TestAuthContext(t *testing.T) {
	t.Run("has level is a threshold check", func(t *testing.T) {
		auth := &AuthContext{EffectiveRoleLevel: LevelAdministrator}

		assert.True(t, auth.HasLevel(LevelDemo))
		assert.True(t, auth.HasLevel(LevelAdministrator))
		assert.False(t, auth.HasLevel(LevelOwner))
	})

	t.Run("anonymous context", func(t *testing.T) {
		companyID := uuid.New()
		auth := AnonymousContext(&companyID)

		assert.True(t, auth.IsAnonymous())
		assert.Equal(t, LevelDemo, auth.EffectiveRoleLevel)
		require.NotNil(t, auth.CompanyID)
		assert.Equal(t, companyID, *auth.CompanyID)
		assert.False(t, auth.IsDeveloper)
	})

	t.Run("anonymous without default company", func(t *testing.T) {
		auth := AnonymousContext(nil)

		assert.True(t, auth.IsAnonymous())
		assert.Nil(t, auth.CompanyID)
	})
}
