package middleware

import (
	"context"

	"github.com/quorumhq/chatgate/models"
)

type contextKey string

const (
	authContextKey contextKey = "auth_context"
	tokenKey       contextKey = "session_token"
)

// WithAuth returns a context carrying the resolved authorization
// context.
func WithAuth(ctx context.Context, auth *models.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// GetAuth retrieves the authorization context from a request context.
func GetAuth(ctx context.Context) (*models.AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey).(*models.AuthContext)
	return auth, ok
}

// WithToken returns a context carrying the raw session token that
// authenticated the request. Handlers that mutate the session need it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// GetToken retrieves the raw session token from a request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}
