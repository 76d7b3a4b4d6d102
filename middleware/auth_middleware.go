package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/services/session"
	"github.com/quorumhq/chatgate/utils"
	"go.uber.org/zap"
)

// SessionCookieName is the HttpOnly cookie the browser transport uses.
const SessionCookieName = "chatgate_session"

// SessionVerifier resolves raw tokens into authorization contexts.
type SessionVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.AuthContext, error)
}

// CookieConfig controls how the session cookie is written.
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// Auth guards routes behind session verification.
type Auth struct {
	verifier         SessionVerifier
	defaultCompanyID *uuid.UUID
	cookies          CookieConfig
	logger           *zap.Logger
}

// NewAuth creates the auth middleware. defaultCompanyID is the tenant
// anonymous requests are attributed to on optional routes.
func NewAuth(verifier SessionVerifier, defaultCompanyID *uuid.UUID, cookies CookieConfig, logger *zap.Logger) *Auth {
	return &Auth{
		verifier:         verifier,
		defaultCompanyID: defaultCompanyID,
		cookies:          cookies,
		logger:           logger,
	}
}

// ExtractToken pulls the session token from the request. Precedence is
// fixed: Authorization bearer, then the X-Session-Token header, then
// the session cookie. The first non-empty source wins even if a later
// source holds a valid token.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if token := r.Header.Get("X-Session-Token"); token != "" {
		return strings.TrimSpace(token)
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// Require rejects requests without a valid session.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)

		auth, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.reject(w, r, err)
			return
		}

		ctx := WithAuth(r.Context(), auth)
		ctx = WithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches an authorization context when a valid session is
// presented and an anonymous context otherwise. Anonymous requests run
// at the lowest level against the default tenant.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)

		auth, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrExpiredToken) {
				a.ClearCookie(w)
			}
			auth = models.AnonymousContext(a.defaultCompanyID)
		}

		ctx := WithAuth(r.Context(), auth)
		if err == nil {
			ctx = WithToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLevel gates a route at a minimum effective role level. Must
// run inside Require. Failing the level check is a 403, distinct from
// the 401 an absent or bad session gets.
func (a *Auth) RequireLevel(minLevel int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := GetAuth(r.Context())
			if !ok {
				utils.WriteUnauthorized(w, "Authentication required")
				return
			}
			if !auth.HasLevel(minLevel) {
				a.logger.Info("insufficient role level",
					zap.String("user_id", auth.UserID.String()),
					zap.Int("effective_level", auth.EffectiveRoleLevel),
					zap.Int("required_level", minLevel))
				utils.WriteForbidden(w, "Insufficient role for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireDeveloper gates a route to allowlisted developer sessions.
func (a *Auth) RequireDeveloper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ok := GetAuth(r.Context())
		if !ok {
			utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !auth.IsDeveloper {
			utils.WriteForbidden(w, "Developer access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// reject maps verification errors to responses. All failure modes read
// the same to the client; only expiry additionally clears the cookie.
func (a *Auth) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNoToken):
		utils.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, session.ErrExpiredToken):
		a.ClearCookie(w)
		utils.WriteUnauthorized(w, "Session expired")
	default:
		utils.WriteUnauthorized(w, "Invalid session")
	}
}

// IssueCookie writes the HttpOnly session cookie.
func (a *Auth) IssueCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   a.cookies.Domain,
		MaxAge:   int(a.cookies.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   a.cookies.Secure,
		SameSite: a.cookies.SameSite,
	})
}

// ClearCookie expires the session cookie.
func (a *Auth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookies.Secure,
		SameSite: a.cookies.SameSite,
	})
}
