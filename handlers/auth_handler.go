package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/quorumhq/chatgate/app"
	"github.com/quorumhq/chatgate/middleware"
	"github.com/quorumhq/chatgate/models"
	"github.com/quorumhq/chatgate/services/roles"
	"github.com/quorumhq/chatgate/services/session"
	"github.com/quorumhq/chatgate/utils"
	"go.uber.org/zap"
)

// HandoffRequest carries an upstream identity assertion
type HandoffRequest struct {
	Assertion string `json:"assertion" validate:"required"`
}

// SessionResponse is returned on successful session issuance
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse describes the authenticated user
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyID   string `json:"companyId,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Role        string `json:"role"`
	RoleLevel   int    `json:"roleLevel"`
}

// VerifyResponse is the session verification contract
type VerifyResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
}

// TestRoleRequest switches a developer session's effective role
type TestRoleRequest struct {
	TestRole  string `json:"testRole"`
	CompanyID string `json:"companyId,omitempty" validate:"omitempty,uuid"`
}

// TestRoleResponse reports the resulting override state
type TestRoleResponse struct {
	TestRole       string `json:"testRole,omitempty"`
	EffectiveLevel int    `json:"effectiveLevel"`
}

// HandoffHandler exchanges an upstream identity assertion for a
// first-party session. The token is returned in the body for API
// clients and set as an HttpOnly cookie for browsers.
func HandoffHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HandoffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			utils.WriteBadRequest(w, err.Error(), toDetails(utils.GetValidationFields(err)))
			return
		}

		sess, err := deps.Handoff.Exchange(r.Context(), req.Assertion)
		if err != nil {
			if errors.Is(err, session.ErrInvalidAssertion) {
				utils.WriteUnauthorized(w, "Invalid identity assertion")
				return
			}
			deps.Logger.Error("handoff exchange failed", zap.Error(err))
			utils.WriteInternalServerError(w, "")
			return
		}

		deps.Auth.IssueCookie(w, sess.Token)

		if err := deps.Activity.LogLogin(sess.UserID, sess.CompanyID,
			chimiddleware.GetReqID(r.Context()), clientIP(r), r.UserAgent()); err != nil {
			deps.Logger.Warn("failed to record login activity", zap.Error(err))
		}

		roleName := deps.Roles.NameFor(r.Context(), sess.CompanyID, sess.RoleLevel)
		utils.WriteJSON(w, http.StatusCreated, SessionResponse{
			Token:     sess.Token,
			ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
			User:      userResponse(sess.UserID, sess.Email, sess.FirstName, sess.LastName, sess.CompanyID, sess.CompanyName, string(roleName), sess.RoleLevel),
		})
	}
}

// VerifyHandler reports whether the presented session is valid. Bad or
// absent tokens answer authenticated=false with 200; only internal
// failures surface as 500.
func VerifyHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.ExtractToken(r)

		auth, err := deps.Verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrExpiredToken) {
				deps.Auth.ClearCookie(w)
			}
			utils.WriteJSON(w, http.StatusOK, VerifyResponse{Authenticated: false})
			return
		}

		roleName := deps.Roles.NameFor(r.Context(), auth.CompanyID, auth.EffectiveRoleLevel)
		user := userResponse(auth.UserID, auth.Email, auth.FirstName, auth.LastName,
			auth.CompanyID, auth.CompanyName, string(roleName), auth.EffectiveRoleLevel)
		utils.WriteJSON(w, http.StatusOK, VerifyResponse{
			Authenticated: true,
			User:          &user,
		})
	}
}

// LogoutHandler revokes the session. The cookie is cleared even when
// store deletion fails, so the browser never keeps a token the user
// asked to drop.
func LogoutHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := middleware.GetAuth(r.Context())
		token, _ := middleware.GetToken(r.Context())

		status := models.ActivityStatusOK
		if err := deps.Issuer.Revoke(r.Context(), token); err != nil {
			deps.Logger.Error("session revocation failed", zap.Error(err))
			status = models.ActivityStatusFailed
		}

		deps.Auth.ClearCookie(w)

		if auth != nil {
			if err := deps.Activity.LogLogout(auth.UserID, auth.CompanyID, status,
				chimiddleware.GetReqID(r.Context()), clientIP(r), r.UserAgent()); err != nil {
				deps.Logger.Warn("failed to record logout activity", zap.Error(err))
			}
		}

		utils.WriteOK(w, map[string]interface{}{"loggedOut": true})
	}
}

// TestRoleHandler sets or clears a developer's test-role override.
// Routed behind RequireDeveloper; the override is validated against
// the target company's ladder before it is persisted.
func TestRoleHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, ok := middleware.GetAuth(r.Context())
		if !ok || !auth.IsDeveloper {
			utils.WriteForbidden(w, "Developer access required")
			return
		}

		var req TestRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			utils.WriteBadRequest(w, err.Error(), toDetails(utils.GetValidationFields(err)))
			return
		}

		var companyID *uuid.UUID
		if req.CompanyID != "" {
			parsed, err := uuid.Parse(req.CompanyID)
			if err != nil {
				utils.WriteBadRequest(w, "companyId must be a valid UUID", nil)
				return
			}
			companyID = &parsed
		}

		token, _ := middleware.GetToken(r.Context())
		sess, err := deps.Verifier.Session(r.Context(), token)
		if err != nil {
			utils.WriteUnauthorized(w, "Invalid session")
			return
		}

		level, err := deps.Roles.SetTestRole(r.Context(), sess, models.RoleName(req.TestRole), companyID)
		if err != nil {
			if errors.Is(err, roles.ErrInvalidRole) {
				utils.WriteBadRequest(w, "Unknown role for this company", map[string]interface{}{
					"testRole": req.TestRole,
				})
				return
			}
			deps.Logger.Error("test role switch failed", zap.Error(err))
			utils.WriteInternalServerError(w, "")
			return
		}

		// The stored session changed; the next verify must see it.
		deps.SessionCache.Invalidate(token)
		deps.SessionCache.Put(sess)

		if err := deps.Activity.LogRoleSwitch(sess.UserID, sess.CompanyID, req.TestRole, level,
			chimiddleware.GetReqID(r.Context())); err != nil {
			deps.Logger.Warn("failed to record role switch activity", zap.Error(err))
		}

		utils.WriteOK(w, TestRoleResponse{
			TestRole:       req.TestRole,
			EffectiveLevel: level,
		})
	}
}

func userResponse(id uuid.UUID, email, firstName, lastName string, companyID *uuid.UUID, companyName, role string, level int) UserResponse {
	resp := UserResponse{
		ID:          id.String(),
		Email:       email,
		FirstName:   firstName,
		LastName:    lastName,
		CompanyName: companyName,
		Role:        role,
		RoleLevel:   level,
	}
	if companyID != nil {
		resp.CompanyID = companyID.String()
	}
	return resp
}

func toDetails(fields map[string]string) map[string]interface{} {
	if fields == nil {
		return nil
	}
	details := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return details
}

func clientIP(r *http.Request) string {
	return r.RemoteAddr
}
