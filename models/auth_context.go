package models

import "github.com/google/uuid"

// AuthContext is derived per request from a verified session. It is
// never persisted.
type AuthContext struct {
	UserID             uuid.UUID  `json:"user_id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	CompanyID          *uuid.UUID `json:"company_id,omitempty"`
	CompanyName        string     `json:"company_name"`
	RoleLevel          int        `json:"role_level"`
	IsDeveloper        bool       `json:"is_developer"`
	EffectiveRoleLevel int        `json:"effective_role_level"`
}

// AnonymousContext returns the explicit anonymous default used on
// optional-auth paths: the fixed default tenant at the lowest role.
func AnonymousContext(defaultCompanyID *uuid.UUID) *AuthContext {
	return &AuthContext{
		CompanyID:          defaultCompanyID,
		RoleLevel:          LevelDemo,
		EffectiveRoleLevel: LevelDemo,
	}
}

// IsAnonymous reports whether this context came from the anonymous
// default rather than a verified session.
func (a *AuthContext) IsAnonymous() bool {
	return a.UserID == uuid.Nil
}

// HasLevel reports whether the effective level meets the threshold.
func (a *AuthContext) HasLevel(min int) bool {
	return a.EffectiveRoleLevel >= min
}
