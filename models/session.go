package models

import (
	"time"

	"github.com/google/uuid"
)

// Session binds an opaque token to an identity, tenant and role for a
// bounded time window. Expiration is fixed at issuance: verification
// updates LastAccessedAt only, never ExpiresAt.
type Session struct {
	Token          string     `json:"-" db:"token"` // opaque, 256-bit, never serialized
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	Email          string     `json:"email" db:"email"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	CompanyID      *uuid.UUID `json:"company_id,omitempty" db:"company_id"`
	CompanyName    string     `json:"company_name" db:"company_name"`
	RoleLevel      int        `json:"role_level" db:"role_level"`
	TestRole       *RoleName  `json:"test_role,omitempty" db:"test_role"` // developer override, validated on set
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at" db:"last_accessed_at"`
}

// TableName returns the table name for the Session model
func (Session) TableName() string {
	return "sessions"
}

// IsExpired reports whether the session is at or past its fixed expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
