package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleName identifies a named role on a company's ladder.
type RoleName string

const (
	RoleDemo          RoleName = "demo"
	RoleUser          RoleName = "user"
	RoleAdministrator RoleName = "administrator"
	RoleOwner         RoleName = "owner"
	RoleSuperUser     RoleName = "super-user"
)

// Canonical numeric levels. Authorization checks use >= thresholds
// exclusively, so higher levels are cumulative supersets of lower ones.
const (
	LevelDemo          = 0
	LevelUser          = 1
	LevelAdministrator = 998
	LevelOwner         = 999
	LevelSuperUser     = 1000
)

// Role maps a named role to its numeric level within one company.
type Role struct {
	CompanyID uuid.UUID `json:"company_id" db:"company_id"`
	Name      RoleName  `json:"name" db:"name"`
	Level     int       `json:"level" db:"level"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Role model
func (Role) TableName() string {
	return "company_roles"
}

// Ladder is a company's ordered role table, lowest level first.
type Ladder []Role

// LevelOf returns the numeric level mapped to name.
func (l Ladder) LevelOf(name RoleName) (int, bool) {
	for _, r := range l {
		if r.Name == name {
			return r.Level, true
		}
	}
	return 0, false
}

// NameOf returns the role name mapped to level.
func (l Ladder) NameOf(level int) (RoleName, bool) {
	for _, r := range l {
		if r.Level == level {
			return r.Name, true
		}
	}
	return "", false
}

// HasLevel reports whether level exists on the ladder.
func (l Ladder) HasLevel(level int) bool {
	_, ok := l.NameOf(level)
	return ok
}

// DefaultLadder returns the five-level seed applied to a company whose
// ladder is empty on first query.
func DefaultLadder(companyID uuid.UUID) Ladder {
	now := time.Now()
	return Ladder{
		{CompanyID: companyID, Name: RoleDemo, Level: LevelDemo, CreatedAt: now},
		{CompanyID: companyID, Name: RoleUser, Level: LevelUser, CreatedAt: now},
		{CompanyID: companyID, Name: RoleAdministrator, Level: LevelAdministrator, CreatedAt: now},
		{CompanyID: companyID, Name: RoleOwner, Level: LevelOwner, CreatedAt: now},
		{CompanyID: companyID, Name: RoleSuperUser, Level: LevelSuperUser, CreatedAt: now},
	}
}
