package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityAction represents the type of action being recorded
type ActivityAction string

const (
	ActivityActionLogin          ActivityAction = "login"
	ActivityActionLogout         ActivityAction = "logout"
	ActivityActionRoleSwitch     ActivityAction = "role_switch"
	ActivityActionMessageSent    ActivityAction = "message_sent"
	ActivityActionMessageBlocked ActivityAction = "message_blocked"
)

// Activity statuses
const (
	ActivityStatusOK      = "ok"
	ActivityStatusBlocked = "blocked"
	ActivityStatusFailed  = "failed"
)

// ActivityLog is a durable record of session activity and filter
// decisions. Filter results themselves are transient; only their flags
// are attached here.
type ActivityLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	CompanyID *uuid.UUID      `json:"company_id,omitempty" db:"company_id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Action    ActivityAction  `json:"action" db:"action"`
	Status    string          `json:"status" db:"status"`
	Flags     []string        `json:"flags,omitempty" db:"flags"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	RequestID string          `json:"request_id" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the ActivityLog model
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// NewActivityLog creates a new ActivityLog instance
func NewActivityLog(userID uuid.UUID, action ActivityAction, status string) *ActivityLog {
	return &ActivityLog{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// WithCompany sets the company ID
func (a *ActivityLog) WithCompany(companyID *uuid.UUID) *ActivityLog {
	a.CompanyID = companyID
	return a
}

// WithFlags attaches filter flags
func (a *ActivityLog) WithFlags(flags []string) *ActivityLog {
	a.Flags = flags
	return a
}

// WithDetails sets the details
func (a *ActivityLog) WithDetails(details interface{}) *ActivityLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *ActivityLog) WithRequest(requestID, ipAddress, userAgent string) *ActivityLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
