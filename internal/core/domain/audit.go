package domain

import (
	"errors"
	"time"
)

// AuditAction represents a type-safe action identifier for the audit log.
type AuditAction string

const (
	ActionLogin        AuditAction = "LOGIN"
	ActionVenueCreate  AuditAction = "VENUE_CREATED"
	ActionVenueUpdate  AuditAction = "VENUE_UPDATED"
	ActionVenueDelete  AuditAction = "VENUE_DELETED"
	ActionMessagePurge AuditAction = "MESSAGES_PURGED"
	ActionExport       AuditAction = "EXPORT"
	ActionInfo         AuditAction = "INFO"
)

var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingUser   = errors.New("user identification is required for auditing")
)

// AuditLog is a record of a change made to shared data.
type AuditLog struct {
	ID        uint        `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"` // denormalized for display
	Action    AuditAction `json:"action"`
	Target    string      `json:"target"`
	Details   string      `json:"details"`
	IPAddress string      `json:"ip_address"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog is the designated factory for creating valid AuditLog entities.
func NewAuditLog(userID, username string, action AuditAction, target, details, ip string) (*AuditLog, error) {
	if userID == "" && username == "" {
		return nil, ErrMissingUser
	}

	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}

	return &AuditLog{
		UserID:    userID,
		Username:  username,
		Action:    action,
		Target:    target,
		Details:   details,
		IPAddress: ip,
		Timestamp: time.Now().UTC(),
	}, nil
}

func isValidAction(action AuditAction) bool {
	switch action {
	case ActionLogin, ActionVenueCreate, ActionVenueUpdate, ActionVenueDelete,
		ActionMessagePurge, ActionExport, ActionInfo:
		return true
	}
	return false
}
