package domain

import (
	"errors"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/geo"
)

// Role defines the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// AnonymousDisplayName is shown for users whose identity carries no name.
const AnonymousDisplayName = "Anonymous"

var (
	ErrInvalidRole  = errors.New("invalid user role")
	ErrEmptyUserID  = errors.New("user id cannot be empty")
	ErrUserNotFound = errors.New("user not found")
)

// IsValid checks if the role is a recognized system role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// User is the profile mirrored from the identity provider, plus the last
// privacy-reduced location the user reported.
type User struct {
	ID                 string        `json:"id"`
	Email              string        `json:"email"`
	DisplayName        string        `json:"display_name"`
	Role               Role          `json:"role"`
	CreatedAt          time.Time     `json:"created_at"`
	LastLogin          time.Time     `json:"last_login"`
	Location           *geo.Location `json:"location,omitempty"`
	LastLocationUpdate time.Time     `json:"last_location_update,omitempty"`
}

// NewUser creates a new validated user instance.
func NewUser(id, email, displayName string, role Role) (*User, error) {
	if id == "" {
		return nil, ErrEmptyUserID
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	now := time.Now().UTC()
	return &User{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   now,
		LastLogin:   now,
	}, nil
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UpdateLastLogin refreshes the last login timestamp.
func (u *User) UpdateLastLogin() {
	u.LastLogin = time.Now().UTC()
}

// Name returns the display name, falling back to AnonymousDisplayName.
func (u *User) Name() string {
	if u == nil || u.DisplayName == "" {
		return AnonymousDisplayName
	}
	return u.DisplayName
}

// Validate ensures the user entity is in a valid state.
func (u *User) Validate() error {
	if u.ID == "" {
		return ErrEmptyUserID
	}
	if !u.Role.IsValid() {
		return ErrInvalidRole
	}
	return nil
}

// LocationRecord returns the user's last reported location as a record
// for the nearby evaluator. ok is false when no location was ever reported.
func (u *User) LocationRecord() (LocationRecord, bool) {
	if u.Location == nil || u.LastLocationUpdate.IsZero() {
		return LocationRecord{}, false
	}
	return LocationRecord{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Location:    *u.Location,
		UpdatedAt:   u.LastLocationUpdate,
	}, true
}
