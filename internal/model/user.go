package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleParticipant UserRole = "participant" // Default role
	UserRoleOrganizer   UserRole = "organizer"   // Runs workshops
	UserRoleAdmin       UserRole = "admin"       // Catalog, clients, users, waitlists
)

// IsValid returns true if the role is a known user role
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleParticipant, UserRoleOrganizer, UserRoleAdmin:
		return true
	default:
		return false
	}
}

// IsStaff returns true for organizers and admins
func (r UserRole) IsStaff() bool {
	return r == UserRoleOrganizer || r == UserRoleAdmin
}

// User represents a user account
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       *string    `json:"username,omitempty"`
	Hash           *string    `json:"-"` // Never expose password hash
	Firstname      *string    `json:"firstname,omitempty"`
	Lastname       *string    `json:"lastname,omitempty"`
	Role           UserRole   `json:"role"`
	ClientID       *string    `json:"client_id,omitempty"`
	GrantedLevelID *string    `json:"granted_level_id,omitempty"`
	EmailVerified  bool       `json:"email_verified"`
	CreatedOn      time.Time  `json:"created_on"`
	UpdatedOn      time.Time  `json:"updated_on"`
	LoginOn        *time.Time `json:"login_on,omitempty"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// IsStaff returns true if the user is an organizer or admin
func (u *User) IsStaff() bool {
	return u.Role.IsStaff()
}

// DisplayName returns "Firstname Lastname" in title case, falling back to
// the username and then the local part of the email.
func (u *User) DisplayName() string {
	var parts []string
	if u.Firstname != nil && strings.TrimSpace(*u.Firstname) != "" {
		parts = append(parts, strings.TrimSpace(*u.Firstname))
	}
	if u.Lastname != nil && strings.TrimSpace(*u.Lastname) != "" {
		parts = append(parts, strings.TrimSpace(*u.Lastname))
	}
	if len(parts) > 0 {
		return cases.Title(language.Und).String(strings.Join(parts, " "))
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// UserFilter narrows the admin user listing
type UserFilter struct {
	Role     *UserRole
	ClientID *string
	Search   string
	Limit    int
	Offset   int
}

// UpdateUserRoleRequest changes a user's role
type UpdateUserRoleRequest struct {
	Role UserRole `json:"role"`
}

// Validate checks if the request is valid
func (r *UpdateUserRoleRequest) Validate() []FieldError {
	if !r.Role.IsValid() {
		return []FieldError{{Field: "role", Message: "role must be 'participant', 'organizer' or 'admin'"}}
	}
	return nil
}

// AttachClientRequest attaches a user to a client, or detaches when
// client_id is null.
type AttachClientRequest struct {
	ClientID *string `json:"client_id"`
}

// GrantLevelRequest grants a role level to a user, or clears the grant when
// level_id is null.
type GrantLevelRequest struct {
	LevelID *string `json:"level_id"`
}
