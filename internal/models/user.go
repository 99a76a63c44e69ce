package models

import (
	"time"

	"github.com/google/uuid"
)

// UserType classifies the account kind.
type UserType string

const (
	UserTypeClient           UserType = "client"
	UserTypePrivateCaregiver UserType = "private_caregiver"
	UserTypeOrganization     UserType = "organization"
)

// Role is an organization-scoped role.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleDoctor    Role = "doctor"
	RoleCaregiver Role = "caregiver"
	RoleClient    Role = "client"
)

// User represents a user in the system. Identity (phone verification, login)
// is handled by an external provider; this record mirrors the directory.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Phone          string     `json:"phone"`
	Name           *string    `json:"name,omitempty"`
	ProviderID     *string    `json:"provider_id,omitempty"`
	Type           UserType   `json:"type"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Roles          []Role     `json:"roles"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the given roles.
func (u *User) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsClient reports whether the user is a client account.
func (u *User) IsClient() bool {
	return u.Type == UserTypeClient
}

// IsPrivateCaregiver reports whether the user is a private caregiver account.
func (u *User) IsPrivateCaregiver() bool {
	return u.Type == UserTypePrivateCaregiver
}

// IsCaregivingRole reports whether the user acts in a caregiving or clinical
// capacity (as opposed to an owning/managing one). Used for notification
// routing.
func (u *User) IsCaregivingRole() bool {
	return u.HasAnyRole(RoleCaregiver, RoleDoctor)
}
