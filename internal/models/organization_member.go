package models

import "time"

// OrganizationRole is an ordered permission level scoped to one organization.
type OrganizationRole string

const (
	RoleMember OrganizationRole = "member"
	RoleAdmin  OrganizationRole = "admin"
	RoleOwner  OrganizationRole = "owner"
)

// Level maps roles onto their total order: member < admin < owner.
// Unknown roles map below member so they never satisfy a check.
func (r OrganizationRole) Level() int {
	switch r {
	case RoleMember:
		return 1
	case RoleAdmin:
		return 2
	case RoleOwner:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r grants the permissions of required.
func (r OrganizationRole) AtLeast(required OrganizationRole) bool {
	return r.Level() >= required.Level() && r.Level() > 0
}

// Valid reports whether r is one of the recognized roles.
func (r OrganizationRole) Valid() bool {
	return r.Level() > 0
}

type OrganizationMember struct {
	OrganizationID uint64           `gorm:"primarykey" json:"organization_id"`
	UserID         uint64           `gorm:"primarykey" json:"user_id"`
	Role           OrganizationRole `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt       time.Time        `json:"joined_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
