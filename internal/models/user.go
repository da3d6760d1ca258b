package models

import (
	"time"

	"gorm.io/gorm"
)

// PlatformRole is a user-level flag, distinct from per-organization roles.
// Platform admins bypass organization role checks for operational support.
type PlatformRole string

const (
	PlatformRoleNone  PlatformRole = ""
	PlatformRoleAdmin PlatformRole = "admin"
)

type User struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Username     string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	PlatformRole PlatformRole   `gorm:"type:varchar(20);not null;default:''" json:"platform_role"`
	Banned       bool           `gorm:"not null;default:false" json:"banned"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Memberships []OrganizationMember `gorm:"foreignKey:UserID" json:"-"`
}

// IsPlatformAdmin reports whether the user holds the platform-wide override flag.
func (u *User) IsPlatformAdmin() bool {
	return u.PlatformRole == PlatformRoleAdmin
}
