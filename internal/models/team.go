package models

import (
	"time"

	"gorm.io/gorm"
)

type Team struct {
	ID             uint64         `gorm:"primarykey" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	OrganizationID uint64         `gorm:"not null;index" json:"organization_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Members      []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}
