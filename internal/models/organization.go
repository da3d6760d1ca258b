package models

import (
	"time"

	"gorm.io/gorm"
)

type Organization struct {
	ID        uint64            `gorm:"primarykey" json:"id"`
	Name      string            `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	LogoURL   string            `gorm:"type:varchar(512)" json:"logo_url,omitempty"`
	Metadata  map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	DeletedAt gorm.DeletedAt    `gorm:"index" json:"-"`

	// Relations
	Members     []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
	Teams       []Team               `gorm:"foreignKey:OrganizationID" json:"teams,omitempty"`
	Invitations []Invitation         `gorm:"foreignKey:OrganizationID" json:"invitations,omitempty"`
}
