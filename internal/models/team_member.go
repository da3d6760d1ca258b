package models

import (
	"time"

	"gorm.io/gorm"
)

// TeamMember links an organization member to a team. The referenced member
// must belong to the same organization as the team; the repository enforces
// this before insert.
type TeamMember struct {
	TeamID    uint64         `gorm:"primarykey" json:"team_id"`
	UserID    uint64         `gorm:"primarykey" json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Team Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
