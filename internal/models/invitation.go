package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvitationStatus tracks the lifecycle of an invitation. The only legal
// transitions are pending -> accepted, pending -> rejected and
// pending -> canceled; the three non-pending states are terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationCanceled InvitationStatus = "canceled"
)

// Terminal reports whether the status admits no further transitions.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationRejected || s == InvitationCanceled
}

type Invitation struct {
	ID             uint64           `gorm:"primarykey" json:"id"`
	Token          string           `gorm:"type:varchar(36);uniqueIndex;not null" json:"token"`
	Email          string           `gorm:"type:varchar(255);not null;index:idx_invitations_email_org" json:"email"`
	OrganizationID uint64           `gorm:"not null;index:idx_invitations_email_org" json:"organization_id"`
	InviterID      uint64           `gorm:"not null" json:"inviter_id"`
	Role           OrganizationRole `gorm:"type:varchar(20);not null" json:"role"`
	Status         InvitationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ExpiresAt      time.Time        `gorm:"not null" json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"-"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Inviter      User         `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.Token == "" {
		i.Token = uuid.NewString()
	}
	return nil
}

// Expired reports whether the invitation is past its deadline at now.
// Expiry is evaluated lazily at transition time; the stored status may
// still read pending.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
