package dto

import (
	"time"

	"github.com/orgstack/membership-api/internal/models"
)

// InvitationDTO represents an invitation in API responses
type InvitationDTO struct {
	ID             uint64                  `json:"id"`
	Token          string                  `json:"token"`
	Email          string                  `json:"email"`
	OrganizationID uint64                  `json:"organization_id"`
	InviterID      uint64                  `json:"inviter_id"`
	Role           models.OrganizationRole `json:"role"`
	Status         models.InvitationStatus `json:"status"`
	ExpiresAt      time.Time               `json:"expires_at"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	Organization   *OrganizationDTO        `json:"organization,omitempty"`
	Inviter        *UserDTO                `json:"inviter,omitempty"`
}

// ToInvitationDTO converts an Invitation model to InvitationDTO
func ToInvitationDTO(invitation models.Invitation) InvitationDTO {
	dto := InvitationDTO{
		ID:             invitation.ID,
		Token:          invitation.Token,
		Email:          invitation.Email,
		OrganizationID: invitation.OrganizationID,
		InviterID:      invitation.InviterID,
		Role:           invitation.Role,
		Status:         invitation.Status,
		ExpiresAt:      invitation.ExpiresAt,
		CreatedAt:      invitation.CreatedAt,
		UpdatedAt:      invitation.UpdatedAt,
	}

	// Include organization if preloaded
	if invitation.Organization.ID != 0 {
		org := ToOrganizationDTO(invitation.Organization)
		dto.Organization = &org
	}

	// Include inviter if preloaded
	if invitation.Inviter.ID != 0 {
		inviter := ToUserDTO(invitation.Inviter)
		dto.Inviter = &inviter
	}

	return dto
}

// ToInvitationDTOs converts a slice of invitations
func ToInvitationDTOs(invitations []models.Invitation) []InvitationDTO {
	dtos := make([]InvitationDTO, len(invitations))
	for i, invitation := range invitations {
		dtos[i] = ToInvitationDTO(invitation)
	}
	return dtos
}

// AcceptInvitationResponse bundles the resolved invitation and the
// resulting membership
type AcceptInvitationResponse struct {
	Invitation InvitationDTO            `json:"invitation"`
	Member     OrganizationMemberRefDTO `json:"member"`
}

// OrganizationMemberRefDTO is a membership reference without user preload
type OrganizationMemberRefDTO struct {
	OrganizationID uint64                  `json:"organization_id"`
	UserID         uint64                  `json:"user_id"`
	Role           models.OrganizationRole `json:"role"`
	JoinedAt       time.Time               `json:"joined_at"`
}

// ToOrganizationMemberRefDTO converts a membership row
func ToOrganizationMemberRefDTO(member models.OrganizationMember) OrganizationMemberRefDTO {
	return OrganizationMemberRefDTO{
		OrganizationID: member.OrganizationID,
		UserID:         member.UserID,
		Role:           member.Role,
		JoinedAt:       member.JoinedAt,
	}
}
