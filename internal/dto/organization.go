package dto

import (
	"time"

	"github.com/orgstack/membership-api/internal/models"
)

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID       uint64            `json:"id"`
	Name     string            `json:"name"`
	Slug     string            `json:"slug"`
	LogoURL  string            `json:"logo_url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OrganizationWithRoleDTO represents an organization with the user's role
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role models.OrganizationRole `json:"role"`
}

// OrganizationMemberDTO represents a member in an organization
type OrganizationMemberDTO struct {
	User     UserDTO                 `json:"user"`
	Role     models.OrganizationRole `json:"role"`
	JoinedAt time.Time               `json:"joined_at"`
}

// OrganizationDetailDTO represents detailed organization information
type OrganizationDetailDTO struct {
	OrganizationDTO
	Members  []OrganizationMemberDTO `json:"members"`
	YourRole models.OrganizationRole `json:"your_role"`
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:       org.ID,
		Name:     org.Name,
		Slug:     org.Slug,
		LogoURL:  org.LogoURL,
		Metadata: org.Metadata,
	}
}

// ToOrganizationWithRoleDTO converts an organization member to DTO with role
func ToOrganizationWithRoleDTO(member models.OrganizationMember) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(member.Organization),
		Role:            member.Role,
	}
}

// ToOrganizationMemberDTO converts a member to DTO
func ToOrganizationMemberDTO(member models.OrganizationMember) OrganizationMemberDTO {
	return OrganizationMemberDTO{
		User:     ToUserDTO(member.User),
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// ToOrganizationDetailDTO converts organization with members to detailed DTO
func ToOrganizationDetailDTO(org models.Organization, members []models.OrganizationMember, yourRole models.OrganizationRole) OrganizationDetailDTO {
	memberDTOs := make([]OrganizationMemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = ToOrganizationMemberDTO(member)
	}

	return OrganizationDetailDTO{
		OrganizationDTO: ToOrganizationDTO(org),
		Members:         memberDTOs,
		YourRole:        yourRole,
	}
}
