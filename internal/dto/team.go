package dto

import (
	"time"

	"github.com/orgstack/membership-api/internal/models"
)

// TeamMemberDTO represents a team membership in API responses
type TeamMemberDTO struct {
	User     UserDTO   `json:"user"`
	JoinedAt time.Time `json:"joined_at"`
}

// TeamDTO represents a team in API responses
type TeamDTO struct {
	ID             uint64          `json:"id"`
	Name           string          `json:"name"`
	OrganizationID uint64          `json:"organization_id"`
	CreatedAt      time.Time       `json:"created_at"`
	Members        []TeamMemberDTO `json:"members,omitempty"`
}

// ToTeamDTO converts a Team model to TeamDTO
func ToTeamDTO(team models.Team) TeamDTO {
	dto := TeamDTO{
		ID:             team.ID,
		Name:           team.Name,
		OrganizationID: team.OrganizationID,
		CreatedAt:      team.CreatedAt,
	}

	if len(team.Members) > 0 {
		dto.Members = make([]TeamMemberDTO, len(team.Members))
		for i, member := range team.Members {
			dto.Members[i] = TeamMemberDTO{
				User:     ToUserDTO(member.User),
				JoinedAt: member.CreatedAt,
			}
		}
	}

	return dto
}

// ToTeamDTOs converts a slice of teams
func ToTeamDTOs(teams []models.Team) []TeamDTO {
	dtos := make([]TeamDTO, len(teams))
	for i, team := range teams {
		dtos[i] = ToTeamDTO(team)
	}
	return dtos
}
