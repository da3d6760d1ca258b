package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orgstack/membership-api/internal/authz"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTeamNotFound          = errors.New("team not found")
	ErrInvalidTeamName       = errors.New("team name cannot be empty")
	ErrTeamCrossOrganization = errors.New("user is not a member of the team's organization")
	ErrTeamMemberNotFound    = errors.New("team member not found")
)

// TeamService provides business logic for teams within an organization.
type TeamService struct {
	teamRepo repository.TeamRepository
	orgRepo  repository.OrganizationRepository
	gate     *authz.Gate
}

// NewTeamService creates a new TeamService.
func NewTeamService(teamRepo repository.TeamRepository, orgRepo repository.OrganizationRepository, gate *authz.Gate) *TeamService {
	return &TeamService{
		teamRepo: teamRepo,
		orgRepo:  orgRepo,
		gate:     gate,
	}
}

// CreateTeam creates a team in an organization. Requires at least admin.
func (s *TeamService) CreateTeam(orgID, actorID uint64, name string) (*models.Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidTeamName
	}

	if _, err := s.orgRepo.FindByID(orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	if err := s.requireRole(actorID, orgID, models.RoleAdmin); err != nil {
		return nil, err
	}

	team := &models.Team{
		Name:           name,
		OrganizationID: orgID,
	}

	if err := s.teamRepo.Create(team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	return team, nil
}

// ListTeams lists an organization's teams. Any member may list.
func (s *TeamService) ListTeams(orgID, actorID uint64) ([]models.Team, error) {
	if err := s.requireRole(actorID, orgID, models.RoleMember); err != nil {
		return nil, err
	}

	teams, err := s.teamRepo.ListByOrganization(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// RenameTeam updates a team's name. Requires at least admin.
func (s *TeamService) RenameTeam(teamID, actorID uint64, name string) (*models.Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidTeamName
	}

	team, err := s.loadTeam(teamID)
	if err != nil {
		return nil, err
	}

	if err := s.requireRole(actorID, team.OrganizationID, models.RoleAdmin); err != nil {
		return nil, err
	}

	team.Name = name
	if err := s.teamRepo.Update(team); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	return team, nil
}

// DeleteTeam deletes a team and its memberships. Requires at least admin.
func (s *TeamService) DeleteTeam(teamID, actorID uint64) error {
	team, err := s.loadTeam(teamID)
	if err != nil {
		return err
	}

	if err := s.requireRole(actorID, team.OrganizationID, models.RoleAdmin); err != nil {
		return err
	}

	if err := s.teamRepo.Delete(team.ID); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	return nil
}

// AddMember links an organization member to a team. Cross-organization
// attempts surface as ErrTeamCrossOrganization.
func (s *TeamService) AddMember(teamID, actorID, userID uint64) error {
	team, err := s.loadTeam(teamID)
	if err != nil {
		return err
	}

	if err := s.requireRole(actorID, team.OrganizationID, models.RoleAdmin); err != nil {
		return err
	}

	if err := s.teamRepo.AddMember(team.ID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotInOrganization) {
			return ErrTeamCrossOrganization
		}
		return fmt.Errorf("failed to add team member: %w", err)
	}

	return nil
}

// RemoveMember unlinks a member from a team. Requires at least admin.
func (s *TeamService) RemoveMember(teamID, actorID, userID uint64) error {
	team, err := s.loadTeam(teamID)
	if err != nil {
		return err
	}

	if err := s.requireRole(actorID, team.OrganizationID, models.RoleAdmin); err != nil {
		return err
	}

	if _, err := s.teamRepo.FindMember(team.ID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTeamMemberNotFound
		}
		return fmt.Errorf("failed to find team member: %w", err)
	}

	if err := s.teamRepo.RemoveMember(team.ID, userID); err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	return nil
}

func (s *TeamService) loadTeam(teamID uint64) (*models.Team, error) {
	team, err := s.teamRepo.FindByID(teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}

func (s *TeamService) requireRole(actorID, orgID uint64, required models.OrganizationRole) error {
	decision, err := s.gate.Authorize(actorID, orgID, required)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, decision.Reason)
	}
	return nil
}
