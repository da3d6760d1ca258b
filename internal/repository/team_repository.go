package repository

import (
	"errors"
	"fmt"

	"github.com/orgstack/membership-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMemberNotInOrganization is returned when a team membership would
	// link a user who is not a member of the team's organization.
	ErrMemberNotInOrganization = errors.New("team repository: user is not a member of the team's organization")
)

// GormTeamRepository is a GORM implementation of TeamRepository
type GormTeamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a new TeamRepository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &GormTeamRepository{db: db}
}

// Create creates a new team
func (r *GormTeamRepository) Create(team *models.Team) error {
	return r.db.Create(team).Error
}

// FindByID finds a team by ID
func (r *GormTeamRepository) FindByID(id uint64) (*models.Team, error) {
	var team models.Team
	if err := r.db.First(&team, id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// Update updates a team
func (r *GormTeamRepository) Update(team *models.Team) error {
	return r.db.Save(team).Error
}

// Delete deletes a team and its memberships
func (r *GormTeamRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Team{}, id).Error
	})
}

// ListByOrganization lists all teams of an organization with their members
func (r *GormTeamRepository) ListByOrganization(organizationID uint64) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.Preload("Members").Preload("Members.User").
		Where("organization_id = ?", organizationID).
		Order("created_at ASC").
		Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// AddMember links a member to a team after verifying the same-organization
// invariant inside the insert transaction.
func (r *GormTeamRepository) AddMember(teamID, userID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			return err
		}

		var count int64
		err := tx.Model(&models.OrganizationMember{}).
			Where("organization_id = ? AND user_id = ?", team.OrganizationID, userID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to verify organization membership: %w", err)
		}
		if count == 0 {
			return ErrMemberNotInOrganization
		}

		member := models.TeamMember{
			TeamID: teamID,
			UserID: userID,
		}

		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"deleted_at": gorm.Expr("NULL")}),
			}).
			Create(&member).Error
	})
}

// RemoveMember unlinks a member from a team
func (r *GormTeamRepository) RemoveMember(teamID, userID uint64) error {
	return r.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{}).Error
}

// FindMember finds a specific team membership
func (r *GormTeamRepository) FindMember(teamID, userID uint64) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}
