package repository

import (
	"time"

	"github.com/orgstack/membership-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// Create creates a new organization
func (r *GormOrganizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(id uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindBySlug finds an organization by slug
func (r *GormOrganizationRepository) FindBySlug(slug string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Where("slug = ?", slug).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an organization
func (r *GormOrganizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

// Delete deletes an organization and all records it owns in a transaction.
// The organization is the aggregate root: members, invitations, teams and
// team memberships cannot outlive it.
func (r *GormOrganizationRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var teamIDs []uint64
		if err := tx.Model(&models.Team{}).
			Where("organization_id = ?", id).
			Pluck("id", &teamIDs).Error; err != nil {
			return err
		}

		if len(teamIDs) > 0 {
			if err := tx.Where("team_id IN ?", teamIDs).Delete(&models.TeamMember{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("organization_id = ?", id).Delete(&models.Team{}).Error; err != nil {
			return err
		}

		if err := tx.Where("organization_id = ?", id).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}

		if err := tx.Where("organization_id = ?", id).Delete(&models.OrganizationMember{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Organization{}, id).Error
	})
}

// AddMember adds a member to an organization
func (r *GormOrganizationRepository) AddMember(member *models.OrganizationMember) error {
	return r.db.Create(member).Error
}

// UpsertMember inserts a membership or updates the role of an existing one.
// The composite primary key keeps the (user, organization) pair unique.
func (r *GormOrganizationRepository) UpsertMember(organizationID, userID uint64, role models.OrganizationRole) error {
	member := models.OrganizationMember{
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       time.Now(),
	}
	return r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"role": role}),
		}).
		Create(&member).Error
}

// UpdateMemberRole changes an existing member's role
func (r *GormOrganizationRepository) UpdateMemberRole(organizationID, userID uint64, role models.OrganizationRole) error {
	return r.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Update("role", role).Error
}

// RemoveMember removes a member from an organization
func (r *GormOrganizationRepository) RemoveMember(organizationID, userID uint64) error {
	return r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Delete(&models.OrganizationMember{}).Error
}

// FindMember finds a specific organization member
func (r *GormOrganizationRepository) FindMember(organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembersByUserID lists all organizations a user is a member of
func (r *GormOrganizationRepository) ListMembersByUserID(userID uint64) ([]models.OrganizationMember, error) {
	var memberships []models.OrganizationMember
	if err := r.db.Preload("Organization").
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListMembers lists all members of an organization
func (r *GormOrganizationRepository) ListMembers(organizationID uint64) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	if err := r.db.Preload("User").
		Where("organization_id = ?", organizationID).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
