package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/orgstack/membership-api/internal/database"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvitationNotPending is returned when a conditional status update
	// finds the invitation no longer pending. This is how a lost
	// accept/accept race surfaces: the status flip is a compare-and-set,
	// never a read followed by a blind write.
	ErrInvitationNotPending = errors.New("invitation repository: invitation is not pending")
)

// GormInvitationRepository is a GORM implementation of InvitationRepository
type GormInvitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository creates a new InvitationRepository
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &GormInvitationRepository{db: db}
}

// FindByID finds an invitation by ID
func (r *GormInvitationRepository) FindByID(id uint64) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.Preload("Organization").First(&invitation, id).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindPending returns the live pending invitation for (email, organization)
func (r *GormInvitationRepository) FindPending(email string, organizationID uint64, now time.Time) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.
		Where("email = ? AND organization_id = ? AND status = ? AND expires_at > ?",
			strings.ToLower(email), organizationID, models.InvitationPending, now).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// CreateSuperseding cancels any pending invitation for the same
// (email, organization) pair and inserts the new one in one transaction,
// so two live pending invitations never coexist.
func (r *GormInvitationRepository) CreateSuperseding(invitation *models.Invitation) error {
	invitation.Email = strings.ToLower(invitation.Email)

	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Invitation{}).
			Where("email = ? AND organization_id = ? AND status = ?",
				invitation.Email, invitation.OrganizationID, models.InvitationPending).
			Updates(map[string]interface{}{
				"status":     models.InvitationCanceled,
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return err
		}

		return tx.Create(invitation).Error
	})
}

// Accept flips the invitation to accepted and upserts the membership as a
// single atomic unit. Under concurrent accepts exactly one caller wins the
// conditional update; the loser gets ErrInvitationNotPending and no member
// write happens.
func (r *GormInvitationRepository) Accept(invitationID, userID, organizationID uint64, role models.OrganizationRole, now time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationPending).
			Updates(map[string]interface{}{
				"status":     models.InvitationAccepted,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInvitationNotPending
		}

		member := models.OrganizationMember{
			OrganizationID: organizationID,
			UserID:         userID,
			Role:           role,
			JoinedAt:       now,
		}

		// Re-invites of an existing member update the role in place
		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"role": role}),
			}).
			Create(&member).Error
	})
}

// UpdateStatusIfPending flips the status only if the row still reads pending
func (r *GormInvitationRepository) UpdateStatusIfPending(invitationID uint64, status models.InvitationStatus, now time.Time) error {
	result := r.db.Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitationID, models.InvitationPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvitationNotPending
	}
	return nil
}

// ListByEmail lists invitations targeting an email, newest first
func (r *GormInvitationRepository) ListByEmail(email string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.Preload("Organization").
		Where("email = ?", strings.ToLower(email)).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// ListByOrganization lists a page of an organization's invitations,
// newest first, along with the total count
func (r *GormInvitationRepository) ListByOrganization(organizationID uint64, params utils.PaginationParams) ([]models.Invitation, int64, error) {
	var total int64
	err := r.db.Model(&models.Invitation{}).
		Where("organization_id = ?", organizationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var invitations []models.Invitation
	err = r.db.Preload("Inviter").
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Scopes(database.Paginate(params)).
		Find(&invitations).Error
	if err != nil {
		return nil, 0, err
	}
	return invitations, total, nil
}
