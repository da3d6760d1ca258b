package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/orgstack/membership-api/internal/authz"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"github.com/orgstack/membership-api/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationResolved = errors.New("invitation has already been resolved")
	ErrInvitationExpired  = errors.New("invitation has expired")
	ErrIdentityMismatch   = errors.New("invitation was issued to a different email address")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidInviteEmail = errors.New("invalid invitation email")
	ErrInvalidInviteRole  = errors.New("invalid invitation role")
	ErrCannotInviteBanned = errors.New("cannot act on behalf of a banned account")
	ErrOrgNotFound        = errors.New("organization not found")
)

// InvitationService implements the invitation lifecycle: pending is the
// only non-terminal state, and the only legal transitions are
// pending -> accepted, pending -> rejected, pending -> canceled.
type InvitationService struct {
	invitationRepo repository.InvitationRepository
	orgRepo        repository.OrganizationRepository
	userRepo       repository.UserRepository
	gate           *authz.Gate
	mailer         Mailer
	ttl            time.Duration
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewInvitationService creates a new InvitationService. mailer may be nil
// when no sender is configured.
func NewInvitationService(
	invitationRepo repository.InvitationRepository,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	gate *authz.Gate,
	mailer Mailer,
	ttl time.Duration,
	logger zerolog.Logger,
) *InvitationService {
	return &InvitationService{
		invitationRepo: invitationRepo,
		orgRepo:        orgRepo,
		userRepo:       userRepo,
		gate:           gate,
		mailer:         mailer,
		ttl:            ttl,
		validate:       validator.New(),
		logger:         logger,
	}
}

// CreateInvitationInput represents parameters to invite an email address.
type CreateInvitationInput struct {
	InviterID      uint64
	OrganizationID uint64
	Email          string
	Role           models.OrganizationRole
}

// Create issues a new pending invitation. Any live pending invitation for
// the same (email, organization) pair is canceled in the same transaction
// (supersession), so duplicate accept races cannot arise.
func (s *InvitationService) Create(input CreateInvitationInput) (*models.Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidInviteEmail
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidInviteRole
	}

	org, err := s.orgRepo.FindByID(input.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	decision, err := s.gate.Authorize(input.InviterID, org.ID, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, decision.Reason)
	}

	now := time.Now()
	invitation := &models.Invitation{
		Email:          email,
		OrganizationID: org.ID,
		InviterID:      input.InviterID,
		Role:           input.Role,
		Status:         models.InvitationPending,
		ExpiresAt:      now.Add(s.ttl),
	}

	if err := s.invitationRepo.CreateSuperseding(invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.logger.Info().
		Uint64("invitation_id", invitation.ID).
		Uint64("organization_id", org.ID).
		Uint64("inviter_id", input.InviterID).
		Str("role", string(input.Role)).
		Bool("platform_override", decision.PlatformOverride).
		Msg("invitation created")

	// Fire and forget: the invitation row is the source of truth and the
	// mail can be resent; a delivery failure must not roll it back.
	if s.mailer != nil {
		if err := s.mailer.SendInvitation(email, org.Name, invitation.Token, invitation.ExpiresAt); err != nil {
			s.logger.Error().
				Err(err).
				Uint64("invitation_id", invitation.ID).
				Msg("failed to send invitation mail")
		}
	}

	return invitation, nil
}

// Accept resolves a pending invitation into a membership. The status flip
// and the member upsert commit as one unit; a second accept of the same
// invitation fails with ErrInvitationResolved and writes nothing.
func (s *InvitationService) Accept(invitationID, actingUserID uint64) (*models.Invitation, *models.OrganizationMember, error) {
	invitation, user, err := s.loadForInvitee(invitationID, actingUserID)
	if err != nil {
		return nil, nil, err
	}

	if invitation.Status.Terminal() {
		return nil, nil, ErrInvitationResolved
	}

	now := time.Now()
	if invitation.Expired(now) {
		return nil, nil, ErrInvitationExpired
	}

	err = s.invitationRepo.Accept(invitation.ID, user.ID, invitation.OrganizationID, invitation.Role, now)
	if err != nil {
		if errors.Is(err, repository.ErrInvitationNotPending) {
			// Lost the race against a concurrent resolve
			return nil, nil, ErrInvitationResolved
		}
		return nil, nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	invitation.Status = models.InvitationAccepted
	invitation.UpdatedAt = now

	member, err := s.orgRepo.FindMember(invitation.OrganizationID, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load membership: %w", err)
	}

	s.logger.Info().
		Uint64("invitation_id", invitation.ID).
		Uint64("organization_id", invitation.OrganizationID).
		Uint64("user_id", user.ID).
		Str("role", string(invitation.Role)).
		Msg("invitation accepted")

	return invitation, member, nil
}

// Reject resolves a pending invitation without a membership side effect.
func (s *InvitationService) Reject(invitationID, actingUserID uint64) (*models.Invitation, error) {
	invitation, _, err := s.loadForInvitee(invitationID, actingUserID)
	if err != nil {
		return nil, err
	}

	if invitation.Status.Terminal() {
		return nil, ErrInvitationResolved
	}

	now := time.Now()
	if invitation.Expired(now) {
		return nil, ErrInvitationExpired
	}

	if err := s.invitationRepo.UpdateStatusIfPending(invitation.ID, models.InvitationRejected, now); err != nil {
		if errors.Is(err, repository.ErrInvitationNotPending) {
			return nil, ErrInvitationResolved
		}
		return nil, fmt.Errorf("failed to reject invitation: %w", err)
	}

	invitation.Status = models.InvitationRejected
	invitation.UpdatedAt = now

	s.logger.Info().
		Uint64("invitation_id", invitation.ID).
		Uint64("organization_id", invitation.OrganizationID).
		Msg("invitation rejected")

	return invitation, nil
}

// Cancel withdraws a pending invitation. Unlike accept and reject this is
// role-based: the inviter or any admin/owner of the organization may
// cancel, and the invitee cannot.
func (s *InvitationService) Cancel(invitationID, actingUserID uint64) (*models.Invitation, error) {
	invitation, err := s.invitationRepo.FindByID(invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}

	decision, err := s.gate.Authorize(actingUserID, invitation.OrganizationID, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, decision.Reason)
	}

	if invitation.Status.Terminal() {
		return nil, ErrInvitationResolved
	}

	now := time.Now()
	if err := s.invitationRepo.UpdateStatusIfPending(invitation.ID, models.InvitationCanceled, now); err != nil {
		if errors.Is(err, repository.ErrInvitationNotPending) {
			return nil, ErrInvitationResolved
		}
		return nil, fmt.Errorf("failed to cancel invitation: %w", err)
	}

	invitation.Status = models.InvitationCanceled
	invitation.UpdatedAt = now

	s.logger.Info().
		Uint64("invitation_id", invitation.ID).
		Uint64("organization_id", invitation.OrganizationID).
		Uint64("user_id", actingUserID).
		Bool("platform_override", decision.PlatformOverride).
		Msg("invitation canceled")

	return invitation, nil
}

// ListForUser returns invitations targeting the user's account email,
// across all statuses, newest first.
func (s *InvitationService) ListForUser(userID uint64) ([]models.Invitation, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	invitations, err := s.invitationRepo.ListByEmail(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// ListForOrganization returns a page of an organization's invitations for
// admin views, newest first, along with the total count.
func (s *InvitationService) ListForOrganization(organizationID, callerID uint64, params utils.PaginationParams) ([]models.Invitation, int64, error) {
	decision, err := s.gate.Authorize(callerID, organizationID, models.RoleAdmin)
	if err != nil {
		return nil, 0, fmt.Errorf("authorization check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotAuthorized, decision.Reason)
	}

	invitations, total, err := s.invitationRepo.ListByOrganization(organizationID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, total, nil
}

// loadForInvitee loads the invitation and verifies the acting user's
// account email matches the invitation target. This is identity-based
// authorization: the invitee is not a member yet, so no role applies.
func (s *InvitationService) loadForInvitee(invitationID, actingUserID uint64) (*models.Invitation, *models.User, error) {
	invitation, err := s.invitationRepo.FindByID(invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvitationNotFound
		}
		return nil, nil, fmt.Errorf("failed to find invitation: %w", err)
	}

	user, err := s.userRepo.FindByID(actingUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.Banned {
		return nil, nil, ErrCannotInviteBanned
	}

	if !strings.EqualFold(user.Email, invitation.Email) {
		return nil, nil, ErrIdentityMismatch
	}

	return invitation, user, nil
}
