package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orgstack/membership-api/internal/authz"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"github.com/orgstack/membership-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound       = errors.New("organization not found")
	ErrInvalidOrganizationName    = errors.New("organization name cannot be empty")
	ErrInvalidOrganizationSlug    = errors.New("organization slug is invalid")
	ErrSlugGenerationFailed       = errors.New("failed to generate organization slug")
	ErrCannotRemoveYourself       = errors.New("cannot remove yourself from the organization")
	ErrOrganizationMemberNotFound = errors.New("organization member not found")
	ErrInvalidMemberRole          = errors.New("unrecognized member role")
	ErrOwnerRoleProtected         = errors.New("only an owner can grant or revoke the owner role")
)

// OrganizationService provides business logic for organization operations.
type OrganizationService struct {
	orgRepo repository.OrganizationRepository
	gate    *authz.Gate
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo repository.OrganizationRepository, gate *authz.Gate) *OrganizationService {
	return &OrganizationService{
		orgRepo: orgRepo,
		gate:    gate,
	}
}

// CreateOrganizationInput represents parameters to create a new organization.
type CreateOrganizationInput struct {
	Name     string
	Slug     string
	LogoURL  string
	Metadata map[string]string
	OwnerID  uint64
}

// CreateOrganization creates a new organization and assigns the owner.
func (s *OrganizationService) CreateOrganization(input CreateOrganizationInput) (*models.Organization, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidOrganizationName
	}

	slug, err := s.resolveSlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	org := &models.Organization{
		Name:     input.Name,
		Slug:     slug,
		LogoURL:  input.LogoURL,
		Metadata: input.Metadata,
	}

	if err := s.orgRepo.Create(org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	member := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         input.OwnerID,
		Role:           models.RoleOwner,
		JoinedAt:       time.Now(),
	}

	if err := s.orgRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add owner to organization: %w", err)
	}

	return org, nil
}

func (s *OrganizationService) resolveSlug(requested, name string) (string, error) {
	slug := strings.TrimSpace(requested)
	if slug == "" {
		slug = utils.Slugify(name)
	}
	if !utils.ValidSlug(slug) {
		return "", ErrInvalidOrganizationSlug
	}

	// Disambiguate a taken slug with a random suffix
	if _, err := s.orgRepo.FindBySlug(slug); err == nil {
		suffix, serr := utils.RandomSlugSuffix()
		if serr != nil {
			return "", ErrSlugGenerationFailed
		}
		slug = slug + "-" + suffix
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to check slug: %w", err)
	}

	return slug, nil
}

// ListOrganizationsForUser returns organizations the user belongs to.
func (s *OrganizationService) ListOrganizationsForUser(userID uint64) ([]models.OrganizationMember, error) {
	memberships, err := s.orgRepo.ListMembersByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return memberships, nil
}

// GetOrganizationWithMembers returns an organization and all of its members.
func (s *OrganizationService) GetOrganizationWithMembers(orgID uint64) (*models.Organization, []models.OrganizationMember, error) {
	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrganizationNotFound
		}
		return nil, nil, fmt.Errorf("failed to find organization: %w", err)
	}

	members, err := s.orgRepo.ListMembers(orgID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list organization members: %w", err)
	}

	return org, members, nil
}

// UpdateOrganizationInput holds mutable organization fields. The slug is
// fixed at creation.
type UpdateOrganizationInput struct {
	Name     string
	LogoURL  *string
	Metadata map[string]string
}

// UpdateOrganization updates an organization's mutable fields.
func (s *OrganizationService) UpdateOrganization(orgID uint64, input UpdateOrganizationInput) (*models.Organization, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidOrganizationName
	}

	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	org.Name = input.Name
	if input.LogoURL != nil {
		org.LogoURL = *input.LogoURL
	}
	if input.Metadata != nil {
		org.Metadata = input.Metadata
	}

	if err := s.orgRepo.Update(org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// DeleteOrganization removes an organization and everything it owns.
func (s *OrganizationService) DeleteOrganization(orgID uint64) error {
	if _, err := s.orgRepo.FindByID(orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to find organization: %w", err)
	}

	if err := s.orgRepo.Delete(orgID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	return nil
}

// UpdateMemberRole changes a member's role. Requires the actor to hold at
// least admin; touching the owner role in either direction requires owner.
func (s *OrganizationService) UpdateMemberRole(orgID, actorID, targetID uint64, role models.OrganizationRole) (*models.OrganizationMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidMemberRole
	}

	decision, err := s.gate.Authorize(actorID, orgID, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, decision.Reason)
	}

	target, err := s.orgRepo.FindMember(orgID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationMemberNotFound
		}
		return nil, fmt.Errorf("failed to find organization member: %w", err)
	}

	ownerInvolved := target.Role == models.RoleOwner || role == models.RoleOwner
	actorIsOwner := decision.PlatformOverride || decision.Role == models.RoleOwner
	if ownerInvolved && !actorIsOwner {
		return nil, ErrOwnerRoleProtected
	}

	if err := s.orgRepo.UpdateMemberRole(orgID, targetID, role); err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	target.Role = role
	return target, nil
}

// RemoveMember removes a member from the organization.
func (s *OrganizationService) RemoveMember(orgID, actorID, targetID uint64) error {
	if targetID == actorID {
		return ErrCannotRemoveYourself
	}

	decision, err := s.gate.Authorize(actorID, orgID, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, decision.Reason)
	}

	target, err := s.orgRepo.FindMember(orgID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrganizationMemberNotFound
		}
		return fmt.Errorf("failed to find organization member: %w", err)
	}

	actorIsOwner := decision.PlatformOverride || decision.Role == models.RoleOwner
	if target.Role == models.RoleOwner && !actorIsOwner {
		return ErrOwnerRoleProtected
	}

	if err := s.orgRepo.RemoveMember(orgID, targetID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}
