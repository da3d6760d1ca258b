package repository

import (
	"time"

	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/utils"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// CreateWithPersonalOrganization creates a user, their personal organization,
	// and the owner membership within a single transaction.
	CreateWithPersonalOrganization(user *models.User, org *models.Organization, member *models.OrganizationMember) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// FindByEmail finds a user by email (case-insensitive)
	FindByEmail(email string) (*models.User, error)
}

// OrganizationRepository defines the interface for organization and
// membership data access
type OrganizationRepository interface {
	// Create creates a new organization
	Create(org *models.Organization) error

	// FindByID finds an organization by ID
	FindByID(id uint64) (*models.Organization, error)

	// FindBySlug finds an organization by its unique slug
	FindBySlug(slug string) (*models.Organization, error)

	// Update updates an organization
	Update(org *models.Organization) error

	// Delete deletes an organization and everything it owns
	// (team members, teams, invitations, members) in one transaction
	Delete(id uint64) error

	// AddMember adds a member to an organization
	AddMember(member *models.OrganizationMember) error

	// UpsertMember inserts a membership or, if one already exists for the
	// (user, organization) pair, updates its role in place
	UpsertMember(organizationID, userID uint64, role models.OrganizationRole) error

	// UpdateMemberRole changes an existing member's role
	UpdateMemberRole(organizationID, userID uint64, role models.OrganizationRole) error

	// RemoveMember removes a member from an organization
	RemoveMember(organizationID, userID uint64) error

	// FindMember finds a specific organization member
	FindMember(organizationID, userID uint64) (*models.OrganizationMember, error)

	// ListMembersByUserID lists all organizations a user is a member of
	ListMembersByUserID(userID uint64) ([]models.OrganizationMember, error)

	// ListMembers lists all members of an organization
	ListMembers(organizationID uint64) ([]models.OrganizationMember, error)
}

// InvitationRepository defines the interface for invitation data access.
// The conditional-status operations are the store-level race guard: a
// status flip only succeeds if the row still reads pending at update time.
type InvitationRepository interface {
	// FindByID finds an invitation by ID
	FindByID(id uint64) (*models.Invitation, error)

	// FindPending returns the live pending invitation for the
	// (email, organization) pair, if any. Expired rows are excluded.
	FindPending(email string, organizationID uint64, now time.Time) (*models.Invitation, error)

	// CreateSuperseding cancels any live pending invitation for the same
	// (email, organization) pair and inserts the new one, atomically.
	CreateSuperseding(invitation *models.Invitation) error

	// Accept flips the invitation to accepted and upserts the membership
	// in one transaction. Returns ErrInvitationNotPending if the status
	// was no longer pending at update time.
	Accept(invitationID, userID, organizationID uint64, role models.OrganizationRole, now time.Time) error

	// UpdateStatusIfPending flips the invitation to status only if it is
	// still pending. Returns ErrInvitationNotPending otherwise.
	UpdateStatusIfPending(invitationID uint64, status models.InvitationStatus, now time.Time) error

	// ListByEmail lists invitations targeting an email, newest first
	ListByEmail(email string) ([]models.Invitation, error)

	// ListByOrganization lists a page of an organization's invitations,
	// newest first, along with the total count
	ListByOrganization(organizationID uint64, params utils.PaginationParams) ([]models.Invitation, int64, error)
}

// TeamRepository defines the interface for team data access
type TeamRepository interface {
	// Create creates a new team
	Create(team *models.Team) error

	// FindByID finds a team by ID
	FindByID(id uint64) (*models.Team, error)

	// Update updates a team
	Update(team *models.Team) error

	// Delete deletes a team and its memberships in one transaction
	Delete(id uint64) error

	// ListByOrganization lists all teams of an organization with members
	ListByOrganization(organizationID uint64) ([]models.Team, error)

	// AddMember links an organization member to a team after verifying
	// the member belongs to the team's organization. Returns
	// ErrMemberNotInOrganization on a cross-organization attempt.
	AddMember(teamID, userID uint64) error

	// RemoveMember unlinks a member from a team
	RemoveMember(teamID, userID uint64) error

	// FindMember finds a specific team membership
	FindMember(teamID, userID uint64) (*models.TeamMember, error)
}
