package services

import (
	"errors"
	"testing"
	"time"

	"github.com/orgstack/membership-api/internal/authz"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"github.com/orgstack/membership-api/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// recordingMailer captures sent invitations; fail makes every send error
// to verify delivery failures never roll back the invitation.
type recordingMailer struct {
	sent []string
	fail bool
}

func (m *recordingMailer) SendInvitation(email, organizationName, token string, expiresAt time.Time) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, email)
	return nil
}

type invitationTestEnv struct {
	db      *gorm.DB
	service *InvitationService
	orgRepo repository.OrganizationRepository
	mailer  *recordingMailer
}

func setupInvitationTestEnv(t *testing.T) invitationTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Invitation{},
	)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	gate := authz.NewGate(userRepo, orgRepo, zerolog.Nop())
	mailer := &recordingMailer{}

	service := NewInvitationService(invitationRepo, orgRepo, userRepo, gate, mailer, 48*time.Hour, zerolog.Nop())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return invitationTestEnv{
		db:      db,
		service: service,
		orgRepo: orgRepo,
		mailer:  mailer,
	}
}

func createInvitationUser(t *testing.T, db *gorm.DB, username, email string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createInvitationOrg(t *testing.T, db *gorm.DB, slug string, owner *models.User) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: slug, Slug: slug}
	require.NoError(t, db.Create(org).Error)

	member := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         owner.ID,
		Role:           models.RoleOwner,
		JoinedAt:       time.Now(),
	}
	require.NoError(t, db.Create(member).Error)
	return org
}

func (env invitationTestEnv) expire(t *testing.T, invitation *models.Invitation) {
	t.Helper()
	err := env.db.Model(&models.Invitation{}).
		Where("id = ?", invitation.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error
	require.NoError(t, err)
}

func TestInvitationService_Create(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "Bob@X.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, invitation.Status)
	require.Equal(t, "bob@x.com", invitation.Email)
	require.NotEmpty(t, invitation.Token)
	require.WithinDuration(t, time.Now().Add(48*time.Hour), invitation.ExpiresAt, time.Minute)
	require.Equal(t, []string{"bob@x.com"}, env.mailer.sent)
}

func TestInvitationService_Create_Supersedes(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	first, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	second, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleAdmin,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// The first invitation was canceled; only one pending row remains
	var reloaded models.Invitation
	require.NoError(t, env.db.First(&reloaded, first.ID).Error)
	require.Equal(t, models.InvitationCanceled, reloaded.Status)

	var pending int64
	err = env.db.Model(&models.Invitation{}).
		Where("email = ? AND organization_id = ? AND status = ?", "bob@x.com", org.ID, models.InvitationPending).
		Count(&pending).Error
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)
}

func TestInvitationService_Create_Validation(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	_, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "not-an-email",
		Role:           models.RoleMember,
	})
	require.ErrorIs(t, err, ErrInvalidInviteEmail)

	_, err = env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.OrganizationRole("superuser"),
	})
	require.ErrorIs(t, err, ErrInvalidInviteRole)

	_, err = env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: 9999,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.ErrorIs(t, err, ErrOrgNotFound)
}

func TestInvitationService_Create_RequiresAdmin(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	plain := createInvitationUser(t, env.db, "plain", "plain@example.com")
	member := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         plain.ID,
		Role:           models.RoleMember,
		JoinedAt:       time.Now(),
	}
	require.NoError(t, env.db.Create(member).Error)

	_, err := env.service.Create(CreateInvitationInput{
		InviterID:      plain.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestInvitationService_Create_PlatformAdminBypass(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	operator := createInvitationUser(t, env.db, "operator", "operator@example.com")
	require.NoError(t, env.db.Model(operator).Update("platform_role", models.PlatformRoleAdmin).Error)

	_, err := env.service.Create(CreateInvitationInput{
		InviterID:      operator.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)
}

func TestInvitationService_Create_MailFailureDoesNotRollBack(t *testing.T) {
	env := setupInvitationTestEnv(t)
	env.mailer.fail = true

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	var reloaded models.Invitation
	require.NoError(t, env.db.First(&reloaded, invitation.ID).Error)
	require.Equal(t, models.InvitationPending, reloaded.Status)
}

func TestInvitationService_Accept(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)
	bob := createInvitationUser(t, env.db, "bob", "bob@x.com")

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	accepted, member, err := env.service.Accept(invitation.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationAccepted, accepted.Status)
	require.Equal(t, models.RoleMember, member.Role)
	require.Equal(t, org.ID, member.OrganizationID)

	// Second accept fails and produces no extra membership
	_, _, err = env.service.Accept(invitation.ID, bob.ID)
	require.ErrorIs(t, err, ErrInvitationResolved)

	var count int64
	err = env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", org.ID, bob.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestInvitationService_Accept_IdentityMismatch(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)
	carol := createInvitationUser(t, env.db, "carol", "carol@example.com")

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	_, _, err = env.service.Accept(invitation.ID, carol.ID)
	require.ErrorIs(t, err, ErrIdentityMismatch)

	// Nothing changed
	var reloaded models.Invitation
	require.NoError(t, env.db.First(&reloaded, invitation.ID).Error)
	require.Equal(t, models.InvitationPending, reloaded.Status)

	var count int64
	err = env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", org.ID, carol.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestInvitationService_Accept_Expired(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)
	bob := createInvitationUser(t, env.db, "bob", "bob@x.com")

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)
	env.expire(t, invitation)

	_, _, err = env.service.Accept(invitation.ID, bob.ID)
	require.ErrorIs(t, err, ErrInvitationExpired)

	// Status stays pending and no member was created
	var reloaded models.Invitation
	require.NoError(t, env.db.First(&reloaded, invitation.ID).Error)
	require.Equal(t, models.InvitationPending, reloaded.Status)

	var count int64
	err = env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", org.ID, bob.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestInvitationService_Accept_ReinviteUpdatesRole(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)
	bob := createInvitationUser(t, env.db, "bob", "bob@x.com")

	first, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	_, _, err = env.service.Accept(first.ID, bob.ID)
	require.NoError(t, err)

	// Re-invite at a higher role; accept upgrades the existing row
	second, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleAdmin,
	})
	require.NoError(t, err)

	_, member, err := env.service.Accept(second.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, member.Role)

	var count int64
	err = env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", org.ID, bob.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestInvitationService_Reject(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)
	bob := createInvitationUser(t, env.db, "bob", "bob@x.com")

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	rejected, err := env.service.Reject(invitation.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationRejected, rejected.Status)

	// No membership side effect
	var count int64
	err = env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", org.ID, bob.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	// Rejecting again fails, as does accepting afterwards
	_, err = env.service.Reject(invitation.ID, bob.ID)
	require.ErrorIs(t, err, ErrInvitationResolved)
	_, _, err = env.service.Accept(invitation.ID, bob.ID)
	require.ErrorIs(t, err, ErrInvitationResolved)
}

func TestInvitationService_Cancel(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	plain := createInvitationUser(t, env.db, "plain", "plain@example.com")
	member := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         plain.ID,
		Role:           models.RoleMember,
		JoinedAt:       time.Now(),
	}
	require.NoError(t, env.db.Create(member).Error)

	invitation, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	// A plain member cannot cancel; the invitation stays pending
	_, err = env.service.Cancel(invitation.ID, plain.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)

	var reloaded models.Invitation
	require.NoError(t, env.db.First(&reloaded, invitation.ID).Error)
	require.Equal(t, models.InvitationPending, reloaded.Status)

	// The owner can
	canceled, err := env.service.Cancel(invitation.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationCanceled, canceled.Status)

	_, err = env.service.Cancel(invitation.ID, owner.ID)
	require.ErrorIs(t, err, ErrInvitationResolved)
}

func TestInvitationService_Listing(t *testing.T) {
	env := setupInvitationTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)
	other := createInvitationOrg(t, env.db, "globex", owner)
	bob := createInvitationUser(t, env.db, "bob", "bob@x.com")

	first, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: org.ID,
		Email:          "bob@x.com",
		Role:           models.RoleMember,
	})
	require.NoError(t, err)

	// Force distinct creation times so the DESC ordering is observable
	require.NoError(t, env.db.Model(&models.Invitation{}).
		Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	second, err := env.service.Create(CreateInvitationInput{
		InviterID:      owner.ID,
		OrganizationID: other.ID,
		Email:          "bob@x.com",
		Role:           models.RoleAdmin,
	})
	require.NoError(t, err)

	mine, err := env.service.ListForUser(bob.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, second.ID, mine[0].ID)
	require.Equal(t, first.ID, mine[1].ID)

	page := utils.PaginationParams{Page: 1, Limit: 20, Offset: 0}
	orgView, total, err := env.service.ListForOrganization(org.ID, owner.ID, page)
	require.NoError(t, err)
	require.Len(t, orgView, 1)
	require.EqualValues(t, 1, total)

	// The invitee is not an admin of the organization
	_, _, err = env.service.ListForOrganization(org.ID, bob.ID, page)
	require.ErrorIs(t, err, ErrNotAuthorized)
}
