package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupInvitationRepo(t *testing.T) (*gorm.DB, InvitationRepository) {
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

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db, NewInvitationRepository(db)
}

func seedInvitation(t *testing.T, db *gorm.DB, email string, orgID uint64, status models.InvitationStatus) *models.Invitation {
	t.Helper()
	invitation := &models.Invitation{
		Email:          email,
		OrganizationID: orgID,
		InviterID:      1,
		Role:           models.RoleMember,
		Status:         status,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(invitation).Error)
	return invitation
}

func TestInvitationRepository_Accept_Atomic(t *testing.T) {
	db, repo := setupInvitationRepo(t)

	org := &models.Organization{Name: "acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	invitation := seedInvitation(t, db, "bob@x.com", org.ID, models.InvitationPending)

	now := time.Now()
	require.NoError(t, repo.Accept(invitation.ID, 42, org.ID, models.RoleMember, now))

	var reloaded models.Invitation
	require.NoError(t, db.First(&reloaded, invitation.ID).Error)
	require.Equal(t, models.InvitationAccepted, reloaded.Status)

	var member models.OrganizationMember
	require.NoError(t, db.Where("organization_id = ? AND user_id = ?", org.ID, 42).First(&member).Error)
	require.Equal(t, models.RoleMember, member.Role)

	// The losing side of an accept race sees the status already flipped
	// and must not touch the membership again
	err := repo.Accept(invitation.ID, 42, org.ID, models.RoleOwner, now)
	require.ErrorIs(t, err, ErrInvitationNotPending)

	require.NoError(t, db.Where("organization_id = ? AND user_id = ?", org.ID, 42).First(&member).Error)
	require.Equal(t, models.RoleMember, member.Role)
}

func TestInvitationRepository_UpdateStatusIfPending(t *testing.T) {
	db, repo := setupInvitationRepo(t)

	org := &models.Organization{Name: "acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	invitation := seedInvitation(t, db, "bob@x.com", org.ID, models.InvitationPending)

	require.NoError(t, repo.UpdateStatusIfPending(invitation.ID, models.InvitationRejected, time.Now()))

	err := repo.UpdateStatusIfPending(invitation.ID, models.InvitationCanceled, time.Now())
	require.ErrorIs(t, err, ErrInvitationNotPending)

	var reloaded models.Invitation
	require.NoError(t, db.First(&reloaded, invitation.ID).Error)
	require.Equal(t, models.InvitationRejected, reloaded.Status)
}

func TestInvitationRepository_FindPending_ExcludesExpired(t *testing.T) {
	db, repo := setupInvitationRepo(t)

	org := &models.Organization{Name: "acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)

	invitation := seedInvitation(t, db, "bob@x.com", org.ID, models.InvitationPending)
	require.NoError(t, db.Model(invitation).Update("expires_at", time.Now().Add(-time.Second)).Error)

	_, err := repo.FindPending("bob@x.com", org.ID, time.Now())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestInvitationRepository_CreateSuperseding(t *testing.T) {
	db, repo := setupInvitationRepo(t)

	org := &models.Organization{Name: "acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	first := seedInvitation(t, db, "bob@x.com", org.ID, models.InvitationPending)

	second := &models.Invitation{
		Email:          "Bob@X.com",
		OrganizationID: org.ID,
		InviterID:      1,
		Role:           models.RoleAdmin,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.CreateSuperseding(second))
	require.Equal(t, "bob@x.com", second.Email)

	var reloaded models.Invitation
	require.NoError(t, db.First(&reloaded, first.ID).Error)
	require.Equal(t, models.InvitationCanceled, reloaded.Status)

	var pending int64
	err := db.Model(&models.Invitation{}).
		Where("email = ? AND organization_id = ? AND status = ?", "bob@x.com", org.ID, models.InvitationPending).
		Count(&pending).Error
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)
}

// The compare-and-set must be a single conditional UPDATE, not a read
// followed by a write. sqlmock lets us assert the SQL shape directly.
func TestInvitationRepository_ConditionalUpdateSQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	repo := NewInvitationRepository(db)

	mock.ExpectExec("UPDATE `invitations` SET .+ WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatusIfPending(7, models.InvitationCanceled, time.Now())
	require.ErrorIs(t, err, ErrInvitationNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}
