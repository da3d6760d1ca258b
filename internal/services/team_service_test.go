package services

import (
	"testing"
	"time"

	"github.com/orgstack/membership-api/internal/authz"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type teamTestEnv struct {
	db      *gorm.DB
	service *TeamService
}

func setupTeamTestEnv(t *testing.T) teamTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Team{},
		&models.TeamMember{},
	)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	gate := authz.NewGate(userRepo, orgRepo, zerolog.Nop())
	service := NewTeamService(teamRepo, orgRepo, gate)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return teamTestEnv{db: db, service: service}
}

func TestTeamService_CreateAndList(t *testing.T) {
	env := setupTeamTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	team, err := env.service.CreateTeam(org.ID, owner.ID, "Platform")
	require.NoError(t, err)
	require.Equal(t, org.ID, team.OrganizationID)

	teams, err := env.service.ListTeams(org.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.Equal(t, "Platform", teams[0].Name)
}

func TestTeamService_CreateRequiresAdmin(t *testing.T) {
	env := setupTeamTestEnv(t)

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

	_, err := env.service.CreateTeam(org.ID, plain.ID, "Platform")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestTeamService_AddMember(t *testing.T) {
	env := setupTeamTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	team, err := env.service.CreateTeam(org.ID, owner.ID, "Platform")
	require.NoError(t, err)

	require.NoError(t, env.service.AddMember(team.ID, owner.ID, owner.ID))

	var count int64
	err = env.db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, owner.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestTeamService_AddMember_CrossOrganization(t *testing.T) {
	env := setupTeamTestEnv(t)

	ownerA := createInvitationUser(t, env.db, "owner-a", "owner-a@example.com")
	orgA := createInvitationOrg(t, env.db, "acme", ownerA)

	ownerB := createInvitationUser(t, env.db, "owner-b", "owner-b@example.com")
	createInvitationOrg(t, env.db, "globex", ownerB)

	team, err := env.service.CreateTeam(orgA.ID, ownerA.ID, "Platform")
	require.NoError(t, err)

	// ownerB is not a member of orgA; linking them to orgA's team is a conflict
	err = env.service.AddMember(team.ID, ownerA.ID, ownerB.ID)
	require.ErrorIs(t, err, ErrTeamCrossOrganization)

	var count int64
	err = env.db.Model(&models.TeamMember{}).
		Where("team_id = ?", team.ID).
		Count(&count).Error
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestTeamService_RemoveMember(t *testing.T) {
	env := setupTeamTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	team, err := env.service.CreateTeam(org.ID, owner.ID, "Platform")
	require.NoError(t, err)
	require.NoError(t, env.service.AddMember(team.ID, owner.ID, owner.ID))

	require.NoError(t, env.service.RemoveMember(team.ID, owner.ID, owner.ID))

	err = env.service.RemoveMember(team.ID, owner.ID, owner.ID)
	require.ErrorIs(t, err, ErrTeamMemberNotFound)
}

func TestTeamService_DeleteTeam(t *testing.T) {
	env := setupTeamTestEnv(t)

	owner := createInvitationUser(t, env.db, "owner", "owner@example.com")
	org := createInvitationOrg(t, env.db, "acme", owner)

	team, err := env.service.CreateTeam(org.ID, owner.ID, "Platform")
	require.NoError(t, err)
	require.NoError(t, env.service.AddMember(team.ID, owner.ID, owner.ID))

	require.NoError(t, env.service.DeleteTeam(team.ID, owner.ID))

	err = env.service.DeleteTeam(team.ID, owner.ID)
	require.ErrorIs(t, err, ErrTeamNotFound)

	var count int64
	require.NoError(t, env.db.Model(&models.TeamMember{}).Where("team_id = ?", team.ID).Count(&count).Error)
	require.EqualValues(t, 0, count)
}
