package main

import (
	"log"
	"os"
	"strconv"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/orgstack/membership-api/internal/authz"
	"github.com/orgstack/membership-api/internal/config"
	"github.com/orgstack/membership-api/internal/constants"
	"github.com/orgstack/membership-api/internal/database"
	"github.com/orgstack/membership-api/internal/handlers"
	"github.com/orgstack/membership-api/internal/middleware"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/repository"
	"github.com/orgstack/membership-api/internal/services"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Configure structured logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// The index catalog check relies on pg_indexes
	if cfg.DBDriver == "postgres" {
		if err := database.AddIndexes(database.GetDB()); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
	}

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	// Configure session options based on environment
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax (1=Strict, 2=Lax, 3=None)
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize repositories
	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	teamRepo := repository.NewTeamRepository(db)

	// Authorization gate shared by every organization-scoped mutation
	gate := authz.NewGate(userRepo, orgRepo, logger)

	// Invitation mail is optional; without SMTP config the invitation
	// record is still created and can be resent later
	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		port, err := strconv.Atoi(cfg.SMTPPort)
		if err != nil {
			log.Fatalf("Invalid SMTP port: %v", err)
		}
		mailer = services.NewSMTPMailer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logger.Warn().Msg("SMTP not configured, invitation mail disabled")
	}

	// Initialize services
	authService := services.NewAuthService(userRepo)
	orgService := services.NewOrganizationService(orgRepo, gate)
	invitationService := services.NewInvitationService(invitationRepo, orgRepo, userRepo, gate, mailer, cfg.InvitationTTL, logger)
	teamService := services.NewTeamService(teamRepo, orgRepo, gate)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	orgHandler := handlers.NewOrganizationHandler(orgService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	teamHandler := handlers.NewTeamHandler(teamService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Organization Membership API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Organization routes (protected)
		orgs := api.Group("/organizations")
		orgs.Use(middleware.RequireAuth())
		{
			orgs.POST("", orgHandler.CreateOrganization)
			orgs.GET("", orgHandler.ListOrganizations)
			orgs.GET("/:id", middleware.RequireOrganizationAccess(), orgHandler.GetOrganization)
			orgs.PUT("/:id", middleware.RequireOrganizationAccess(), middleware.RequireOrganizationRole(models.RoleAdmin), orgHandler.UpdateOrganization)
			orgs.DELETE("/:id", middleware.RequireOrganizationAccess(), middleware.RequireOrganizationRole(models.RoleOwner), orgHandler.DeleteOrganization)
			orgs.PATCH("/:id/members/:user_id", middleware.RequireOrganizationAccess(), orgHandler.UpdateMemberRole)
			orgs.DELETE("/:id/members/:user_id", middleware.RequireOrganizationAccess(), orgHandler.RemoveMember)
			orgs.POST("/:id/teams", middleware.RequireOrganizationAccess(), teamHandler.CreateTeam)
			orgs.GET("/:id/teams", middleware.RequireOrganizationAccess(), teamHandler.ListTeams)
		}

		// Invitation routes (protected)
		invitations := api.Group("/invitations")
		invitations.Use(middleware.RequireAuth())
		{
			invitations.POST("", invitationHandler.CreateInvitation)
			invitations.GET("", invitationHandler.ListInvitations)
			invitations.POST("/:id/accept", invitationHandler.AcceptInvitation)
			invitations.POST("/:id/reject", invitationHandler.RejectInvitation)
			invitations.DELETE("/:id", invitationHandler.CancelInvitation)
		}

		// Team routes (protected)
		teams := api.Group("/teams")
		teams.Use(middleware.RequireAuth())
		{
			teams.PATCH("/:id", teamHandler.RenameTeam)
			teams.DELETE("/:id", teamHandler.DeleteTeam)
			teams.POST("/:id/members", teamHandler.AddTeamMember)
			teams.DELETE("/:id/members/:user_id", teamHandler.RemoveTeamMember)
		}
	}

	// Start server
	log.Println("Server starting on :8080")
	if err := r.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
