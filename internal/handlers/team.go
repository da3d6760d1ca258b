package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/orgstack/membership-api/internal/dto"
	apierrors "github.com/orgstack/membership-api/internal/errors"
	"github.com/orgstack/membership-api/internal/middleware"
	"github.com/orgstack/membership-api/internal/services"
)

// TeamHandler coordinates team HTTP handlers.
type TeamHandler struct {
	teamService *services.TeamService
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
	}
}

// CreateTeam creates a team within the organization from the URL
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateTeamRequest struct {
		Name string `json:"name" binding:"required"`
	}

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	team, err := h.teamService.CreateTeam(org.ID, userID, req.Name)
	if err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTeamDTO(*team))
}

// ListTeams lists the organization's teams with their members
func (h *TeamHandler) ListTeams(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teams, err := h.teamService.ListTeams(org.ID, userID)
	if err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"teams": dto.ToTeamDTOs(teams)})
}

// RenameTeam updates a team's name
func (h *TeamHandler) RenameTeam(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teamID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid team ID")
		return
	}

	type RenameTeamRequest struct {
		Name string `json:"name" binding:"required"`
	}

	var req RenameTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	team, err := h.teamService.RenameTeam(teamID, userID, req.Name)
	if err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamDTO(*team))
}

// DeleteTeam deletes a team
func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teamID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid team ID")
		return
	}

	if err := h.teamService.DeleteTeam(teamID, userID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Team deleted successfully",
	})
}

// AddTeamMember links an organization member to a team
func (h *TeamHandler) AddTeamMember(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teamID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid team ID")
		return
	}

	type AddMemberRequest struct {
		UserID uint64 `json:"user_id" binding:"required"`
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.teamService.AddMember(teamID, userID, req.UserID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member added to team",
	})
}

// RemoveTeamMember unlinks a member from a team
func (h *TeamHandler) RemoveTeamMember(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teamID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid team ID")
		return
	}

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.teamService.RemoveMember(teamID, userID, targetID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed from team",
	})
}

func respondTeamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTeamName):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrTeamMemberNotFound),
		errors.Is(err, services.ErrOrganizationNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrTeamCrossOrganization):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrNotAuthorized):
		apierrors.Forbidden(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
