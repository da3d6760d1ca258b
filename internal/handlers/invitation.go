package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/orgstack/membership-api/internal/dto"
	apierrors "github.com/orgstack/membership-api/internal/errors"
	"github.com/orgstack/membership-api/internal/middleware"
	"github.com/orgstack/membership-api/internal/models"
	"github.com/orgstack/membership-api/internal/services"
	"github.com/orgstack/membership-api/internal/utils"
)

// InvitationHandler coordinates invitation HTTP handlers.
type InvitationHandler struct {
	invitationService *services.InvitationService
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(invitationService *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
	}
}

// CreateInvitation invites an email address to an organization
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateInvitationRequest struct {
		OrganizationID uint64                  `json:"organization_id" binding:"required"`
		Email          string                  `json:"email" binding:"required,email"`
		Role           models.OrganizationRole `json:"role" binding:"required,oneof=member admin owner"`
	}

	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	invitation, err := h.invitationService.Create(services.CreateInvitationInput{
		InviterID:      userID,
		OrganizationID: req.OrganizationID,
		Email:          req.Email,
		Role:           req.Role,
	})
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToInvitationDTO(*invitation))
}

// ListInvitations lists invitations for the caller or, with
// ?organization_id=, for an organization (admin view)
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	if orgIDStr := c.Query("organization_id"); orgIDStr != "" {
		orgID, err := strconv.ParseUint(orgIDStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid organization ID")
			return
		}

		params := utils.GetPaginationParams(c)
		invitations, total, err := h.invitationService.ListForOrganization(orgID, userID, params)
		if err != nil {
			respondInvitationError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"invitations": dto.ToInvitationDTOs(invitations),
			"pagination": utils.PaginationResponse{
				Page:  params.Page,
				Limit: params.Limit,
				Total: total,
			},
		})
		return
	}

	invitations, err := h.invitationService.ListForUser(userID)
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": dto.ToInvitationDTOs(invitations)})
}

// AcceptInvitation resolves a pending invitation into a membership
func (h *InvitationHandler) AcceptInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	invitationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid invitation ID")
		return
	}

	invitation, member, err := h.invitationService.Accept(invitationID, userID)
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AcceptInvitationResponse{
		Invitation: dto.ToInvitationDTO(*invitation),
		Member:     dto.ToOrganizationMemberRefDTO(*member),
	})
}

// RejectInvitation declines a pending invitation
func (h *InvitationHandler) RejectInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	invitationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid invitation ID")
		return
	}

	invitation, err := h.invitationService.Reject(invitationID, userID)
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationDTO(*invitation))
}

// CancelInvitation withdraws a pending invitation
func (h *InvitationHandler) CancelInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	invitationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid invitation ID")
		return
	}

	invitation, err := h.invitationService.Cancel(invitationID, userID)
	if err != nil {
		respondInvitationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationDTO(*invitation))
}

func respondInvitationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInviteEmail),
		errors.Is(err, services.ErrInvalidInviteRole):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvitationNotFound),
		errors.Is(err, services.ErrOrgNotFound),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInvitationResolved):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeAlreadyResolved, err.Error())
	case errors.Is(err, services.ErrInvitationExpired):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeExpired, err.Error())
	case errors.Is(err, services.ErrIdentityMismatch):
		apierrors.ForbiddenWithCode(c, apierrors.ErrCodeIdentityMismatch, err.Error())
	case errors.Is(err, services.ErrNotAuthorized),
		errors.Is(err, services.ErrCannotInviteBanned):
		apierrors.Forbidden(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
