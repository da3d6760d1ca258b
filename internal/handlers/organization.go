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
)

// OrganizationHandler coordinates organization HTTP handlers.
type OrganizationHandler struct {
	orgService *services.OrganizationService
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
	}
}

// CreateOrganization creates a new organization
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateOrgRequest struct {
		Name     string            `json:"name" binding:"required"`
		Slug     string            `json:"slug"`
		LogoURL  string            `json:"logo_url"`
		Metadata map[string]string `json:"metadata"`
	}

	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.CreateOrganization(services.CreateOrganizationInput{
		Name:     req.Name,
		Slug:     req.Slug,
		LogoURL:  req.LogoURL,
		Metadata: req.Metadata,
		OwnerID:  userID,
	})
	if err != nil {
		respondOrganizationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*org))
}

// ListOrganizations returns all organizations the user is a member of
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	memberships, err := h.orgService.ListOrganizationsForUser(userID)
	if err != nil {
		respondOrganizationError(c, err)
		return
	}

	orgsWithRole := make([]dto.OrganizationWithRoleDTO, len(memberships))
	for i, m := range memberships {
		orgsWithRole[i] = dto.ToOrganizationWithRoleDTO(m)
	}

	c.JSON(http.StatusOK, gin.H{
		"organizations": orgsWithRole,
	})
}

// GetOrganization returns organization details with members
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	// Organization is already loaded by RequireOrganizationAccess middleware
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	var yourRole models.OrganizationRole
	if member, ok := middleware.GetOrganizationMember(c); ok {
		yourRole = member.Role
	}

	_, members, err := h.orgService.GetOrganizationWithMembers(org.ID)
	if err != nil {
		respondOrganizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDetailDTO(org, members, yourRole))
}

// UpdateOrganization updates organization name, logo and metadata
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	type UpdateOrgRequest struct {
		Name     string            `json:"name" binding:"required"`
		LogoURL  *string           `json:"logo_url"`
		Metadata map[string]string `json:"metadata"`
	}

	var req UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.orgService.UpdateOrganization(org.ID, services.UpdateOrganizationInput{
		Name:     req.Name,
		LogoURL:  req.LogoURL,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondOrganizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*updated))
}

// DeleteOrganization deletes an organization and everything it owns
func (h *OrganizationHandler) DeleteOrganization(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	if err := h.orgService.DeleteOrganization(org.ID); err != nil {
		respondOrganizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Organization deleted successfully",
	})
}

// UpdateMemberRole changes a member's role
func (h *OrganizationHandler) UpdateMemberRole(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	type UpdateRoleRequest struct {
		Role models.OrganizationRole `json:"role" binding:"required"`
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.UpdateMemberRole(org.ID, actorID, targetID, req.Role)
	if err != nil {
		respondOrganizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationMemberRefDTO(*member))
}

// RemoveMember removes a member from the organization
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.orgService.RemoveMember(org.ID, actorID, targetID); err != nil {
		respondOrganizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed successfully",
	})
}

func respondOrganizationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidOrganizationName),
		errors.Is(err, services.ErrInvalidOrganizationSlug),
		errors.Is(err, services.ErrInvalidMemberRole):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrCannotRemoveYourself):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrOrganizationMemberNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrOwnerRoleProtected),
		errors.Is(err, services.ErrNotAuthorized):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrSlugGenerationFailed):
		apierrors.InternalError(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
