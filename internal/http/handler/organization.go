package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sproutlog.app/api/internal/http/dto"
	"sproutlog.app/api/internal/http/middleware"
	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
	"sproutlog.app/api/internal/store"
)

type OrganizationHandler struct {
	orgService        service.OrganizationService
	membershipService service.MembershipService
	seatLedger        service.SeatLedger
}

func NewOrganizationHandler(
	orgService service.OrganizationService,
	membershipService service.MembershipService,
	seatLedger service.SeatLedger,
) *OrganizationHandler {
	return &OrganizationHandler{
		orgService:        orgService,
		membershipService: membershipService,
		seatLedger:        seatLedger,
	}
}

// Create provisions an organization with the caller as owner.
func (h *OrganizationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)
	if uc == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req dto.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: name is required"})
		return
	}

	result, err := h.orgService.Create(ctx, service.CreateOrganizationInput{
		Name:        req.Name,
		Type:        model.OrganizationType(req.Type),
		OwnerUserID: uc.User.ID,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrganizationType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization type"})
			return
		}
		slog.ErrorContext(ctx, "failed to create organization", "error", err, "user_id", uc.User.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	c.JSON(http.StatusCreated, dto.CreateOrganizationResponse{
		Organization: dto.ToOrganizationResponse(result.Organization),
		Subscription: dto.ToSubscriptionResponse(result.Subscription),
	})
}

// Get returns a single organization.
func (h *OrganizationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	org, err := h.orgService.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load organization", "error", err, "organization_id", orgID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load organization"})
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationResponse(org))
}

// Members lists member profiles. Any member of the organization may read
// the roster.
func (h *OrganizationHandler) Members(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	allowed, err := h.membershipService.CheckPermission(ctx, orgID, uc.User.ID, model.RoleMember)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check permission", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this organization"})
		return
	}

	profiles, err := h.membershipService.OrganizationMembers(ctx, orgID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list members", "error", err, "organization_id", orgID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}

	resp := dto.ListMembersResponse{Members: make([]dto.MemberResponse, len(profiles))}
	for i, p := range profiles {
		resp.Members[i] = dto.ToMemberResponse(p)
	}

	c.JSON(http.StatusOK, resp)
}

// SeatAvailability answers the pre-invite capacity check. Advisory only;
// acceptance enforces the limit atomically.
func (h *OrganizationHandler) SeatAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	requested := int32(1)
	if raw := c.Query("requested"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "requested must be a positive integer"})
			return
		}
		requested = int32(n)
	}

	avail, err := h.seatLedger.CheckAvailability(ctx, orgID, requested)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check seat availability", "error", err, "organization_id", orgID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check seat availability"})
		return
	}

	c.JSON(http.StatusOK, dto.ToSeatAvailabilityResponse(avail))
}

// RemoveMember deletes a membership and releases its seat.
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	memberID, err := strconv.ParseInt(c.Param("memberID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	err = h.membershipService.RemoveEducator(ctx, orgID, memberID, uc.User.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		case errors.Is(err, service.ErrMemberNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		case errors.Is(err, service.ErrOwnerRemoval):
			c.JSON(http.StatusConflict, gin.H{"error": "the owner cannot be removed; transfer ownership first"})
		default:
			slog.ErrorContext(ctx, "failed to remove member", "error", err,
				"organization_id", orgID, "member_id", memberID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// TransferOwnership atomically swaps the owner role to another member.
func (h *OrganizationHandler) TransferOwnership(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: new_owner_user_id is required"})
		return
	}

	err := h.membershipService.TransferOwnership(ctx, service.TransferOwnershipInput{
		OrganizationID:     orgID,
		CurrentOwnerUserID: uc.User.ID,
		NewOwnerUserID:     req.NewOwnerUserID,
		Reason:             req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the current owner can transfer ownership"})
		case errors.Is(err, service.ErrNotAMember):
			c.JSON(http.StatusConflict, gin.H{"error": "new owner must already be a member of this organization"})
		case errors.Is(err, service.ErrAlreadyOwner):
			c.JSON(http.StatusConflict, gin.H{"error": "user already owns this organization"})
		default:
			slog.ErrorContext(ctx, "failed to transfer ownership", "error", err, "organization_id", orgID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to transfer ownership"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ownership transferred"})
}

func orgIDParam(c *gin.Context) (int64, bool) {
	orgID, err := strconv.ParseInt(c.Param("orgID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization id"})
		return 0, false
	}
	return orgID, true
}
