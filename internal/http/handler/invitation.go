package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sproutlog.app/api/internal/http/dto"
	"sproutlog.app/api/internal/http/middleware"
	"sproutlog.app/api/internal/service"
	"sproutlog.app/api/internal/store"
)

type InvitationHandler struct {
	invService service.InvitationService
}

func NewInvitationHandler(invService service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invService: invService}
}

// Invite creates pending invitations for a batch of email addresses.
func (h *InvitationHandler) Invite(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	var req dto.InviteEducatorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: emails is required"})
		return
	}

	result, err := h.invService.InviteEducators(ctx, service.InviteEducatorsInput{
		OrganizationID: orgID,
		InvitedBy:      uc.User.ID,
		Emails:         req.Emails,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		case errors.Is(err, service.ErrInsufficientSeats):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNoValidEmails):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no invitable email addresses in request"})
		default:
			slog.ErrorContext(ctx, "failed to create invitations", "error", err, "organization_id", orgID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invitations"})
		}
		return
	}

	resp := dto.InviteEducatorsResponse{
		Invitations: make([]dto.InvitationResponse, len(result.Invitations)),
		Skipped:     result.Skipped,
	}
	for i, inv := range result.Invitations {
		resp.Invitations[i] = dto.ToInvitationResponse(inv)
	}

	c.JSON(http.StatusCreated, resp)
}

// List returns all invitations for an organization, terminal ones included.
func (h *InvitationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	invitations, err := h.invService.OrganizationInvitations(ctx, orgID, uc.User.ID)
	if err != nil {
		if errors.Is(err, service.ErrPermissionDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		slog.ErrorContext(ctx, "failed to list invitations", "error", err, "organization_id", orgID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invitations"})
		return
	}

	resp := dto.ListInvitationsResponse{
		Invitations: make([]dto.InvitationResponse, len(invitations)),
	}
	for i, inv := range invitations {
		resp.Invitations[i] = dto.ToInvitationResponse(inv)
	}

	c.JSON(http.StatusOK, resp)
}

// Cancel revokes a pending invitation. Canceling a missing or
// already-terminal invitation reports canceled=false rather than failing.
func (h *InvitationHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)

	invitationID, err := strconv.ParseInt(c.Param("invitationID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invitation id"})
		return
	}

	canceled, err := h.invService.CancelInvitation(ctx, invitationID, uc.User.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		default:
			slog.ErrorContext(ctx, "failed to cancel invitation", "error", err, "invitation_id", invitationID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel invitation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"canceled": canceled})
}

// Validate resolves an invite token for the accept page. Public route.
func (h *InvitationHandler) Validate(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	inv, err := h.invService.ValidateInvitation(ctx, token)
	if err != nil {
		h.renderInviteError(c, err, "failed to validate invitation")
		return
	}

	c.JSON(http.StatusOK, dto.ValidateInvitationResponse{
		OrganizationID: inv.OrganizationID,
		Email:          inv.Email,
		ExpiresAt:      inv.ExpiresAt,
	})
}

// Accept redeems an invite token for the logged-in user.
func (h *InvitationHandler) Accept(c *gin.Context) {
	ctx := c.Request.Context()

	uc := middleware.GetUserContext(ctx)

	var req dto.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: token is required"})
		return
	}

	result, err := h.invService.AcceptInvitation(ctx, req.Token, uc.User.ID)
	if err != nil {
		h.renderInviteError(c, err, "failed to accept invitation")
		return
	}

	c.JSON(http.StatusOK, dto.AcceptInvitationResponse{
		Invitation: dto.ToInvitationResponse(*result.Invitation),
		MemberID:   result.Member.ID,
		Role:       string(result.Member.Role),
	})
}

func (h *InvitationHandler) renderInviteError(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, service.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
	case errors.Is(err, service.ErrInviteExpired):
		c.JSON(http.StatusGone, gin.H{"error": "invitation has expired"})
	case errors.Is(err, service.ErrInviteAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "invitation has already been accepted"})
	case errors.Is(err, service.ErrInviteCanceled):
		c.JSON(http.StatusGone, gin.H{"error": "invitation has been canceled"})
	case errors.Is(err, service.ErrEmailMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "invitation was issued to a different email address"})
	case errors.Is(err, service.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member of this organization"})
	case errors.Is(err, store.ErrSeatLimitExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": "organization has no seats available"})
	default:
		slog.ErrorContext(ctx, fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
