package dto

import (
	"time"

	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
)

type InviteEducatorsRequest struct {
	Emails []string `json:"emails" binding:"required,min=1,max=50"`
}

type InvitationResponse struct {
	ID         int64      `json:"id,string"`
	Email      string     `json:"email"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

func ToInvitationResponse(inv model.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:         inv.ID,
		Email:      inv.Email,
		Status:     string(inv.Status),
		ExpiresAt:  inv.ExpiresAt,
		CreatedAt:  inv.CreatedAt,
		AcceptedAt: inv.AcceptedAt,
	}
}

type InviteEducatorsResponse struct {
	Invitations []InvitationResponse   `json:"invitations"`
	Skipped     []service.InviteError  `json:"skipped,omitempty"`
}

type ListInvitationsResponse struct {
	Invitations []InvitationResponse `json:"invitations"`
}

// ValidateInvitationResponse is the public view of a pending invitation,
// shown on the accept page before login. The token identifies it; internal
// IDs stay internal.
type ValidateInvitationResponse struct {
	OrganizationID int64     `json:"organization_id,string"`
	Email          string    `json:"email"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}

type AcceptInvitationResponse struct {
	Invitation InvitationResponse `json:"invitation"`
	MemberID   int64              `json:"member_id,string"`
	Role       string             `json:"role"`
}
