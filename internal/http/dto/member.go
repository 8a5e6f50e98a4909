package dto

import (
	"time"

	"sproutlog.app/api/internal/model"
)

type MemberResponse struct {
	MemberID         int64     `json:"member_id,string"`
	UserID           int64     `json:"user_id,string"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	OnboardingStatus string    `json:"onboarding_status"`
	JoinedAt         time.Time `json:"joined_at"`
}

func ToMemberResponse(p model.MemberProfile) MemberResponse {
	return MemberResponse{
		MemberID:         p.MemberID,
		UserID:           p.UserID,
		Name:             p.Name,
		Email:            p.Email,
		Role:             string(p.Role),
		OnboardingStatus: string(p.OnboardingStatus),
		JoinedAt:         p.JoinedAt,
	}
}

type ListMembersResponse struct {
	Members []MemberResponse `json:"members"`
}

type TransferOwnershipRequest struct {
	NewOwnerUserID int64  `json:"new_owner_user_id,string" binding:"required"`
	Reason         string `json:"reason" binding:"omitempty,max=500"`
}
