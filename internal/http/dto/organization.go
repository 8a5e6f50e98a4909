package dto

import (
	"time"

	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
)

type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
	Type string `json:"type,omitempty" binding:"omitempty,oneof=school district center"`
}

type OrganizationResponse struct {
	ID        int64     `json:"id,string"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToOrganizationResponse(org *model.Organization) *OrganizationResponse {
	return &OrganizationResponse{
		ID:        org.ID,
		Name:      org.Name,
		Slug:      org.Slug,
		Type:      string(org.Type),
		CreatedAt: org.CreatedAt,
		UpdatedAt: org.UpdatedAt,
	}
}

type CreateOrganizationResponse struct {
	Organization *OrganizationResponse `json:"organization"`
	Subscription *SubscriptionResponse `json:"subscription"`
}

type SubscriptionResponse struct {
	Plan        string `json:"plan"`
	Status      string `json:"status"`
	MaxSeats    int32  `json:"max_seats"`
	ActiveSeats int32  `json:"active_seats"`
}

func ToSubscriptionResponse(sub *model.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		Plan:        string(sub.Plan),
		Status:      string(sub.Status),
		MaxSeats:    sub.MaxSeats,
		ActiveSeats: sub.ActiveSeats,
	}
}

type SeatAvailabilityResponse struct {
	Available   bool   `json:"available"`
	MaxSeats    int32  `json:"max_seats"`
	ActiveSeats int32  `json:"active_seats"`
	Message     string `json:"message,omitempty"`
}

func ToSeatAvailabilityResponse(avail service.SeatAvailability) *SeatAvailabilityResponse {
	return &SeatAvailabilityResponse{
		Available:   avail.Available,
		MaxSeats:    avail.MaxSeats,
		ActiveSeats: avail.ActiveSeats,
		Message:     avail.Message,
	}
}
