package model

import "time"

type SubscriptionPlan string

const (
	PlanTrial    SubscriptionPlan = "trial"
	PlanStarter  SubscriptionPlan = "starter"
	PlanSchool   SubscriptionPlan = "school"
	PlanDistrict SubscriptionPlan = "district"
)

// DefaultMaxSeats returns the seat ceiling a plan starts with.
// Plan upgrades adjust max_seats through billing, which is out of scope here.
func (p SubscriptionPlan) DefaultMaxSeats() int32 {
	switch p {
	case PlanStarter:
		return 10
	case PlanSchool:
		return 50
	case PlanDistrict:
		return 250
	default:
		return 5
	}
}

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the per-organization seat ledger row. There is exactly one
// subscription per organization; active_seats is only ever written through
// the SubscriptionStore's conditional increment/decrement.
type Subscription struct {
	ID             int64              `json:"id"`
	OrganizationID int64              `json:"organization_id"`
	Plan           SubscriptionPlan   `json:"plan"`
	Status         SubscriptionStatus `json:"status"`
	MaxSeats       int32              `json:"max_seats"`
	ActiveSeats    int32              `json:"active_seats"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// CanAdmitMembers reports whether the subscription status allows new seats
// to be consumed at all (capacity aside).
func (s *Subscription) CanAdmitMembers() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

func (s *Subscription) RemainingSeats() int32 {
	remaining := s.MaxSeats - s.ActiveSeats
	if remaining < 0 {
		return 0
	}
	return remaining
}
