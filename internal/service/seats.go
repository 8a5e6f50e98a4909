package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sproutlog.app/api/common/logger"
	"sproutlog.app/api/internal/store"
)

// SeatAvailability is the advisory answer to "can this organization take N
// more members right now". It is a point-in-time read; admission itself is
// enforced by the conditional increment, never by this check.
type SeatAvailability struct {
	Available   bool   `json:"available"`
	MaxSeats    int32  `json:"max_seats"`
	ActiveSeats int32  `json:"active_seats"`
	Message     string `json:"message,omitempty"`
}

type SeatLedger interface {
	// CheckAvailability reports whether requested seats fit under the
	// ceiling. A missing or inactive subscription is an unavailable
	// result, not an error.
	CheckAvailability(ctx context.Context, orgID int64, requested int32) (SeatAvailability, error)

	// Increment consumes one seat atomically. Returns
	// store.ErrSeatLimitExceeded when the ledger is full.
	Increment(ctx context.Context, orgID int64) error

	// Decrement releases one seat atomically. Returns
	// store.ErrSeatUnderflow when the ledger is already at zero.
	Decrement(ctx context.Context, orgID int64) error
}

type seatLedger struct {
	subscriptions store.SubscriptionStore
}

func NewSeatLedger(subscriptions store.SubscriptionStore) SeatLedger {
	return &seatLedger{subscriptions: subscriptions}
}

func (s *seatLedger) CheckAvailability(ctx context.Context, orgID int64, requested int32) (SeatAvailability, error) {
	if requested < 1 {
		requested = 1
	}

	sub, err := s.subscriptions.GetByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SeatAvailability{
				Available: false,
				Message:   "no subscription found for this organization",
			}, nil
		}
		return SeatAvailability{}, fmt.Errorf("loading subscription: %w", err)
	}

	avail := SeatAvailability{
		MaxSeats:    sub.MaxSeats,
		ActiveSeats: sub.ActiveSeats,
	}

	if !sub.CanAdmitMembers() {
		avail.Message = fmt.Sprintf("subscription is %s and cannot admit new members", sub.Status)
		return avail, nil
	}

	if remaining := sub.RemainingSeats(); remaining < requested {
		avail.Message = fmt.Sprintf("%d seats requested but only %d of %d remain", requested, remaining, sub.MaxSeats)
		return avail, nil
	}

	avail.Available = true
	return avail, nil
}

func (s *seatLedger) Increment(ctx context.Context, orgID int64) error {
	sub, err := s.subscriptions.IncrementActiveSeats(ctx, orgID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "seat consumed",
		"organization_id", orgID,
		"active_seats", sub.ActiveSeats,
		"max_seats", sub.MaxSeats)
	return nil
}

func (s *seatLedger) Decrement(ctx context.Context, orgID int64) error {
	sub, err := s.subscriptions.DecrementActiveSeats(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrSeatUnderflow) {
			// Underflow means membership and the ledger disagree; loud log
			// plus the error so the caller rolls back.
			ctx = logger.WithLogFields(ctx, logger.LogFields{OrganizationID: logger.Ptr(orgID)})
			slog.ErrorContext(ctx, "seat ledger underflow, membership out of sync with active_seats")
		}
		return err
	}

	slog.InfoContext(ctx, "seat released",
		"organization_id", orgID,
		"active_seats", sub.ActiveSeats,
		"max_seats", sub.MaxSeats)
	return nil
}
