package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/model"
)

type subscriptionStore struct {
	q db.DBTX
}

const subscriptionColumns = `id, organization_id, plan, status, max_seats, active_seats, created_at, updated_at`

func (s *subscriptionStore) GetByOrganization(ctx context.Context, orgID int64) (*model.Subscription, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE organization_id = $1`, orgID)
	return scanSubscription(row)
}

func (s *subscriptionStore) Create(ctx context.Context, sub *model.Subscription) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO subscriptions (id, organization_id, plan, status, max_seats, active_seats)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+subscriptionColumns,
		sub.ID, sub.OrganizationID, string(sub.Plan), string(sub.Status), sub.MaxSeats, sub.ActiveSeats)
	created, err := scanSubscription(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*sub = *created
	return nil
}

// IncrementActiveSeats performs the capacity check and the write as one
// statement. Two concurrent callers racing for the last seat cannot both
// match the WHERE clause.
func (s *subscriptionStore) IncrementActiveSeats(ctx context.Context, orgID int64) (*model.Subscription, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE subscriptions
		 SET active_seats = active_seats + 1, updated_at = now()
		 WHERE organization_id = $1
		   AND status IN ('trialing', 'active')
		   AND active_seats < max_seats
		 RETURNING `+subscriptionColumns,
		orgID)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.classifyGuardFailure(ctx, orgID, ErrSeatLimitExceeded)
		}
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionStore) DecrementActiveSeats(ctx context.Context, orgID int64) (*model.Subscription, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE subscriptions
		 SET active_seats = active_seats - 1, updated_at = now()
		 WHERE organization_id = $1
		   AND active_seats > 0
		 RETURNING `+subscriptionColumns,
		orgID)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.classifyGuardFailure(ctx, orgID, ErrSeatUnderflow)
		}
		return nil, err
	}
	return sub, nil
}

// classifyGuardFailure distinguishes "no subscription row" from "guard
// condition failed" after a conditional update matched nothing.
func (s *subscriptionStore) classifyGuardFailure(ctx context.Context, orgID int64, guardErr error) error {
	if _, err := s.GetByOrganization(ctx, orgID); err != nil {
		return err // ErrNotFound or a real query error
	}
	return guardErr
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var sub model.Subscription
	var plan, status string
	err := row.Scan(&sub.ID, &sub.OrganizationID, &plan, &status,
		&sub.MaxSeats, &sub.ActiveSeats, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sub.Plan = model.SubscriptionPlan(plan)
	sub.Status = model.SubscriptionStatus(status)
	return &sub, nil
}
