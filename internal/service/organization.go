package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sproutlog.app/api/common"
	"sproutlog.app/api/common/id"
	"sproutlog.app/api/common/logger"
	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/store"
)

var ErrInvalidOrganizationType = errors.New("invalid organization type")

type CreateOrganizationInput struct {
	Name        string
	Type        model.OrganizationType
	OwnerUserID int64
}

type CreateOrganizationResult struct {
	Organization *model.Organization `json:"organization"`
	Subscription *model.Subscription `json:"subscription"`
	Owner        *model.Member       `json:"owner"`
}

type OrganizationService interface {
	// Create provisions an organization, its trial subscription and the
	// owner membership in one transaction. The owner consumes the first
	// seat, so active_seats starts at 1.
	Create(ctx context.Context, in CreateOrganizationInput) (*CreateOrganizationResult, error)

	Get(ctx context.Context, orgID int64) (*model.Organization, error)
}

type organizationService struct {
	organizations store.OrganizationStore
	tx            TxRunner
}

func NewOrganizationService(organizations store.OrganizationStore, tx TxRunner) OrganizationService {
	return &organizationService{organizations: organizations, tx: tx}
}

func (s *organizationService) Create(ctx context.Context, in CreateOrganizationInput) (*CreateOrganizationResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(in.OwnerUserID),
		Component: "service.organization",
	})

	orgType := in.Type
	if orgType == "" {
		orgType = model.OrganizationTypeSchool
	}
	if !orgType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrganizationType, in.Type)
	}

	result := &CreateOrganizationResult{}
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		org := &model.Organization{
			ID:   id.New(),
			Name: in.Name,
			Type: orgType,
		}

		// Slug collisions get a numeric suffix. Bounded retries; past that
		// something is systematically wrong and we bail.
		base, err := common.Slugify(in.Name, fmt.Sprintf("org-%d", org.ID))
		if err != nil {
			return fmt.Errorf("building slug: %w", err)
		}
		org.Slug = base
		var createErr error
		for attempt := 0; attempt < 5; attempt++ {
			if attempt > 0 {
				org.Slug = fmt.Sprintf("%s-%d", base, attempt+1)
			}
			createErr = stores.Organizations().Create(ctx, org)
			if !errors.Is(createErr, store.ErrAlreadyExists) {
				break
			}
		}
		if createErr != nil {
			return fmt.Errorf("creating organization: %w", createErr)
		}

		plan := model.PlanTrial
		sub := &model.Subscription{
			ID:             id.New(),
			OrganizationID: org.ID,
			Plan:           plan,
			Status:         model.SubscriptionStatusTrialing,
			MaxSeats:       plan.DefaultMaxSeats(),
			ActiveSeats:    1, // the owner's seat
		}
		if err := stores.Subscriptions().Create(ctx, sub); err != nil {
			return fmt.Errorf("creating subscription: %w", err)
		}

		owner := &model.Member{
			ID:               id.New(),
			OrganizationID:   org.ID,
			UserID:           in.OwnerUserID,
			Role:             model.RoleOwner,
			OnboardingStatus: model.OnboardingStatusActive,
		}
		if err := stores.Members().Create(ctx, owner); err != nil {
			return fmt.Errorf("creating owner membership: %w", err)
		}

		result.Organization = org
		result.Subscription = sub
		result.Owner = owner
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "organization created",
		"organization_id", result.Organization.ID,
		"slug", result.Organization.Slug,
		"type", result.Organization.Type,
		"max_seats", result.Subscription.MaxSeats)
	return result, nil
}

func (s *organizationService) Get(ctx context.Context, orgID int64) (*model.Organization, error) {
	org, err := s.organizations.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading organization: %w", err)
	}
	return org, nil
}
