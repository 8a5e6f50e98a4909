package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/store"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotAMember       = errors.New("user is not a member of this organization")
	ErrMemberNotFound   = errors.New("member not found")

	// ErrOwnerRemoval blocks removing the organization owner. Ownership has
	// to be transferred first so the organization is never ownerless.
	ErrOwnerRemoval = errors.New("the owner cannot be removed; transfer ownership first")

	ErrNotOwner     = errors.New("only the current owner can transfer ownership")
	ErrAlreadyOwner = errors.New("user already owns this organization")
)

// TransferOwnershipInput carries an ownership transfer request. Reason is
// free text recorded in the audit log, never interpreted.
type TransferOwnershipInput struct {
	OrganizationID     int64
	CurrentOwnerUserID int64
	NewOwnerUserID     int64
	Reason             string
}

type MembershipService interface {
	// CheckPermission reports whether userID holds at least the given role
	// in the organization. A non-member simply gets false.
	CheckPermission(ctx context.Context, orgID, userID int64, minimum model.OrganizationRole) (bool, error)

	OrganizationMembers(ctx context.Context, orgID int64) ([]model.MemberProfile, error)

	// RemoveEducator deletes a membership and releases its seat in one
	// transaction. Owners are never removable.
	RemoveEducator(ctx context.Context, orgID, memberID, actingUserID int64) error

	// TransferOwnership atomically demotes the current owner to admin and
	// promotes the target member to owner.
	TransferOwnership(ctx context.Context, in TransferOwnershipInput) error
}

type membershipService struct {
	members store.MemberStore
	tx      TxRunner
}

func NewMembershipService(members store.MemberStore, tx TxRunner) MembershipService {
	return &membershipService{members: members, tx: tx}
}

// requireRole resolves the acting user's membership and enforces the role
// floor. Shared by every operation that gates on admin or owner.
func requireRole(ctx context.Context, members store.MemberStore, orgID, userID int64, minimum model.OrganizationRole) error {
	member, err := members.GetByOrgAndUser(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPermissionDenied
		}
		return fmt.Errorf("loading membership: %w", err)
	}
	if !member.Role.AtLeast(minimum) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *membershipService) CheckPermission(ctx context.Context, orgID, userID int64, minimum model.OrganizationRole) (bool, error) {
	err := requireRole(ctx, s.members, orgID, userID, minimum)
	if errors.Is(err, ErrPermissionDenied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *membershipService) OrganizationMembers(ctx context.Context, orgID int64) ([]model.MemberProfile, error) {
	profiles, err := s.members.ListProfilesByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return profiles, nil
}

func (s *membershipService) RemoveEducator(ctx context.Context, orgID, memberID, actingUserID int64) error {
	if err := requireRole(ctx, s.members, orgID, actingUserID, model.RoleAdmin); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		member, err := stores.Members().GetByID(ctx, memberID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("loading member: %w", err)
		}
		if member.OrganizationID != orgID {
			return ErrMemberNotFound
		}
		if member.Role == model.RoleOwner {
			return ErrOwnerRemoval
		}

		if err := stores.Members().Delete(ctx, member.ID); err != nil {
			return fmt.Errorf("deleting member: %w", err)
		}

		// Same transaction as the delete: a failed decrement rolls the
		// removal back so membership and the ledger never drift.
		ledger := NewSeatLedger(stores.Subscriptions())
		if err := ledger.Decrement(ctx, orgID); err != nil {
			return fmt.Errorf("releasing seat: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "member removed",
		"organization_id", orgID,
		"member_id", memberID,
		"acting_user_id", actingUserID)
	return nil
}

func (s *membershipService) TransferOwnership(ctx context.Context, in TransferOwnershipInput) error {
	if in.CurrentOwnerUserID == in.NewOwnerUserID {
		return ErrAlreadyOwner
	}

	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		current, err := stores.Members().GetByOrgAndUser(ctx, in.OrganizationID, in.CurrentOwnerUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotOwner
			}
			return fmt.Errorf("loading current owner: %w", err)
		}
		if current.Role != model.RoleOwner {
			return ErrNotOwner
		}

		target, err := stores.Members().GetByOrgAndUser(ctx, in.OrganizationID, in.NewOwnerUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotAMember
			}
			return fmt.Errorf("loading target member: %w", err)
		}

		// Demote before promote; both writes commit together so the
		// single-owner invariant holds at every observable point.
		if err := stores.Members().UpdateRole(ctx, current.ID, model.RoleAdmin); err != nil {
			return fmt.Errorf("demoting current owner: %w", err)
		}
		if err := stores.Members().UpdateRole(ctx, target.ID, model.RoleOwner); err != nil {
			return fmt.Errorf("promoting new owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "ownership transferred",
		"organization_id", in.OrganizationID,
		"previous_owner_user_id", in.CurrentOwnerUserID,
		"new_owner_user_id", in.NewOwnerUserID,
		"reason", in.Reason)
	return nil
}
