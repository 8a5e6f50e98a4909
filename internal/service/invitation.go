package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"sproutlog.app/api/common/id"
	"sproutlog.app/api/common/logger"
	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/queue"
	"sproutlog.app/api/internal/store"
)

// InvitationTTL is how long an invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

var (
	ErrInviteNotFound    = errors.New("invitation not found")
	ErrInviteExpired     = errors.New("invitation has expired")
	ErrInviteAlreadyUsed = errors.New("invitation has already been accepted")
	ErrInviteCanceled    = errors.New("invitation has been canceled")

	// ErrEmailMismatch rejects an accept by a user whose account email does
	// not match the invited address.
	ErrEmailMismatch = errors.New("invitation was issued to a different email address")

	ErrAlreadyMember = errors.New("user is already a member of this organization")

	// ErrInsufficientSeats fails a batch up front when the advisory check
	// already shows no room. Acceptance re-checks atomically regardless.
	ErrInsufficientSeats = errors.New("not enough seats available")

	ErrNoValidEmails = errors.New("no invitable email addresses in request")
)

type InviteEducatorsInput struct {
	OrganizationID int64
	InvitedBy      int64
	Emails         []string
}

// InviteError explains why one address in a batch was not invitable.
type InviteError struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type InviteEducatorsResult struct {
	Invitations []model.Invitation `json:"invitations"`
	Skipped     []InviteError      `json:"skipped,omitempty"`
}

type AcceptInvitationResult struct {
	Invitation *model.Invitation `json:"invitation"`
	Member     *model.Member     `json:"member"`
}

type InvitationService interface {
	// InviteEducators creates pending invitations for a batch of addresses.
	// Addresses that are already members or already invited are reported in
	// Skipped; the remaining creates are all-or-nothing.
	InviteEducators(ctx context.Context, in InviteEducatorsInput) (*InviteEducatorsResult, error)

	// ValidateInvitation resolves a token for display before acceptance.
	// A pending invitation past its expiry is marked expired here (lazy
	// expiry) and reported as ErrInviteExpired.
	ValidateInvitation(ctx context.Context, token string) (*model.Invitation, error)

	// AcceptInvitation redeems a token for userID: invitation transition,
	// member creation and seat consumption commit in one transaction or
	// not at all.
	AcceptInvitation(ctx context.Context, token string, userID int64) (*AcceptInvitationResult, error)

	// CancelInvitation revokes a pending invitation. Returns false without
	// error when the invitation is missing or already terminal.
	CancelInvitation(ctx context.Context, invitationID, actingUserID int64) (bool, error)

	OrganizationInvitations(ctx context.Context, orgID, actingUserID int64) ([]model.Invitation, error)
}

type invitationService struct {
	invitations store.InvitationStore
	members     store.MemberStore
	users       store.UserStore
	seats       SeatLedger
	tx          TxRunner
	producer    queue.Producer
}

func NewInvitationService(
	invitations store.InvitationStore,
	members store.MemberStore,
	users store.UserStore,
	seats SeatLedger,
	tx TxRunner,
	producer queue.Producer,
) InvitationService {
	return &invitationService{
		invitations: invitations,
		members:     members,
		users:       users,
		seats:       seats,
		tx:          tx,
		producer:    producer,
	}
}

// generateInviteToken returns a URL-safe random token. 32 bytes of entropy
// keeps guessing infeasible even for long-lived links.
func generateInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *invitationService) InviteEducators(ctx context.Context, in InviteEducatorsInput) (*InviteEducatorsResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: logger.Ptr(in.OrganizationID),
		Component:      "service.invitation",
	})

	if err := requireRole(ctx, s.members, in.OrganizationID, in.InvitedBy, model.RoleAdmin); err != nil {
		return nil, err
	}

	result := &InviteEducatorsResult{}
	seen := make(map[string]struct{}, len(in.Emails))
	var invitable []string

	for _, raw := range in.Emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		if !strings.Contains(email, "@") {
			result.Skipped = append(result.Skipped, InviteError{Email: email, Reason: "not a valid email address"})
			continue
		}

		exists, err := s.members.ExistsByOrgAndEmail(ctx, in.OrganizationID, email)
		if err != nil {
			return nil, fmt.Errorf("checking existing membership: %w", err)
		}
		if exists {
			result.Skipped = append(result.Skipped, InviteError{Email: email, Reason: "already a member of this organization"})
			continue
		}

		// An unexpired pending invitation blocks re-inviting; an expired
		// one does not, even before its status flips. The store already
		// filters on expiry, the IsValid check keeps any implementation
		// honest.
		if pending, err := s.invitations.GetPendingByOrgAndEmail(ctx, in.OrganizationID, email); err == nil {
			if pending.IsValid() {
				result.Skipped = append(result.Skipped, InviteError{Email: email, Reason: "a pending invitation already exists"})
				continue
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("checking pending invitation: %w", err)
		}

		invitable = append(invitable, email)
	}

	if len(invitable) == 0 {
		if len(result.Skipped) > 0 {
			return result, nil
		}
		return nil, ErrNoValidEmails
	}

	avail, err := s.seats.CheckAvailability(ctx, in.OrganizationID, int32(len(invitable)))
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientSeats, avail.Message)
	}

	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		for _, email := range invitable {
			token, err := generateInviteToken()
			if err != nil {
				return err
			}
			inv := &model.Invitation{
				ID:             id.New(),
				OrganizationID: in.OrganizationID,
				Email:          email,
				Token:          token,
				Status:         model.InvitationStatusPending,
				InvitedBy:      in.InvitedBy,
				ExpiresAt:      time.Now().Add(InvitationTTL),
			}
			if err := stores.Invitations().Create(ctx, inv); err != nil {
				return fmt.Errorf("creating invitation for %s: %w", email, err)
			}
			result.Invitations = append(result.Invitations, *inv)
		}
		return nil
	})
	if err != nil {
		result.Invitations = nil
		return nil, err
	}

	slog.InfoContext(ctx, "invitations created",
		"invited_count", len(result.Invitations),
		"skipped_count", len(result.Skipped),
		"invited_by", in.InvitedBy)

	// Email delivery is best effort and out of band. The invitation rows
	// committed above are the source of truth either way.
	for _, inv := range result.Invitations {
		task := queue.InviteEmailTask{
			InvitationID:   inv.ID,
			OrganizationID: inv.OrganizationID,
			Email:          inv.Email,
			Token:          inv.Token,
			Attempt:        1,
		}
		if span := trace.SpanContextFromContext(ctx); span.HasTraceID() {
			task.TraceID = span.TraceID().String()
		}
		if err := s.producer.Enqueue(ctx, task); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue invite email",
				"error", err,
				"invitation_id", inv.ID)
		}
	}

	return result, nil
}

func (s *invitationService) ValidateInvitation(ctx context.Context, token string) (*model.Invitation, error) {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("loading invitation: %w", err)
	}

	switch inv.Status {
	case model.InvitationStatusAccepted:
		return nil, ErrInviteAlreadyUsed
	case model.InvitationStatusCanceled:
		return nil, ErrInviteCanceled
	case model.InvitationStatusExpired:
		return nil, ErrInviteExpired
	}

	if time.Now().After(inv.ExpiresAt) {
		// Lazy expiry: flip the row on first read past the deadline. Losing
		// the guarded update to a concurrent transition changes nothing,
		// the invitation is unusable either way.
		if err := s.invitations.MarkExpired(ctx, inv.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("marking invitation expired: %w", err)
		}
		slog.InfoContext(ctx, "invitation expired on read", "invitation_id", inv.ID)
		return nil, ErrInviteExpired
	}

	return inv, nil
}

func (s *invitationService) AcceptInvitation(ctx context.Context, token string, userID int64) (*AcceptInvitationResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "service.invitation",
	})

	// Lazy expiry runs outside the admission transaction so the expired
	// transition sticks even when acceptance fails afterwards.
	inv, err := s.ValidateInvitation(ctx, token)
	if err != nil {
		return nil, err
	}

	result := &AcceptInvitationResult{}
	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		user, err := stores.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("loading user: %w", err)
		}
		if !strings.EqualFold(user.Email, inv.Email) {
			return ErrEmailMismatch
		}

		if _, err := stores.Members().GetByOrgAndUser(ctx, inv.OrganizationID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking membership: %w", err)
		}

		// Guarded on status = pending. A concurrent accept, cancel or
		// expiry sweep that got there first makes this return ErrNotFound.
		accepted, err := stores.Invitations().Accept(ctx, inv.ID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInviteAlreadyUsed
			}
			return fmt.Errorf("accepting invitation: %w", err)
		}
		if time.Now().After(accepted.ExpiresAt) {
			// Expired between validation and the transition; roll back so
			// the row stays pending for the expiry sweep.
			return ErrInviteExpired
		}

		member := &model.Member{
			ID:               id.New(),
			OrganizationID:   inv.OrganizationID,
			UserID:           userID,
			Role:             model.RoleMember,
			OnboardingStatus: model.OnboardingStatusInvited,
		}
		if err := stores.Members().Create(ctx, member); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("creating member: %w", err)
		}

		// Atomic seat consumption inside the same transaction. A full
		// ledger rolls back the accept and the member row together.
		ledger := NewSeatLedger(stores.Subscriptions())
		if err := ledger.Increment(ctx, inv.OrganizationID); err != nil {
			return fmt.Errorf("consuming seat: %w", err)
		}

		result.Invitation = accepted
		result.Member = member
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "invitation accepted",
		"invitation_id", inv.ID,
		"organization_id", inv.OrganizationID,
		"member_id", result.Member.ID)
	return result, nil
}

func (s *invitationService) CancelInvitation(ctx context.Context, invitationID, actingUserID int64) (bool, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Canceling something that does not exist is a no-op, same as
			// canceling an already-terminal invitation.
			return false, nil
		}
		return false, fmt.Errorf("loading invitation: %w", err)
	}

	if err := requireRole(ctx, s.members, inv.OrganizationID, actingUserID, model.RoleAdmin); err != nil {
		return false, err
	}

	if inv.Status.Terminal() {
		return false, nil
	}

	if _, err := s.invitations.Cancel(ctx, invitationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost the race to another transition; cancel is idempotent.
			return false, nil
		}
		return false, fmt.Errorf("canceling invitation: %w", err)
	}

	slog.InfoContext(ctx, "invitation canceled",
		"invitation_id", invitationID,
		"organization_id", inv.OrganizationID,
		"acting_user_id", actingUserID)
	return true, nil
}

func (s *invitationService) OrganizationInvitations(ctx context.Context, orgID, actingUserID int64) ([]model.Invitation, error) {
	if err := requireRole(ctx, s.members, orgID, actingUserID, model.RoleAdmin); err != nil {
		return nil, err
	}

	invs, err := s.invitations.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	return invs, nil
}
