package store

import (
	"context"
	"errors"

	"sproutlog.app/api/internal/model"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists maps unique-constraint violations (duplicate member,
	// duplicate subscription, token collision).
	ErrAlreadyExists = errors.New("already exists")

	// ErrSeatLimitExceeded is returned by IncrementActiveSeats when the
	// conditional update finds no headroom (or the subscription cannot admit
	// members). The check and the write are a single statement, so two
	// concurrent increments can never jointly pass the ceiling.
	ErrSeatLimitExceeded = errors.New("seat limit exceeded")

	// ErrSeatUnderflow is returned by DecrementActiveSeats when active_seats
	// is already 0. It signals a bookkeeping bug elsewhere and must be
	// surfaced, never swallowed.
	ErrSeatUnderflow = errors.New("active seats already at zero")
)

type OrganizationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*model.Organization, error)
	Create(ctx context.Context, org *model.Organization) error
	Delete(ctx context.Context, id int64) error // soft delete
}

type SubscriptionStore interface {
	GetByOrganization(ctx context.Context, orgID int64) (*model.Subscription, error)
	Create(ctx context.Context, sub *model.Subscription) error

	// IncrementActiveSeats adds one seat iff the subscription can admit
	// members and active_seats < max_seats. Returns ErrNotFound if no
	// subscription exists and ErrSeatLimitExceeded if the guard fails.
	IncrementActiveSeats(ctx context.Context, orgID int64) (*model.Subscription, error)

	// DecrementActiveSeats subtracts one seat iff active_seats > 0.
	// Returns ErrNotFound if no subscription exists and ErrSeatUnderflow if
	// the ledger is already at zero.
	DecrementActiveSeats(ctx context.Context, orgID int64) (*model.Subscription, error)
}

type MemberStore interface {
	GetByID(ctx context.Context, id int64) (*model.Member, error)
	GetByOrgAndUser(ctx context.Context, orgID, userID int64) (*model.Member, error)
	GetOwner(ctx context.Context, orgID int64) (*model.Member, error)
	ExistsByOrgAndEmail(ctx context.Context, orgID int64, email string) (bool, error)
	Create(ctx context.Context, m *model.Member) error
	UpdateRole(ctx context.Context, id int64, role model.OrganizationRole) error
	Delete(ctx context.Context, id int64) error
	ListProfilesByOrganization(ctx context.Context, orgID int64) ([]model.MemberProfile, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Member, error)
}

type InvitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByID(ctx context.Context, id int64) (*model.Invitation, error)
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
	GetPendingByOrgAndEmail(ctx context.Context, orgID int64, email string) (*model.Invitation, error)

	// Accept transitions pending → accepted. The update is guarded on
	// status = 'pending'; a row that has already left pending returns
	// ErrNotFound so terminal states never revert.
	Accept(ctx context.Context, id, userID int64) (*model.Invitation, error)

	// MarkExpired transitions pending → expired (lazy expiry on read).
	MarkExpired(ctx context.Context, id int64) error

	// Cancel transitions pending → canceled, guarded the same way.
	Cancel(ctx context.Context, id int64) (*model.Invitation, error)

	ListByOrganization(ctx context.Context, orgID int64) ([]model.Invitation, error)
	ListPendingByOrganization(ctx context.Context, orgID int64) ([]model.Invitation, error)

	// ExpireOld bulk-expires pending invitations past their expiry.
	// Purely an optimization over lazy expiry; returns rows affected.
	ExpireOld(ctx context.Context) (int64, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpsertByWorkOSID(ctx context.Context, user *model.User) error
}

type SessionStore interface {
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) error
}
