package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"sproutlog.app/api/core/db"
)

// Stores bundles all store implementations over a single DBTX, which is
// either the shared pool or a transaction. Services obtain transaction-bound
// stores through the TxRunner.
type Stores struct {
	q db.DBTX
}

func NewStores(q db.DBTX) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Organizations() OrganizationStore {
	return &organizationStore{q: s.q}
}

func (s *Stores) Subscriptions() SubscriptionStore {
	return &subscriptionStore{q: s.q}
}

func (s *Stores) Members() MemberStore {
	return &memberStore{q: s.q}
}

func (s *Stores) Invitations() InvitationStore {
	return &invitationStore{q: s.q}
}

func (s *Stores) Users() UserStore {
	return &userStore{q: s.q}
}

func (s *Stores) Sessions() SessionStore {
	return &sessionStore{q: s.q}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
