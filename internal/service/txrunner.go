package service

import (
	"context"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/store"
)

// StoreProvider gives access to stores bound to a single execution context,
// either the shared pool or one transaction.
type StoreProvider interface {
	Organizations() store.OrganizationStore
	Subscriptions() store.SubscriptionStore
	Members() store.MemberStore
	Invitations() store.InvitationStore
	Users() store.UserStore
}

// TxRunner runs a function with transaction-bound stores. Every write that
// must land atomically with another write goes through here; the callback's
// error decides commit or rollback.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

func NewTxRunner(database *db.DB) TxRunner {
	return &dbTxRunner{db: database}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q db.DBTX) error {
		return fn(store.NewStores(q))
	})
}
