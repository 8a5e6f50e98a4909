package worker

import (
	"context"
	"log/slog"
	"time"

	"sproutlog.app/api/common/logger"
	"sproutlog.app/api/internal/store"
)

type SweeperConfig struct {
	Interval time.Duration
}

// Sweeper bulk-expires pending invitations past their deadline. Validation
// already applies expiry lazily on read; the sweep keeps listings honest for
// invitations nobody ever opens, and clears out stale sessions while at it.
type Sweeper struct {
	invitations store.InvitationStore
	sessions    store.SessionStore
	cfg         SweeperConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(invitations store.InvitationStore, sessions store.SessionStore, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{
		invitations: invitations,
		sessions:    sessions,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Run starts the sweep loop. Blocks until Stop() is called.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "sproutlog.worker.sweeper",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "sweeper started", "interval", s.cfg.Interval)

	// One sweep at startup so a long-idle deployment catches up immediately.
	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// Stop signals the sweeper to stop gracefully.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	expired, err := s.invitations.ExpireOld(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "invitation expiry sweep failed", "error", err)
	} else if expired > 0 {
		slog.InfoContext(ctx, "expired stale invitations", "count", expired)
	}

	if err := s.sessions.DeleteExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "session cleanup failed", "error", err)
	}
}
