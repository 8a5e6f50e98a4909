package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sproutlog.app/api/internal/mailer"
	"sproutlog.app/api/internal/queue"
	"sproutlog.app/api/internal/store"
)

type Config struct {
	MaxAttempts  int
	DashboardURL string
}

// Worker drains the invite email stream. Delivery is idempotent from the
// invitation's point of view: the row committed before the task existed, and
// a stale or already-terminal invitation is skipped with an ACK.
type Worker struct {
	consumer      *queue.RedisConsumer
	invitations   store.InvitationStore
	organizations store.OrganizationStore
	mailer        mailer.Mailer
	cfg           Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(
	consumer *queue.RedisConsumer,
	invitations store.InvitationStore,
	organizations store.OrganizationStore,
	m mailer.Mailer,
	cfg Config,
) *Worker {
	return &Worker{
		consumer:      consumer,
		invitations:   invitations,
		organizations: organizations,
		mailer:        m,
		cfg:           cfg,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"invitation_id", msg.InvitationID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"invitation_id", msg.InvitationID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	slog.InfoContext(ctx, "processing invite email",
		"message_id", msg.ID,
		"invitation_id", msg.InvitationID,
		"attempt", msg.Attempt)

	inv, err := w.invitations.GetByID(ctx, msg.InvitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Invitation gone; nothing to deliver.
			slog.WarnContext(ctx, "invitation not found, skipping",
				"invitation_id", msg.InvitationID)
			return w.ack(ctx, msg)
		}
		return fmt.Errorf("loading invitation: %w", err)
	}

	if !inv.IsValid() {
		slog.InfoContext(ctx, "invitation no longer redeemable, skipping email",
			"invitation_id", inv.ID,
			"status", inv.Status)
		return w.ack(ctx, msg)
	}

	org, err := w.organizations.GetByID(ctx, inv.OrganizationID)
	if err != nil {
		return fmt.Errorf("loading organization: %w", err)
	}

	email := mailer.InvitationEmail{
		To:               inv.Email,
		OrganizationName: org.Name,
		AcceptURL:        fmt.Sprintf("%s/invitations/accept?token=%s", w.cfg.DashboardURL, inv.Token),
		ExpiresAt:        inv.ExpiresAt,
	}
	if err := w.mailer.SendInvitation(ctx, email); err != nil {
		return fmt.Errorf("sending invitation email: %w", err)
	}

	return w.ack(ctx, msg)
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) error {
	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Message will be reclaimed; redelivery of an already-sent email is
		// the accepted failure mode.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"invitation_id", msg.InvitationID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"invitation_id", msg.InvitationID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
