package queue

// InviteEmailTask is the payload enqueued when an invitation is created.
// Delivery happens out of band in the worker; the invitation row is the
// source of truth, so a lost task means a missing email, never a broken
// invitation.
type InviteEmailTask struct {
	InvitationID   int64
	OrganizationID int64
	Email          string
	Token          string

	// Attempt counts deliveries of this task, starting at 1. The consumer
	// bumps it on requeue and dead-letters past MaxAttempts.
	Attempt int

	// TraceID carries the originating request's trace so worker spans link
	// back to the HTTP call that created the invitation.
	TraceID string
}

// MaxAttempts is how many deliveries a task gets before the dead letter
// stream.
const MaxAttempts = 3
