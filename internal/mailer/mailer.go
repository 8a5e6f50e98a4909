// Package mailer sends transactional email. The worker is the only caller;
// the API server never blocks on delivery.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// InvitationEmail is everything the invite template needs.
type InvitationEmail struct {
	To               string
	OrganizationName string
	AcceptURL        string
	ExpiresAt        time.Time
}

type Mailer interface {
	SendInvitation(ctx context.Context, email InvitationEmail) error
}

// LogMailer writes the email to the log instead of sending it. Used in
// development and tests; production wires a real provider behind the same
// interface.
type LogMailer struct {
	FromAddress string
	FromName    string
}

func NewLogMailer(fromAddress, fromName string) *LogMailer {
	return &LogMailer{FromAddress: fromAddress, FromName: fromName}
}

func (m *LogMailer) SendInvitation(ctx context.Context, email InvitationEmail) error {
	slog.InfoContext(ctx, "invitation email",
		"from", fmt.Sprintf("%s <%s>", m.FromName, m.FromAddress),
		"to", email.To,
		"organization", email.OrganizationName,
		"accept_url", email.AcceptURL,
		"expires_at", email.ExpiresAt.Format(time.RFC3339))
	return nil
}
