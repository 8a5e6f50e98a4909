package model

import "time"

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusExpired  InvitationStatus = "expired"
	InvitationStatusCanceled InvitationStatus = "canceled"
)

// Terminal reports whether the status is one of the end states. Terminal
// invitations never transition again.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationStatusAccepted || s == InvitationStatusExpired || s == InvitationStatusCanceled
}

type Invitation struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organization_id"`
	Email          string           `json:"email"`
	Token          string           `json:"token"`
	Status         InvitationStatus `json:"status"`
	InvitedBy      int64            `json:"invited_by"`
	AcceptedBy     *int64           `json:"accepted_by,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty"`
}

// IsValid reports whether the invitation can still be redeemed: pending and
// not past its expiry. Expiry is applied lazily on read, so a pending row
// past expires_at is already invalid even before the status flips.
func (i *Invitation) IsValid() bool {
	return i.Status == InvitationStatusPending && time.Now().Before(i.ExpiresAt)
}
