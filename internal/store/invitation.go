package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/model"
)

type invitationStore struct {
	q db.DBTX
}

const invitationColumns = `id, organization_id, email, token, status, invited_by, accepted_by, expires_at, created_at, accepted_at`

func (s *invitationStore) Create(ctx context.Context, inv *model.Invitation) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO invitations (id, organization_id, email, token, status, invited_by, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+invitationColumns,
		inv.ID, inv.OrganizationID, inv.Email, inv.Token, string(inv.Status), inv.InvitedBy, inv.ExpiresAt)
	created, err := scanInvitation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*inv = *created
	return nil
}

func (s *invitationStore) GetByID(ctx context.Context, id int64) (*model.Invitation, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id)
	return scanInvitation(row)
}

func (s *invitationStore) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token)
	return scanInvitation(row)
}

// GetPendingByOrgAndEmail only matches redeemable invitations: a pending row
// past its expiry is already dead (lazy expiry has just not flipped it yet)
// and must not block a re-invite.
func (s *invitationStore) GetPendingByOrgAndEmail(ctx context.Context, orgID int64, email string) (*model.Invitation, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+invitationColumns+`
		 FROM invitations
		 WHERE organization_id = $1 AND lower(email) = lower($2)
		   AND status = 'pending' AND expires_at > now()
		 ORDER BY created_at DESC
		 LIMIT 1`, orgID, email)
	return scanInvitation(row)
}

func (s *invitationStore) Accept(ctx context.Context, id, userID int64) (*model.Invitation, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE invitations
		 SET status = 'accepted', accepted_by = $2, accepted_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+invitationColumns,
		id, userID)
	return scanInvitation(row)
}

func (s *invitationStore) MarkExpired(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE invitations SET status = 'expired' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *invitationStore) Cancel(ctx context.Context, id int64) (*model.Invitation, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE invitations
		 SET status = 'canceled'
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+invitationColumns,
		id)
	return scanInvitation(row)
}

func (s *invitationStore) ListByOrganization(ctx context.Context, orgID int64) ([]model.Invitation, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+invitationColumns+`
		 FROM invitations WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	return collectInvitations(rows)
}

func (s *invitationStore) ListPendingByOrganization(ctx context.Context, orgID int64) ([]model.Invitation, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+invitationColumns+`
		 FROM invitations
		 WHERE organization_id = $1 AND status = 'pending'
		 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	return collectInvitations(rows)
}

func (s *invitationStore) ExpireOld(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectInvitations(rows pgx.Rows) ([]model.Invitation, error) {
	defer rows.Close()
	var invitations []model.Invitation
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	inv, err := scanInvitationRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

func scanInvitationRow(row pgx.Row) (*model.Invitation, error) {
	var inv model.Invitation
	var status string
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Token, &status,
		&inv.InvitedBy, &inv.AcceptedBy, &inv.ExpiresAt, &inv.CreatedAt, &inv.AcceptedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = model.InvitationStatus(status)
	return &inv, nil
}
