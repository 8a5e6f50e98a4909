package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/model"
)

type memberStore struct {
	q db.DBTX
}

const memberColumns = `id, organization_id, user_id, role, onboarding_status, joined_at, updated_at`

func (s *memberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	return scanMember(row)
}

func (s *memberStore) GetByOrgAndUser(ctx context.Context, orgID, userID int64) (*model.Member, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	return scanMember(row)
}

func (s *memberStore) GetOwner(ctx context.Context, orgID int64) (*model.Member, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE organization_id = $1 AND role = 'owner'`, orgID)
	return scanMember(row)
}

func (s *memberStore) ExistsByOrgAndEmail(ctx context.Context, orgID int64, email string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM members m
		   JOIN users u ON u.id = m.user_id
		   WHERE m.organization_id = $1 AND lower(u.email) = lower($2)
		 )`, orgID, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *memberStore) Create(ctx context.Context, m *model.Member) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO members (id, organization_id, user_id, role, onboarding_status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+memberColumns,
		m.ID, m.OrganizationID, m.UserID, string(m.Role), string(m.OnboardingStatus))
	created, err := scanMember(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*m = *created
	return nil
}

func (s *memberStore) UpdateRole(ctx context.Context, id int64, role model.OrganizationRole) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE members SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *memberStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *memberStore) ListProfilesByOrganization(ctx context.Context, orgID int64) ([]model.MemberProfile, error) {
	rows, err := s.q.Query(ctx,
		`SELECT m.id, m.user_id, u.name, u.email, m.role, m.onboarding_status, m.joined_at
		 FROM members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.organization_id = $1
		 ORDER BY m.joined_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.MemberProfile
	for rows.Next() {
		var p model.MemberProfile
		var role, onboarding string
		if err := rows.Scan(&p.MemberID, &p.UserID, &p.Name, &p.Email, &role, &onboarding, &p.JoinedAt); err != nil {
			return nil, err
		}
		p.Role = model.OrganizationRole(role)
		p.OnboardingStatus = model.OnboardingStatus(onboarding)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *memberStore) ListByUser(ctx context.Context, userID int64) ([]model.Member, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_id = $1 ORDER BY joined_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMemberRow(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func scanMember(row pgx.Row) (*model.Member, error) {
	m, err := scanMemberRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func scanMemberRow(row pgx.Row) (*model.Member, error) {
	var m model.Member
	var role, onboarding string
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &onboarding, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = model.OrganizationRole(role)
	m.OnboardingStatus = model.OnboardingStatus(onboarding)
	return &m, nil
}
