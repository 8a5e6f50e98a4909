package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/model"
)

type organizationStore struct {
	q db.DBTX
}

const organizationColumns = `id, name, slug, type, created_at, updated_at, is_deleted`

func (s *organizationStore) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1 AND NOT is_deleted`, id)
	return scanOrganization(row)
}

func (s *organizationStore) GetBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE slug = $1 AND NOT is_deleted`, slug)
	return scanOrganization(row)
}

func (s *organizationStore) Create(ctx context.Context, org *model.Organization) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO organizations (id, name, slug, type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+organizationColumns,
		org.ID, org.Name, org.Slug, string(org.Type))
	created, err := scanOrganization(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*org = *created
	return nil
}

func (s *organizationStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE organizations SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrganization(row pgx.Row) (*model.Organization, error) {
	var org model.Organization
	var orgType string
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &orgType, &org.CreatedAt, &org.UpdatedAt, &org.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	org.Type = model.OrganizationType(orgType)
	return &org, nil
}
