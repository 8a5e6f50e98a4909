package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/model"
)

type userStore struct {
	q db.DBTX
}

const userColumns = `id, name, email, avatar_url, workos_id, created_at, updated_at`

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO users (id, name, email, avatar_url, workos_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.AvatarURL, user.WorkOSID)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*user = *created
	return nil
}

// UpsertByWorkOSID inserts the user or refreshes name/email/avatar when the
// WorkOS identity already exists. The caller's snowflake ID is only used on
// insert; on conflict the stored row wins and is copied back.
func (s *userStore) UpsertByWorkOSID(ctx context.Context, user *model.User) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO users (id, name, email, avatar_url, workos_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (workos_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     avatar_url = EXCLUDED.avatar_url,
		     updated_at = now()
		 RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.AvatarURL, user.WorkOSID)
	upserted, err := scanUser(row)
	if err != nil {
		return err
	}
	*user = *upserted
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL, &user.WorkOSID,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
