package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sproutlog.app/api/core/db"
	"sproutlog.app/api/internal/model"
)

type sessionStore struct {
	q db.DBTX
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions WHERE id = $1 AND expires_at > now()`, id)
	var session model.Session
	err := row.Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, expires_at, created_at`,
		session.ID, session.UserID, session.ExpiresAt)
	var created model.Session
	if err := row.Scan(&created.ID, &created.UserID, &created.ExpiresAt, &created.CreatedAt); err != nil {
		return err
	}
	*session = created
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	return err
}
