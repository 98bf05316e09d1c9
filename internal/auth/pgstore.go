package auth

import (
	"context"
	"database/sql"
	"errors"
)

// PGSessionStore implements SessionStore on PostgreSQL.
type PGSessionStore struct {
	db *sql.DB
}

var _ SessionStore = (*PGSessionStore)(nil)

func NewPGSessionStore(db *sql.DB) *PGSessionStore {
	return &PGSessionStore{db: db}
}

func (s *PGSessionStore) Create(ctx context.Context, session *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, identity_id, token_hash, issued_at, expires_at, revoked)
		 values($1,$2,$3,$4,$5,$6)`,
		session.ID, session.IdentityID, session.TokenHash,
		session.IssuedAt, session.ExpiresAt, session.Revoked,
	)
	return err
}

func (s *PGSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, identity_id, token_hash, issued_at, expires_at, revoked from sessions where id=$1`, id)
	var session Session
	if err := row.Scan(&session.ID, &session.IdentityID, &session.TokenHash,
		&session.IssuedAt, &session.ExpiresAt, &session.Revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *PGSessionStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update sessions set revoked = true where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PGSessionStore) RevokeByIdentity(ctx context.Context, identityID string) error {
	_, err := s.db.ExecContext(ctx, `update sessions set revoked = true where identity_id=$1`, identityID)
	return err
}
