// Package session persists the authenticated session in the local state
// database. Tokens are sealed at rest; a corrupt or undecryptable row is
// purged rather than surfaced, so callers only ever see a session or nil.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corvandale/leadctl/internal/model"
)

type Store struct {
	db     *sql.DB
	secret string
}

// NewStore creates a session store over the state database. The secret is
// either the configured passphrase or the generated machine key.
func NewStore(db *sql.DB, secret string) *Store {
	return &Store{db: db, secret: secret}
}

// Load reconstructs the persisted session. It returns (nil, nil) when no
// session is stored; a malformed or undecryptable row is purged and also
// reported as absent.
func (s *Store) Load(ctx context.Context) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, user_json, salt FROM session WHERE id = 1`)

	var accessBlob, refreshBlob, salt []byte
	var userJSON string
	err := row.Scan(&accessBlob, &refreshBlob, &userJSON, &salt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	key := deriveKey(s.secret, salt)

	access, err := open(key, accessBlob)
	if err != nil {
		return nil, s.purge(ctx, "access token", err)
	}
	refresh, err := open(key, refreshBlob)
	if err != nil {
		return nil, s.purge(ctx, "refresh token", err)
	}

	var user model.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, s.purge(ctx, "user record", err)
	}

	sess := &model.Session{
		AccessToken:  string(access),
		RefreshToken: string(refresh),
		User:         user,
	}
	if !sess.Valid() {
		return nil, s.purge(ctx, "tokens", fmt.Errorf("empty token"))
	}
	return sess, nil
}

// purge drops the stored row after a decode failure. The load still
// reports "no session", so the failure never crosses this boundary.
func (s *Store) purge(ctx context.Context, what string, cause error) error {
	slog.Warn("purging malformed session state", "field", what, "error", cause)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("purge session: %w", err)
	}
	return nil
}

// Save persists the session in a single transaction, replacing any
// previous one. Sessions missing either token are rejected.
func (s *Store) Save(ctx context.Context, sess *model.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("save session: both tokens are required")
	}

	salt, err := generateSalt()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	key := deriveKey(s.secret, salt)

	accessBlob, err := seal(key, []byte(sess.AccessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refreshBlob, err := seal(key, []byte(sess.RefreshToken))
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO session (id, access_token, refresh_token, user_json, salt, updated_at)
		 VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		accessBlob, refreshBlob, string(userJSON), salt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// SetAccessToken replaces only the access token, keeping the refresh
// token and user intact. Used after a token refresh.
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	sess, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("set access token: no stored session")
	}
	sess.AccessToken = token
	return s.Save(ctx, sess)
}

// Clear removes all persisted session state.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// UpdateUser replaces the cached user record without touching tokens.
func (s *Store) UpdateUser(ctx context.Context, user model.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE session SET user_json = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
		string(userJSON))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update user: no stored session")
	}
	return nil
}
