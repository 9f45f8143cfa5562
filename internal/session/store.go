// Package session manages anonymous browser sessions.
//
// A session is a cookie UUID plus a hash of the IP it was first seen from.
// Sessions carry no user identity; they exist so the quota tracker can meter
// usage per browser, and so idle browsers can be swept by retention cleanup.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finsight/finsight/internal/log"
)

// ErrNotFound indicates the session does not exist.
var ErrNotFound = errors.New("session not found")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session is one anonymous browser session.
type Session struct {
	ID         uuid.UUID `json:"id"`
	IPHash     string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Store persists sessions in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates a session Store.
func NewStore(db querier, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger.With("component", "session")}, nil
}

// Create inserts a new session with a fresh UUID.
func (s *Store) Create(ctx context.Context, ipHash string) (Session, error) {
	sess := Session{ID: uuid.New(), IPHash: ipHash}

	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, ip_hash)
		VALUES ($1, $2)
		RETURNING created_at, last_seen_at`,
		sess.ID, ipHash,
	).Scan(&sess.CreatedAt, &sess.LastSeenAt)
	if err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("session created", "session_id", sess.ID)
	return sess, nil
}

// Get returns the session with the given ID. Returns ErrNotFound if it does
// not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, ip_hash, created_at, last_seen_at
		FROM sessions
		WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.IPHash, &sess.CreatedAt, &sess.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// Touch records activity on a session. Missing sessions are not an error;
// the row may already have been swept by retention cleanup.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET last_seen_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// GetOrCreate returns the existing session or creates one when the cookie
// carries an unknown or stale UUID.
func (s *Store) GetOrCreate(ctx context.Context, id uuid.UUID, ipHash string) (Session, bool, error) {
	if id != uuid.Nil {
		sess, err := s.Get(ctx, id)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Session{}, false, err
		}
	}

	sess, err := s.Create(ctx, ipHash)
	if err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

// DeleteIdleBefore removes sessions whose last activity is older than cutoff.
// Quota rows cascade with the session. Returns the number of sessions removed.
func (s *Store) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sessions WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
