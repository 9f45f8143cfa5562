// Package quota meters queries per session and per IP against daily limits.
//
// Counters are keyed by UTC calendar day; a new day starts a fresh count
// without any scheduled reset job. Both the session counter and the IP
// counter are bumped in one transaction, so a denial on either limit leaves
// neither incremented.
//
// The tracker fails closed: if the database is unreachable the query is
// denied rather than admitted unmetered.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/log"
)

// LimitType identifies which limit denied a query.
type LimitType string

const (
	// LimitSession means the per-session daily limit was reached.
	LimitSession LimitType = "session"
	// LimitIP means the per-IP daily limit was reached.
	LimitIP LimitType = "ip"
)

// Limits holds the daily quota limits.
type Limits struct {
	SessionDaily int
	IPDaily      int
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	LimitType    LimitType `json:"limit_type,omitempty"` // set when denied
	SessionCount int       `json:"session_count"`        // count after increment (or at denial)
	IPCount      int       `json:"ip_count"`
	SessionLimit int       `json:"session_limit"`
	IPLimit      int       `json:"ip_limit"`
}

// Remaining returns how many queries the session has left today.
func (d Decision) Remaining() int {
	if r := d.SessionLimit - d.SessionCount; r > 0 {
		return r
	}
	return 0
}

// Usage is a session's consumption for the current day.
type Usage struct {
	QueriesToday int        `json:"queries_today"`
	Remaining    int        `json:"queries_remaining"`
	DailyLimit   int        `json:"daily_limit"`
	LastQuery    *time.Time `json:"last_query,omitempty"`
}

// Store tracks daily query counters in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	limits Limits
	logger log.Logger
	now    func() time.Time // injectable for day-boundary tests
}

// NewStore creates a quota Store.
func NewStore(pool *pgxpool.Pool, limits Limits, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if limits.SessionDaily < 1 {
		return nil, fmt.Errorf("session daily limit must be at least 1")
	}
	if limits.IPDaily < limits.SessionDaily {
		return nil, fmt.Errorf("ip daily limit must be >= session daily limit")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		pool:   pool,
		limits: limits,
		logger: logger.With("component", "quota"),
		now:    time.Now,
	}, nil
}

// Limits returns the configured daily limits.
func (s *Store) Limits() Limits {
	return s.limits
}

// today returns the current UTC calendar day. Computed per call so a request
// straddling midnight lands on whichever day the check runs in.
func (s *Store) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sessionIncrementSQL bumps the session counter only while under the limit.
// The conditional upsert makes check-and-increment a single atomic statement,
// so concurrent requests for one session cannot both take the last slot.
const sessionIncrementSQL = `
	INSERT INTO session_quota (session_id, quota_date, query_count)
	VALUES ($1, $2, 1)
	ON CONFLICT (session_id, quota_date) DO UPDATE
	SET query_count = session_quota.query_count + 1, updated_at = NOW()
	WHERE session_quota.query_count < $3
	RETURNING query_count`

const ipIncrementSQL = `
	INSERT INTO ip_quota (ip_hash, quota_date, query_count)
	VALUES ($1, $2, 1)
	ON CONFLICT (ip_hash, quota_date) DO UPDATE
	SET query_count = ip_quota.query_count + 1, updated_at = NOW()
	WHERE ip_quota.query_count < $3
	RETURNING query_count`

// CheckAndIncrement admits or denies one query for the session/IP pair.
//
// On admission both counters are incremented atomically. On denial neither
// counter moves and Decision reports which limit was hit together with the
// current counts. Any error denies the query (fail closed); callers should
// surface it as a temporary condition, not as quota exhaustion.
func (s *Store) CheckAndIncrement(ctx context.Context, sessionID uuid.UUID, ipHash string) (Decision, error) {
	d := Decision{SessionLimit: s.limits.SessionDaily, IPLimit: s.limits.IPDaily}
	today := s.today()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return d, fmt.Errorf("beginning quota transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("quota transaction rollback", "error", rbErr)
		}
	}()

	err = tx.QueryRow(ctx, sessionIncrementSQL, sessionID, today, s.limits.SessionDaily).Scan(&d.SessionCount)
	if errors.Is(err, pgx.ErrNoRows) {
		// Limit reached; read the standing count for the denial payload.
		if err := tx.QueryRow(ctx,
			`SELECT query_count FROM session_quota WHERE session_id = $1 AND quota_date = $2`,
			sessionID, today).Scan(&d.SessionCount); err != nil {
			return d, fmt.Errorf("reading session count: %w", err)
		}
		d.LimitType = LimitSession
		s.logger.Info("query denied by session quota",
			"session_id", sessionID, "count", d.SessionCount, "limit", s.limits.SessionDaily)
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("incrementing session quota: %w", err)
	}

	err = tx.QueryRow(ctx, ipIncrementSQL, ipHash, today, s.limits.IPDaily).Scan(&d.IPCount)
	if errors.Is(err, pgx.ErrNoRows) {
		// IP exhausted: the rollback undoes the session increment too.
		if err := tx.QueryRow(ctx,
			`SELECT query_count FROM ip_quota WHERE ip_hash = $1 AND quota_date = $2`,
			ipHash, today).Scan(&d.IPCount); err != nil {
			return d, fmt.Errorf("reading ip count: %w", err)
		}
		d.SessionCount-- // report the pre-increment value
		d.LimitType = LimitIP
		s.logger.Warn("query denied by ip quota",
			"ip", ipHash, "count", d.IPCount, "limit", s.limits.IPDaily)
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("incrementing ip quota: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return d, fmt.Errorf("committing quota transaction: %w", err)
	}

	d.Allowed = true
	return d, nil
}

// Usage returns the session's consumption for the current day. A session
// with no row today has used nothing.
func (s *Store) Usage(ctx context.Context, sessionID uuid.UUID) (Usage, error) {
	u := Usage{DailyLimit: s.limits.SessionDaily, Remaining: s.limits.SessionDaily}

	var count int
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT query_count, updated_at
		FROM session_quota
		WHERE session_id = $1 AND quota_date = $2`,
		sessionID, s.today(),
	).Scan(&count, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return Usage{}, fmt.Errorf("reading usage: %w", err)
	}

	u.QueriesToday = count
	u.Remaining = max(0, s.limits.SessionDaily-count)
	u.LastQuery = &updatedAt
	return u, nil
}

// Reset clears the session's counter for the current day. Operator tooling
// only; it does not touch the IP counter.
func (s *Store) Reset(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM session_quota WHERE session_id = $1 AND quota_date = $2`,
		sessionID, s.today())
	if err != nil {
		return fmt.Errorf("resetting session quota: %w", err)
	}
	s.logger.Info("session quota reset", "session_id", sessionID)
	return nil
}

// CleanupBefore removes counters older than cutoff. Returns rows removed per
// table.
func (s *Store) CleanupBefore(ctx context.Context, cutoff time.Time) (sessions, ips int64, err error) {
	day := cutoff.UTC()

	tag, err := s.pool.Exec(ctx, `DELETE FROM session_quota WHERE quota_date < $1`, day)
	if err != nil {
		return 0, 0, fmt.Errorf("cleaning session quota: %w", err)
	}
	sessions = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM ip_quota WHERE quota_date < $1`, day)
	if err != nil {
		return sessions, 0, fmt.Errorf("cleaning ip quota: %w", err)
	}
	ips = tag.RowsAffected()

	return sessions, ips, nil
}
