// Package company provides the NASDAQ-100 company directory.
//
// The coverage universe is loaded from the companies table and cached in
// memory: it changes only when the ingest pipeline reloads reference data,
// and the classifier needs the full list on every request to resolve company
// names to tickers.
package company

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finsight/finsight/internal/log"
)

// ErrNotFound indicates the requested ticker is not in the coverage universe.
var ErrNotFound = errors.New("company not found")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Company is one entry in the coverage universe.
type Company struct {
	SimFinID int    `json:"simfin_id,omitempty"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
	ISIN     string `json:"isin,omitempty"`
}

// Store reads company reference data, caching the directory after first load.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger

	mu    sync.RWMutex
	cache []Company // sorted by ticker; nil until first load
}

// NewStore creates a company Store.
func NewStore(db querier, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger.With("component", "company")}, nil
}

// List returns all covered companies sorted by ticker.
// The returned slice is shared; callers must not modify it.
func (s *Store) List(ctx context.Context) ([]Company, error) {
	s.mu.RLock()
	cached := s.cache
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT COALESCE(simfin_id, 0), ticker, name, COALESCE(currency, ''), COALESCE(isin, '')
		FROM companies
		ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.SimFinID, &c.Ticker, &c.Name, &c.Currency, &c.ISIN); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading companies: %w", err)
	}

	s.mu.Lock()
	s.cache = companies
	s.mu.Unlock()

	s.logger.Debug("company directory loaded", "count", len(companies))
	return companies, nil
}

// Get returns one company by ticker. Returns ErrNotFound if the ticker is
// not covered.
func (s *Store) Get(ctx context.Context, ticker string) (Company, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	companies, err := s.List(ctx)
	if err != nil {
		return Company{}, err
	}

	i := sort.Search(len(companies), func(i int) bool { return companies[i].Ticker >= ticker })
	if i < len(companies) && companies[i].Ticker == ticker {
		return companies[i], nil
	}
	return Company{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
}

// Names returns a ticker to company-name map for the whole universe.
func (s *Store) Names(ctx context.Context) (map[string]string, error) {
	companies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(companies))
	for _, c := range companies {
		names[c.Ticker] = c.Name
	}
	return names, nil
}

// Validate splits tickers into those inside and outside the coverage
// universe. Input tickers are upper-cased and deduplicated, preserving order.
func (s *Store) Validate(ctx context.Context, tickers []string) (valid, unknown []string, err error) {
	if len(tickers) == 0 {
		return nil, nil, nil
	}

	names, err := s.Names(ctx)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if _, ok := names[t]; ok {
			valid = append(valid, t)
		} else {
			unknown = append(unknown, t)
		}
	}
	return valid, unknown, nil
}

// Invalidate clears the cached directory. Call after the ingest pipeline
// reloads reference data.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// PromptList renders the directory as "TICKER: Name" lines for inclusion in
// classification and SQL generation prompts.
func PromptList(companies []Company) string {
	var b strings.Builder
	for _, c := range companies {
		b.WriteString(c.Ticker)
		b.WriteString(": ")
		b.WriteString(c.Name)
		b.WriteString("\n")
	}
	return b.String()
}
