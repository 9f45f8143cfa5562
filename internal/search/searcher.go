// Package search performs semantic retrieval over the document corpora:
// 10-K filing chunks and earnings call transcript chunks, both stored as
// pgvector embeddings and ranked by cosine similarity.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/finsight/finsight/internal/log"
)

// VectorDimension is fixed by the schema and the embedding model.
const VectorDimension = 1536

// EmbedTimeout bounds a single embedding call.
const EmbedTimeout = 15 * time.Second

// Similarity thresholds, tuned per corpus. Company-filtered 10-K searches
// run against a much smaller candidate set and can afford a stricter cutoff
// than open discovery queries.
const (
	ThresholdTenKOpen    = 0.45
	ThresholdTenKCompany = 0.58
	ThresholdTranscripts = 0.55
)

// SourceType tags where a retrieved chunk came from.
type SourceType string

const (
	SourceTenK       SourceType = "10-K"
	SourceTranscript SourceType = "transcript"
)

// Chunk is one retrieved passage with enough provenance to cite it.
type Chunk struct {
	Source     SourceType `json:"source"`
	Ticker     string     `json:"ticker"`
	Company    string     `json:"company"`
	Section    string     `json:"section,omitempty"`
	Speaker    string     `json:"speaker,omitempty"`
	Period     string     `json:"period"`
	Text       string     `json:"text"`
	Similarity float64    `json:"similarity"`
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Searcher embeds a query once and runs cosine-similarity retrieval over
// one or both corpora. Safe for concurrent use.
type Searcher struct {
	db        querier
	embedder  ai.Embedder
	embedOpts any
	topK      int
	logger    log.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithEmbedOptions attaches provider-specific options to every embed call,
// e.g. *genai.EmbedContentConfig to pin the output dimensionality on Gemini
// embedders.
func WithEmbedOptions(opts any) Option {
	return func(s *Searcher) { s.embedOpts = opts }
}

func NewSearcher(db querier, embedder ai.Embedder, topK int, logger log.Logger, opts ...Option) (*Searcher, error) {
	if db == nil {
		return nil, fmt.Errorf("search: db is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("search: embedder is nil")
	}
	if topK < 1 {
		return nil, fmt.Errorf("search: topK must be positive, got %d", topK)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Searcher{
		db:       db,
		embedder: embedder,
		topK:     topK,
		logger:   logger.With("component", "search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TopK reports the per-corpus result limit the searcher was built with.
func (s *Searcher) TopK() int { return s.topK }

func (s *Searcher) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: s.embedOpts,
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != VectorDimension {
		return pgvector.Vector{}, fmt.Errorf("embedding has %d dimensions, schema requires %d", len(vec), VectorDimension)
	}
	return pgvector.NewVector(vec), nil
}

// SearchTenK retrieves 10-K filing chunks above the threshold, newest-first
// within equal similarity. An empty ticker list searches the whole corpus.
func (s *Searcher) SearchTenK(ctx context.Context, query string, tickers []string, limit int) ([]Chunk, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.searchTenK(ctx, vec, tickers, limit)
}

func (s *Searcher) searchTenK(ctx context.Context, vec pgvector.Vector, tickers []string, limit int) ([]Chunk, error) {
	threshold := ThresholdTenKOpen
	if len(tickers) > 0 {
		threshold = ThresholdTenKCompany
	}

	sql := `SELECT e.ticker, c.name, s.item_label, e.fiscal_year, e.chunk_text,
	               1 - (e.embedding <=> $1) AS similarity
	        FROM tenk_embeddings e
	        JOIN tenk_sections s ON s.section_id = e.section_id
	        JOIN companies c ON c.ticker = e.ticker
	        WHERE 1 - (e.embedding <=> $1) >= $2`
	args := []any{vec, threshold}

	if len(tickers) > 0 {
		sql += ` AND e.ticker = ANY($3)`
		args = append(args, normalizeTickers(tickers))
	}
	sql += fmt.Sprintf(` ORDER BY e.embedding <=> $1 LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching 10-K chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			ch         Chunk
			fiscalYear int
		)
		if err := rows.Scan(&ch.Ticker, &ch.Company, &ch.Section, &fiscalYear, &ch.Text, &ch.Similarity); err != nil {
			return nil, fmt.Errorf("scanning 10-K chunk: %w", err)
		}
		ch.Source = SourceTenK
		ch.Period = fmt.Sprintf("FY%d", fiscalYear)
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching 10-K chunks: %w", err)
	}
	return chunks, nil
}

// SearchTranscripts retrieves earnings call passages above the threshold.
func (s *Searcher) SearchTranscripts(ctx context.Context, query string, tickers []string, limit int) ([]Chunk, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.searchTranscripts(ctx, vec, tickers, limit)
}

func (s *Searcher) searchTranscripts(ctx context.Context, vec pgvector.Vector, tickers []string, limit int) ([]Chunk, error) {
	sql := `SELECT t.ticker, c.name, COALESCE(t.speaker, ''), t.fiscal_year, t.fiscal_quarter, t.chunk_text,
	               1 - (t.embedding <=> $1) AS similarity
	        FROM transcript_chunks t
	        JOIN companies c ON c.ticker = t.ticker
	        WHERE 1 - (t.embedding <=> $1) >= $2`
	args := []any{vec, ThresholdTranscripts}

	if len(tickers) > 0 {
		sql += ` AND t.ticker = ANY($3)`
		args = append(args, normalizeTickers(tickers))
	}
	sql += fmt.Sprintf(` ORDER BY t.embedding <=> $1 LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching transcripts: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			ch       Chunk
			year, qt int
		)
		if err := rows.Scan(&ch.Ticker, &ch.Company, &ch.Speaker, &year, &qt, &ch.Text, &ch.Similarity); err != nil {
			return nil, fmt.Errorf("scanning transcript chunk: %w", err)
		}
		ch.Source = SourceTranscript
		ch.Period = fmt.Sprintf("Q%d FY%d", qt, year)
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching transcripts: %w", err)
	}
	return chunks, nil
}

// Search embeds the query once, retrieves from both corpora, and merges the
// results by similarity. The per-corpus limit is topK for a single-company
// query and 2*topK for multi-company or discovery queries; the merged list
// is capped at twice the per-corpus limit.
func (s *Searcher) Search(ctx context.Context, query string, tickers []string) ([]Chunk, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	limit := s.topK
	if len(tickers) != 1 {
		limit = s.topK * 2
	}

	tenk, err := s.searchTenK(ctx, vec, tickers, limit)
	if err != nil {
		return nil, err
	}
	transcripts, err := s.searchTranscripts(ctx, vec, tickers, limit)
	if err != nil {
		return nil, err
	}

	merged := mergeBySimilarity(tenk, transcripts, limit*2)
	s.logger.Debug("vector search complete",
		"tenk_hits", len(tenk),
		"transcript_hits", len(transcripts),
		"returned", len(merged))
	return merged, nil
}

// mergeBySimilarity interleaves two result sets in descending similarity
// order and caps the output.
func mergeBySimilarity(a, b []Chunk, limit int) []Chunk {
	merged := make([]Chunk, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
