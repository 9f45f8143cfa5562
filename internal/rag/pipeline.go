// Package rag sequences one question through the full pipeline: quota
// check, classification, retrieval over SQL and vector corpora, and answer
// synthesis.
//
// Every request terminates in a user-visible answer. Collaborator failures
// are caught at their call site and mapped to a typed outcome; nothing in
// this package panics a request or surfaces a raw error to the end user.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/finsight/finsight/internal/classify"
	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/quota"
	"github.com/finsight/finsight/internal/search"
	"github.com/finsight/finsight/internal/security"
	"github.com/finsight/finsight/internal/sqlgen"
)

// Per-call deadlines. Timeouts degrade to the typed outcome of the failing
// stage instead of aborting the request.
const (
	classifyTimeout  = 20 * time.Second
	retrieveTimeout  = 45 * time.Second
	synthesisTimeout = 60 * time.Second
)

// Outcome tags why an answer is degraded. Empty means a normal answer.
type Outcome string

const (
	OutcomeOK            Outcome = ""
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	// OutcomeQuotaUnavailable means the quota store could not be read, so
	// the request was denied without knowing the real count.
	OutcomeQuotaUnavailable Outcome = "quota_unavailable"
	OutcomeUnknownTicker    Outcome = "unknown_ticker"
	OutcomeNoData           Outcome = "no_data"
	OutcomeProviderDown     Outcome = "provider_unavailable"
)

// Canned answers for degraded outcomes. The model never sees these.
const (
	msgQuotaExceeded = "You have reached your daily query limit. Your quota resets at midnight UTC."
	msgNoData        = "I could not find data matching your question. Try rephrasing it, or ask about a specific NASDAQ-100 company and metric."
	msgProviderDown  = "I am temporarily unable to process questions because the language model service is unavailable. Please try again in a moment."
)

// Result is the terminal state of one request.
type Result struct {
	Answer    string         `json:"answer"`
	QueryType classify.Route `json:"query_type"`
	Companies []string       `json:"companies,omitempty"`
	SQL       string         `json:"sql,omitempty"`
	RowCount  int            `json:"row_count"`
	Sources   []search.Chunk `json:"sources,omitempty"`
	Outcome   Outcome        `json:"error_type,omitempty"`
	Remaining int            `json:"remaining"`
}

type quotaChecker interface {
	CheckAndIncrement(ctx context.Context, sessionID uuid.UUID, ipHash string) (quota.Decision, error)
}

type classifier interface {
	Classify(ctx context.Context, question string) (classify.Classification, error)
}

type directory interface {
	Validate(ctx context.Context, tickers []string) (valid, unknown []string, err error)
	Get(ctx context.Context, ticker string) (company.Company, error)
}

type sqlRunner interface {
	Query(ctx context.Context, question string, mentions []company.Company) (*sqlgen.Result, error)
}

type vectorSearcher interface {
	Search(ctx context.Context, query string, tickers []string) ([]search.Chunk, error)
}

type synthesizer interface {
	FromSQL(ctx context.Context, question string, result *sqlgen.Result) (string, error)
	FromChunks(ctx context.Context, question string, chunks []search.Chunk) (string, error)
	Hybrid(ctx context.Context, question string, result *sqlgen.Result, chunks []search.Chunk) (string, error)
}

// Pipeline wires the collaborators together. Safe for concurrent use; all
// state lives in the stores.
type Pipeline struct {
	quota      quotaChecker
	classifier classifier
	companies  directory
	sql        sqlRunner
	vector     vectorSearcher
	answers    synthesizer
	screen     *security.QuestionScreen
	logger     log.Logger
}

func NewPipeline(q quotaChecker, c classifier, d directory, s sqlRunner, v vectorSearcher, a synthesizer, logger log.Logger) (*Pipeline, error) {
	switch {
	case q == nil:
		return nil, fmt.Errorf("rag: quota checker is nil")
	case c == nil:
		return nil, fmt.Errorf("rag: classifier is nil")
	case d == nil:
		return nil, fmt.Errorf("rag: company directory is nil")
	case s == nil:
		return nil, fmt.Errorf("rag: sql runner is nil")
	case v == nil:
		return nil, fmt.Errorf("rag: vector searcher is nil")
	case a == nil:
		return nil, fmt.Errorf("rag: synthesizer is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Pipeline{
		quota:      q,
		classifier: c,
		companies:  d,
		sql:        s,
		vector:     v,
		answers:    a,
		screen:     security.NewQuestionScreen(),
		logger:     logger.With("component", "pipeline"),
	}, nil
}

// Ask runs one question end to end. The returned Result always carries a
// non-empty Answer; the error return is reserved for context cancellation.
func (p *Pipeline) Ask(ctx context.Context, sessionID uuid.UUID, ipHash, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return &Result{
			Answer:  "Please enter a question about a NASDAQ-100 company.",
			Outcome: OutcomeNoData,
		}, nil
	}

	// Screening happens before the quota charge so a rejected question does
	// not consume a query.
	if screened := p.screen.Screen(question); !screened.Safe {
		p.logger.Warn("question rejected by injection screen",
			"session_id", sessionID, "patterns", len(screened.Patterns))
		return &Result{
			Answer:  "I can only answer questions about NASDAQ-100 companies' financials and filings. Please rephrase your question.",
			Outcome: OutcomeNoData,
		}, nil
	}

	decision, err := p.quota.CheckAndIncrement(ctx, sessionID, ipHash)
	if err != nil {
		// Fail closed: an unreadable quota store denies the request.
		p.logger.Error("quota check failed", "error", err)
		return &Result{
			Answer:  "I could not verify your remaining quota, so this request was not processed. Please try again.",
			Outcome: OutcomeQuotaUnavailable,
		}, ctx.Err()
	}
	if !decision.Allowed {
		p.logger.Info("quota exceeded",
			"session_id", sessionID, "limit_type", decision.LimitType)
		return &Result{Answer: msgQuotaExceeded, Outcome: OutcomeQuotaExceeded}, nil
	}

	result := p.answerQuestion(ctx, question)
	result.Remaining = decision.Remaining()
	return result, ctx.Err()
}

func (p *Pipeline) answerQuestion(ctx context.Context, question string) *Result {
	cls := p.classifyQuestion(ctx, question)

	valid, unknown, err := p.companies.Validate(ctx, cls.Tickers())
	if err != nil {
		p.logger.Error("ticker validation failed", "error", err)
		return &Result{Answer: msgProviderDown, QueryType: cls.Route, Outcome: OutcomeProviderDown}
	}
	if len(unknown) > 0 && len(valid) == 0 {
		return &Result{
			Answer: fmt.Sprintf(
				"I don't have data for %s. I cover NASDAQ-100 companies such as AAPL (Apple), MSFT (Microsoft), and NVDA (NVIDIA).",
				strings.Join(unknown, ", ")),
			QueryType: cls.Route,
			Outcome:   OutcomeUnknownTicker,
		}
	}
	if len(unknown) > 0 {
		p.logger.Debug("dropping unknown tickers", "unknown", unknown)
	}

	switch cls.Route {
	case classify.RouteSQL:
		return p.quantitative(ctx, question, valid)
	case classify.RouteVector:
		return p.qualitative(ctx, question, valid)
	default:
		return p.hybrid(ctx, question, valid)
	}
}

// classifyQuestion degrades malformed classifier output to a hybrid route
// with no company filter, which retrieves from every corpus.
func (p *Pipeline) classifyQuestion(ctx context.Context, question string) classify.Classification {
	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	cls, err := p.classifier.Classify(cctx, question)
	if err != nil {
		if errors.Is(err, classify.ErrMalformed) {
			p.logger.Warn("malformed classification, falling back to hybrid", "error", err)
		} else {
			p.logger.Warn("classification failed, falling back to hybrid", "error", err)
		}
		return classify.Classification{Route: classify.RouteHybrid}
	}
	return cls
}

func (p *Pipeline) quantitative(ctx context.Context, question string, tickers []string) *Result {
	result := &Result{QueryType: classify.RouteSQL, Companies: tickers}

	rctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	rows, err := p.runSQL(rctx, question, tickers)
	cancel()
	if err != nil {
		return p.degradeRetrieval(result, err)
	}
	result.SQL = rows.SQL
	result.RowCount = rows.RowCount

	return p.synthesize(ctx, result, func(sctx context.Context) (string, error) {
		return p.answers.FromSQL(sctx, question, rows)
	})
}

func (p *Pipeline) qualitative(ctx context.Context, question string, tickers []string) *Result {
	result := &Result{QueryType: classify.RouteVector, Companies: tickers}

	rctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	chunks, err := p.vector.Search(rctx, question, tickers)
	cancel()
	if err != nil {
		p.logger.Warn("vector search failed", "error", err)
		result.Answer = msgProviderDown
		result.Outcome = OutcomeProviderDown
		return result
	}
	if len(chunks) == 0 {
		result.Answer = msgNoData
		result.Outcome = OutcomeNoData
		return result
	}
	result.Sources = chunks

	return p.synthesize(ctx, result, func(sctx context.Context) (string, error) {
		return p.answers.FromChunks(sctx, question, chunks)
	})
}

// hybrid runs both retrieval paths concurrently. They are independent reads;
// a failure on one side degrades to whatever the other side returned.
func (p *Pipeline) hybrid(ctx context.Context, question string, tickers []string) *Result {
	result := &Result{QueryType: classify.RouteHybrid, Companies: tickers}

	rctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	defer cancel()

	var (
		rows   *sqlgen.Result
		chunks []search.Chunk
	)
	g, gctx := errgroup.WithContext(rctx)
	g.Go(func() error {
		r, err := p.runSQL(gctx, question, tickers)
		if err != nil {
			p.logger.Debug("hybrid sql side empty", "error", err)
			return nil
		}
		rows = r
		return nil
	})
	g.Go(func() error {
		c, err := p.vector.Search(gctx, question, tickers)
		if err != nil {
			p.logger.Warn("hybrid vector side failed", "error", err)
			return nil
		}
		chunks = c
		return nil
	})
	// Both goroutines swallow their errors; Wait only propagates context
	// cancellation.
	_ = g.Wait()

	if rows == nil && len(chunks) == 0 {
		result.Answer = msgNoData
		result.Outcome = OutcomeNoData
		return result
	}
	if rows != nil {
		result.SQL = rows.SQL
		result.RowCount = rows.RowCount
	}
	result.Sources = chunks

	return p.synthesize(ctx, result, func(sctx context.Context) (string, error) {
		return p.answers.Hybrid(sctx, question, rows, chunks)
	})
}

func (p *Pipeline) runSQL(ctx context.Context, question string, tickers []string) (*sqlgen.Result, error) {
	mentions := make([]company.Company, 0, len(tickers))
	for _, ticker := range tickers {
		c, err := p.companies.Get(ctx, ticker)
		if err != nil {
			// Validated upstream; a miss here means the cache was
			// invalidated mid-request. Skip the ticker.
			p.logger.Debug("ticker lookup miss", "ticker", ticker, "error", err)
			continue
		}
		mentions = append(mentions, c)
	}
	return p.sql.Query(ctx, question, mentions)
}

func (p *Pipeline) degradeRetrieval(result *Result, err error) *Result {
	switch {
	case errors.Is(err, sqlgen.ErrNoData),
		errors.Is(err, sqlgen.ErrUnsafe),
		errors.Is(err, sqlgen.ErrExecution):
		p.logger.Info("sql retrieval degraded", "error", err)
		result.Answer = msgNoData
		result.Outcome = OutcomeNoData
	default:
		p.logger.Warn("sql retrieval failed", "error", err)
		result.Answer = msgProviderDown
		result.Outcome = OutcomeProviderDown
	}
	return result
}

func (p *Pipeline) synthesize(ctx context.Context, result *Result, gen func(context.Context) (string, error)) *Result {
	sctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	answer, err := gen(sctx)
	if err != nil {
		p.logger.Warn("answer synthesis failed", "error", err)
		result.Answer = msgProviderDown
		result.Outcome = OutcomeProviderDown
		return result
	}
	result.Answer = answer
	return result
}
