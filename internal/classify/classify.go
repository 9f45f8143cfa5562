// Package classify routes user questions to a retrieval strategy.
//
// A question is quantitative (answerable from financial statement tables),
// qualitative (answerable from 10-K and transcript text) or hybrid (needs
// both). The model also extracts which covered companies the question
// mentions, resolving names and typos to tickers against the directory.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/llm"
	"github.com/finsight/finsight/internal/log"
)

// ErrMalformed indicates the model returned output that is not a valid
// classification. Callers typically fall back to the hybrid route.
var ErrMalformed = errors.New("malformed classification")

// Route is the retrieval strategy for a query.
type Route string

const (
	// RouteSQL answers from the financial statement tables.
	RouteSQL Route = "QUANTITATIVE"
	// RouteVector answers from 10-K and transcript chunks.
	RouteVector Route = "QUALITATIVE"
	// RouteHybrid combines both retrieval paths.
	RouteHybrid Route = "HYBRID"
)

// Valid reports whether r is a known route.
func (r Route) Valid() bool {
	switch r {
	case RouteSQL, RouteVector, RouteHybrid:
		return true
	}
	return false
}

// Mention is one company the model recognized in the question.
type Mention struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// Classification is the routing decision for one query.
type Classification struct {
	Route              Route     `json:"query_type"`
	Reasoning          string    `json:"reasoning"`
	MentionedCompanies []Mention `json:"mentioned_companies"`
	FinancialMetrics   []string  `json:"financial_metrics"`
	QualitativeAspects []string  `json:"qualitative_aspects"`
}

// Tickers returns the upper-cased tickers of all mentioned companies.
func (c Classification) Tickers() []string {
	tickers := make([]string, 0, len(c.MentionedCompanies))
	for _, m := range c.MentionedCompanies {
		if t := strings.ToUpper(strings.TrimSpace(m.Ticker)); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

// generator is the slice of llm.Client this package needs.
type generator interface {
	GenerateText(ctx context.Context, opts llm.GenerateOpts) (string, error)
}

// directory provides the coverage universe for the prompt.
type directory interface {
	List(ctx context.Context) ([]company.Company, error)
}

// Classifier classifies queries with a model call.
//
// Classifier is safe for concurrent use by multiple goroutines.
type Classifier struct {
	gen       generator
	companies directory
	schema    *jsonschema.Resolved
	logger    log.Logger
}

// New creates a Classifier.
func New(gen generator, companies directory, logger log.Logger) (*Classifier, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if companies == nil {
		return nil, fmt.Errorf("company directory is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	schema, err := jsonschema.For[Classification](nil)
	if err != nil {
		return nil, fmt.Errorf("building classification schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving classification schema: %w", err)
	}

	return &Classifier{
		gen:       gen,
		companies: companies,
		schema:    resolved,
		logger:    logger.With("component", "classify"),
	}, nil
}

const systemPromptTemplate = `You are a query classifier for a NASDAQ-100 stock screening system.

AVAILABLE COMPANIES:
%s
You have access to two types of data:

1. STRUCTURED DATA (SQL): Financial statements with numerical metrics
- Income statements, balance sheets, cash flow statements
- Financial ratios (margins, ROE, debt ratios)
- Time series data across fiscal years and quarters

2. TEXTUAL DATA (Vector Search): 10-K filing sections and earnings call transcripts
- Business description and strategy
- Risk factors
- Management discussion & analysis (MD&A)
- Legal proceedings and market risk disclosures

Classify the query into ONE category:

QUANTITATIVE: Asks for numerical metrics, financial calculations, comparisons
Examples:
- "Which companies have revenue over $100B?"
- "Show me companies with ROE > 15%%"
- "Compare profit margins of Apple and Microsoft"

QUALITATIVE: Asks about business strategy, risks, operations, non-numerical info
Examples:
- "What are Apple's main risk factors?"
- "Describe Microsoft's business model"
- "What legal issues is Tesla facing?"

HYBRID: Requires BOTH financial data AND qualitative context
Examples:
- "Which high-revenue companies face regulatory risks?"
- "Show profitable companies with strong AI strategy"

IMPORTANT - Company Name Extraction:
- Extract ANY mentioned companies from the query
- Match company names to tickers using the AVAILABLE COMPANIES list above
- Handle variations (e.g., "Apple" -> AAPL, "Meta" or "Facebook" -> META)
- Handle typos intelligently (e.g., "Nvida" -> NVDA)
- If a ticker is mentioned directly (e.g., "AAPL"), use it

Respond ONLY with valid JSON:
{
    "query_type": "QUANTITATIVE" | "QUALITATIVE" | "HYBRID",
    "reasoning": "Brief explanation",
    "mentioned_companies": [
        {"name": "Apple Inc", "ticker": "AAPL"}
    ],
    "financial_metrics": ["revenue", "profit_margin"],
    "qualitative_aspects": ["risk_factors"]
}`

// maxResponseBytes bounds the classification payload; a well-formed answer
// is a few hundred bytes.
const maxResponseBytes = 16 * 1024

// Classify classifies one query.
//
// Provider failures are returned as-is (wrapping llm.ErrUnavailable).
// Output that does not parse or validate returns ErrMalformed; the caller
// decides whether to fall back to the hybrid route.
func (c *Classifier) Classify(ctx context.Context, query string) (Classification, error) {
	companies, err := c.companies.List(ctx)
	if err != nil {
		return Classification{}, fmt.Errorf("loading company directory: %w", err)
	}

	text, err := c.gen.GenerateText(ctx, llm.GenerateOpts{
		System:      fmt.Sprintf(systemPromptTemplate, company.PromptList(companies)),
		Prompt:      query,
		Temperature: 0.1,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classifying query: %w", err)
	}

	cls, err := c.parse(text)
	if err != nil {
		c.logger.Warn("classification rejected", "error", err)
		return Classification{}, err
	}

	c.logger.Info("query classified",
		"route", cls.Route,
		"tickers", cls.Tickers(),
	)
	return cls, nil
}

// parse decodes and validates the model output.
func (c *Classifier) parse(text string) (Classification, error) {
	text = llm.StripCodeFences(text)
	if text == "" {
		return Classification{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}
	if len(text) > maxResponseBytes {
		return Classification{}, fmt.Errorf("%w: response too large (%d bytes)", ErrMalformed, len(text))
	}

	// Validate the raw JSON against the schema before binding it, so a shape
	// mismatch is reported as malformed rather than silently zeroed.
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := c.schema.Validate(raw); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var cls Classification
	if err := json.Unmarshal([]byte(text), &cls); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if !cls.Route.Valid() {
		return Classification{}, fmt.Errorf("%w: unknown route %q", ErrMalformed, cls.Route)
	}
	return cls, nil
}
