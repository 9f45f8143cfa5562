package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/llm"
)

type fakeGenerator struct {
	response string
	err      error
	lastOpts llm.GenerateOpts
}

func (f *fakeGenerator) GenerateText(_ context.Context, opts llm.GenerateOpts) (string, error) {
	f.lastOpts = opts
	return f.response, f.err
}

type fakeDirectory struct{}

func (fakeDirectory) List(context.Context) ([]company.Company, error) {
	return []company.Company{
		{Ticker: "AAPL", Name: "Apple Inc"},
		{Ticker: "NVDA", Name: "NVIDIA Corp"},
	}, nil
}

func newTestClassifier(t *testing.T, gen *fakeGenerator) *Classifier {
	t.Helper()
	c, err := New(gen, fakeDirectory{}, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

func TestClassify_Quantitative(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"query_type": "QUANTITATIVE",
		"reasoning": "asks for a numeric comparison",
		"mentioned_companies": [{"name": "Apple Inc", "ticker": "aapl"}],
		"financial_metrics": ["revenue"],
		"qualitative_aspects": []
	}`}
	c := newTestClassifier(t, gen)

	cls, err := c.Classify(context.Background(), "What was Apple's revenue in 2024?")
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}

	if cls.Route != RouteSQL {
		t.Errorf("Route = %q, want %q", cls.Route, RouteSQL)
	}
	tickers := cls.Tickers()
	if len(tickers) != 1 || tickers[0] != "AAPL" {
		t.Errorf("Tickers() = %v, want [AAPL]", tickers)
	}
	if !strings.Contains(gen.lastOpts.System, "AAPL: Apple Inc") {
		t.Error("system prompt missing company directory")
	}
}

func TestClassify_CodeFencedResponse(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n" + `{
		"query_type": "QUALITATIVE",
		"reasoning": "risk factors are textual",
		"mentioned_companies": [],
		"financial_metrics": [],
		"qualitative_aspects": ["risk_factors"]
	}` + "\n```"}
	c := newTestClassifier(t, gen)

	cls, err := c.Classify(context.Background(), "What risks does the sector face?")
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}
	if cls.Route != RouteVector {
		t.Errorf("Route = %q, want %q", cls.Route, RouteVector)
	}
}

func TestClassify_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "not json", response: "the query is quantitative"},
		{name: "empty", response: ""},
		{name: "unknown route", response: `{"query_type": "NUMERIC", "reasoning": "x"}`},
		{name: "wrong shape", response: `{"query_type": 42}`},
		{name: "json array", response: `["QUANTITATIVE"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, &fakeGenerator{response: tt.response})

			_, err := c.Classify(context.Background(), "anything")
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestClassify_ProviderErrorPassesThrough(t *testing.T) {
	gen := &fakeGenerator{err: llm.ErrUnavailable}
	c := newTestClassifier(t, gen)

	_, err := c.Classify(context.Background(), "anything")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Errorf("expected llm.ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("provider failure must not be reported as malformed output")
	}
}

func TestRoute_Valid(t *testing.T) {
	for _, r := range []Route{RouteSQL, RouteVector, RouteHybrid} {
		if !r.Valid() {
			t.Errorf("Route %q should be valid", r)
		}
	}
	if Route("OTHER").Valid() {
		t.Error("unknown route should be invalid")
	}
}
