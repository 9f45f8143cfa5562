package company

import (
	"context"
	"errors"
	"testing"

	"github.com/finsight/finsight/internal/log"
)

// cachedStore returns a Store with a pre-populated directory so tests can
// exercise lookup logic without a database.
func cachedStore(companies []Company) *Store {
	return &Store{
		db:     nil, // cache hit means the db is never touched
		logger: log.NewNop(),
		cache:  companies,
	}
}

var testUniverse = []Company{
	{Ticker: "AAPL", Name: "Apple Inc"},
	{Ticker: "MSFT", Name: "Microsoft Corporation"},
	{Ticker: "NVDA", Name: "NVIDIA Corp"},
}

func TestStore_Get(t *testing.T) {
	s := cachedStore(testUniverse)
	ctx := context.Background()

	tests := []struct {
		name    string
		ticker  string
		want    string
		wantErr bool
	}{
		{name: "exact", ticker: "NVDA", want: "NVIDIA Corp"},
		{name: "lowercase normalized", ticker: "aapl", want: "Apple Inc"},
		{name: "whitespace trimmed", ticker: " MSFT ", want: "Microsoft Corporation"},
		{name: "unknown", ticker: "TSLA", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := s.Get(ctx, tt.ticker)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get(%q) failed: %v", tt.ticker, err)
			}
			if c.Name != tt.want {
				t.Errorf("Get(%q).Name = %q, want %q", tt.ticker, c.Name, tt.want)
			}
		})
	}
}

func TestStore_Validate(t *testing.T) {
	s := cachedStore(testUniverse)
	ctx := context.Background()

	valid, unknown, err := s.Validate(ctx, []string{"aapl", "TSLA", "AAPL", "", "NVDA"})
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	wantValid := []string{"AAPL", "NVDA"}
	wantUnknown := []string{"TSLA"}

	if len(valid) != len(wantValid) {
		t.Fatalf("valid = %v, want %v", valid, wantValid)
	}
	for i := range wantValid {
		if valid[i] != wantValid[i] {
			t.Errorf("valid[%d] = %q, want %q", i, valid[i], wantValid[i])
		}
	}
	if len(unknown) != 1 || unknown[0] != wantUnknown[0] {
		t.Errorf("unknown = %v, want %v", unknown, wantUnknown)
	}
}

func TestStore_Validate_Empty(t *testing.T) {
	s := cachedStore(testUniverse)

	valid, unknown, err := s.Validate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Validate(nil) failed: %v", err)
	}
	if valid != nil || unknown != nil {
		t.Errorf("expected nil slices, got %v / %v", valid, unknown)
	}
}

func TestPromptList(t *testing.T) {
	got := PromptList(testUniverse[:2])
	want := "AAPL: Apple Inc\nMSFT: Microsoft Corporation\n"
	if got != want {
		t.Errorf("PromptList() = %q, want %q", got, want)
	}
}

func TestNewStore_NilDB(t *testing.T) {
	if _, err := NewStore(nil, nil); err == nil {
		t.Fatal("NewStore(nil) expected error, got nil")
	}
}
