package llm

import (
	"errors"
	"testing"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: errors.New("openai: Rate Limit exceeded"), want: true},
		{name: "429", err: errors.New("unexpected status 429"), want: true},
		{name: "503", err: errors.New("server returned 503"), want: true},
		{name: "timeout", err: errors.New("dial tcp: i/o Timeout"), want: true},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "invalid api key", err: errors.New("invalid api key"), want: false},
		{name: "bad request", err: errors.New("400 bad request"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\nSELECT 1\n```", want: "SELECT 1"},
		{name: "sql fence", input: "```sql\nSELECT 1;\n```", want: "SELECT 1;"},
		{name: "surrounding whitespace", input: "  ```\nx\n```  ", want: "x"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(nil, "openai/gpt-4o-mini", nil); err == nil {
		t.Error("expected error for nil genkit instance")
	}
}
