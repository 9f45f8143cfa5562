// Package security screens user questions before they reach a model prompt.
package security

import (
	"regexp"
	"strings"
	"unicode"
)

// ScreenResult reports why a question was rejected.
type ScreenResult struct {
	Safe     bool     // true if no injection patterns matched
	Patterns []string // matched patterns, empty when safe
}

// QuestionScreen detects common prompt injection attempts in user questions.
// Questions flow into classification, SQL generation and answer synthesis
// prompts, so they are screened once at the pipeline entrance.
//
// No filter is perfect; this catches the common patterns. The system prompts
// downstream restate their own constraints as a second layer.
type QuestionScreen struct {
	patterns []*regexp.Regexp
}

// NewQuestionScreen creates a QuestionScreen with the default pattern set.
func NewQuestionScreen() *QuestionScreen {
	patterns := []string{
		// System prompt override attempts
		`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?)`,
		`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`,
		`(?i)forget\s+(all\s+)?(previous|above|prior)\s+(instructions?|context)`,
		`(?i)override\s+(all\s+)?(previous|above|prior)\s+(instructions?|rules?)`,

		// Role reassignment
		`(?i)^(pretend|act|behave|imagine)\s+(you\s+are|to\s+be|as\s+if|like)`,
		`(?i)^you\s+are\s+now\s+a`,
		`(?i)^from\s+now\s+on,?\s+you\s+(are|will|must)`,

		// Instruction injection
		`(?i)^new\s+(instruction|task|rule)\s*:`,
		`(?i)^admin\s*(mode|override|command)\s*:`,

		// Delimiter manipulation
		`(?i)\]\s*\[\s*(system|assistant|instruction)`,
		`(?i)</?(system|instruction|prompt)>`,
		`(?i)---+\s*(system|new\s+instruction)`,

		// Attempts to extract or run raw SQL directly
		`(?i)^\s*(select|with|insert|update|delete|drop|alter)\b.+\bfrom\b`,
		`(?i)(reveal|show|print)\s+(your|the)\s+(system\s+)?prompt`,

		// Jailbreak phrasing
		`(?i)do\s+anything\s+now`,
		`(?i)jailbreak`,
		`(?i)bypass\s+(safety|filter|restrictions?)`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}

	return &QuestionScreen{patterns: compiled}
}

// Screen checks a question for injection patterns.
func (q *QuestionScreen) Screen(question string) ScreenResult {
	normalized := normalizeQuestion(question)

	var detected []string
	for _, re := range q.patterns {
		if re.MatchString(normalized) {
			detected = append(detected, re.String())
		}
	}

	return ScreenResult{
		Safe:     len(detected) == 0,
		Patterns: detected,
	}
}

// IsSafe reports whether a question passes screening.
func (q *QuestionScreen) IsSafe(question string) bool {
	return q.Screen(question).Safe
}

// normalizeQuestion prepares input for pattern matching: zero-width and
// combining characters are stripped so they cannot split a keyword, and
// whitespace runs collapse to single spaces.
func normalizeQuestion(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
