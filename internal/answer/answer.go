// Package answer turns retrieved evidence into a plain-text response. Each
// route gets its own prompt: database rows for quantitative questions,
// document passages for qualitative ones, and both for hybrid questions.
package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/finsight/finsight/internal/llm"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/search"
	"github.com/finsight/finsight/internal/sqlgen"
)

const (
	temperature = 0.3

	// Hybrid answers weave two evidence sets together and get more room.
	maxTokensSingle = 600
	maxTokensHybrid = 800

	// Caps on how much evidence enters the prompt.
	maxPromptRows        = 10
	maxPromptChunks      = 5
	maxHybridChunks      = 3
	maxChunkPromptLength = 300
)

const systemPrompt = `You are a financial analyst assistant answering questions about NASDAQ-100 companies.
Answer using ONLY the provided data. Be concise and factual.
State figures with their fiscal period and currency where available.
Respond in plain text only: no markdown, no asterisks, no bullet symbols.
If the data does not answer the question, say so directly.`

type generator interface {
	GenerateText(ctx context.Context, opts llm.GenerateOpts) (string, error)
}

// Generator synthesizes the final user-facing answer.
type Generator struct {
	model  generator
	logger log.Logger
}

func NewGenerator(model generator, logger log.Logger) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("answer: model is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{model: model, logger: logger.With("component", "answer")}, nil
}

// FromSQL answers a quantitative question from query results.
func (g *Generator) FromSQL(ctx context.Context, question string, result *sqlgen.Result) (string, error) {
	if result == nil || result.RowCount == 0 {
		return "", fmt.Errorf("answer: no query results to summarize")
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nDatabase results:\n")
	writeRows(&b, result)
	b.WriteString("\nAnswer the question from these results.")

	return g.generate(ctx, b.String(), maxTokensSingle)
}

// FromChunks answers a qualitative question from retrieved passages.
func (g *Generator) FromChunks(ctx context.Context, question string, chunks []search.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("answer: no passages to summarize")
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nRelevant excerpts from filings and earnings calls:\n")
	writeChunks(&b, chunks, maxPromptChunks)
	b.WriteString("\nAnswer the question from these excerpts. Mention which company and period each point comes from.")

	return g.generate(ctx, b.String(), maxTokensSingle)
}

// Hybrid answers a question that needs both numbers and narrative.
func (g *Generator) Hybrid(ctx context.Context, question string, result *sqlgen.Result, chunks []search.Chunk) (string, error) {
	if (result == nil || result.RowCount == 0) && len(chunks) == 0 {
		return "", fmt.Errorf("answer: no evidence to summarize")
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")

	if result != nil && result.RowCount > 0 {
		b.WriteString("Database results:\n")
		writeRows(&b, result)
		b.WriteString("\n")
	}
	if len(chunks) > 0 {
		b.WriteString("Relevant excerpts from filings and earnings calls:\n")
		writeChunks(&b, chunks, maxHybridChunks)
		b.WriteString("\n")
	}
	b.WriteString("Combine the quantitative data and the excerpts into one coherent answer.")

	return g.generate(ctx, b.String(), maxTokensHybrid)
}

func (g *Generator) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	out, err := g.model.GenerateText(ctx, llm.GenerateOpts{
		System:          systemPrompt,
		Prompt:          prompt,
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	text := strings.TrimSpace(out)
	if text == "" {
		return "", fmt.Errorf("generating answer: model returned empty text")
	}
	return text, nil
}

// writeRows renders up to maxPromptRows rows in column order.
func writeRows(b *strings.Builder, result *sqlgen.Result) {
	rows := result.Rows
	truncated := false
	if len(rows) > maxPromptRows {
		rows = rows[:maxPromptRows]
		truncated = true
	}

	for _, row := range rows {
		parts := make([]string, 0, len(result.Columns))
		for _, col := range result.Columns {
			parts = append(parts, fmt.Sprintf("%s=%v", col, row[col]))
		}
		b.WriteString("- ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	if truncated {
		fmt.Fprintf(b, "(showing %d of %d rows)\n", maxPromptRows, result.RowCount)
	}
}

// truncateText cuts text to at most max bytes on a rune boundary, so a
// multibyte character is never split into invalid UTF-8.
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// writeChunks renders up to limit passages, each truncated for prompt size.
func writeChunks(b *strings.Builder, chunks []search.Chunk, limit int) {
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}

	for _, ch := range chunks {
		text := truncateText(ch.Text, maxChunkPromptLength)

		label := fmt.Sprintf("[%s %s %s", ch.Company, ch.Source, ch.Period)
		if ch.Section != "" {
			label += " " + ch.Section
		}
		if ch.Speaker != "" {
			label += " " + ch.Speaker
		}
		label += "]"

		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(text)
		b.WriteString("\n")
	}
}
