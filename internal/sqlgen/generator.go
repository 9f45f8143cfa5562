package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/finance"
	"github.com/finsight/finsight/internal/llm"
	"github.com/finsight/finsight/internal/log"
)

// maxResultRows caps how many rows an executed query may return to the
// caller. The prompt asks the model to LIMIT its queries, but the cap holds
// even when it does not.
const maxResultRows = 100

// generationTemperature keeps SQL output deterministic across retries.
const generationTemperature = 0.1

type generator interface {
	GenerateText(ctx context.Context, opts llm.GenerateOpts) (string, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Result holds the outcome of one generated query: the column names in
// SELECT order and each row as a column-to-value map with values already
// rendered through the finance formatter.
type Result struct {
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Generator turns a natural-language question into a validated read-only
// query and executes it against the financial schema.
type Generator struct {
	model  generator
	db     querier
	logger log.Logger
}

func NewGenerator(model generator, db querier, logger log.Logger) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("sqlgen: model is nil")
	}
	if db == nil {
		return nil, fmt.Errorf("sqlgen: db is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Generator{
		model:  model,
		db:     db,
		logger: logger.With("component", "sqlgen"),
	}, nil
}

// Generate asks the model for a single SQL statement answering the question.
// The returned statement has code fences stripped but is NOT yet validated;
// callers go through Query for the full generate-validate-execute path.
func (g *Generator) Generate(ctx context.Context, question string, mentions []company.Company) (string, error) {
	out, err := g.model.GenerateText(ctx, llm.GenerateOpts{
		System:      buildPrompt(mentions),
		Prompt:      question,
		Temperature: generationTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	sql := strings.TrimSpace(llm.StripCodeFences(out))
	if sql == "" {
		return "", fmt.Errorf("%w: model returned empty statement", ErrGeneration)
	}
	return sql, nil
}

// Execute runs an already-validated statement and collects up to
// maxResultRows rows. Zero rows is reported as ErrNoData so callers can
// distinguish "nothing matched" from a broken query.
func (g *Generator) Execute(ctx context.Context, sql string) (*Result, error) {
	rows, err := g.db.Query(ctx, sql)
	if err != nil {
		g.logger.Warn("query execution failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &Result{SQL: sql, Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if result.RowCount >= maxResultRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecution, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = finance.FormatValue(values[i])
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	if result.RowCount == 0 {
		return nil, ErrNoData
	}
	return result, nil
}

// Query runs the full path: generate a statement, reject anything outside
// the read-only whitelist, then execute it.
func (g *Generator) Query(ctx context.Context, question string, mentions []company.Company) (*Result, error) {
	sql, err := g.Generate(ctx, question, mentions)
	if err != nil {
		return nil, err
	}

	if err := Validate(sql); err != nil {
		g.logger.Warn("generated statement rejected", "error", err, "sql", sql)
		return nil, err
	}

	g.logger.Debug("executing generated query", "sql", sql)
	return g.Execute(ctx, sql)
}
