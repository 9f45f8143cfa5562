package sqlgen

import "errors"

var (
	// ErrGeneration indicates the model did not produce a usable query.
	ErrGeneration = errors.New("sql generation failed")

	// ErrUnsafe indicates the generated query failed safety validation.
	// The query is never executed.
	ErrUnsafe = errors.New("unsafe sql rejected")

	// ErrExecution indicates the database rejected the generated query.
	ErrExecution = errors.New("sql execution failed")

	// ErrNoData indicates the query ran but matched no rows.
	ErrNoData = errors.New("no matching data")
)
