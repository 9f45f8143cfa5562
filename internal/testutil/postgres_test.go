//go:build integration
// +build integration

package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetupTestDB verifies the test infrastructure itself: container start,
// pgvector extension, and the full migration set.
func TestSetupTestDB(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	var hasVector bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasVector)
	require.NoError(t, err)
	assert.True(t, hasVector, "pgvector extension should be installed")

	tables := []string{
		"companies", "income_statement", "balance_sheet", "cash_flow",
		"derived_ratios", "tenk_sections", "tenk_embeddings",
		"transcript_chunks", "sessions", "session_quota", "ip_quota",
	}
	for _, table := range tables {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}
}

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("revenue growth")
	b := DeterministicVector("revenue growth")
	c := DeterministicVector("supply chain risk")

	require.Len(t, a, 1536)
	assert.Equal(t, a, b, "same text must embed identically")
	assert.NotEqual(t, a, c, "different texts must embed differently")

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-3, "vector should be unit length")
}
