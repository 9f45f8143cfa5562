//go:build integration
// +build integration

package finance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/testutil"
)

func TestLatestSnapshot(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO companies (simfin_id, ticker, name, currency)
		VALUES (1, 'AAPL', 'Apple Inc', 'USD')`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO income_statement (ticker, fiscal_period, fiscal_year, revenue, net_income) VALUES
		('AAPL', 'FY', 2022, 394328000000, 99803000000),
		('AAPL', 'FY', 2023, 383285000000, 96995000000),
		('AAPL', 'Q1', 2024, 119575000000, 33916000000)`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO cash_flow (ticker, fiscal_period, fiscal_year, cash_from_operating_activities)
		VALUES ('AAPL', 'FY', 2023, 110543000000)`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO balance_sheet (ticker, fiscal_period, fiscal_year, total_assets) VALUES
		('AAPL', 'Q3', 2023, 335038000000),
		('AAPL', 'Q1', 2024, 353514000000)`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO derived_ratios (ticker, fiscal_period, fiscal_year, return_on_equity)
		VALUES ('AAPL', 'Q1', 2024, 0.3825)`)
	require.NoError(t, err)

	snap, err := LatestSnapshot(ctx, db.Pool, "AAPL")
	require.NoError(t, err)

	// Annual figures come from the latest FY row, not the newer Q1 row.
	assert.Equal(t, 2023, snap.FiscalYear)
	require.NotNil(t, snap.Revenue)
	assert.Equal(t, "383285000000", snap.Revenue.String())
	require.NotNil(t, snap.NetIncome)
	assert.Equal(t, "96995000000", snap.NetIncome.String())
	require.NotNil(t, snap.OperatingCash)
	assert.Equal(t, "110543000000", snap.OperatingCash.String())

	// Balance sheet and ratios use the latest quarter on record.
	require.NotNil(t, snap.TotalAssets)
	assert.Equal(t, "353514000000", snap.TotalAssets.String())
	assert.Equal(t, "Q1 2024", snap.BalancePeriod)
	require.NotNil(t, snap.ROEPercent)
	assert.Equal(t, "38.25", snap.ROEPercent.String())
}

func TestLatestSnapshot_NoData(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	_, err := LatestSnapshot(context.Background(), db.Pool, "ZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFinancials))
}
