package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ErrNoFinancials indicates no statement rows exist for the ticker.
var ErrNoFinancials = errors.New("no financial data for ticker")

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Snapshot is a company's headline figures: the latest full fiscal year for
// flow statements and the latest reported quarter for the balance sheet and
// ratios.
type Snapshot struct {
	Ticker        string           `json:"ticker"`
	FiscalYear    int              `json:"fiscal_year"`
	Revenue       *decimal.Decimal `json:"revenue,omitempty"`
	NetIncome     *decimal.Decimal `json:"net_income,omitempty"`
	OperatingCash *decimal.Decimal `json:"operating_cash_flow,omitempty"`
	TotalAssets   *decimal.Decimal `json:"total_assets,omitempty"`
	ROEPercent    *decimal.Decimal `json:"roe_percent,omitempty"`
	BalancePeriod string           `json:"balance_period,omitempty"`
}

// LatestSnapshot assembles a Snapshot from the four statement tables.
// Annual figures use fiscal_period = 'FY'; balance sheet and ratios use the
// most recent quarter on record. Missing pieces stay nil rather than
// failing the whole snapshot.
func LatestSnapshot(ctx context.Context, db querier, ticker string) (*Snapshot, error) {
	snap := &Snapshot{Ticker: ticker}

	var revenue, netIncome pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT fiscal_year, revenue, net_income
		FROM income_statement
		WHERE ticker = $1 AND fiscal_period = 'FY'
		ORDER BY fiscal_year DESC
		LIMIT 1`, ticker,
	).Scan(&snap.FiscalYear, &revenue, &netIncome)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoFinancials, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("reading income statement: %w", err)
	}
	snap.Revenue = decimalPtr(revenue)
	snap.NetIncome = decimalPtr(netIncome)

	var operatingCash pgtype.Numeric
	err = db.QueryRow(ctx, `
		SELECT cash_from_operating_activities
		FROM cash_flow
		WHERE ticker = $1 AND fiscal_period = 'FY'
		ORDER BY fiscal_year DESC
		LIMIT 1`, ticker,
	).Scan(&operatingCash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading cash flow: %w", err)
	}
	snap.OperatingCash = decimalPtr(operatingCash)

	var (
		totalAssets   pgtype.Numeric
		balanceYear   int
		balancePeriod string
	)
	err = db.QueryRow(ctx, `
		SELECT total_assets, fiscal_year, fiscal_period
		FROM balance_sheet
		WHERE ticker = $1
		ORDER BY fiscal_year DESC, fiscal_period DESC
		LIMIT 1`, ticker,
	).Scan(&totalAssets, &balanceYear, &balancePeriod)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading balance sheet: %w", err)
	}
	if err == nil {
		snap.TotalAssets = decimalPtr(totalAssets)
		snap.BalancePeriod = fmt.Sprintf("%s %d", balancePeriod, balanceYear)
	}

	// Ratios are stored as decimals (0.20 = 20%); scale for display.
	var roe pgtype.Numeric
	err = db.QueryRow(ctx, `
		SELECT return_on_equity
		FROM derived_ratios
		WHERE ticker = $1
		ORDER BY fiscal_year DESC, fiscal_period DESC
		LIMIT 1`, ticker,
	).Scan(&roe)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading ratios: %w", err)
	}
	if d, ok := DecimalFromNumeric(roe); ok {
		scaled := d.Mul(decimal.NewFromInt(100)).Round(2)
		snap.ROEPercent = &scaled
	}

	return snap, nil
}

func decimalPtr(n pgtype.Numeric) *decimal.Decimal {
	d, ok := DecimalFromNumeric(n)
	if !ok {
		return nil
	}
	return &d
}
