package finance

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"revenue scale", "394328000000", "394,328,000,000"},
		{"negative income", "-2864000000", "-2,864,000,000"},
		{"small integer", "42", "42"},
		{"ratio", "0.2531", "0.2531"},
		{"percent value", "25.31", "25.31"},
		{"trailing zeros dropped", "7.5000", "7.5"},
		{"long fraction rounded", "0.123456789", "0.1235"},
		{"zero", "0", "0"},
		{"four digit", "1234", "1,234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.input)
			if err != nil {
				t.Fatalf("bad test input %q: %v", tt.input, err)
			}
			if got := FormatDecimal(d); got != tt.want {
				t.Errorf("FormatDecimal(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	validNumeric := pgtype.Numeric{Int: big.NewInt(123450), Exp: -2, Valid: true}

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "null"},
		{"string", "Apple Inc", "Apple Inc"},
		{"int64", int64(1000000), "1,000,000"},
		{"bool", true, "true"},
		{"numeric", validNumeric, "1,234.5"},
		{"null numeric", pgtype.Numeric{}, "null"},
		{"nan numeric", pgtype.Numeric{NaN: true, Valid: true}, "null"},
		{"time", time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC), "2024-09-28"},
		{"decimal", decimal.RequireFromString("-0.05"), "-0.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.input); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecimalFromNumeric(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(2531), Exp: -4, Valid: true}
	d, ok := DecimalFromNumeric(n)
	if !ok {
		t.Fatal("expected valid conversion")
	}
	if d.String() != "0.2531" {
		t.Errorf("got %s, want 0.2531", d.String())
	}

	if _, ok := DecimalFromNumeric(pgtype.Numeric{}); ok {
		t.Error("NULL numeric should not convert")
	}
}
