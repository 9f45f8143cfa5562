// Package finance renders database values for model prompts and API
// responses.
//
// Financial figures come out of PostgreSQL as arbitrary-precision numerics;
// formatting them through float64 would round large monetary values. All
// numeric rendering goes through shopspring/decimal instead.
package finance

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DecimalFromNumeric converts a pgtype.Numeric to a decimal without a float
// round trip. NULL and NaN report ok=false.
func DecimalFromNumeric(n pgtype.Numeric) (decimal.Decimal, bool) {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp), true
}

// FormatValue renders one database value for inclusion in a prompt or
// response. Large numbers get thousands separators; ratios keep their
// precision; NULL renders as "null".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return fmt.Sprintf("%t", x)
	case int16, int32, int64, int:
		return groupDigits(fmt.Sprintf("%d", x))
	case float32:
		return FormatDecimal(decimal.NewFromFloat32(x))
	case float64:
		return FormatDecimal(decimal.NewFromFloat(x))
	case decimal.Decimal:
		return FormatDecimal(x)
	case pgtype.Numeric:
		d, ok := DecimalFromNumeric(x)
		if !ok {
			return "null"
		}
		return FormatDecimal(d)
	case time.Time:
		return x.Format("2006-01-02")
	case pgtype.Date:
		if !x.Valid {
			return "null"
		}
		return x.Time.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", x)
	}
}

// FormatDecimal renders a decimal with thousands separators on the integer
// part. Values with more than 4 decimal places are rounded to 4; trailing
// zeros are dropped.
func FormatDecimal(d decimal.Decimal) string {
	if d.Exponent() < -4 {
		d = d.Round(4)
	}
	s := d.String()

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	out := groupDigits(intPart)
	if hasFrac {
		fracPart = strings.TrimRight(fracPart, "0")
		if fracPart != "" {
			out += "." + fracPart
		}
	}
	if neg {
		out = "-" + out
	}
	return out
}

// groupDigits inserts commas into a digit string: 1234567 -> 1,234,567.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	out := b.String()
	if neg {
		return "-" + out
	}
	return out
}
