package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// allowedTables is the whitelist of queryable tables. Generated SQL may only
// read these (plus CTEs it defines itself).
var allowedTables = map[string]bool{
	"companies":        true,
	"income_statement": true,
	"balance_sheet":    true,
	"cash_flow":        true,
	"derived_ratios":   true,
}

// forbiddenKeywords are statement types that must never appear. Matched on
// word boundaries so column names like created_at do not trip the check.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER",
	"TRUNCATE", "CREATE", "GRANT", "REVOKE", "COPY",
	"EXEC", "EXECUTE", "CALL", "DO", "MERGE",
}

// tableRef matches one possibly schema-qualified table name.
const tableRef = `[a-z_][a-z0-9_.]*`

var (
	forbiddenRe = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	cteNameRe   = regexp.MustCompile(`(?is)(?:\bwith\b|,)\s*([a-z_][a-z0-9_]*)\s+as\s*\(`)
	// A FROM clause can carry a comma-separated table list, so the whole
	// list is captured and every member is checked, not just the first.
	// The alias is only consumed when a comma continuation follows, so it
	// can never swallow a JOIN keyword and hide the joined table.
	tableListRe = regexp.MustCompile(`(?i)\b(?:from|join)\s+(` + tableRef +
		`(?:(?:\s+(?:as\s+)?[a-z_][a-z0-9_]*)?\s*,\s*` + tableRef + `)*)`)
)

// Validate checks that sql is a single read-only statement confined to the
// whitelisted tables. Returns ErrUnsafe with the reason on rejection.
func Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafe)
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("%w: statement must start with SELECT or WITH", ErrUnsafe)
	}

	if m := forbiddenRe.FindString(trimmed); m != "" {
		return fmt.Errorf("%w: forbidden keyword %s", ErrUnsafe, strings.ToUpper(m))
	}

	// One trailing semicolon is tolerated; anything more smells like
	// statement stacking.
	if strings.Count(trimmed, ";") > 1 {
		return fmt.Errorf("%w: multiple statements", ErrUnsafe)
	}
	if i := strings.Index(trimmed, ";"); i != -1 && i != len(trimmed)-1 {
		return fmt.Errorf("%w: statement after semicolon", ErrUnsafe)
	}

	// Every FROM/JOIN target must be a whitelisted table or a CTE defined in
	// the query itself.
	ctes := make(map[string]bool)
	for _, m := range cteNameRe.FindAllStringSubmatch(trimmed, -1) {
		ctes[strings.ToLower(m[1])] = true
	}
	for _, m := range tableListRe.FindAllStringSubmatch(trimmed, -1) {
		for _, item := range strings.Split(m[1], ",") {
			fields := strings.Fields(item)
			if len(fields) == 0 {
				continue
			}
			ref := strings.ToLower(fields[0])
			// Strip schema qualification; the whitelist is unqualified names.
			if i := strings.LastIndex(ref, "."); i != -1 {
				ref = ref[i+1:]
			}
			if !allowedTables[ref] && !ctes[ref] {
				return fmt.Errorf("%w: table %q is not queryable", ErrUnsafe, ref)
			}
		}
	}

	return nil
}
