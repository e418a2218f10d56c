// Package dialect renders engine-neutral SQL fragments (identifiers,
// pagination, a handful of canonical functions) into the concrete
// syntax each connector's backend actually accepts. It generalizes the
// same translate-before-send idea internal/sql's time-travel rewriters
// apply to FOR SYSTEM_TIME AS OF, to the rest of a query.
package dialect

import (
	"fmt"
	"strings"
)

// Name identifies a SQL dialect the translator knows how to target.
type Name string

const (
	Postgres      Name = "postgres"
	MSSQL         Name = "mssql"
	DuckDB        Name = "duckdb"
	Trino         Name = "trino"
	Snowflake     Name = "snowflake"
	BigQuery      Name = "bigquery"
	Redshift      Name = "redshift"
	Spark         Name = "spark"
	Elasticsearch Name = "elasticsearch"
)

// quoteStyle describes how a dialect delimits identifiers.
type quoteStyle struct {
	open, close byte
}

var quoteStyles = map[Name]quoteStyle{
	Postgres:      {'"', '"'},
	DuckDB:        {'"', '"'},
	Trino:         {'"', '"'},
	Snowflake:     {'"', '"'},
	BigQuery:      {'`', '`'},
	Redshift:      {'"', '"'},
	Spark:         {'`', '`'},
	MSSQL:         {'[', ']'},
	Elasticsearch: {'"', '"'},
}

// QuoteIdentifier delimits name in the style the dialect's parser
// expects, escaping an embedded close delimiter by doubling it.
func QuoteIdentifier(d Name, name string) string {
	style, ok := quoteStyles[d]
	if !ok {
		style = quoteStyle{'"', '"'}
	}
	escaped := strings.ReplaceAll(name, string(style.close), string(style.close)+string(style.close))
	return string(style.open) + escaped + string(style.close)
}

// paginationStyle is how a dialect expresses LIMIT/OFFSET.
type paginationStyle int

const (
	limitOffset paginationStyle = iota // LIMIT n OFFSET m
	topOnly                            // SELECT TOP n ... (no native OFFSET pre-2012)
	offsetFetch                        // OFFSET m ROWS FETCH NEXT n ROWS ONLY
)

var paginationStyles = map[Name]paginationStyle{
	Postgres:      limitOffset,
	DuckDB:        limitOffset,
	Trino:         limitOffset,
	Snowflake:     limitOffset,
	BigQuery:      limitOffset,
	Redshift:      limitOffset,
	Spark:         limitOffset,
	Elasticsearch: limitOffset,
	MSSQL:         offsetFetch,
}

// Paginate appends (or, for MSSQL's TOP form, prepends via a SELECT
// rewrite) the dialect-specific pagination clause to query. query must
// not already carry its own LIMIT/OFFSET.
func Paginate(d Name, query string, limit, offset int) (string, error) {
	style, ok := paginationStyles[d]
	if !ok {
		style = limitOffset
	}

	switch style {
	case limitOffset:
		if offset > 0 {
			return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset), nil
		}
		return fmt.Sprintf("%s LIMIT %d", query, limit), nil

	case offsetFetch:
		return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", query, offset, limit), nil

	case topOnly:
		if offset > 0 {
			return "", NewUnsupportedFeature(d, "OFFSET", "this dialect's TOP clause has no offset; rewrite with ORDER BY + ROW_NUMBER()")
		}
		trimmed := strings.TrimSpace(query)
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, "SELECT") {
			return "", fmt.Errorf("dialect: cannot apply TOP to non-SELECT query")
		}
		return "SELECT TOP " + fmt.Sprint(limit) + trimmed[len("SELECT"):], nil

	default:
		return "", fmt.Errorf("dialect: unknown pagination style for %s", d)
	}
}

// canonicalFunctions maps a function canonica's planner emits to each
// dialect's native spelling. Functions absent from a dialect's map are
// assumed to pass through unchanged.
var canonicalFunctions = map[Name]map[string]string{
	Postgres:  {"NOW": "NOW()", "RANDOM": "RANDOM()", "STRING_AGG": "STRING_AGG"},
	DuckDB:    {"NOW": "NOW()", "RANDOM": "RANDOM()", "STRING_AGG": "STRING_AGG"},
	Trino:     {"NOW": "CURRENT_TIMESTAMP", "RANDOM": "RAND()", "STRING_AGG": "ARRAY_JOIN(ARRAY_AGG(%s), ',')"},
	Snowflake: {"NOW": "CURRENT_TIMESTAMP()", "RANDOM": "RANDOM()", "STRING_AGG": "LISTAGG"},
	BigQuery:  {"NOW": "CURRENT_TIMESTAMP()", "RANDOM": "RAND()", "STRING_AGG": "STRING_AGG"},
	Redshift:  {"NOW": "GETDATE()", "RANDOM": "RANDOM()", "STRING_AGG": "LISTAGG"},
	Spark:     {"NOW": "CURRENT_TIMESTAMP()", "RANDOM": "RAND()", "STRING_AGG": "CONCAT_WS(',', COLLECT_LIST(%s))"},
	MSSQL:     {"NOW": "GETDATE()", "RANDOM": "RAND()", "STRING_AGG": "STRING_AGG"},
}

// RewriteFunction returns the dialect-native spelling of a canonical
// function name (e.g. "NOW" -> "GETDATE()" on MSSQL). ok is false when
// the dialect has no mapping, and the caller should emit the function
// unchanged or raise UnsupportedFeature if that would be wrong.
func RewriteFunction(d Name, fn string) (string, bool) {
	table, ok := canonicalFunctions[d]
	if !ok {
		return fn, false
	}
	native, ok := table[strings.ToUpper(fn)]
	return native, ok
}

// UnsupportedFeature reports a construct the target dialect cannot
// express, alongside a suggested rewrite.
type UnsupportedFeature struct {
	Dialect    Name
	Feature    string
	Suggestion string
}

func (e *UnsupportedFeature) Error() string {
	return fmt.Sprintf("dialect %s: unsupported feature %q: %s", e.Dialect, e.Feature, e.Suggestion)
}

// NewUnsupportedFeature builds an UnsupportedFeature diagnostic.
func NewUnsupportedFeature(d Name, feature, suggestion string) *UnsupportedFeature {
	return &UnsupportedFeature{Dialect: d, Feature: feature, Suggestion: suggestion}
}

// Translate is the standalone dialect-translation operation: given a
// canonical query fragment, identifier list, and pagination, it renders
// the final SQL text a connector should send to its backend, collecting
// every UnsupportedFeature diagnostic it hits rather than stopping at
// the first one, so a caller (or a CLI "explain dialect" command) can
// report them all at once.
type Translation struct {
	SQL         string
	Diagnostics []*UnsupportedFeature
}

// Translate rewrites query for dialect d: quoting every identifier in
// identifiers, applying pagination if limit > 0, and rewriting any
// canonical function calls it recognizes.
func Translate(d Name, query string, identifiers []string, limit, offset int) *Translation {
	t := &Translation{SQL: query}

	for _, ident := range identifiers {
		quoted := QuoteIdentifier(d, ident)
		t.SQL = replaceIdentifier(t.SQL, ident, quoted)
	}

	for canonical, native := range canonicalFunctions[d] {
		t.SQL = strings.ReplaceAll(t.SQL, canonical+"()", native)
	}

	if limit > 0 {
		paginated, err := Paginate(d, t.SQL, limit, offset)
		if err != nil {
			if uf, ok := err.(*UnsupportedFeature); ok {
				t.Diagnostics = append(t.Diagnostics, uf)
			} else {
				t.Diagnostics = append(t.Diagnostics, NewUnsupportedFeature(d, "pagination", err.Error()))
			}
		} else {
			t.SQL = paginated
		}
	}

	return t
}

// replaceIdentifier swaps a bare identifier for its quoted form without
// touching occurrences already inside quotes or that are substrings of
// a longer identifier.
func replaceIdentifier(sql, ident, quoted string) string {
	var out strings.Builder
	rest := sql
	for {
		idx := strings.Index(rest, ident)
		if idx < 0 {
			out.WriteString(rest)
			break
		}
		before := idx > 0 && isIdentChar(rest[idx-1])
		afterIdx := idx + len(ident)
		after := afterIdx < len(rest) && isIdentChar(rest[afterIdx])
		out.WriteString(rest[:idx])
		if before || after {
			out.WriteString(ident)
		} else {
			out.WriteString(quoted)
		}
		rest = rest[afterIdx:]
	}
	return out.String()
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
