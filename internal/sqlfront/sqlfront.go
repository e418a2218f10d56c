// Package sqlfront validates a parsed query against the catalog: that
// every table reference resolves to exactly one registered DataSource,
// that GROUP BY/aggregate mixing is legal, and that UNION branches
// agree on arity. It sits on top of internal/sql's Parser rather than
// reparsing, the same layering the teacher's Parser.ValidateQuery
// already used for syntax-only validation.
package sqlfront

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/errors"
	canonicsql "github.com/canonica-labs/canonica/internal/sql"
)

// Resolved is one table reference resolved against the catalog.
type Resolved struct {
	Reference  string // as written in the query
	DataSource *catalog.DataSource
	Schema     *catalog.Schema
	Table      *catalog.Table
}

// Validator wraps the syntax parser with catalog-driven semantic checks.
type Validator struct {
	parser *canonicsql.Parser
	cat    *catalog.Catalog
}

// New creates a Validator resolving identifiers against cat.
func New(cat *catalog.Catalog) *Validator {
	return &Validator{parser: canonicsql.NewParser(), cat: cat}
}

// ValidationResult is the outcome of validating one query: the parsed
// plan and its resolved table references. Aggregate/GROUP BY and
// UNION-arity problems are not carried here; Validate returns them as
// errors.
type ValidationResult struct {
	Plan      *canonicsql.LogicalPlan
	Tables    []Resolved
}

// Validate parses sql, resolves every table reference against the
// catalog, and checks aggregate/GROUP BY and UNION-arity rules.
func (v *Validator) Validate(sql string) (*ValidationResult, error) {
	plan, err := v.parser.Parse(sql)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{Plan: plan}
	for _, ref := range plan.Tables {
		resolved, err := v.resolveTable(ref)
		if err != nil {
			return nil, err
		}
		result.Tables = append(result.Tables, *resolved)
	}

	if err := validateAggregates(sql); err != nil {
		return nil, err
	}
	if err := validateSetOps(sql); err != nil {
		return nil, err
	}

	return result, nil
}

// resolveTable resolves a "schema.table" or "dataSource.schema.table"
// reference to a concrete DataSource/Schema/Table. An unqualified
// "schema.table" reference is resolved by scanning every registered
// DataSource; more than one match is ambiguous.
func (v *Validator) resolveTable(ref string) (*Resolved, error) {
	parts := strings.Split(ref, ".")

	switch len(parts) {
	case 3:
		dataSourceID, schemaName, tableName := parts[0], parts[1], parts[2]
		ds, table, err := v.cat.GetTable(dataSourceID, schemaName, tableName)
		if err != nil {
			return nil, err
		}
		schema, _ := ds.GetSchema(schemaName)
		return &Resolved{Reference: ref, DataSource: ds, Schema: schema, Table: table}, nil

	case 2:
		schemaName, tableName := parts[0], parts[1]
		var matches []*Resolved
		for _, ds := range v.cat.ListDataSources() {
			schema, ok := ds.GetSchema(schemaName)
			if !ok {
				continue
			}
			if table, ok := schema.GetTable(tableName); ok {
				matches = append(matches, &Resolved{Reference: ref, DataSource: ds, Schema: schema, Table: table})
			}
		}
		switch len(matches) {
		case 0:
			return nil, errors.NewTableNotFound(ref)
		case 1:
			return matches[0], nil
		default:
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.DataSource.ID + "." + ref
			}
			return nil, errors.NewAmbiguousTable(ref, names)
		}

	default:
		return nil, errors.NewInvalidTableDefinition("name", fmt.Sprintf("table reference %q must be schema.table or dataSource.schema.table", ref))
	}
}

var groupByPattern = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
var aggFuncPattern = regexp.MustCompile(`(?i)\b(SUM|COUNT|AVG|MIN|MAX)\s*\(`)

// validateAggregates rejects a query that mixes aggregate functions
// with non-aggregated columns but has no GROUP BY, the classic "not a
// single-group query" mistake most SQL engines reject at parse time.
// This is a syntactic heuristic, not a full column-reference analysis:
// it only catches the common case of an aggregate function alongside a
// bare SELECT column list with no GROUP BY at all.
func validateAggregates(sql string) error {
	if !aggFuncPattern.MatchString(sql) || groupByPattern.MatchString(sql) {
		return nil
	}

	selectClause, ok := selectList(sql)
	if !ok {
		return nil
	}
	for _, col := range splitTopLevel(selectClause, ',') {
		col = strings.TrimSpace(col)
		if col == "" || col == "*" || aggFuncPattern.MatchString(col) {
			continue
		}
		return errors.NewUnsupportedSyntax(
			fmt.Sprintf("column %q without GROUP BY alongside an aggregate", col),
			"add the column to GROUP BY, or remove it from the select list",
		)
	}
	return nil
}

var unionPattern = regexp.MustCompile(`(?i)\bUNION\b(\s+ALL\b)?`)

// validateSetOps checks that every branch of a UNION projects the same
// number of columns, the one cross-engine-independent check that
// doesn't need either side's schema resolved.
func validateSetOps(sql string) error {
	if !unionPattern.MatchString(sql) {
		return nil
	}
	branches := unionPattern.Split(sql, -1)
	var arity int
	for i, branch := range branches {
		selectClause, ok := selectList(branch)
		if !ok {
			continue
		}
		n := len(splitTopLevel(selectClause, ','))
		if i == 0 {
			arity = n
			continue
		}
		if n != arity {
			return errors.NewUnsupportedSyntax(
				fmt.Sprintf("UNION branch %d selects %d columns, expected %d", i+1, n, arity),
				"every UNION branch must project the same number of columns",
			)
		}
	}
	return nil
}

var selectFromPattern = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+FROM\b`)

// selectList extracts the column list text between SELECT and FROM.
func selectList(sql string) (string, bool) {
	m := selectFromPattern.FindStringSubmatch(sql)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// splitTopLevel splits s on sep, ignoring occurrences inside parens
// (so "COUNT(a, b)" isn't split into two columns).
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
