package wire

import (
	"strings"

	"github.com/canonica-labs/canonica/internal/federation"
)

// Cancel requests cancellation of the query running under queryID. It
// has no effect on an in-flight connector call already blocked in
// ExecuteQuery; the next fetch on the bound statement observes the
// cancelled state and stops pulling further rows.
func (s *Server) Cancel(queryID string) error {
	return s.Lifecycle.Cancel(queryID)
}

// showTablesStream answers "SHOW TABLES" from the catalog directly,
// independent of which backend(s) are registered.
func (s *Server) showTablesStream() federation.ResultStream {
	schema := &federation.ResultSchema{Columns: []federation.ColumnDef{
		{Name: "data_source", Type: "string"},
		{Name: "schema", Type: "string"},
		{Name: "table", Type: "string"},
	}}
	store := federation.NewMemoryResultStore(schema)
	for _, ds := range s.Catalog.ListDataSources() {
		for schemaName, sch := range ds.Schemas {
			for tableName := range sch.Tables {
				store.Append(federation.Row{"data_source": ds.ID, "schema": schemaName, "table": tableName})
			}
		}
	}
	return store.Stream()
}

// TableMeta is one row of a getTables response.
type TableMeta struct {
	DataSource string `json:"dataSource"`
	Schema     string `json:"schema"`
	Table      string `json:"table"`
}

// GetTables lists tables across every data source, optionally filtered
// by a SQL LIKE pattern on the table name.
func (s *Server) GetTables(namePattern string) []TableMeta {
	var out []TableMeta
	for _, ds := range s.Catalog.ListDataSources() {
		for schemaName, sch := range ds.Schemas {
			for tableName := range sch.Tables {
				if namePattern != "" && !likeMatch(namePattern, tableName) {
					continue
				}
				out = append(out, TableMeta{DataSource: ds.ID, Schema: schemaName, Table: tableName})
			}
		}
	}
	return out
}

// ColumnMeta is one row of a getColumns response.
type ColumnMeta struct {
	DataSource string `json:"dataSource"`
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	Column     string `json:"column"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
}

// GetColumns lists columns across every table, optionally filtered by a
// LIKE pattern on table name and/or column name.
func (s *Server) GetColumns(tablePattern, columnPattern string) []ColumnMeta {
	var out []ColumnMeta
	for _, ds := range s.Catalog.ListDataSources() {
		for schemaName, sch := range ds.Schemas {
			for tableName, table := range sch.Tables {
				if tablePattern != "" && !likeMatch(tablePattern, tableName) {
					continue
				}
				for _, col := range table.Columns {
					if columnPattern != "" && !likeMatch(columnPattern, col.Name) {
						continue
					}
					out = append(out, ColumnMeta{
						DataSource: ds.ID, Schema: schemaName, Table: tableName,
						Column: col.Name, Type: string(col.Type), Nullable: col.Nullable,
					})
				}
			}
		}
	}
	return out
}

// GetSchemas lists every (data source, schema) pair.
func (s *Server) GetSchemas() []map[string]string {
	var out []map[string]string
	for _, ds := range s.Catalog.ListDataSources() {
		for schemaName := range ds.Schemas {
			out = append(out, map[string]string{"dataSource": ds.ID, "schema": schemaName})
		}
	}
	return out
}

// GetCatalogs lists every registered data source, the unit this
// protocol calls a "catalog" per the metadata operation naming in the
// spec even though internal/catalog.Catalog is this whole registry.
func (s *Server) GetCatalogs() []string {
	var out []string
	for _, ds := range s.Catalog.ListDataSources() {
		out = append(out, ds.ID)
	}
	return out
}

// GetTableTypes returns the fixed set of table types this engine
// exposes: every catalog table is a plain TABLE, there are no views.
func (s *Server) GetTableTypes() []string {
	return []string{"TABLE"}
}

// likeMatch implements the subset of SQL LIKE this protocol's metadata
// patterns need: '%' as a wildcard, case-insensitive, no escape
// character support.
func likeMatch(pattern, value string) bool {
	pattern = strings.ToUpper(pattern)
	value = strings.ToUpper(value)
	segments := strings.Split(pattern, "%")
	if len(segments) == 1 {
		return pattern == value
	}

	if segments[0] != "" && !strings.HasPrefix(value, segments[0]) {
		return false
	}
	if last := segments[len(segments)-1]; last != "" && !strings.HasSuffix(value, last) {
		return false
	}

	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		idx := strings.Index(value[pos:], seg)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(seg)
	}
	return true
}
