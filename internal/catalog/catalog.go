// Package catalog is the registry of record for data sources, schemas,
// tables, columns and statistics that the rest of the engine plans and
// executes against. ExternalCatalog is the narrower interface used to
// sync metadata in from an external metastore (Hive/Glue/Unity) as one
// way of populating that registry.
package catalog

import (
	"context"
	"time"
)

// ExternalCatalog represents an external metadata catalog consulted as a
// bulk-discovery source when populating the registry.
type ExternalCatalog interface {
	// Name returns the catalog identifier (e.g., "hive", "glue", "unity").
	Name() string

	// ListDatabases returns all databases/schemas in the catalog.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListTables returns all tables in a database.
	ListTables(ctx context.Context, database string) ([]TableInfo, error)

	// GetTable returns detailed metadata for a specific table.
	GetTable(ctx context.Context, database, table string) (*TableMetadata, error)

	// CheckConnectivity verifies the catalog is reachable.
	CheckConnectivity(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// TableInfo is a lightweight table reference.
// Per phase-7-spec.md: Used for listing tables without full metadata.
type TableInfo struct {
	Database string      `json:"database"`
	Name     string      `json:"name"`
	Format   TableFormat `json:"format"`
}

// FullName returns the schema-qualified table name.
func (t TableInfo) FullName() string {
	return t.Database + "." + t.Name
}

// TableMetadata is detailed table information.
// Per phase-7-spec.md: Contains all information needed to register a table in Canonic.
type TableMetadata struct {
	Database   string            `json:"database"`
	Name       string            `json:"name"`
	Format     TableFormat       `json:"format"`
	Location   string            `json:"location"` // s3://bucket/path or hdfs://path
	Columns    []ColumnMetadata  `json:"columns"`
	Partitions []string          `json:"partitions"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// FullName returns the schema-qualified table name.
func (t TableMetadata) FullName() string {
	return t.Database + "." + t.Name
}

// ColumnMetadata describes a table column.
type ColumnMetadata struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // Trino/Spark type string
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

// TableFormat identifies the table format.
// Per phase-7-spec.md: Canonic automatically detects Iceberg, Delta, Hudi, etc.
type TableFormat string

const (
	FormatIceberg TableFormat = "iceberg"
	FormatDelta   TableFormat = "delta"
	FormatHudi    TableFormat = "hudi"
	FormatParquet TableFormat = "parquet"
	FormatORC     TableFormat = "orc"
	FormatCSV     TableFormat = "csv"
	FormatUnknown TableFormat = "unknown"
)

// String returns the format name.
func (f TableFormat) String() string {
	return string(f)
}

// IsLakehouse returns true if the format supports time-travel and ACID.
func (f TableFormat) IsLakehouse() bool {
	switch f {
	case FormatIceberg, FormatDelta, FormatHudi:
		return true
	default:
		return false
	}
}

// ExternalCatalogRegistry holds registered external metadata catalogs used
// as bulk-discovery sources for Catalog.Initialize.
type ExternalCatalogRegistry struct {
	catalogs map[string]ExternalCatalog
}

// NewCatalogRegistry creates a new external catalog registry.
func NewCatalogRegistry() *ExternalCatalogRegistry {
	return &ExternalCatalogRegistry{
		catalogs: make(map[string]ExternalCatalog),
	}
}

// Register adds a catalog to the registry.
func (r *ExternalCatalogRegistry) Register(catalog ExternalCatalog) {
	r.catalogs[catalog.Name()] = catalog
}

// Get returns a catalog by name.
func (r *ExternalCatalogRegistry) Get(name string) (ExternalCatalog, bool) {
	cat, ok := r.catalogs[name]
	return cat, ok
}

// List returns all registered catalog names.
func (r *ExternalCatalogRegistry) List() []string {
	names := make([]string, 0, len(r.catalogs))
	for name := range r.catalogs {
		names = append(names, name)
	}
	return names
}

// All returns all registered catalogs.
func (r *ExternalCatalogRegistry) All() []ExternalCatalog {
	cats := make([]ExternalCatalog, 0, len(r.catalogs))
	for _, cat := range r.catalogs {
		cats = append(cats, cat)
	}
	return cats
}

// Close closes all registered catalogs.
func (r *ExternalCatalogRegistry) Close() error {
	var lastErr error
	for _, cat := range r.catalogs {
		if err := cat.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
