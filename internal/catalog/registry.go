package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/canonica-labs/canonica/internal/errors"
)

// Kind is the broad family of data source a Column/Table is served from.
// The engine recognizes exactly three kinds; each DataSource declares one
// and the connector registry picks the concrete implementation from it.
type Kind string

const (
	KindRelationalA Kind = "relational-A"
	KindRelationalB Kind = "relational-B"
	KindSearchStore Kind = "search-store"
)

// ColumnType is the logical type assigned to a Column after inference.
type ColumnType string

const (
	TypeInteger  ColumnType = "INTEGER"
	TypeBigInt   ColumnType = "BIGINT"
	TypeDouble   ColumnType = "DOUBLE"
	TypeDecimal  ColumnType = "DECIMAL"
	TypeBoolean  ColumnType = "BOOLEAN"
	TypeString   ColumnType = "STRING"
	TypeDate     ColumnType = "DATE"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeUnknown  ColumnType = "UNKNOWN"
)

// Column describes one attribute of a Table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// TableStatistics carries the estimates the cost-based optimizer consumes.
// Fields default to the generic estimates below when a connector cannot
// supply real statistics: 1000 rows, 100 bytes/row, 10% filter
// selectivity, equality selectivity of 1/distinct values, 30% for
// ranges, 10% for LIKE, 20% for IN.
type TableStatistics struct {
	RowCount        int64
	AvgRowBytes     int64
	DistinctValues  map[string]int64
	CollectedAt     time.Time
}

// DefaultTableStatistics returns the spec's generic fallback estimates.
func DefaultTableStatistics() *TableStatistics {
	return &TableStatistics{
		RowCount:       1000,
		AvgRowBytes:    100,
		DistinctValues: map[string]int64{},
		CollectedAt:    time.Time{},
	}
}

// Table is a queryable relation within a Schema.
type Table struct {
	Name       string
	Columns    []Column
	Statistics *TableStatistics
}

// ColumnNames returns the ordered list of column names, used to build
// the fixed-arity row shape the executor projects values against.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema groups related tables, mirroring how a connector's native store
// namespaces them (a Postgres schema, a BigQuery dataset, an
// Elasticsearch index alias group).
type Schema struct {
	Name   string
	Tables map[string]*Table

	lock sync.RWMutex
}

// GetTable returns a table by name under this schema's lock.
func (s *Schema) GetTable(name string) (*Table, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	t, ok := s.Tables[name]
	return t, ok
}

// DataSource is one registered, independently reachable backend: a
// database, a warehouse, a search cluster. Kind selects which connector
// family serves it; Dialect selects how the Dialect Translator renders
// SQL text for it.
type DataSource struct {
	ID      string
	Kind    Kind
	Dialect string
	Schemas map[string]*Schema

	// DSN is the connector-specific connection string (a libpq URL, a
	// Trino coordinator URL, a DuckDB file path, an Elasticsearch
	// cluster URL...). Its shape depends on Kind/Dialect.
	DSN string

	// Options carries connector-specific tuning (pool size, default
	// fetch size, catalog/schema defaults) keyed by connector name.
	Options map[string]string

	mu sync.RWMutex
}

// GetSchema returns a schema by name under this data source's lock.
func (d *DataSource) GetSchema(name string) (*Schema, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.Schemas[name]
	return s, ok
}

// SetSchema installs or replaces a schema.
func (d *DataSource) SetSchema(s *Schema) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Schemas == nil {
		d.Schemas = make(map[string]*Schema)
	}
	d.Schemas[s.Name] = s
}

// SchemaDiscoverer introspects a registered DataSource and returns the
// schemas/tables/columns it currently exposes. Concrete connectors
// implement this directly (introspecting their own information_schema,
// system tables, or index mappings); lakehouse-backed data sources may
// instead delegate to an ExternalCatalog (Hive/Glue/Unity).
type SchemaDiscoverer interface {
	DiscoverSchema(ctx context.Context, ds *DataSource, schemaName string) (*Schema, error)
}

// Catalog is the registry of record: every DataSource the engine can
// plan against, keyed by ID, with concurrent-safe mutation and lookup.
// It never holds row data, only metadata and statistics.
type Catalog struct {
	mu          sync.RWMutex
	sources     map[string]*DataSource
	discoverers map[string]SchemaDiscoverer
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		sources:     make(map[string]*DataSource),
		discoverers: make(map[string]SchemaDiscoverer),
	}
}

// RegisterDataSource adds (or replaces) a DataSource registration.
func (c *Catalog) RegisterDataSource(ds *DataSource) error {
	if ds.ID == "" {
		return errors.NewInvalidTableDefinition("id", "data source id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ds.Schemas == nil {
		ds.Schemas = make(map[string]*Schema)
	}
	c.sources[ds.ID] = ds
	return nil
}

// RegisterDiscoverer associates a SchemaDiscoverer with a data source ID
// so Initialize can bulk-discover its schemas at startup.
func (c *Catalog) RegisterDiscoverer(dataSourceID string, d SchemaDiscoverer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoverers[dataSourceID] = d
}

// RemoveDataSource deregisters a DataSource.
func (c *Catalog) RemoveDataSource(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sources[id]; !ok {
		return errors.NewTableNotFound(id)
	}
	delete(c.sources, id)
	return nil
}

// GetDataSource returns a registered DataSource by ID.
func (c *Catalog) GetDataSource(id string) (*DataSource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.sources[id]
	if !ok {
		return nil, errors.NewTableNotFound(id)
	}
	return ds, nil
}

// ListDataSources returns all registered data sources.
func (c *Catalog) ListDataSources() []*DataSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*DataSource, 0, len(c.sources))
	for _, ds := range c.sources {
		out = append(out, ds)
	}
	return out
}

// GetTable resolves a fully-qualified "dataSource.schema.table" reference,
// given as its three parts, to a concrete Table and its owning DataSource.
// The data source ID is required; GetTable does not search other data
// sources for an unqualified schema.table.
func (c *Catalog) GetTable(dataSourceID, schemaName, tableName string) (*DataSource, *Table, error) {
	ds, err := c.GetDataSource(dataSourceID)
	if err != nil {
		return nil, nil, err
	}
	schema, ok := ds.GetSchema(schemaName)
	if !ok {
		return nil, nil, errors.NewTableNotFound(schemaName + "." + tableName)
	}
	schema.lock.RLock()
	t, ok := schema.Tables[tableName]
	schema.lock.RUnlock()
	if !ok {
		return nil, nil, errors.NewTableNotFound(tableName)
	}
	return ds, t, nil
}

// Initialize performs bulk discovery: for every DataSource with a
// registered SchemaDiscoverer, ask it for the schema named "default" (each
// discoverer maps that name to its own default schema) and install the
// result. Errors from individual data sources are
// collected but do not stop discovery of the others.
func (c *Catalog) Initialize(ctx context.Context) []error {
	c.mu.RLock()
	type job struct {
		ds *DataSource
		d  SchemaDiscoverer
	}
	jobs := make([]job, 0, len(c.discoverers))
	for id, d := range c.discoverers {
		ds, ok := c.sources[id]
		if !ok {
			continue
		}
		jobs = append(jobs, job{ds: ds, d: d})
	}
	c.mu.RUnlock()

	var errs []error
	for _, j := range jobs {
		schema, err := j.d.DiscoverSchema(ctx, j.ds, "default")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		j.ds.SetSchema(schema)
	}
	return errs
}
