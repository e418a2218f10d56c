package wire

import (
	"context"
	"strings"
	"time"

	"github.com/canonica-labs/canonica/internal/capabilities"
	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/connector"
	"github.com/canonica-labs/canonica/internal/errors"
	"github.com/canonica-labs/canonica/internal/federation"
	"github.com/canonica-labs/canonica/internal/tables"
)

// CatalogRepository adapts a *catalog.Catalog to storage.TableRepository,
// letting internal/federation's existing Analyzer resolve table metadata
// straight out of the catalog instead of a separate virtual-table store.
// Every registered catalog.Table is addressed the same way a TableRef
// names it: "schema.table", resolved across every DataSource the same
// way internal/sqlfront resolves an unqualified reference.
type CatalogRepository struct {
	cat *catalog.Catalog
}

// NewCatalogRepository wraps cat for use as a federation.Analyzer's
// metadata source.
func NewCatalogRepository(cat *catalog.Catalog) *CatalogRepository {
	return &CatalogRepository{cat: cat}
}

// Get resolves "schema.table" against every registered data source.
func (r *CatalogRepository) Get(ctx context.Context, name string) (*tables.VirtualTable, error) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) != 2 {
		return nil, errors.NewTableNotFound(name)
	}
	schemaName, tableName := parts[0], parts[1]

	var match *tables.VirtualTable
	for _, ds := range r.cat.ListDataSources() {
		schema, ok := ds.GetSchema(schemaName)
		if !ok {
			continue
		}
		table, ok := schema.GetTable(tableName)
		if !ok {
			continue
		}
		if match != nil {
			return nil, errors.NewAmbiguousTable(name, []string{match.Sources[0].Engine, ds.ID})
		}
		match = toVirtualTable(ds, table)
	}
	if match == nil {
		return nil, errors.NewTableNotFound(name)
	}
	return match, nil
}

func toVirtualTable(ds *catalog.DataSource, table *catalog.Table) *tables.VirtualTable {
	return &tables.VirtualTable{
		Name: table.Name,
		Sources: []tables.PhysicalSource{{
			Format: tables.FormatParquet,
			Engine: ds.ID,
		}},
		Capabilities: []capabilities.Capability{capabilities.CapabilityRead},
		UpdatedAt:    time.Now(),
	}
}

// List returns every table across every registered data source, one
// VirtualTable per catalog table, named by its bare table name.
func (r *CatalogRepository) List(ctx context.Context) ([]*tables.VirtualTable, error) {
	out := make([]*tables.VirtualTable, 0)
	for _, ds := range r.cat.ListDataSources() {
		for _, schema := range ds.Schemas {
			for _, table := range schema.Tables {
				out = append(out, toVirtualTable(ds, table))
			}
		}
	}
	return out, nil
}

// Exists reports whether name ("schema.table") resolves.
func (r *CatalogRepository) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Get(ctx, name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// CheckConnectivity is always satisfied: the catalog is in-memory.
func (r *CatalogRepository) CheckConnectivity(ctx context.Context) error { return nil }

// Create, Update and Delete are not meaningful for a catalog-backed
// repository: schema changes happen through catalog.Catalog.RegisterDataSource
// and SchemaDiscoverer, not through the query-facing repository interface.
func (r *CatalogRepository) Create(ctx context.Context, table *tables.VirtualTable) error {
	return errors.NewWriteNotAllowed("create table via query interface")
}

func (r *CatalogRepository) Update(ctx context.Context, table *tables.VirtualTable) error {
	return errors.NewWriteNotAllowed("update table via query interface")
}

func (r *CatalogRepository) Delete(ctx context.Context, name string) error {
	return errors.NewWriteNotAllowed("delete table via query interface")
}

// ConnectorAdapter bridges one catalog.DataSource, served through a
// connector.Registry, into a federation.EngineAdapter. One instance is
// registered per DataSource, keyed by the DataSource's own ID so the
// Analyzer's "engine" field and the Decomposer's SubQuery.Engine are
// just data source IDs.
type ConnectorAdapter struct {
	ds       *catalog.DataSource
	registry *connector.Registry
}

// NewConnectorAdapter builds the EngineAdapter for ds, resolving its
// Connector lazily on every call so a connector registered after the
// adapter is constructed still takes effect.
func NewConnectorAdapter(ds *catalog.DataSource, registry *connector.Registry) *ConnectorAdapter {
	return &ConnectorAdapter{ds: ds, registry: registry}
}

func (a *ConnectorAdapter) Name() string { return a.ds.ID }

func (a *ConnectorAdapter) Execute(ctx context.Context, query string) (federation.ResultStream, error) {
	c, err := a.registry.Resolve(a.ds)
	if err != nil {
		return nil, err
	}
	result, err := c.ExecuteQuery(ctx, a.ds, query)
	if err != nil {
		return nil, err
	}
	return newQueryResultStream(result), nil
}

func (a *ConnectorAdapter) TableStats(ctx context.Context, table string) (*federation.TableStats, error) {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) != 2 {
		return &federation.TableStats{RowCount: -1}, nil
	}
	schema, ok := a.ds.GetSchema(parts[0])
	if !ok {
		return &federation.TableStats{RowCount: -1}, nil
	}
	t, ok := schema.GetTable(parts[1])
	if !ok || t.Statistics == nil {
		return &federation.TableStats{RowCount: -1}, nil
	}
	return &federation.TableStats{RowCount: t.Statistics.RowCount}, nil
}

func (a *ConnectorAdapter) HealthCheck(ctx context.Context) bool {
	c, err := a.registry.Resolve(a.ds)
	if err != nil {
		return false
	}
	return c.HealthCheck(ctx, a.ds) == nil
}

// queryResultStream adapts a connector.QueryResult's materialized rows
// into the pull-based federation.ResultStream every operator downstream
// expects.
type queryResultStream struct {
	result *connector.QueryResult
	index  int
}

func newQueryResultStream(result *connector.QueryResult) *queryResultStream {
	return &queryResultStream{result: result}
}

func (s *queryResultStream) Schema() *federation.ResultSchema {
	cols := make([]federation.ColumnDef, len(s.result.Columns))
	for i, name := range s.result.Columns {
		cols[i] = federation.ColumnDef{Name: name, Type: "unknown"}
	}
	return &federation.ResultSchema{Columns: cols}
}

func (s *queryResultStream) Next(ctx context.Context) (federation.Row, error) {
	if s.index >= len(s.result.Rows) {
		return nil, nil
	}
	raw := s.result.Rows[s.index]
	s.index++
	row := make(federation.Row, len(s.result.Columns))
	for i, name := range s.result.Columns {
		if i < len(raw) {
			row[name] = raw[i]
		}
	}
	return row, nil
}

func (s *queryResultStream) Close() error { return nil }

func (s *queryResultStream) EstimatedRows() int64 { return int64(s.result.RowCount) }

// RegisterDataSources registers a federation.EngineAdapter for every
// data source currently in cat against registry, so the
// FederatedExecutor can route a decomposed sub-query to it by ID.
func RegisterDataSources(cat *catalog.Catalog, connectors *connector.Registry, adapters *federation.AdapterRegistry) {
	for _, ds := range cat.ListDataSources() {
		adapters.Register(NewConnectorAdapter(ds, connectors))
	}
}
