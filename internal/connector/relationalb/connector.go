// Package relationalb serves catalog.KindRelationalB data sources by
// multiplexing across the engine adapters already built for DuckDB,
// Trino, Snowflake, BigQuery and Spark: one data source's relational-B
// traffic can be DuckDB while another's is Snowflake, selected by the
// DataSource's Dialect rather than by a separate Kind per engine.
package relationalb

import (
	"context"
	"fmt"
	"sync"

	"github.com/canonica-labs/canonica/internal/adapters"
	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/connector"
	"github.com/canonica-labs/canonica/internal/planner"
	canonicsql "github.com/canonica-labs/canonica/internal/sql"
)

// Connector dispatches to one adapters.EngineAdapter per Dialect value.
type Connector struct {
	mu       sync.RWMutex
	engines  map[string]adapters.EngineAdapter
}

// New creates a relational-B connector with no engines registered.
// RegisterEngine must be called once per dialect this connector should serve.
func New() *Connector {
	return &Connector{engines: make(map[string]adapters.EngineAdapter)}
}

// RegisterEngine binds an already-constructed engine adapter (e.g.
// duckdb.NewAdapter(), trino.NewAdapter(cfg)) to the dialect name that
// DataSource.Dialect must carry for queries to route to it.
func (c *Connector) RegisterEngine(dialect string, engine adapters.EngineAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engines[dialect] = engine
}

func (c *Connector) Name() string       { return "relational-b" }
func (c *Connector) Kind() catalog.Kind { return catalog.KindRelationalB }

// Dialects returns nil: this connector claims its whole Kind as a
// fallback rather than specific dialects, since it multiplexes across
// whatever engines RegisterEngine has bound so far.
func (c *Connector) Dialects() []string { return nil }

func (c *Connector) engineFor(ds *catalog.DataSource) (adapters.EngineAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.engines[ds.Dialect]
	if !ok {
		return nil, fmt.Errorf("relationalb connector: no engine registered for dialect %q (data source %s)", ds.Dialect, ds.ID)
	}
	return e, nil
}

// HealthCheck delegates to the resolved engine's own health check.
func (c *Connector) HealthCheck(ctx context.Context, ds *catalog.DataSource) error {
	e, err := c.engineFor(ds)
	if err != nil {
		return err
	}
	return e.CheckHealth(ctx)
}

// ExecuteQuery wraps the raw SQL text in the minimal ExecutionPlan the
// underlying engine adapter expects and runs it.
func (c *Connector) ExecuteQuery(ctx context.Context, ds *catalog.DataSource, query string) (*connector.QueryResult, error) {
	e, err := c.engineFor(ds)
	if err != nil {
		return nil, err
	}

	plan := &planner.ExecutionPlan{LogicalPlan: &canonicsql.LogicalPlan{RawSQL: query}, Engine: ds.Dialect}
	result, err := e.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	return &connector.QueryResult{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
		Metadata: result.Metadata,
	}, nil
}

// DiscoverSchema issues a best-effort information_schema.columns query
// through the resolved engine; warehouses that expose a compatible
// information_schema (DuckDB, Trino, Snowflake, Spark) return real
// metadata. Engines with an incompatible catalog (BigQuery datasets)
// fail this query and surface the error for the caller to decide
// whether to fall back to an ExternalCatalog-backed discoverer instead.
func (c *Connector) DiscoverSchema(ctx context.Context, ds *catalog.DataSource, schemaName string) (*catalog.Schema, error) {
	if schemaName == "" || schemaName == "default" {
		schemaName = "information_schema"
	}

	query := fmt.Sprintf(
		"SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = '%s' ORDER BY table_name",
		schemaName,
	)
	result, err := c.ExecuteQuery(ctx, ds, query)
	if err != nil {
		return nil, fmt.Errorf("relationalb connector: discover schema %s: %w", schemaName, err)
	}

	schema := &catalog.Schema{Name: schemaName, Tables: make(map[string]*catalog.Table)}
	for _, row := range result.Rows {
		if len(row) < 4 {
			continue
		}
		tableName := fmt.Sprintf("%v", row[0])
		columnName := fmt.Sprintf("%v", row[1])
		dataType := fmt.Sprintf("%v", row[2])
		nullable := fmt.Sprintf("%v", row[3]) == "YES"

		t, ok := schema.Tables[tableName]
		if !ok {
			t = &catalog.Table{Name: tableName, Statistics: catalog.DefaultTableStatistics()}
			schema.Tables[tableName] = t
		}
		t.Columns = append(t.Columns, catalog.Column{Name: columnName, Type: mapGenericType(dataType), Nullable: nullable})
	}
	return schema, nil
}

// Close closes every registered engine adapter.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var lastErr error
	for dialect, e := range c.engines {
		if err := e.Close(); err != nil {
			lastErr = fmt.Errorf("relationalb connector: close %s: %w", dialect, err)
		}
	}
	return lastErr
}

func mapGenericType(t string) catalog.ColumnType {
	switch t {
	case "INTEGER", "integer", "INT", "int":
		return catalog.TypeInteger
	case "BIGINT", "bigint":
		return catalog.TypeBigInt
	case "DOUBLE", "double", "REAL", "FLOAT":
		return catalog.TypeDouble
	case "DECIMAL", "decimal", "NUMERIC":
		return catalog.TypeDecimal
	case "BOOLEAN", "boolean":
		return catalog.TypeBoolean
	case "DATE", "date":
		return catalog.TypeDate
	case "TIMESTAMP", "timestamp":
		return catalog.TypeTimestamp
	case "VARCHAR", "varchar", "STRING", "string", "TEXT", "text":
		return catalog.TypeString
	default:
		return catalog.TypeUnknown
	}
}

var _ connector.Connector = (*Connector)(nil)
