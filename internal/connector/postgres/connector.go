// Package postgres implements the relational-A connector family over
// the Postgres wire protocol. Amazon Redshift speaks the same protocol,
// so a DataSource's Dialect (not its driver) is what distinguishes a
// plain Postgres instance from a Redshift cluster at query-rendering
// time; this connector serves both.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/connector"

	_ "github.com/lib/pq" // Postgres/Redshift wire protocol driver
)

// Connector serves every relational-A data source through a pool of
// *sql.DB handles, one per DSN, opened lazily on first use.
type Connector struct {
	mu     sync.RWMutex
	pools  map[string]*sql.DB
	closed bool
}

// New creates an empty Postgres/Redshift connector.
func New() *Connector {
	return &Connector{pools: make(map[string]*sql.DB)}
}

func (c *Connector) Name() string            { return "postgres" }
func (c *Connector) Kind() catalog.Kind      { return catalog.KindRelationalA }
func (c *Connector) Dialects() []string { return []string{"postgresql", "redshift"} }

func (c *Connector) pool(ds *catalog.DataSource) (*sql.DB, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, fmt.Errorf("postgres connector: closed")
	}
	if db, ok := c.pools[ds.ID]; ok {
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	db, err := sql.Open("postgres", ds.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: open %s: %w", ds.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.pools[ds.ID]; ok {
		db.Close()
		return existing, nil
	}
	c.pools[ds.ID] = db
	return db, nil
}

// HealthCheck pings the data source's connection pool.
func (c *Connector) HealthCheck(ctx context.Context, ds *catalog.DataSource) error {
	db, err := c.pool(ds)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// ExecuteQuery runs sql against the data source and materializes the
// full result set, mirroring the teacher's DuckDB/Trino adapters.
func (c *Connector) ExecuteQuery(ctx context.Context, ds *catalog.DataSource, query string) (*connector.QueryResult, error) {
	db, err := c.pool(ds)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres connector: columns: %w", err)
	}

	var resultRows [][]interface{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("postgres connector: context error during iteration: %w", err)
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("postgres connector: scan: %w", err)
		}
		resultRows = append(resultRows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres connector: row iteration: %w", err)
	}

	return &connector.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Metadata: map[string]string{"engine": "postgres", "data_source": ds.ID},
	}, nil
}

// DiscoverSchema introspects information_schema.columns for every base
// table in the named schema (defaulting to "public").
func (c *Connector) DiscoverSchema(ctx context.Context, ds *catalog.DataSource, schemaName string) (*catalog.Schema, error) {
	if schemaName == "" || schemaName == "default" {
		schemaName = "public"
	}
	db, err := c.pool(ds)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: discover schema %s: %w", schemaName, err)
	}
	defer rows.Close()

	schema := &catalog.Schema{Name: schemaName, Tables: make(map[string]*catalog.Table)}
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("postgres connector: scan information_schema row: %w", err)
		}
		t, ok := schema.Tables[tableName]
		if !ok {
			t = &catalog.Table{Name: tableName, Statistics: catalog.DefaultTableStatistics()}
			schema.Tables[tableName] = t
		}
		t.Columns = append(t.Columns, catalog.Column{
			Name:     columnName,
			Type:     mapColumnType(dataType),
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres connector: information_schema iteration: %w", err)
	}
	return schema, nil
}

// Close closes every pool this connector opened.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	var lastErr error
	for id, db := range c.pools {
		if err := db.Close(); err != nil {
			lastErr = fmt.Errorf("postgres connector: close %s: %w", id, err)
		}
	}
	return lastErr
}

func mapColumnType(pgType string) catalog.ColumnType {
	switch pgType {
	case "integer", "smallint":
		return catalog.TypeInteger
	case "bigint":
		return catalog.TypeBigInt
	case "double precision", "real":
		return catalog.TypeDouble
	case "numeric", "decimal":
		return catalog.TypeDecimal
	case "boolean":
		return catalog.TypeBoolean
	case "date":
		return catalog.TypeDate
	case "timestamp without time zone", "timestamp with time zone":
		return catalog.TypeTimestamp
	case "text", "character varying", "character":
		return catalog.TypeString
	default:
		return catalog.TypeUnknown
	}
}

var _ connector.Connector = (*Connector)(nil)
