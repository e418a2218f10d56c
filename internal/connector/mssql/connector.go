// Package mssql is the second half of the relational-A connector
// family: SQL Server data sources, alongside postgres's Postgres and
// Redshift coverage. A relational-A DataSource's Dialect ("postgresql"
// vs "sqlserver") decides which of the two connectors a caller should
// resolve by kind and dialect together.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/connector"

	_ "github.com/microsoft/go-mssqldb" // SQL Server wire protocol driver
)

// Connector serves relational-A data sources whose Dialect is
// "sqlserver" through a pool of *sql.DB handles keyed by DataSource ID.
type Connector struct {
	mu     sync.RWMutex
	pools  map[string]*sql.DB
	closed bool
}

// New creates an empty SQL Server connector.
func New() *Connector {
	return &Connector{pools: make(map[string]*sql.DB)}
}

func (c *Connector) Name() string          { return "mssql" }
func (c *Connector) Kind() catalog.Kind    { return catalog.KindRelationalA }
func (c *Connector) Dialects() []string { return []string{"sqlserver"} }

func (c *Connector) pool(ds *catalog.DataSource) (*sql.DB, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, fmt.Errorf("mssql connector: closed")
	}
	if db, ok := c.pools[ds.ID]; ok {
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	db, err := sql.Open("sqlserver", ds.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql connector: open %s: %w", ds.ID, err)
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
// full result set.
func (c *Connector) ExecuteQuery(ctx context.Context, ds *catalog.DataSource, query string) (*connector.QueryResult, error) {
	db, err := c.pool(ds)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("mssql connector: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("mssql connector: columns: %w", err)
	}

	var resultRows [][]interface{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("mssql connector: context error during iteration: %w", err)
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("mssql connector: scan: %w", err)
		}
		resultRows = append(resultRows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql connector: row iteration: %w", err)
	}

	return &connector.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Metadata: map[string]string{"engine": "mssql", "data_source": ds.ID},
	}, nil
}

// DiscoverSchema introspects INFORMATION_SCHEMA.COLUMNS for every base
// table in the named schema (defaulting to "dbo").
func (c *Connector) DiscoverSchema(ctx context.Context, ds *catalog.DataSource, schemaName string) (*catalog.Schema, error) {
	if schemaName == "" || schemaName == "default" {
		schemaName = "dbo"
	}
	db, err := c.pool(ds)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME, ORDINAL_POSITION`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("mssql connector: discover schema %s: %w", schemaName, err)
	}
	defer rows.Close()

	schema := &catalog.Schema{Name: schemaName, Tables: make(map[string]*catalog.Table)}
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("mssql connector: scan INFORMATION_SCHEMA row: %w", err)
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
		return nil, fmt.Errorf("mssql connector: INFORMATION_SCHEMA iteration: %w", err)
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
			lastErr = fmt.Errorf("mssql connector: close %s: %w", id, err)
		}
	}
	return lastErr
}

func mapColumnType(msType string) catalog.ColumnType {
	switch msType {
	case "int", "smallint", "tinyint":
		return catalog.TypeInteger
	case "bigint":
		return catalog.TypeBigInt
	case "float", "real":
		return catalog.TypeDouble
	case "decimal", "numeric", "money":
		return catalog.TypeDecimal
	case "bit":
		return catalog.TypeBoolean
	case "date":
		return catalog.TypeDate
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return catalog.TypeTimestamp
	case "varchar", "nvarchar", "char", "nchar", "text", "ntext":
		return catalog.TypeString
	default:
		return catalog.TypeUnknown
	}
}

var _ connector.Connector = (*Connector)(nil)
