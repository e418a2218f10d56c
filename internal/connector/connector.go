// Package connector is the home of the concrete backend implementations
// that execute queries against a registered catalog.DataSource. Where
// internal/adapters only knew about a fixed set of named engines, a
// Connector is selected by catalog.Kind: every data source of a given
// kind is served by the same connector family, and the family alone
// decides how to open a connection, run a query and introspect schema.
package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/canonica-labs/canonica/internal/catalog"
)

// QueryResult is the tabular result of a single executed statement,
// before it is wrapped into a federation.ResultStream.
type QueryResult struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
	Metadata map[string]string
}

// Connector is implemented once per catalog.Kind family. Individual
// DataSources of that kind (e.g. two different Postgres instances) are
// distinguished by the connection parameters passed to Acquire, not by
// separate Connector instances.
type Connector interface {
	// Name identifies the connector family, e.g. "postgres", "duckdb".
	Name() string

	// Kind reports which catalog.Kind this connector family serves.
	Kind() catalog.Kind

	// Dialects lists the DataSource.Dialect values this connector
	// answers for. A Kind can span several dialects (relational-B
	// covers duckdb/trino/snowflake/bigquery/spark); the Registry
	// resolves by dialect first and falls back to kind only when a
	// single connector claims the whole kind.
	Dialects() []string

	// HealthCheck verifies a data source is currently reachable.
	HealthCheck(ctx context.Context, ds *catalog.DataSource) error

	// ExecuteQuery runs a read-only statement against the data source
	// and returns its full result set.
	ExecuteQuery(ctx context.Context, ds *catalog.DataSource, sql string) (*QueryResult, error)

	// DiscoverSchema introspects the data source's metadata and
	// satisfies catalog.SchemaDiscoverer so connectors can be
	// registered directly against Catalog.RegisterDiscoverer.
	DiscoverSchema(ctx context.Context, ds *catalog.DataSource, schemaName string) (*catalog.Schema, error)

	// Close releases any resources (connection pools) held for every
	// data source this connector has served.
	Close() error
}

// Registry resolves the Connector responsible for a DataSource's
// dialect, with a per-kind fallback for connectors that claim an
// entire kind on their own.
type Registry struct {
	mu         sync.RWMutex
	byDialect  map[string]Connector
	byKind     map[catalog.Kind]Connector
	all        []Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		byDialect: make(map[string]Connector),
		byKind:    make(map[catalog.Kind]Connector),
	}
}

// Register adds a Connector, indexing it by every dialect it claims.
// If it claims no dialects, it is registered as the fallback for its
// whole Kind instead.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, c)
	dialects := c.Dialects()
	if len(dialects) == 0 {
		r.byKind[c.Kind()] = c
		return
	}
	for _, d := range dialects {
		r.byDialect[d] = c
	}
}

// Resolve returns the Connector that should serve a data source: first
// by its Dialect, then by its Kind.
func (r *Registry) Resolve(ds *catalog.DataSource) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byDialect[ds.Dialect]; ok {
		return c, nil
	}
	if c, ok := r.byKind[ds.Kind]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("connector: no connector registered for data source %s (kind %q, dialect %q)", ds.ID, ds.Kind, ds.Dialect)
}

// CheckAllHealth runs HealthCheck for every data source against its
// resolved connector, keyed by data source ID.
func (r *Registry) CheckAllHealth(ctx context.Context, sources []*catalog.DataSource) map[string]error {
	results := make(map[string]error, len(sources))
	for _, ds := range sources {
		c, err := r.Resolve(ds)
		if err != nil {
			results[ds.ID] = err
			continue
		}
		results[ds.ID] = c.HealthCheck(ctx, ds)
	}
	return results
}

// CloseAll closes every registered connector family.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lastErr error
	for _, c := range r.all {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
