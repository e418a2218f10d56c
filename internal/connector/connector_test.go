package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/canonica-labs/canonica/internal/catalog"
)

// fakeConnector is a minimal Connector stub so the registry's resolution
// and fan-out logic can be tested without a real database/search driver.
type fakeConnector struct {
	name      string
	kind      catalog.Kind
	dialects  []string
	healthErr error
	closeErr  error
	closed    bool
}

func (c *fakeConnector) Name() string       { return c.name }
func (c *fakeConnector) Kind() catalog.Kind { return c.kind }
func (c *fakeConnector) Dialects() []string { return c.dialects }
func (c *fakeConnector) HealthCheck(ctx context.Context, ds *catalog.DataSource) error {
	return c.healthErr
}
func (c *fakeConnector) ExecuteQuery(ctx context.Context, ds *catalog.DataSource, sql string) (*QueryResult, error) {
	return &QueryResult{Columns: []string{"ok"}, Rows: [][]interface{}{{true}}, RowCount: 1}, nil
}
func (c *fakeConnector) DiscoverSchema(ctx context.Context, ds *catalog.DataSource, schemaName string) (*catalog.Schema, error) {
	return &catalog.Schema{Name: schemaName, Tables: map[string]*catalog.Table{}}, nil
}
func (c *fakeConnector) Close() error {
	c.closed = true
	return c.closeErr
}

func TestRegistryResolvesByDialectFirst(t *testing.T) {
	r := NewRegistry()
	pg := &fakeConnector{name: "postgres", kind: catalog.KindRelationalA, dialects: []string{"postgres"}}
	mssql := &fakeConnector{name: "mssql", kind: catalog.KindRelationalA, dialects: []string{"sqlserver"}}
	r.Register(pg)
	r.Register(mssql)

	resolved, err := r.Resolve(&catalog.DataSource{ID: "ds1", Kind: catalog.KindRelationalA, Dialect: "sqlserver"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Name() != "mssql" {
		t.Fatalf("expected dialect resolution to pick mssql, got %s", resolved.Name())
	}
}

func TestRegistryFallsBackToKindWhenNoDialectClaimed(t *testing.T) {
	r := NewRegistry()
	multiplexed := &fakeConnector{name: "relationalb", kind: catalog.KindRelationalB, dialects: nil}
	r.Register(multiplexed)

	resolved, err := r.Resolve(&catalog.DataSource{ID: "ds1", Kind: catalog.KindRelationalB, Dialect: "snowflake"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Name() != "relationalb" {
		t.Fatalf("expected the kind-level fallback connector, got %s", resolved.Name())
	}
}

func TestRegistryResolveUnknownDataSourceFails(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve(&catalog.DataSource{ID: "ds1", Kind: catalog.KindSearchStore, Dialect: "elasticsearch"}); err == nil {
		t.Fatal("expected an error when no connector covers the data source")
	}
}

func TestCheckAllHealthCollectsPerSourceResults(t *testing.T) {
	r := NewRegistry()
	healthy := &fakeConnector{name: "pg", kind: catalog.KindRelationalA, dialects: []string{"postgres"}}
	unhealthy := &fakeConnector{name: "es", kind: catalog.KindSearchStore, dialects: []string{"elasticsearch"}, healthErr: errors.New("cluster unreachable")}
	r.Register(healthy)
	r.Register(unhealthy)

	sources := []*catalog.DataSource{
		{ID: "pg1", Kind: catalog.KindRelationalA, Dialect: "postgres"},
		{ID: "es1", Kind: catalog.KindSearchStore, Dialect: "elasticsearch"},
	}
	results := r.CheckAllHealth(context.Background(), sources)

	if results["pg1"] != nil {
		t.Fatalf("expected pg1 healthy, got %v", results["pg1"])
	}
	if results["es1"] == nil {
		t.Fatal("expected es1 to report its health error")
	}
}

func TestCheckAllHealthReportsResolveFailureForUnregisteredSource(t *testing.T) {
	r := NewRegistry()
	sources := []*catalog.DataSource{{ID: "mystery", Kind: catalog.KindSearchStore, Dialect: "nope"}}
	results := r.CheckAllHealth(context.Background(), sources)
	if results["mystery"] == nil {
		t.Fatal("expected an unresolved data source to surface an error rather than panic")
	}
}

func TestCloseAllClosesEveryRegisteredConnector(t *testing.T) {
	r := NewRegistry()
	a := &fakeConnector{name: "a", kind: catalog.KindRelationalA, dialects: []string{"postgres"}}
	b := &fakeConnector{name: "b", kind: catalog.KindSearchStore, dialects: []string{"elasticsearch"}}
	r.Register(a)
	r.Register(b)

	if err := r.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("expected both connectors closed, got a=%v b=%v", a.closed, b.closed)
	}
}

func TestCloseAllReturnsLastErrorButClosesEveryone(t *testing.T) {
	r := NewRegistry()
	failing := &fakeConnector{name: "failing", kind: catalog.KindRelationalA, dialects: []string{"postgres"}, closeErr: errors.New("pool shutdown failed")}
	ok := &fakeConnector{name: "ok", kind: catalog.KindSearchStore, dialects: []string{"elasticsearch"}}
	r.Register(failing)
	r.Register(ok)

	if err := r.CloseAll(); err == nil {
		t.Fatal("expected CloseAll to surface the failing connector's error")
	}
	if !failing.closed || !ok.closed {
		t.Fatalf("expected CloseAll to attempt every connector even after a failure, got failing=%v ok=%v", failing.closed, ok.closed)
	}
}
