package sqlfront

import (
	"strings"
	"testing"

	"github.com/canonica-labs/canonica/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.NewCatalog()

	ds1 := &catalog.DataSource{
		ID:   "pg1",
		Kind: catalog.KindRelationalA,
		Schemas: map[string]*catalog.Schema{
			"analytics": {
				Name: "analytics",
				Tables: map[string]*catalog.Table{
					"orders": {
						Name: "orders",
						Columns: []catalog.Column{
							{Name: "id", Type: catalog.TypeBigInt},
							{Name: "amount", Type: catalog.TypeDouble},
						},
					},
				},
			},
		},
	}
	if err := cat.RegisterDataSource(ds1); err != nil {
		t.Fatalf("RegisterDataSource(pg1): %v", err)
	}

	ds2 := &catalog.DataSource{
		ID:   "es1",
		Kind: catalog.KindSearchStore,
		Schemas: map[string]*catalog.Schema{
			"logs": {
				Name: "logs",
				Tables: map[string]*catalog.Table{
					"events": {
						Name: "events",
						Columns: []catalog.Column{
							{Name: "id", Type: catalog.TypeString},
						},
					},
				},
			},
		},
	}
	if err := cat.RegisterDataSource(ds2); err != nil {
		t.Fatalf("RegisterDataSource(es1): %v", err)
	}

	return cat
}

func TestValidateResolvesUnqualifiedTable(t *testing.T) {
	v := New(testCatalog(t))

	result, err := v.Validate("SELECT id, amount FROM analytics.orders")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(result.Tables) != 1 {
		t.Fatalf("expected 1 resolved table, got %d", len(result.Tables))
	}
	got := result.Tables[0]
	if got.DataSource.ID != "pg1" || got.Schema.Name != "analytics" || got.Table.Name != "orders" {
		t.Fatalf("resolved wrong table: %+v", got)
	}
}

func TestValidateResolvesThreePartReference(t *testing.T) {
	v := New(testCatalog(t))

	result, err := v.Validate("SELECT id FROM pg1.analytics.orders")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(result.Tables) != 1 || result.Tables[0].DataSource.ID != "pg1" {
		t.Fatalf("expected pg1.analytics.orders to resolve, got %+v", result.Tables)
	}
}

func TestValidateUnknownTable(t *testing.T) {
	v := New(testCatalog(t))

	if _, err := v.Validate("SELECT * FROM analytics.missing"); err == nil {
		t.Fatal("expected an error for an unregistered table")
	}
}

func TestValidateAmbiguousTable(t *testing.T) {
	cat := testCatalog(t)
	// Register a second data source with the same schema.table as pg1.
	dup := &catalog.DataSource{
		ID:   "pg2",
		Kind: catalog.KindRelationalA,
		Schemas: map[string]*catalog.Schema{
			"analytics": {
				Name: "analytics",
				Tables: map[string]*catalog.Table{
					"orders": {Name: "orders"},
				},
			},
		},
	}
	if err := cat.RegisterDataSource(dup); err != nil {
		t.Fatalf("RegisterDataSource(pg2): %v", err)
	}

	v := New(cat)
	_, err := v.Validate("SELECT * FROM analytics.orders")
	if err == nil {
		t.Fatal("expected an ambiguous table error")
	}
	if !strings.Contains(err.Error(), "ambiguous") && !strings.Contains(strings.ToLower(err.Error()), "ambig") {
		t.Fatalf("expected an ambiguity error, got: %v", err)
	}
}

func TestValidateRejectsAggregateWithoutGroupBy(t *testing.T) {
	v := New(testCatalog(t))

	_, err := v.Validate("SELECT id, SUM(amount) FROM analytics.orders")
	if err == nil {
		t.Fatal("expected an error for a bare column alongside an aggregate with no GROUP BY")
	}
}

func TestValidateAllowsAggregateWithGroupBy(t *testing.T) {
	v := New(testCatalog(t))

	_, err := v.Validate("SELECT id, SUM(amount) FROM analytics.orders GROUP BY id")
	if err != nil {
		t.Fatalf("did not expect an error: %v", err)
	}
}

func TestValidateRejectsMismatchedUnionArity(t *testing.T) {
	v := New(testCatalog(t))

	_, err := v.Validate("SELECT id FROM analytics.orders UNION SELECT id, amount FROM analytics.orders")
	if err == nil {
		t.Fatal("expected an error for a UNION with mismatched branch arity")
	}
}

func TestValidateAllowsMatchedUnionArity(t *testing.T) {
	v := New(testCatalog(t))

	_, err := v.Validate("SELECT id FROM analytics.orders UNION SELECT id FROM analytics.orders")
	if err != nil {
		t.Fatalf("did not expect an error: %v", err)
	}
}
