package wire

import (
	"context"
	"testing"

	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/federation"
	canonicsql "github.com/canonica-labs/canonica/internal/sql"
)

// fakeAdapter is a federation.EngineAdapter that answers every query
// with a fixed, in-memory result set, bypassing any real connector.
type fakeAdapter struct {
	name   string
	schema *federation.ResultSchema
	rows   []federation.Row
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Execute(ctx context.Context, query string) (federation.ResultStream, error) {
	return federation.NewSliceStream(a.rows, a.schema), nil
}

func (a *fakeAdapter) TableStats(ctx context.Context, table string) (*federation.TableStats, error) {
	return &federation.TableStats{RowCount: int64(len(a.rows))}, nil
}

func (a *fakeAdapter) HealthCheck(ctx context.Context) bool { return true }

// testServer builds a Server over a catalog with one data source
// ("pg1", schema "analytics", table "orders") and a fake adapter
// registered under the same ID, so a query against analytics.orders
// executes end to end without a real connector.
func testServer(t *testing.T) *Server {
	t.Helper()
	cat := catalog.NewCatalog()
	ds := &catalog.DataSource{
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
	if err := cat.RegisterDataSource(ds); err != nil {
		t.Fatalf("RegisterDataSource: %v", err)
	}

	schema := &federation.ResultSchema{Columns: []federation.ColumnDef{
		{Name: "id", Type: "BIGINT"},
		{Name: "amount", Type: "DOUBLE"},
	}}
	rows := []federation.Row{
		{"id": int64(1), "amount": 10.5},
		{"id": int64(2), "amount": 20.0},
	}
	adapters := federation.NewAdapterRegistry()
	adapters.Register(&fakeAdapter{name: "pg1", schema: schema, rows: rows})

	executor := federation.NewFederatedExecutor(adapters, canonicsql.NewParser(), NewCatalogRepository(cat))
	return NewServer(cat, nil, executor)
}

func TestSessionStatementLifecycle(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, err := s.CreateStatement(sess.ID)
	if err != nil {
		t.Fatalf("CreateStatement: %v", err)
	}

	if _, err := s.PrepareAndExecute(ctx, sess.ID, stmt.ID, "SELECT id, amount FROM analytics.orders"); err != nil {
		t.Fatalf("PrepareAndExecute: %v", err)
	}

	frame, err := s.Fetch(ctx, sess.ID, stmt.ID, 0, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !frame.Done {
		t.Fatal("expected Done on the first fetch since maxRows exceeds row count")
	}
	if len(frame.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(frame.Rows), frame.Rows)
	}
	if frame.Rows[0]["id"] != int64(1) {
		t.Fatalf("unexpected first row: %+v", frame.Rows[0])
	}

	if err := s.CloseStatement(sess.ID, stmt.ID); err != nil {
		t.Fatalf("CloseStatement: %v", err)
	}
	if err := s.CloseConnection(sess.ID); err != nil {
		t.Fatalf("CloseConnection: %v", err)
	}
}

func TestFetchPaginatesInBatches(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, _ := s.CreateStatement(sess.ID)
	if _, err := s.PrepareAndExecute(ctx, sess.ID, stmt.ID, "SELECT id, amount FROM analytics.orders"); err != nil {
		t.Fatalf("PrepareAndExecute: %v", err)
	}

	first, err := s.Fetch(ctx, sess.ID, stmt.ID, 0, 1)
	if err != nil {
		t.Fatalf("Fetch (first batch): %v", err)
	}
	if first.Done || len(first.Rows) != 1 {
		t.Fatalf("expected one row and Done=false, got %+v", first)
	}

	second, err := s.Fetch(ctx, sess.ID, stmt.ID, 1, 10)
	if err != nil {
		t.Fatalf("Fetch (second batch): %v", err)
	}
	if !second.Done || len(second.Rows) != 1 {
		t.Fatalf("expected the remaining row and Done=true, got %+v", second)
	}
}

func TestFetchRejectsOutOfOrderOffset(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, _ := s.CreateStatement(sess.ID)
	if _, err := s.PrepareAndExecute(ctx, sess.ID, stmt.ID, "SELECT id, amount FROM analytics.orders"); err != nil {
		t.Fatalf("PrepareAndExecute: %v", err)
	}

	if _, err := s.Fetch(ctx, sess.ID, stmt.ID, 5, 10); err == nil {
		t.Fatal("expected an error when fetch offset does not match stream position")
	}
}

func TestExecuteBeforePrepareFails(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, _ := s.CreateStatement(sess.ID)
	if _, err := s.Execute(ctx, sess.ID, stmt.ID, nil); err == nil {
		t.Fatal("expected execute to fail before prepare")
	}
}

func TestExecuteRejectsBindParameters(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, _ := s.CreateStatement(sess.ID)
	if _, err := s.Prepare(sess.ID, stmt.ID, "SELECT id FROM analytics.orders"); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := s.Execute(ctx, sess.ID, stmt.ID, []interface{}{1}); err == nil {
		t.Fatal("expected execute to reject non-empty bind parameters")
	}
}

func TestUnknownSessionAndStatement(t *testing.T) {
	s := testServer(t)

	if _, err := s.CreateStatement("nope"); err == nil {
		t.Fatal("expected an error for an unknown session")
	}

	sess := s.OpenConnection()
	if _, err := s.Prepare(sess.ID, "nope", "SELECT 1"); err == nil {
		t.Fatal("expected an error for an unknown statement")
	}
}

func TestCloseConnectionClosesOpenStatements(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, _ := s.CreateStatement(sess.ID)
	if _, err := s.PrepareAndExecute(ctx, sess.ID, stmt.ID, "SELECT id FROM analytics.orders"); err != nil {
		t.Fatalf("PrepareAndExecute: %v", err)
	}

	if err := s.CloseConnection(sess.ID); err != nil {
		t.Fatalf("CloseConnection: %v", err)
	}
	if _, err := s.Fetch(ctx, sess.ID, stmt.ID, 0, 10); err == nil {
		t.Fatal("expected fetch against a closed session to fail")
	}
}

func TestShowTablesAnswersFromCatalog(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	sess := s.OpenConnection()
	stmt, _ := s.CreateStatement(sess.ID)
	if _, err := s.PrepareAndExecute(ctx, sess.ID, stmt.ID, "SHOW TABLES"); err != nil {
		t.Fatalf("PrepareAndExecute(SHOW TABLES): %v", err)
	}

	frame, err := s.Fetch(ctx, sess.ID, stmt.ID, 0, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(frame.Rows) != 1 {
		t.Fatalf("expected 1 table row, got %d: %+v", len(frame.Rows), frame.Rows)
	}
	if frame.Rows[0]["table"] != "orders" {
		t.Fatalf("unexpected SHOW TABLES row: %+v", frame.Rows[0])
	}
}

func TestExplainReportsResolvedTablesWithoutExecuting(t *testing.T) {
	s := testServer(t)

	info, err := s.Explain("SELECT id FROM analytics.orders")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(info.Tables) != 1 || info.Tables[0] != "pg1.analytics.orders" {
		t.Fatalf("unexpected resolved tables: %+v", info.Tables)
	}
	if info.HasTimeTravel {
		t.Fatal("did not expect HasTimeTravel for a plain SELECT")
	}
}

func TestExplainRejectsUnresolvedTable(t *testing.T) {
	s := testServer(t)

	if _, err := s.Explain("SELECT id FROM analytics.missing"); err == nil {
		t.Fatal("expected Explain to fail for an unresolved table")
	}
}

func TestValidateQueryReportsOutcomeNotError(t *testing.T) {
	s := testServer(t)

	ok := s.ValidateQuery("SELECT id FROM analytics.orders")
	if !ok.Valid || ok.Error != "" {
		t.Fatalf("expected a valid result, got %+v", ok)
	}

	bad := s.ValidateQuery("SELECT id FROM analytics.missing")
	if bad.Valid || bad.Error == "" {
		t.Fatalf("expected an invalid result with an error message, got %+v", bad)
	}
}

func TestGetTablesFiltersByLikePattern(t *testing.T) {
	s := testServer(t)

	all := s.GetTables("")
	if len(all) != 1 {
		t.Fatalf("expected 1 table, got %d", len(all))
	}

	matched := s.GetTables("ord%")
	if len(matched) != 1 {
		t.Fatalf("expected the LIKE pattern to match orders, got %d", len(matched))
	}

	none := s.GetTables("zzz%")
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %+v", none)
	}
}
