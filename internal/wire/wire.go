// Package wire implements the session/statement/frame protocol clients
// speak to run a federated query: openConnection/closeConnection,
// createStatement/prepare/prepareAndExecute/execute/fetch/closeStatement,
// and the catalog metadata operations (getTables, getColumns, getSchemas,
// getCatalogs, getTableTypes), plus a SHOW TABLES interception that
// answers straight from the catalog regardless of backend.
package wire

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/connector"
	"github.com/canonica-labs/canonica/internal/errors"
	"github.com/canonica-labs/canonica/internal/federation"
	"github.com/canonica-labs/canonica/internal/lifecycle"
	"github.com/canonica-labs/canonica/internal/sqlfront"
)

// Frame is one batch of a statement's result, returned by fetch. A
// client calls fetch repeatedly, advancing offset by len(Rows) each
// time, until Done is true.
type Frame struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Offset  int                      `json:"offset"`
	Done    bool                     `json:"done"`
}

// Session is one client connection: openConnection creates it,
// closeConnection tears it down along with every statement still open
// on it.
type Session struct {
	ID string

	mu         sync.Mutex
	statements map[string]*Statement
	nextStmt   int
}

// Statement is one prepared or executing query within a session. Fetch
// only supports sequential consumption of the underlying
// federation.ResultStream; it is not a scrollable cursor.
type Statement struct {
	ID      string
	SQL     string
	QueryID string // lifecycle.Query ID, set once execute has run

	mu       sync.Mutex
	stream   federation.ResultStream
	schema   *federation.ResultSchema
	consumed int
	exhausted bool
}

// Server is the wire protocol's session/statement state plus the
// planning and execution stack every statement runs through:
// sqlfront validates and resolves identifiers, internal/federation
// plans and executes, internal/lifecycle tracks each query's state.
type Server struct {
	Catalog    *catalog.Catalog
	Connectors *connector.Registry
	Validator  *sqlfront.Validator
	Executor   *federation.FederatedExecutor
	Lifecycle  *lifecycle.Manager

	mu       sync.Mutex
	sessions map[string]*Session
	nextSess int
}

// NewServer wires a Server from an already-assembled catalog, connector
// registry, and federated executor (built by the caller via
// federation.NewFederatedExecutor against a *CatalogRepository).
func NewServer(cat *catalog.Catalog, connectors *connector.Registry, executor *federation.FederatedExecutor) *Server {
	return &Server{
		Catalog:    cat,
		Connectors: connectors,
		Validator:  sqlfront.New(cat),
		Executor:   executor,
		Lifecycle:  lifecycle.NewManager(),
		sessions:   make(map[string]*Session),
	}
}

// OpenConnection creates a new session.
func (s *Server) OpenConnection() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSess++
	sess := &Session{ID: fmt.Sprintf("sess-%d", s.nextSess), statements: make(map[string]*Statement)}
	s.sessions[sess.ID] = sess
	return sess
}

// CloseConnection tears down a session and every statement still open
// on it.
func (s *Server) CloseConnection(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return errors.NewKindError(errors.KindDataSourceNotFound, fmt.Sprintf("session %s not found", sessionID), "the session ID is unknown", "open a new connection", nil)
	}
	sess.mu.Lock()
	for _, stmt := range sess.statements {
		stmt.close()
	}
	sess.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Server) session(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.NewKindError(errors.KindDataSourceNotFound, fmt.Sprintf("session %s not found", sessionID), "the session ID is unknown", "open a new connection", nil)
	}
	return sess, nil
}

// CreateStatement allocates a new, unbound statement on sessionID.
func (s *Server) CreateStatement(sessionID string) (*Statement, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.nextStmt++
	stmt := &Statement{ID: fmt.Sprintf("%s-stmt-%d", sess.ID, sess.nextStmt)}
	sess.statements[stmt.ID] = stmt
	return stmt, nil
}

// Prepare validates sql against the catalog and binds it to stmt
// without executing it.
func (s *Server) Prepare(sessionID, stmtID, sql string) (*Statement, error) {
	stmt, err := s.lookup(sessionID, stmtID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Validator.Validate(sql); err != nil {
		return nil, err
	}
	stmt.mu.Lock()
	stmt.SQL = sql
	stmt.mu.Unlock()
	return stmt, nil
}

// PrepareAndExecute validates and immediately executes sql on stmt.
func (s *Server) PrepareAndExecute(ctx context.Context, sessionID, stmtID, sql string) (*Statement, error) {
	if _, err := s.Prepare(sessionID, stmtID, sql); err != nil {
		return nil, err
	}
	return s.Execute(ctx, sessionID, stmtID, nil)
}

// Execute runs the statement's already-prepared SQL. parameters is
// reserved for positional substitution in a future revision; the
// planner does not yet support bind parameters, so a non-empty slice
// is rejected rather than silently ignored.
func (s *Server) Execute(ctx context.Context, sessionID, stmtID string, parameters []interface{}) (*Statement, error) {
	if len(parameters) > 0 {
		return nil, errors.NewUnsupportedSyntax("bind parameters", "inline literal values into the SQL text")
	}
	stmt, err := s.lookup(sessionID, stmtID)
	if err != nil {
		return nil, err
	}
	stmt.mu.Lock()
	sql := stmt.SQL
	stmt.mu.Unlock()
	if sql == "" {
		return nil, errors.NewKindError(errors.KindIllegalState, "execute called before prepare", "a statement must be prepared (or run via prepareAndExecute) before execute", "call prepare first", nil)
	}

	query := s.Lifecycle.Submit(sql)
	if err := s.Lifecycle.Start(query.ID); err != nil {
		return nil, err
	}

	if isShowTables(sql) {
		stream := s.showTablesStream()
		stmt.mu.Lock()
		stmt.stream = stream
		stmt.schema = stream.Schema()
		stmt.QueryID = query.ID
		stmt.mu.Unlock()
		return stmt, nil
	}

	stream, err := s.Executor.Execute(ctx, sql)
	if err != nil {
		s.Lifecycle.Fail(query.ID, err)
		return nil, err
	}

	stmt.mu.Lock()
	stmt.stream = stream
	stmt.schema = stream.Schema()
	stmt.QueryID = query.ID
	stmt.mu.Unlock()
	return stmt, nil
}

// Fetch pulls the next batch of up to maxRows rows starting at offset,
// which must equal the number of rows already consumed: the underlying
// ResultStream is forward-only.
func (s *Server) Fetch(ctx context.Context, sessionID, stmtID string, offset, maxRows int) (*Frame, error) {
	stmt, err := s.lookup(sessionID, stmtID)
	if err != nil {
		return nil, err
	}
	stmt.mu.Lock()
	defer stmt.mu.Unlock()

	if stmt.stream == nil {
		return nil, errors.NewKindError(errors.KindIllegalState, "fetch called before execute", "a statement must be executed before fetch", "call execute first", nil)
	}
	if q, err := s.Lifecycle.Get(stmt.QueryID); err == nil && q.State == lifecycle.StateCancelled {
		return nil, errors.NewKindError(errors.KindCancelled, fmt.Sprintf("query %s was cancelled", stmt.QueryID), "the query was cancelled; no further rows are returned", "re-run the query", nil)
	}
	if offset != stmt.consumed {
		return nil, errors.NewKindError(errors.KindIllegalState, fmt.Sprintf("fetch offset %d does not match stream position %d", offset, stmt.consumed), "this stream is forward-only and cannot be rewound or skipped", "fetch sequentially from the stream's current position", nil)
	}

	frame := &Frame{Offset: offset}
	for _, col := range stmt.schema.Columns {
		frame.Columns = append(frame.Columns, col.Name)
	}

	if stmt.exhausted {
		frame.Done = true
		return frame, nil
	}

	for len(frame.Rows) < maxRows {
		row, err := stmt.stream.Next(ctx)
		if err != nil {
			if failErr := s.Lifecycle.Fail(stmt.QueryID, err); failErr != nil {
				return nil, failErr
			}
			return nil, err
		}
		if row == nil {
			stmt.exhausted = true
			frame.Done = true
			break
		}
		frame.Rows = append(frame.Rows, map[string]interface{}(row))
		stmt.consumed++
	}

	if stmt.exhausted {
		if err := s.Lifecycle.Complete(stmt.QueryID, int64(stmt.consumed)); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// CloseStatement releases a statement's stream and deregisters it.
func (s *Server) CloseStatement(sessionID, stmtID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	stmt, ok := sess.statements[stmtID]
	if !ok {
		return errors.NewKindError(errors.KindDataSourceNotFound, fmt.Sprintf("statement %s not found", stmtID), "the statement ID is unknown", "create a new statement", nil)
	}
	stmt.close()
	delete(sess.statements, stmtID)
	return nil
}

func (s *Server) lookup(sessionID, stmtID string) (*Statement, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	stmt, ok := sess.statements[stmtID]
	if !ok {
		return nil, errors.NewKindError(errors.KindDataSourceNotFound, fmt.Sprintf("statement %s not found", stmtID), "the statement ID is unknown", "create a new statement", nil)
	}
	return stmt, nil
}

func (stmt *Statement) close() {
	stmt.mu.Lock()
	defer stmt.mu.Unlock()
	if stmt.stream != nil {
		stmt.stream.Close()
		stmt.stream = nil
	}
}

func isShowTables(sql string) bool {
	trimmed := strings.TrimSpace(strings.ToUpper(sql))
	return strings.HasPrefix(trimmed, "SHOW TABLES")
}
