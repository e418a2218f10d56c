// Package lifecycle tracks a query's progress from submission through a
// terminal state, assigning each one a stable ID so logs, cancellation
// requests, and fetch calls can all refer to the same execution.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canonica-labs/canonica/internal/errors"
)

// State is a query's position in the Pending -> Running ->
// Completed|Failed|Cancelled state machine. Cancellation can interrupt
// either Pending or Running; every other transition is forward-only.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// terminal reports whether a state has no further transitions.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// legalTransitions enumerates the state machine's edges. Any pair not
// present here is rejected with KindIllegalState.
var legalTransitions = map[State][]State{
	StatePending: {StateRunning, StateCancelled, StateFailed},
	StateRunning: {StateCompleted, StateFailed, StateCancelled},
}

// Query is one tracked execution: its SQL text, current state, and the
// timestamps of every transition it has gone through.
type Query struct {
	ID        string
	SQL       string
	State     State
	SubmittedAt time.Time
	StartedAt   time.Time
	EndedAt     time.Time
	RowsReturned int64
	Err         error

	mu sync.RWMutex
}

// snapshot returns a copy of q safe to hand to a caller outside the
// Manager's lock.
func (q *Query) snapshot() *Query {
	q.mu.RLock()
	defer q.mu.RUnlock()
	cp := *q
	cp.mu = sync.RWMutex{}
	return &cp
}

func (q *Query) transition(next State) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.State == next {
		return nil
	}
	allowed := false
	for _, s := range legalTransitions[q.State] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.NewKindError(
			errors.KindIllegalState,
			fmt.Sprintf("query %s: cannot transition %s -> %s", q.ID, q.State, next),
			"the query lifecycle only allows Pending->Running->{Completed,Failed,Cancelled} (and cancellation or failure of a Pending query)",
			"check the query's current state before requesting a transition",
			nil,
		).WithQuery(q.ID)
	}

	switch next {
	case StateRunning:
		q.StartedAt = time.Now()
	case StateCompleted, StateFailed, StateCancelled:
		q.EndedAt = time.Now()
	}
	q.State = next
	return nil
}

// Manager is the in-memory Query Lifecycle Manager: every query this
// gateway instance has accepted, keyed by ID, until it is reaped.
type Manager struct {
	mu      sync.RWMutex
	queries map[string]*Query
}

// NewManager creates an empty lifecycle manager.
func NewManager() *Manager {
	return &Manager{queries: make(map[string]*Query)}
}

// Submit registers a new query in StatePending and returns its ID.
func (m *Manager) Submit(sql string) *Query {
	q := &Query{
		ID:          uuid.NewString(),
		SQL:         sql,
		State:       StatePending,
		SubmittedAt: time.Now(),
	}
	m.mu.Lock()
	m.queries[q.ID] = q
	m.mu.Unlock()
	return q.snapshot()
}

// Get looks up a query by ID.
func (m *Manager) Get(id string) (*Query, error) {
	m.mu.RLock()
	q, ok := m.queries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewKindError(
			errors.KindDataSourceNotFound,
			fmt.Sprintf("query %s not found", id),
			"the query ID is unknown to this gateway instance",
			"resubmit the query; query IDs do not survive a gateway restart",
			nil,
		).WithQuery(id)
	}
	return q.snapshot(), nil
}

// Start transitions a query to Running.
func (m *Manager) Start(id string) error {
	q, err := m.find(id)
	if err != nil {
		return err
	}
	return q.transition(StateRunning)
}

// Complete transitions a query to Completed, recording rows returned.
func (m *Manager) Complete(id string, rowsReturned int64) error {
	q, err := m.find(id)
	if err != nil {
		return err
	}
	if err := q.transition(StateCompleted); err != nil {
		return err
	}
	q.mu.Lock()
	q.RowsReturned = rowsReturned
	q.mu.Unlock()
	return nil
}

// Fail transitions a query to Failed, recording cause.
func (m *Manager) Fail(id string, cause error) error {
	q, err := m.find(id)
	if err != nil {
		return err
	}
	if err := q.transition(StateFailed); err != nil {
		return err
	}
	q.mu.Lock()
	q.Err = cause
	q.mu.Unlock()
	return nil
}

// Cancel transitions a Pending or Running query to Cancelled. Cancelling
// an already-terminal query is a no-op, matching the idempotent
// cancellation semantics a client retrying a cancel request expects.
func (m *Manager) Cancel(id string) error {
	q, err := m.find(id)
	if err != nil {
		return err
	}
	q.mu.RLock()
	alreadyTerminal := q.State.terminal()
	q.mu.RUnlock()
	if alreadyTerminal {
		return nil
	}
	return q.transition(StateCancelled)
}

func (m *Manager) find(id string) (*Query, error) {
	m.mu.RLock()
	q, ok := m.queries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewKindError(
			errors.KindDataSourceNotFound,
			fmt.Sprintf("query %s not found", id),
			"the query ID is unknown to this gateway instance",
			"resubmit the query; query IDs do not survive a gateway restart",
			nil,
		).WithQuery(id)
	}
	return q, nil
}

// Reap removes every query whose terminal state is older than olderThan,
// bounding the manager's memory use across a long-running gateway
// process.
func (m *Manager) Reap(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, q := range m.queries {
		q.mu.RLock()
		done := q.State.terminal() && q.EndedAt.Before(cutoff)
		q.mu.RUnlock()
		if done {
			delete(m.queries, id)
			removed++
		}
	}
	return removed
}
