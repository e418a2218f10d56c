package lifecycle

import (
	"errors"
	"testing"
	"time"
)

func TestSubmitStartComplete(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if q.State != StatePending {
		t.Fatalf("expected a new query to start Pending, got %s", q.State)
	}

	if err := m.Start(q.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	running, err := m.Get(q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if running.State != StateRunning {
		t.Fatalf("expected Running, got %s", running.State)
	}

	if err := m.Complete(q.ID, 42); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	done, err := m.Get(q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if done.State != StateCompleted || done.RowsReturned != 42 {
		t.Fatalf("expected Completed with 42 rows, got %+v", done)
	}
	if done.EndedAt.IsZero() {
		t.Fatal("expected EndedAt to be set on completion")
	}
}

func TestFailTransition(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Start(q.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cause := errors.New("engine unreachable")
	if err := m.Fail(q.ID, cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	failed, err := m.Get(q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if failed.State != StateFailed || failed.Err == nil || failed.Err.Error() != cause.Error() {
		t.Fatalf("expected Failed carrying the cause, got %+v", failed)
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Complete(q.ID, 0); err == nil {
		t.Fatal("expected Pending -> Completed to be rejected")
	}
}

func TestTerminalQueryCannotTransitionAgain(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Start(q.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Complete(q.ID, 1); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := m.Start(q.ID); err == nil {
		t.Fatal("expected a terminal query to reject further transitions")
	}
}

func TestCancelPendingQuery(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Cancel(q.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	cancelled, err := m.Get(q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cancelled.State != StateCancelled {
		t.Fatalf("expected Cancelled, got %s", cancelled.State)
	}
}

func TestCancelAlreadyTerminalIsNoop(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Start(q.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Complete(q.ID, 0); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := m.Cancel(q.ID); err != nil {
		t.Fatalf("expected cancelling a terminal query to be a no-op, got error: %v", err)
	}
	after, err := m.Get(q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.State != StateCompleted {
		t.Fatalf("expected state to remain Completed, got %s", after.State)
	}
}

func TestGetUnknownQuery(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("missing"); err == nil {
		t.Fatal("expected an error for an unknown query ID")
	}
}

func TestReapRemovesOldTerminalQueries(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Start(q.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Complete(q.ID, 0); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Force EndedAt into the past so it qualifies for reaping.
	m.mu.Lock()
	m.queries[q.ID].EndedAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	removed := m.Reap(time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 query reaped, got %d", removed)
	}
	if _, err := m.Get(q.ID); err == nil {
		t.Fatal("expected the reaped query to be gone")
	}
}

func TestReapKeepsRecentTerminalQueries(t *testing.T) {
	m := NewManager()
	q := m.Submit("SELECT 1")
	if err := m.Start(q.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Complete(q.ID, 0); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	removed := m.Reap(time.Hour)
	if removed != 0 {
		t.Fatalf("expected 0 queries reaped, got %d", removed)
	}
}
