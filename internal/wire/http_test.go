package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/canonica-labs/canonica/internal/auth"
	"github.com/canonica-labs/canonica/internal/status"
)

func testHandler(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	server := testServer(t)

	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken("secret", &auth.User{ID: "u1", Name: "tester"})

	h := NewHTTPHandler(server, authenticator)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, "secret"
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthRequiresNoAuth(t *testing.T) {
	ts, _ := testHandler(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}
}

func TestReadyzWithoutStatusCheckerBehavesLikeHealth(t *testing.T) {
	ts, _ := testHandler(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/readyz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /readyz with no status checker installed, got %d", resp.StatusCode)
	}
}

func TestReadyzReportsNotReadyFromStatusChecker(t *testing.T) {
	server := testServer(t)
	authenticator := auth.NewStaticTokenAuthenticator()
	h := NewHTTPHandler(server, authenticator)

	mock := status.NewMockStatusChecker()
	mock.SetEngineStatus(false, "no engines registered")
	h.SetStatusChecker(mock)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodGet, ts.URL+"/readyz", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the status checker reports not ready, got %d", resp.StatusCode)
	}

	var result status.StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Ready || result.Reason == "" {
		t.Fatalf("expected an unready result with a reason, got %+v", result)
	}
}

func TestReadyzReportsReadyFromStatusChecker(t *testing.T) {
	server := testServer(t)
	authenticator := auth.NewStaticTokenAuthenticator()
	h := NewHTTPHandler(server, authenticator)
	h.SetStatusChecker(status.NewMockStatusChecker())

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodGet, ts.URL+"/readyz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from a ready status checker, got %d", resp.StatusCode)
	}
}

func TestReadyzSurfacesStatusCheckerError(t *testing.T) {
	server := testServer(t)
	authenticator := auth.NewStaticTokenAuthenticator()
	h := NewHTTPHandler(server, authenticator)
	h.SetStatusChecker(failingStatusChecker{})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodGet, ts.URL+"/readyz", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the status checker itself errors, got %d", resp.StatusCode)
	}
}

type failingStatusChecker struct{}

func (failingStatusChecker) GetStatus(ctx context.Context) (*status.StatusResult, error) {
	return nil, context.DeadlineExceeded
}

func TestRoutesRejectMissingToken(t *testing.T) {
	ts, _ := testHandler(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/connections", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}
}

func TestOpenAndCloseConnectionOverHTTP(t *testing.T) {
	ts, token := testHandler(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/connections", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 opening a connection, got %d", resp.StatusCode)
	}
	var opened map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&opened); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opened["sessionId"] == "" {
		t.Fatal("expected a non-empty sessionId")
	}

	closeResp := doJSON(t, http.MethodDelete, ts.URL+"/v1/connections/"+opened["sessionId"], token, nil)
	if closeResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 closing a connection, got %d", closeResp.StatusCode)
	}
}

func TestExplainOverHTTP(t *testing.T) {
	ts, token := testHandler(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/query/explain", token, map[string]string{
		"sql": "SELECT id FROM analytics.orders",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var info ExplainInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(info.Tables) != 1 || info.Tables[0] != "pg1.analytics.orders" {
		t.Fatalf("unexpected explain response: %+v", info)
	}
}

func TestExplainOverHTTPRejectsUnknownTable(t *testing.T) {
	ts, token := testHandler(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/query/explain", token, map[string]string{
		"sql": "SELECT id FROM analytics.missing",
	})
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected an error status for an unresolved table, got %d", resp.StatusCode)
	}
}

func TestValidateQueryOverHTTP(t *testing.T) {
	ts, token := testHandler(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/query/validate", token, map[string]string{
		"sql": "SELECT id FROM analytics.missing",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 even for an invalid query (outcome is reported as data), got %d", resp.StatusCode)
	}
	var result ValidateInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid {
		t.Fatal("expected valid=false for an unresolved table")
	}
}

func TestFullQueryLifecycleOverHTTP(t *testing.T) {
	ts, token := testHandler(t)

	openResp := doJSON(t, http.MethodPost, ts.URL+"/v1/connections", token, nil)
	var session map[string]string
	json.NewDecoder(openResp.Body).Decode(&session)

	stmtResp := doJSON(t, http.MethodPost, ts.URL+"/v1/connections/"+session["sessionId"]+"/statements", token, nil)
	var stmt map[string]string
	json.NewDecoder(stmtResp.Body).Decode(&stmt)

	execResp := doJSON(t, http.MethodPost,
		ts.URL+"/v1/connections/"+session["sessionId"]+"/statements/"+stmt["statementId"]+"/prepareAndExecute",
		token, map[string]string{"sql": "SELECT id, amount FROM analytics.orders"})
	if execResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from prepareAndExecute, got %d", execResp.StatusCode)
	}

	fetchResp := doJSON(t, http.MethodGet,
		ts.URL+"/v1/connections/"+session["sessionId"]+"/statements/"+stmt["statementId"]+"/fetch?offset=0&maxRows=10",
		token, nil)
	if fetchResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from fetch, got %d", fetchResp.StatusCode)
	}
	var frame Frame
	if err := json.NewDecoder(fetchResp.Body).Decode(&frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if len(frame.Rows) != 2 || !frame.Done {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestMetadataTablesOverHTTP(t *testing.T) {
	ts, token := testHandler(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/metadata/tables", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tables []TableMeta
	if err := json.NewDecoder(resp.Body).Decode(&tables); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tables) != 1 || tables[0].Table != "orders" {
		t.Fatalf("unexpected tables response: %+v", tables)
	}
}
