// Package cli provides the command-line interface for canonica.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/canonica-labs/canonica/internal/errors"
)

// GatewayClient is the HTTP client that speaks the gateway's wire
// protocol: open a connection, create a statement, prepareAndExecute
// it, fetch rows until done, close up. The metadata and explain/validate
// routes are stateless and need no connection.
type GatewayClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewGatewayClient creates a new gateway client.
func NewGatewayClient(endpoint, token string) *GatewayClient {
	return &GatewayClient{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Endpoint returns the configured gateway endpoint.
func (c *GatewayClient) Endpoint() string {
	return c.endpoint
}

// Token returns the configured authentication token.
func (c *GatewayClient) Token() string {
	return c.token
}

// TableInfo is one row of a tables listing.
type TableInfo struct {
	DataSource string `json:"dataSource"`
	Schema     string `json:"schema"`
	Table      string `json:"table"`
}

// ColumnInfo is one row of a columns listing.
type ColumnInfo struct {
	Column   string `json:"column"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// TableDetail is a table plus its columns, assembled client-side from
// two metadata calls since the wire protocol has no single
// describe-table route.
type TableDetail struct {
	DataSource string       `json:"dataSource"`
	Schema     string       `json:"schema"`
	Table      string       `json:"table"`
	Columns    []ColumnInfo `json:"columns"`
}

// ExplainResult mirrors internal/wire.ExplainInfo.
type ExplainResult struct {
	SQL           string   `json:"sql"`
	Tables        []string `json:"tables"`
	HasTimeTravel bool     `json:"hasTimeTravel"`
	Operation     string   `json:"operation"`
}

// ValidateResult mirrors internal/wire.ValidateInfo.
type ValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// QueryResult is a fully-drained query: every frame fetched and
// concatenated.
type QueryResult struct {
	QueryID  string                   `json:"queryId"`
	Columns  []string                 `json:"columns,omitempty"`
	Rows     []map[string]interface{} `json:"rows,omitempty"`
	RowCount int                      `json:"rowCount"`
	Duration string                   `json:"duration"`
}

// ListTables lists every table across every registered data source,
// optionally filtered by a LIKE pattern on table name.
func (c *GatewayClient) ListTables(ctx context.Context, namePattern string) ([]TableInfo, error) {
	path := "/v1/metadata/tables"
	if namePattern != "" {
		path += "?name=" + namePattern
	}
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	var tables []TableInfo
	if err := json.NewDecoder(resp.Body).Decode(&tables); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return tables, nil
}

// DescribeTable fetches a table's columns via the metadata routes and
// assembles a TableDetail. tableName is matched as an exact LIKE
// pattern (no wildcards), so it must name one table precisely.
func (c *GatewayClient) DescribeTable(ctx context.Context, tableName string) (*TableDetail, error) {
	tables, err := c.ListTables(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}
	t := tables[0]

	resp, err := c.doRequest(ctx, "GET", "/v1/metadata/columns?table="+tableName, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	var columns []ColumnInfo
	if err := json.NewDecoder(resp.Body).Decode(&columns); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &TableDetail{DataSource: t.DataSource, Schema: t.Schema, Table: t.Table, Columns: columns}, nil
}

// ExplainQuery gets the execution plan for a query from the gateway.
func (c *GatewayClient) ExplainQuery(ctx context.Context, sql string) (*ExplainResult, error) {
	body, _ := json.Marshal(map[string]string{"sql": sql})
	resp, err := c.doRequest(ctx, "POST", "/v1/query/explain", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	var result ExplainResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// ValidateQuery validates a query without executing it.
func (c *GatewayClient) ValidateQuery(ctx context.Context, sql string) (*ValidateResult, error) {
	body, _ := json.Marshal(map[string]string{"sql": sql})
	resp, err := c.doRequest(ctx, "POST", "/v1/query/validate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	var result ValidateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// ExecuteQuery runs sql to completion: open a connection, create a
// statement, prepareAndExecute, fetch every frame, then close both the
// statement and the connection.
func (c *GatewayClient) ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error) {
	started := time.Now()

	sessionID, err := c.openConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer c.closeConnection(ctx, sessionID)

	stmtID, err := c.createStatement(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer c.closeStatement(ctx, sessionID, stmtID)

	queryID, err := c.prepareAndExecute(ctx, sessionID, stmtID, sql)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{QueryID: queryID}
	offset := 0
	for {
		f, err := c.fetch(ctx, sessionID, stmtID, offset, 1000)
		if err != nil {
			return nil, err
		}
		if result.Columns == nil {
			result.Columns = f.Columns
		}
		result.Rows = append(result.Rows, f.Rows...)
		offset += len(f.Rows)
		if f.Done {
			break
		}
	}
	result.RowCount = len(result.Rows)
	result.Duration = time.Since(started).Round(time.Millisecond).String()
	return result, nil
}

type frame struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Offset  int                      `json:"offset"`
	Done    bool                     `json:"done"`
}

func (c *GatewayClient) openConnection(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, "POST", "/v1/connections", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", c.parseErrorResponse(resp)
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return body.SessionID, nil
}

func (c *GatewayClient) closeConnection(ctx context.Context, sessionID string) {
	resp, err := c.doRequest(ctx, "DELETE", "/v1/connections/"+sessionID, nil)
	if err == nil {
		resp.Body.Close()
	}
}

func (c *GatewayClient) createStatement(ctx context.Context, sessionID string) (string, error) {
	resp, err := c.doRequest(ctx, "POST", "/v1/connections/"+sessionID+"/statements", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", c.parseErrorResponse(resp)
	}
	var body struct {
		StatementID string `json:"statementId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return body.StatementID, nil
}

func (c *GatewayClient) closeStatement(ctx context.Context, sessionID, stmtID string) {
	resp, err := c.doRequest(ctx, "DELETE", "/v1/connections/"+sessionID+"/statements/"+stmtID, nil)
	if err == nil {
		resp.Body.Close()
	}
}

func (c *GatewayClient) prepareAndExecute(ctx context.Context, sessionID, stmtID, sql string) (string, error) {
	body, _ := json.Marshal(map[string]string{"sql": sql})
	resp, err := c.doRequest(ctx, "POST", "/v1/connections/"+sessionID+"/statements/"+stmtID+"/prepareAndExecute", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", c.parseErrorResponse(resp)
	}
	var result struct {
		QueryID string `json:"queryId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.QueryID, nil
}

func (c *GatewayClient) fetch(ctx context.Context, sessionID, stmtID string, offset, maxRows int) (*frame, error) {
	path := fmt.Sprintf("/v1/connections/%s/statements/%s/fetch?offset=%d&maxRows=%d", sessionID, stmtID, offset, maxRows)
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	var f frame
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &f, nil
}

// CheckHealth verifies gateway connectivity.
func (c *GatewayClient) CheckHealth(ctx context.Context) (bool, error) {
	if c.endpoint == "" {
		return false, errors.NewGatewayUnavailable("", "no gateway endpoint configured")
	}
	resp, err := c.doRequest(ctx, "GET", "/health", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// HealthInfo is the gateway's reported health.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// GetHealthInfo fetches the gateway's health payload.
func (c *GatewayClient) GetHealthInfo(ctx context.Context) (*HealthInfo, error) {
	resp, err := c.doRequest(ctx, "GET", "/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}
	var info HealthInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &info, nil
}

// doRequest performs an HTTP request to the gateway.
func (c *GatewayClient) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if c.endpoint == "" {
		return nil, errors.NewGatewayUnavailable("", "no gateway endpoint configured")
	}
	url := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewGatewayUnavailable(c.endpoint, err.Error())
	}
	return resp, nil
}

// parseErrorResponse parses an error response from the gateway.
func (c *GatewayClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("gateway error: %d - %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s", errResp.Error)
}
