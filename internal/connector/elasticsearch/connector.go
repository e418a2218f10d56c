// Package elasticsearch implements the search-store connector family.
// Elasticsearch has no SQL wire protocol of its own; this connector
// relies on the SQL translate/search APIs exposed by the Elasticsearch
// SQL plugin to accept the same rendered SQL text every other
// connector family receives from the Dialect Translator.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/canonica-labs/canonica/internal/catalog"
	"github.com/canonica-labs/canonica/internal/connector"
)

// Connector serves every search-store data source through a pooled
// elasticsearch.Client keyed by DataSource ID.
type Connector struct {
	mu      sync.RWMutex
	clients map[string]*elasticsearch.Client
	closed  bool
}

// New creates an empty Elasticsearch connector.
func New() *Connector {
	return &Connector{clients: make(map[string]*elasticsearch.Client)}
}

func (c *Connector) Name() string          { return "elasticsearch" }
func (c *Connector) Kind() catalog.Kind    { return catalog.KindSearchStore }
func (c *Connector) Dialects() []string { return []string{"elasticsearch", "elasticsearch-sql"} }

func (c *Connector) client(ds *catalog.DataSource) (*elasticsearch.Client, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, fmt.Errorf("elasticsearch connector: closed")
	}
	if cl, ok := c.clients[ds.ID]; ok {
		c.mu.RUnlock()
		return cl, nil
	}
	c.mu.RUnlock()

	cl, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{ds.DSN}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch connector: new client for %s: %w", ds.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.clients[ds.ID]; ok {
		return existing, nil
	}
	c.clients[ds.ID] = cl
	return cl, nil
}

// HealthCheck calls the cluster info endpoint.
func (c *Connector) HealthCheck(ctx context.Context, ds *catalog.DataSource) error {
	cl, err := c.client(ds)
	if err != nil {
		return err
	}
	res, err := cl.Info(cl.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch connector: info failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch connector: cluster unhealthy: %s", res.String())
	}
	return nil
}

type sqlQueryResponse struct {
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Rows [][]interface{} `json:"rows"`
}

// ExecuteQuery posts sql to the _sql endpoint and flattens the
// tabular JSON response into a QueryResult.
func (c *Connector) ExecuteQuery(ctx context.Context, ds *catalog.DataSource, query string) (*connector.QueryResult, error) {
	cl, err := c.client(ds)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch connector: encode request: %w", err)
	}

	req := esapi.SQLQueryRequest{Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, cl)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch connector: sql query failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch connector: sql query error: %s", res.String())
	}

	var parsed sqlQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch connector: decode response: %w", err)
	}

	columns := make([]string, len(parsed.Columns))
	for i, col := range parsed.Columns {
		columns[i] = col.Name
	}

	return &connector.QueryResult{
		Columns:  columns,
		Rows:     parsed.Rows,
		RowCount: len(parsed.Rows),
		Metadata: map[string]string{"engine": "elasticsearch", "data_source": ds.ID},
	}, nil
}

type mappingResponse map[string]struct {
	Mappings struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	} `json:"mappings"`
}

// DiscoverSchema treats every index matching schemaName* as a table,
// deriving columns from its field mapping.
func (c *Connector) DiscoverSchema(ctx context.Context, ds *catalog.DataSource, schemaName string) (*catalog.Schema, error) {
	cl, err := c.client(ds)
	if err != nil {
		return nil, err
	}

	pattern := schemaName
	if pattern == "" || pattern == "default" {
		pattern = "*"
	} else {
		pattern = pattern + "*"
	}

	res, err := cl.Indices.GetMapping(cl.Indices.GetMapping.WithContext(ctx), cl.Indices.GetMapping.WithIndex(pattern))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch connector: get mapping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch connector: get mapping error: %s", res.String())
	}

	var parsed mappingResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch connector: decode mapping: %w", err)
	}

	schema := &catalog.Schema{Name: schemaName, Tables: make(map[string]*catalog.Table)}
	for index, mapping := range parsed {
		t := &catalog.Table{Name: index, Statistics: catalog.DefaultTableStatistics()}
		for field, prop := range mapping.Mappings.Properties {
			t.Columns = append(t.Columns, catalog.Column{
				Name:     field,
				Type:     mapESType(prop.Type),
				Nullable: true,
			})
		}
		schema.Tables[index] = t
	}
	return schema, nil
}

// Close marks the connector closed, after which no further client is
// handed out. The underlying HTTP transport has no pooled connections
// that need explicit teardown beyond what net/http manages.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func mapESType(esType string) catalog.ColumnType {
	switch esType {
	case "long":
		return catalog.TypeBigInt
	case "integer", "short":
		return catalog.TypeInteger
	case "double", "float":
		return catalog.TypeDouble
	case "boolean":
		return catalog.TypeBoolean
	case "date":
		return catalog.TypeTimestamp
	case "keyword", "text":
		return catalog.TypeString
	default:
		return catalog.TypeUnknown
	}
}

var _ connector.Connector = (*Connector)(nil)
