package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGatewayTimeout = 10 * time.Second

// GatewayClient implements Service against a metastore HTTP gateway that
// exposes the thrift RPCs as JSON endpoints under /api/v1.
type GatewayClient struct {
	baseURL string
	httpc   *http.Client
}

// NewGatewayClient creates a client for the gateway at baseURL
// (for example "http://hive-metastore:9083").
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultGatewayTimeout},
	}
}

func (c *GatewayClient) GetDatabase(ctx context.Context, name string) (*Database, error) {
	var db Database
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/databases/%s", name), nil, &db)
	if err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *GatewayClient) CreateDatabase(ctx context.Context, db *Database) error {
	return c.do(ctx, http.MethodPost, "/api/v1/databases", db, nil)
}

func (c *GatewayClient) GetTable(ctx context.Context, dbName, tableName string) (*Table, error) {
	var table Table
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/databases/%s/tables/%s", dbName, tableName), nil, &table)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (c *GatewayClient) CreateTable(ctx context.Context, table *Table) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/databases/%s/tables", table.DBName), table, nil)
}

func (c *GatewayClient) DropTable(ctx context.Context, dbName, tableName string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/databases/%s/tables/%s", dbName, tableName), nil, nil)
}

// do performs one gateway call. 404 maps to ErrNotFound and 409 to
// ErrAlreadyExists; everything else non-2xx is a connectivity failure.
func (c *GatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("metastore gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, ErrAlreadyExists)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("metastore gateway returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}
