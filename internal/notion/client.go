/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package notion talks to the Notion REST API and exposes the notification
// database as a notifications.Store.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/notification_central/internal/ratelimit"
	"github.com/friendsincode/notification_central/internal/telemetry"
)

const (
	// DefaultBaseURL is the public Notion API root.
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion is the Notion-Version header the decoders are written against.
	DefaultVersion = "2022-06-28"

	queryPageSize = 100
)

// APIError is a non-2xx response from Notion.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: status %d %s: %s", e.Status, e.Code, e.Message)
}

// Page is a database row. Properties stay raw until decoded.
type Page struct {
	Object     string                     `json:"object"`
	ID         string                     `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// QueryResult is one page of a database query.
type QueryResult struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Version string
	Timeout time.Duration
}

// Client is a minimal Notion API client covering database queries and page updates.
type Client struct {
	baseURL    string
	apiKey     string
	version    string
	bucket     ratelimit.Acquirer
	httpClient *http.Client
}

// NewClient creates a client. Query requests acquire from bucket before they
// are sent; bucket may be nil.
func NewClient(cfg ClientConfig, bucket ratelimit.Acquirer) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("notion api key is required")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		version: cfg.Version,
		bucket:  bucket,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// QueryDatabase fetches one page of rows starting at cursor ("" for the first page).
func (c *Client) QueryDatabase(ctx context.Context, databaseID, cursor string) (*QueryResult, error) {
	body := map[string]any{"page_size": queryPageSize}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	if c.bucket != nil {
		c.bucket.Acquire()
	}

	var out QueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", "query", body, &out); err != nil {
		return nil, fmt.Errorf("query database: %w", err)
	}
	return &out, nil
}

// UpdatePage patches the given page properties. It does not touch the
// bucket; callers writing back admit themselves.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	body := map[string]any{"properties": properties}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), "update", body, nil); err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, operation string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.StoreRequestsTotal.WithLabelValues("notion", operation, "error").Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.StoreRequestsTotal.WithLabelValues("notion", operation, "error").Inc()
		return decodeAPIError(resp)
	}
	telemetry.StoreRequestsTotal.WithLabelValues("notion", operation, "ok").Inc()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	// Notion echoes the status in the body; the transport status wins.
	apiErr.Status = resp.StatusCode
	return apiErr
}
