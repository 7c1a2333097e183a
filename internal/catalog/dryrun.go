package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoSource is returned by a DryRunClient asked to read without a source
var ErrNoSource = errors.New("dry-run client has no read source")

// DryRunClient serves reads from an optional source client and records
// writes instead of sending them. Writes echo their body back as the
// response, the way the catalog reports the values it stored.
type DryRunClient struct {
	source   Client
	requests []Request
}

// NewDryRunClient creates a dry-run client reading from source, which may be nil
func NewDryRunClient(source Client) *DryRunClient {
	return &DryRunClient{source: source}
}

// Requests returns the recorded write requests in order
func (c *DryRunClient) Requests() []Request {
	return append([]Request(nil), c.requests...)
}

// Get reads from the source client
func (c *DryRunClient) Get(ctx context.Context, path string, result any) error {
	if c.source == nil {
		return ErrNoSource
	}
	return c.source.Get(ctx, path, result)
}

// Put records the request and echoes body into result
func (c *DryRunClient) Put(_ context.Context, path string, body, result any) error {
	c.requests = append(c.requests, Request{Method: http.MethodPut, Path: path, Body: body})
	return echo(body, result)
}

// Post records the request and echoes body into result
func (c *DryRunClient) Post(_ context.Context, path string, body, result any) error {
	c.requests = append(c.requests, Request{Method: http.MethodPost, Path: path, Body: body})
	return echo(body, result)
}

// Delete records the request
func (c *DryRunClient) Delete(_ context.Context, path string) error {
	c.requests = append(c.requests, Request{Method: http.MethodDelete, Path: path})
	return nil
}

func echo(body, result any) error {
	if result == nil || body == nil {
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return json.Unmarshal(data, result)
}
