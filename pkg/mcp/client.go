// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second
	maxBackoff      = 5 * time.Second

	clientName    = "atlas-client"
	clientVersion = "0.1.0"
)

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cache.ttl = ttl
		}
	}
}

// toolCache holds the last tools/list answer for ttl. A zero ttl disables
// it.
type toolCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	tools   []mcp.Tool
	expires time.Time
}

func (tc *toolCache) get() ([]mcp.Tool, bool) {
	if tc.ttl == 0 {
		return nil, false
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.tools == nil || !tc.now().Before(tc.expires) {
		return nil, false
	}
	return slices.Clone(tc.tools), true
}

func (tc *toolCache) put(tools []mcp.Tool) {
	if tc.ttl == 0 {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tools = slices.Clone(tools)
	if tc.tools == nil {
		tc.tools = []mcp.Tool{}
	}
	tc.expires = tc.now().Add(tc.ttl)
}

func (tc *toolCache) clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tools = nil
}

// Client wraps an mcp-go client with timeouts, retries and a tool list cache.
type Client struct {
	mcpClient  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	cache      toolCache
}

// NewClient wraps an already initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	wrapped := &Client{
		mcpClient:  c,
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		backoff:    defaultBackoff,
		cache:      toolCache{ttl: defaultCacheTTL, now: time.Now},
	}
	for _, opt := range opts {
		opt(wrapped)
	}
	return wrapped
}

// NewClientWithStdio starts command and connects to it over stdio.
func NewClientWithStdio(command string, args []string, opts ...ClientOption) (*Client, error) {
	return NewClientWithStdioProtocol(command, args, mcp.LATEST_PROTOCOL_VERSION, opts...)
}

// NewClientWithStdioProtocol is NewClientWithStdio with an explicit protocol version.
func NewClientWithStdioProtocol(command string, args []string, protocolVersion string, opts ...ClientOption) (*Client, error) {
	stdioClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, err
	}
	return connect(stdioClient, protocolVersion, opts)
}

// NewClientWithStreamableHTTP connects to a Streamable HTTP endpoint.
func NewClientWithStreamableHTTP(url string, opts ...ClientOption) (*Client, error) {
	return NewClientWithStreamableHTTPProtocol(url, mcp.LATEST_PROTOCOL_VERSION, opts...)
}

// NewClientWithStreamableHTTPProtocol is NewClientWithStreamableHTTP with an
// explicit protocol version.
func NewClientWithStreamableHTTPProtocol(url, protocolVersion string, opts ...ClientOption) (*Client, error) {
	httpClient, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, err
	}
	return connect(httpClient, protocolVersion, opts)
}

// NewInProcessClient connects to a server living in the same process.
func NewInProcessClient(s *server.MCPServer, opts ...ClientOption) (*Client, error) {
	inProcess, err := client.NewInProcessClient(s)
	if err != nil {
		return nil, err
	}
	return connect(inProcess, mcp.LATEST_PROTOCOL_VERSION, opts)
}

func connect(c *client.Client, protocolVersion string, opts []ClientOption) (*Client, error) {
	if protocolVersion == "" {
		protocolVersion = mcp.LATEST_PROTOCOL_VERSION
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = protocolVersion
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		_ = c.Close()
		return nil, err
	}
	return NewClient(c, opts...), nil
}

// ListTools retrieves the list of tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached, ok := c.cache.get(); ok {
		return cached, nil
	}
	resp, err := withRetry(ctx, c, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.cache.put(resp.Tools)
	return resp.Tools, nil
}

// InvalidateTools drops the cached tool list so the next ListTools asks the
// server.
func (c *Client) InvalidateTools() {
	c.cache.clear()
}

// Ping checks that the server answers within the request timeout. It is
// not retried.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.mcpClient.Ping(ctx)
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return withRetry(ctx, c, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return c.mcpClient.CallTool(ctx, req)
	})
}

// ReadResource reads a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string, args map[string]any) (*mcp.ReadResourceResult, error) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	req.Params.Arguments = args
	return withRetry(ctx, c, func(ctx context.Context) (*mcp.ReadResourceResult, error) {
		return c.mcpClient.ReadResource(ctx, req)
	})
}

// ListResources lists the resources exposed by the server.
func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	resp, err := withRetry(ctx, c, func(ctx context.Context) (*mcp.ListResourcesResult, error) {
		return c.mcpClient.ListResources(ctx, mcp.ListResourcesRequest{})
	})
	if err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

// withRetry runs call with the per-request timeout, retrying transport
// errors with exponential backoff. Context errors are never retried.
func withRetry[T any](ctx context.Context, c *Client, call func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := c.maxRetries + 1
	for i := 0; i < attempts; i++ {
		reqCtx, cancel := c.withTimeout(ctx)
		res, err := call(reqCtx)
		cancel()
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := c.sleepBackoff(ctx, i); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// sleepBackoff waits backoff*2^attempt, capped at maxBackoff.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	wait := min(c.backoff<<attempt, maxBackoff)
	if wait <= 0 {
		wait = maxBackoff
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
