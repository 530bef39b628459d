// Package gateway is the JSON-RPC client for the external tool-execution
// service. Every OAuth and publishing operation ultimately goes through
// Invoke, which speaks the tools/call contract, and Discover, which keeps a
// cached catalog of the tools the gateway exposes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/postflow/postflow-go/internal/config"
	"github.com/postflow/postflow-go/internal/reqcontext"
)

// Client invokes tools on the gateway over HTTP POST.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	logger      *zap.SugaredLogger
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration

	requestSeq atomic.Int64

	// catalog is replaced wholesale on refresh, never mutated in place.
	mu      sync.RWMutex
	catalog []mcp.Tool

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	observer CallObserver
	tracer   CallTracer
}

// CallObserver receives per-call metrics. Implemented by the metrics manager.
type CallObserver interface {
	RecordGatewayCall(tool, status string, duration time.Duration)
	RecordGatewayRetry(tool string)
}

// CallTracer opens spans around tool invocations. Implemented by the tracing
// manager.
type CallTracer interface {
	TraceGatewayCall(ctx context.Context, toolName string) (context.Context, oteltrace.Span)
	SetSpanError(ctx context.Context, err error)
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg *config.GatewayConfig, logger *zap.SugaredLogger) *Client {
	return &Client{
		endpoint:    cfg.URL,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		logger:      logger,
		timeout:     cfg.Timeout(),
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase(),
		backoffMax:  cfg.BackoffMax(),
		sleep:       sleepCtx,
	}
}

// SetObserver attaches a metrics observer. Calls made before this are not
// recorded.
func (c *Client) SetObserver(observer CallObserver) {
	c.observer = observer
}

// SetTracer attaches a call tracer. Calls made before this are not traced.
func (c *Client) SetTracer(tracer CallTracer) {
	c.tracer = tracer
}

// rpcRequest is a JSON-RPC 2.0 request frame.
type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response frame.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Invoke calls a tool by name and returns its result as a generic map.
// Transport failures and 5xx responses are retried with exponential backoff;
// JSON-RPC error objects surface immediately.
func (c *Client) Invoke(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error) {
	if c.tracer != nil {
		var span oteltrace.Span
		ctx, span = c.tracer.TraceGatewayCall(ctx, toolName)
		defer span.End()
	}

	start := time.Now()
	raw, err := c.call(ctx, "tools/call", map[string]any{
		"name":      toolName,
		"arguments": arguments,
	})
	if err != nil {
		c.recordFailure(ctx, toolName, start, err)
		return nil, err
	}
	result, err := unwrapToolResult(raw)
	if err != nil {
		c.recordFailure(ctx, toolName, start, err)
		return nil, err
	}
	c.recordCall(toolName, "success", start)
	return result, nil
}

func (c *Client) recordFailure(ctx context.Context, toolName string, start time.Time, err error) {
	c.recordCall(toolName, "error", start)
	if c.tracer != nil {
		c.tracer.SetSpanError(ctx, err)
	}
}

func (c *Client) recordCall(toolName, status string, start time.Time) {
	if c.observer != nil {
		c.observer.RecordGatewayCall(toolName, status, time.Since(start))
	}
}

// Discover fetches and caches the tool catalog. The cached copy is returned
// unless forceRefresh is set or nothing is cached yet.
func (c *Client) Discover(ctx context.Context, forceRefresh bool) ([]mcp.Tool, error) {
	if !forceRefresh {
		c.mu.RLock()
		cached := c.catalog
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}
	return c.Refresh(ctx)
}

// Refresh fetches the catalog and atomically replaces the cache.
func (c *Client) Refresh(ctx context.Context) ([]mcp.Tool, error) {
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	tools, err := normalizeCatalog(raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.catalog = tools
	c.mu.Unlock()

	c.logger.Debugw("Refreshed tool catalog", "tools", len(tools))
	return tools, nil
}

// Invalidate drops the cached catalog. The next Discover refetches.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.catalog = nil
	c.mu.Unlock()
}

// call performs one JSON-RPC method call with the retry policy applied.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, err := c.doCall(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}

		if c.observer != nil {
			tool := method
			if name, ok := params["name"].(string); ok {
				tool = name
			}
			c.observer.RecordGatewayRetry(tool)
		}

		delay := c.calculateBackoff(attempt)
		c.logger.Warnw("Tool gateway call failed, retrying",
			"method", method,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"backoff", delay,
			"correlation_id", reqcontext.GetCorrelationID(ctx),
			"error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, c.maxAttempts, lastErr)
}

// doCall performs a single JSON-RPC round trip.
func (c *Client) doCall(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	frame := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestSeq.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID := reqcontext.GetCorrelationID(ctx); correlationID != "" {
		req.Header.Set(reqcontext.CorrelationIDHeader, correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway transport failure: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON-RPC frame: %v", ErrProtocol, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("%w: response carries neither result nor error", ErrProtocol)
	}
	return rpcResp.Result, nil
}

// calculateBackoff returns the delay before the given retry, exponential in
// the attempt number and capped.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.backoffMax {
			return c.backoffMax
		}
	}
	if delay > c.backoffMax {
		return c.backoffMax
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
