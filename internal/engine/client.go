package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkhaul/internal/config"
	"linkhaul/internal/logging"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

// HTTPDoer describes the HTTP client used to reach the RPC endpoint.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger for connection lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "engine")
	}
}

// Client talks to aria2 over JSON-RPC 2.0. It is constructed explicitly and
// must be connected with Connect before use; the configured reconnect policy
// decides what happens after a failed connect.
type Client struct {
	endpoint string
	secret   string
	timeout  time.Duration
	policy   string
	http     HTTPDoer
	logger   *slog.Logger

	mu            sync.Mutex
	connected     bool
	reconnectUsed bool
}

// New constructs a client from engine configuration.
func New(cfg config.Engine, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	policy := strings.ToLower(strings.TrimSpace(cfg.Reconnect))
	if policy == "" {
		policy = config.ReconnectOnce
	}
	c := &Client{
		endpoint: strings.TrimSpace(cfg.URL),
		secret:   cfg.Secret,
		timeout:  timeout,
		policy:   policy,
		http:     &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(nil, "engine"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Connected reports whether the last connect attempt succeeded and no
// transport failure has been seen since.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect verifies the endpoint by calling aria2.getVersion. A successful
// connect resets the reconnect budget.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	var version struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "aria2.getVersion", nil, &version); err != nil {
		if callerGone(ctx) {
			return err
		}
		c.connected = false
		c.logger.Warn("engine connect failed",
			logging.String("endpoint", c.endpoint),
			logging.String(logging.FieldEventType, "engine_connect_failed"),
			logging.String(logging.FieldErrorHint, "check that aria2c runs with --enable-rpc and the secret matches"),
			logging.String(logging.FieldImpact, "downloads cannot be submitted or reconciled"),
			logging.Error(err),
		)
		return err
	}
	c.connected = true
	c.reconnectUsed = false
	c.logger.Info("engine connected",
		logging.String("endpoint", c.endpoint),
		logging.String("version", version.Version),
	)
	return nil
}

// ensureConnected applies the reconnect policy before an RPC.
func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if callerGone(ctx) {
		return ctx.Err()
	}
	switch c.policy {
	case config.ReconnectAlways:
	case config.ReconnectNever:
		return fmt.Errorf("%w: not connected", ErrUnavailable)
	default:
		if c.reconnectUsed {
			return fmt.Errorf("%w: not connected", ErrUnavailable)
		}
		c.reconnectUsed = true
	}
	c.logger.Debug("engine reconnect attempt", logging.String("policy", c.policy))
	err := c.connectLocked(ctx)
	if err != nil && callerGone(ctx) {
		// An attempt abandoned by the caller says nothing about aria2.
		c.reconnectUsed = false
	}
	return err
}

// callerGone reports whether ctx was cancelled or timed out by the caller.
func callerGone(ctx context.Context) bool {
	return ctx != nil && ctx.Err() != nil
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// invoke runs an RPC on a connected client.
func (c *Client) invoke(ctx context.Context, method string, params []any, out any) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	err := c.call(ctx, method, params, out)
	if err != nil && isUnavailable(err) {
		c.markDisconnected()
	}
	return err
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := make([]any, 0, len(params)+1)
	if c.secret != "" {
		args = append(args, "token:"+c.secret)
	}
	args = append(args, params...)

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  args,
	})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if parentErr := parent.Err(); parentErr != nil {
			return fmt.Errorf("%s: %w", method, parentErr)
		}
		return fmt.Errorf("%w: %s after %s: %v", ErrUnavailable, method, time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if parentErr := parent.Err(); parentErr != nil {
			return fmt.Errorf("read %s response: %w", method, parentErr)
		}
		return fmt.Errorf("%w: read %s response: %v", ErrUnavailable, method, err)
	}

	var decoded rpcResponse
	decodeErr := json.Unmarshal(payload, &decoded)
	// aria2 answers RPC errors with HTTP 400 and a JSON-RPC error body.
	if decodeErr == nil && decoded.Error != nil {
		return decoded.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned http %d", ErrUnavailable, method, resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", method, decodeErr)
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
