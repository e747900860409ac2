// Package httpclient implements a todos backend that talks to the REST
// service in internal/httpapi.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// Compile-time interface check.
var _ types.Backend = (*Client)(nil)

const (
	todosPath       = "/api/todos"
	togglePath      = "/api/todos/toggle"
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 8 << 20
)

// Client implements types.Backend over HTTP.
type Client struct {
	mu       sync.RWMutex
	attached bool
	baseURL  string
	http     *http.Client
	log      zerolog.Logger
}

// NewClient creates a detached client. A nil hc uses a client with a
// 30 second timeout.
func NewClient(hc *http.Client, log zerolog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		http: hc,
		log:  log.With().Str("component", "httpclient").Logger(),
	}
}

// Attach points the client at Config.ServerURL.
func (c *Client) Attach(config types.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.ServerURL == "" {
		return types.ErrServerURLEmpty
	}
	c.baseURL = strings.TrimRight(config.ServerURL, "/")
	c.attached = true
	return nil
}

// Detach is idempotent.
func (c *Client) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
	return nil
}

// envelope is the response body shape of every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Stats   *types.Stats    `json:"stats"`
	Error   string          `json:"error"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

// List fetches every todo with stats.
func (c *Client) List(ctx context.Context) ([]types.Todo, types.Stats, error) {
	env, err := c.do(ctx, http.MethodGet, todosPath, nil)
	if err != nil {
		return nil, types.Stats{}, err
	}
	todos := []types.Todo{}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &todos); err != nil {
			c.log.Warn().Err(err).Msg("undecodable todo list, returning empty collection")
			return []types.Todo{}, types.Stats{}, nil
		}
	}
	for i := range todos {
		todos[i] = normalize(todos[i])
	}
	stats := types.ComputeStats(todos)
	if env.Stats != nil {
		stats = *env.Stats
	}
	return todos, stats, nil
}

// Create posts d. Validation runs locally first so invalid drafts never
// reach the network.
func (c *Client) Create(ctx context.Context, d types.Draft) (types.Todo, error) {
	if err := types.ValidateDraft(d); err != nil {
		return types.Todo{}, types.Invalid(err)
	}
	return c.todo(ctx, http.MethodPost, todosPath, d)
}

// Update puts p.
func (c *Client) Update(ctx context.Context, p types.Patch) (types.Todo, error) {
	if err := types.ValidatePatch(p); err != nil {
		return types.Todo{}, types.Invalid(err)
	}
	return c.todo(ctx, http.MethodPut, todosPath, p)
}

// ToggleStatus asks the server to flip the status of id.
func (c *Client) ToggleStatus(ctx context.Context, id string) (types.Todo, error) {
	return c.todo(ctx, http.MethodPost, togglePath, map[string]string{"id": id})
}

// Remove deletes id.
func (c *Client) Remove(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, todosPath, map[string]string{"id": id})
	return err
}

func (c *Client) todo(ctx context.Context, method, path string, body any) (types.Todo, error) {
	env, err := c.do(ctx, method, path, body)
	if err != nil {
		return types.Todo{}, err
	}
	var t types.Todo
	if err := json.Unmarshal(env.Data, &t); err != nil {
		return types.Todo{}, fmt.Errorf("%w: decoding todo: %w", types.ErrUnknown, err)
	}
	return normalize(t), nil
}

// do sends one request and maps non-2xx replies to the gateway errors.
func (c *Client) do(ctx context.Context, method, path string, body any) (envelope, error) {
	c.mu.RLock()
	attached, base := c.attached, c.baseURL
	c.mu.RUnlock()
	if !attached {
		return envelope{}, fmt.Errorf("%w: %w", types.ErrStorageUnavailable, types.ErrDetached)
	}

	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("%w: encoding request: %w", types.ErrUnknown, err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, r)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: building request: %w", types.ErrUnknown, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %s %s: %w", types.ErrStorageUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return envelope{}, fmt.Errorf("%w: %s %s: status %d", types.ErrStorageUnavailable, method, path, resp.StatusCode)
		}
		return envelope{}, fmt.Errorf("%w: decoding response: %w", types.ErrUnknown, err)
	}
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && env.Success {
		return env, nil
	}
	return envelope{}, statusError(resp.StatusCode, env)
}

// statusError rebuilds the gateway error a failed reply stands for.
func statusError(status int, env envelope) error {
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		var errs criterio.FieldErrorsBuilder
		for _, f := range env.Fields {
			errs = errs.Append(f.Field, errors.New(f.Message))
		}
		if fe := errs.ToError(); fe != nil {
			return types.Invalid(fe)
		}
		return fmt.Errorf("%w: %s", types.ErrValidationFailed, msg)
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", types.ErrStorageUnavailable, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", types.ErrUnknown, status, msg)
	}
}

// normalize brings decoded timestamps to the shared storage precision.
func normalize(t types.Todo) types.Todo {
	t.CreatedAt = types.Timestamp(t.CreatedAt)
	t.UpdatedAt = types.Timestamp(t.UpdatedAt)
	if t.CompletedAt != nil {
		at := types.Timestamp(*t.CompletedAt)
		t.CompletedAt = &at
	}
	return t
}
