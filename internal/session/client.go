package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/nextrun/augment/internal/tool"
	"github.com/nextrun/augment/pkg/log"
)

// Config holds tool server client configuration
type Config struct {
	ServerURL string `toml:"server_url"`
	Timeout   string `toml:"timeout"`
}

// Validate checks client configuration and fills defaults
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:8000"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("timeout is invalid: %v", err)
	}
	return nil
}

// Client talks to the tool registry server over HTTP.
type Client struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
}

// NewClient creates a tool server client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}
	timeout, _ := time.ParseDuration(cfg.Timeout)

	return &Client{
		logger:  log.Logger("session.client"),
		baseURL: cfg.ServerURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Health reports whether the tool server is alive.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WithMessage(err, "tool server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("tool server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// ListTools fetches the tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]tool.Definition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WithMessage(err, "list tools")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("list tools: status %d", resp.StatusCode)
	}

	var defs []tool.Definition
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		return nil, errors.WithMessage(err, "decode tool list")
	}
	return defs, nil
}

// CallTool invokes one tool on the server and returns its result value.
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (any, error) {
	body, err := json.Marshal(map[string]any{"parameters": params})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/tools/%s/call", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "call tool %s", name)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return nil, errors.Errorf("call tool %s: %s", name, failure.Error)
		}
		return nil, errors.Errorf("call tool %s: status %d", name, resp.StatusCode)
	}

	var success struct {
		Result any `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
		return nil, errors.WithMessagef(err, "decode result of %s", name)
	}
	return success.Result, nil
}
