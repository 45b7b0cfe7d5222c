// Package rest is the typed client for the remote wallet service. One
// method per endpoint, one round trip per call, no retries: failed calls
// surface a typed error and the caller decides what to tell the user.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"borsa/internal/api"
	"borsa/internal/middleware/trace"
)

// maxResponseBytes bounds how much of a response body gets read, in case
// a misconfigured base URL points somewhere that streams forever.
const maxResponseBytes = 8 << 20

const defaultTimeout = 10 * time.Second

type Client struct {
	base *url.URL
	http *http.Client
}

// Ensure interface conformance
var (
	_ api.UserDirectory    = (*Client)(nil)
	_ api.WalletStore      = (*Client)(nil)
	_ api.CategoryStore    = (*Client)(nil)
	_ api.TransactionStore = (*Client)(nil)
	_ api.PersonDirectory  = (*Client)(nil)
	_ api.GroupStore       = (*Client)(nil)
	_ api.Initializer      = (*Client)(nil)
)

// NewFromEnv builds a client from environment variables.
// Required: API_BASE_URL. Optional: API_TIMEOUT (Go duration, default 10s).
func NewFromEnv() (*Client, error) {
	base := strings.TrimSpace(os.Getenv("API_BASE_URL"))
	if base == "" {
		return nil, errors.New("missing API_BASE_URL")
	}
	timeout := defaultTimeout
	if raw := strings.TrimSpace(os.Getenv("API_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		timeout = d
	}
	return New(base, timeout)
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{base: u, http: newHTTPClientWithPooling(timeout)}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling,
// per-phase timeouts, and keep-alive tuned for a single upstream host.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second, // TCP connection timeout
		KeepAlive: 30 * time.Second, // Keep-alive probe interval
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		// Pooling: everything goes to one backend host
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout, // overall per-call ceiling
	}
}

// Close drops pooled keep-alive connections. Safe to call any time; the
// client keeps working and will dial again on the next request.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// envelope is the uniform response wrapper of the backend. data stays raw
// until the caller's type is known.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// call performs one round trip: encode body, send, decode envelope, check
// success, decode data into out. Every failure maps onto the api.Error
// taxonomy so callers never see raw transport errors.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return api.Decode("encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return api.Transport("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	// Forward the id the trace middleware minted so one id follows the
	// request across both hops; calls outside a request get their own.
	rid := trace.GetRequestID(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", rid)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.Transport(method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return api.Transport("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return api.Remote(resp.StatusCode, remoteMessage(raw, resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return api.Decode("malformed envelope", err)
	}
	if !env.Success || env.Error != "" {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "request refused"
		}
		return api.Remote(resp.StatusCode, msg)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return api.Decode("malformed payload", err)
		}
	}
	return nil
}

// remoteMessage digs a human-readable message out of an error response.
// Backends usually still send the envelope on errors; fall back to the
// raw body, then to the status text.
func remoteMessage(raw []byte, status int) string {
	var env envelope
	if json.Unmarshal(raw, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" && len(msg) <= 200 {
		return msg
	}
	return http.StatusText(status)
}
