package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// ErrNoToken is returned for authenticated calls when no session token exists.
var ErrNoToken = errors.New("not logged in")

// TokenSource supplies the bearer credential for authenticated requests.
type TokenSource interface {
	Token() (string, bool)
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// HTTPStatusCode exposes the response status to generic retry helpers.
func (e *StatusError) HTTPStatusCode() int { return e.Status }

// StatusOf returns the HTTP status carried by err, or 0 for transport failures.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// DetailOf returns the server-provided detail message carried by err, if any.
func DetailOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// Client talks to the course platform REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	tokens  TokenSource
	log     *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTokenSource sets where bearer tokens come from. The session manager is
// usually wired in after construction with SetTokenSource.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = transport.DefaultServerURL
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource attaches the bearer credential source.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// ResolveURL turns a server-relative reference (as returned in file_url) into
// an absolute URL. Absolute references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, authed bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if authed {
		if c.tokens == nil {
			return nil, ErrNoToken
		}
		token, ok := c.tokens.Token()
		if !ok {
			return nil, ErrNoToken
		}
		req.Header.Set(transport.HeaderAuthorization, "Bearer "+token)
	}
	return req, nil
}

// do sends the request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(req, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, authed bool, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body, authed)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func statusError(req *http.Request, resp *http.Response) error {
	se := &StatusError{Method: req.Method, Path: req.URL.Path, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			se.Detail = s
		} else {
			se.Detail = string(payload.Detail)
		}
	} else {
		se.Detail = strings.TrimSpace(string(raw))
	}
	return se
}
