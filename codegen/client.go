// Package codegen talks to the compilation service that lowers IR to assembly.
package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxRetries bounds the retries of a transport failure.
	MaxRetries = 1

	compilePath     = "/compile-ir"
	maxResponseSize = 64 << 20
)

// Request is the body posted to the service.
type Request struct {
	IR string `json:"ir"`
}

// Response carries either the assembly or a diagnostic.
type Response struct {
	Asm   *string `json:"asm,omitempty"`
	Error string  `json:"error,omitempty"`
}

// DiagnosticError is a failure reported by the code generator itself.
type DiagnosticError struct {
	Message string
}

func (e *DiagnosticError) Error() string {
	return e.Message
}

// TransportError is a failure to obtain an answer from the service.
type TransportError struct {
	URL    string
	Status int // zero when no response arrived
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("codegen service %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("codegen service %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts IR to the service. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
}

type Option func(*Client)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets how many times a transport failure is retried, at most MaxRetries.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = min(max(n, 0), MaxRetries)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a client for the service at baseURL, e.g. http://localhost:3000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		timeout: DefaultTimeout,
		retries: MaxRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CompileIR returns the normalized assembly for ir. The error is a
// *DiagnosticError or a *TransportError.
func (c *Client) CompileIR(ctx context.Context, ir string) (string, error) {
	body, err := json.Marshal(Request{IR: ir})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		asm, err := c.attempt(ctx, body)
		if err == nil {
			return Normalize(asm), nil
		}
		lastErr = err

		var te *TransportError
		if !errors.As(err, &te) || ctx.Err() != nil {
			break
		}
		tlog.SpanFromContext(ctx).Printw("codegen attempt failed", "attempt", attempt+1, "err", err)
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	url := c.baseURL + compilePath
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &TransportError{URL: url, Status: resp.StatusCode, Err: errors.Wrap(err, "read body")}
	}

	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return "", &TransportError{URL: url, Status: resp.StatusCode, Err: errors.Wrap(err, "decode body")}
	}

	switch {
	case r.Error != "":
		return "", &DiagnosticError{Message: r.Error}
	case resp.StatusCode == http.StatusOK && r.Asm != nil:
		return *r.Asm, nil
	}
	return "", &TransportError{URL: url, Status: resp.StatusCode, Err: errors.New("response carries neither asm nor error")}
}
