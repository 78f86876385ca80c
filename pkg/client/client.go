// Package client is the HTTP transport for the streaming chat service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/logger"
)

const (
	streamPath  = "/api/chat/stream"
	sessionPath = "/api/chat/"

	// DefaultTimeout bounds how long a request may wait for response
	// headers. Streaming bodies are not subject to it.
	DefaultTimeout = 30 * time.Second

	// errorBodyLimit caps how much of a failed response body is kept.
	errorBodyLimit = 4 * 1024
)

// Client talks to the chat service at a base URL.
type Client struct {
	target     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the response header timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New returns a Client for the service at target, e.g. "http://localhost:8080".
func New(target string, opts ...Option) *Client {
	c := &Client{
		target:     strings.TrimRight(target, "/"),
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ chat.Transport = (*Client)(nil)

// Stream posts req to the streaming endpoint and returns the event-stream
// body. Closing the body, or cancelling ctx, aborts the request.
func (c *Client) Stream(ctx context.Context, req chat.Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+streamPath, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("opening stream",
		"url", httpReq.URL.String(),
		"session_id", req.SessionID,
	)

	resp, err := c.doWithHeaderTimeout(httpReq, cancel)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, ErrNoBody
	}

	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// doWithHeaderTimeout sends req and cancels it if headers do not arrive
// within the configured timeout.
func (c *Client) doWithHeaderTimeout(req *http.Request, cancel context.CancelFunc) (*http.Response, error) {
	if c.timeout <= 0 {
		return c.httpClient.Do(req)
	}

	timer := time.AfterFunc(c.timeout, cancel)
	resp, err := c.httpClient.Do(req)
	if timer.Stop() {
		return resp, err
	}

	// The timer fired, so the request context is cancelled even when a
	// response made it back first.
	if err == nil {
		resp.Body.Close()
		err = context.DeadlineExceeded
	}
	return nil, fmt.Errorf("no response within %s: %w", c.timeout, err)
}

// DeleteSession drops server-side memory for sessionID.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	u := c.target + sessionPath + url.PathEscape(sessionID)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// streamBody releases the request context when the body is closed.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)
	return err
}
