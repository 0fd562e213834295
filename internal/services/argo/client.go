// Package argo owns the upstream HTTP transport: a pooled client issuing
// non-streaming and streaming POSTs against the Argo endpoints, with the
// in-flight dispatch count bounded by the configured worker budget.
package argo

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/semaphore"

	"github.com/argoproxy/goproxy/internal/apperr"
	"github.com/argoproxy/goproxy/internal/config"
)

// ClientConfig holds transport tuning for the upstream client.
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
	MaxInFlight         int64
}

// DefaultClientConfig returns pooled-transport defaults sized for a
// single-upstream proxy.
func DefaultClientConfig(numWorkers int) *ClientConfig {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxInFlight:         int64(numWorkers),
	}
}

// Client is the shared upstream transport. One instance outlives all
// requests; per-request deadlines come in through the context.
type Client struct {
	httpClient *http.Client
	sem        *semaphore.Weighted
	headers    map[string]string
}

// NewClient builds the pooled upstream client from the proxy configuration.
func NewClient(cfg *config.Config) *Client {
	return NewClientWithConfig(DefaultClientConfig(cfg.NumWorkers))
}

// NewClientWithConfig builds the client with explicit transport tuning.
func NewClientWithConfig(cc *ClientConfig) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cc.DialTimeout,
			KeepAlive: cc.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cc.MaxIdleConns,
		MaxIdleConnsPerHost: cc.MaxIdleConnsPerHost,
		IdleConnTimeout:     cc.IdleConnTimeout,
		TLSHandshakeTimeout: cc.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		// No client-level timeout: it would cut long-lived streams short.
		// Deadlines are enforced per request through the context.
		httpClient: &http.Client{Transport: transport},
		sem:        semaphore.NewWeighted(cc.MaxInFlight),
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "argoproxy/1.0",
		},
	}
}

// PostJSON issues a non-streaming POST and returns the full upstream body.
// Transport failures map to upstream-unavailable; non-2xx replies map to
// upstream-error carrying the upstream's status and body text.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) (int, http.Header, []byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return 0, nil, nil, apperr.NewUpstreamUnavailable(err)
	}
	defer c.sem.Release(1)

	resp, err := c.do(ctx, url, body)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fiberlog.Errorf("closing upstream body: %v", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, apperr.NewUpstreamUnavailable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, resp.Header, nil,
			apperr.NewUpstreamError(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

// StreamResponse is an in-flight streaming upstream reply. Body must be
// closed by the caller; closing releases both the connection and the
// transport's in-flight slot.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// PostStream issues a streaming POST and hands back the live body reader.
// A non-2xx reply is drained in full and surfaced as an upstream-error so
// the orchestrator can pass the status through before any stream bytes are
// committed.
func (c *Client) PostStream(ctx context.Context, url string, body []byte) (*StreamResponse, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.NewUpstreamUnavailable(err)
	}

	resp, err := c.do(ctx, url, body)
	if err != nil {
		c.sem.Release(1)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			fiberlog.Errorf("closing upstream error body: %v", cerr)
		}
		c.sem.Release(1)
		return nil, apperr.NewUpstreamError(resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	return &StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &releasingBody{body: resp.Body, release: func() { c.sem.Release(1) }},
	}, nil
}

func (c *Client) do(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.NewUnexpected(err)
	}
	req.ContentLength = int64(len(body))
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.NewUpstreamUnavailable(err)
	}
	return resp, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// releasingBody returns the semaphore slot exactly once when the stream
// body is closed.
type releasingBody struct {
	body     io.ReadCloser
	release  func()
	released bool
}

func (b *releasingBody) Read(p []byte) (int, error) { return b.body.Read(p) }

func (b *releasingBody) Close() error {
	err := b.body.Close()
	if !b.released {
		b.released = true
		b.release()
	}
	return err
}

// skippedHeaders are never propagated from upstream replies: framing and
// representation headers the proxy sets itself, plus hop-by-hop headers.
var skippedHeaders = map[string]bool{
	"Content-Type":      true,
	"Content-Encoding":  true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
	"Connection":        true,
	"Keep-Alive":        true,
	"Trailer":           true,
	"Upgrade":           true,
	"Te":                true,
}

// CopyUpstreamHeaders propagates upstream reply headers onto the client
// response, minus the skipped set.
func CopyUpstreamHeaders(h http.Header, c *fiber.Ctx) {
	for name, values := range h {
		if skippedHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			c.Set(name, v)
		}
	}
}
