// Package webr issues HTTP requests against a configurable base URL and reports
// every outcome as an event.
//
// A Client holds the base URL, a header set, a request body and an async flag.
// Each verb call captures that configuration into an immutable snapshot, runs
// one exchange and delivers exactly one event to subscribed listeners:
// RequestCompleted for 2xx responses, RequestFailed for any other status or a
// transport failure, and Error for configuration problems. Events are delivered
// serially from a single goroutine in the order they were posted.
package webr

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bosonshiggs/webr/pkg/httpclient"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxConcurrent = 16
)

// ErrClosed is reported by calls issued after Close.
var ErrClosed = errors.New("webr: client closed")

// Options tune the transport and the async worker pool.
type Options struct {
	// HTTPClient overrides the transport. When nil a resty client with
	// Timeout is used.
	HTTPClient httpclient.Doer
	Timeout    time.Duration

	// MaxConcurrent bounds the number of async exchanges in flight.
	MaxConcurrent int

	// RequestsPerSecond throttles exchange starts. Zero disables throttling.
	RequestsPerSecond float64
	Logger            Logger
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.RequestsPerSecond < 0 {
		opts.RequestsPerSecond = 0
	}
	opts.Logger = ensureLogger(opts.Logger)
	return opts
}

// Client is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	headers map[string]string
	data    string
	async   bool

	http    httpclient.Doer
	sem     chan struct{}
	limiter *rate.Limiter
	loop    *eventLoop
	log     Logger

	stateMu  sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New builds a Client and starts its event loop. Async defaults to true.
func New(opts Options) *Client {
	opts = normalizeOptions(opts)

	transport := opts.HTTPClient
	if transport == nil {
		transport = httpclient.New(opts.Timeout)
	}

	c := &Client{
		headers: make(map[string]string),
		async:   true,
		http:    transport,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		log:     opts.Logger,
		loop:    newEventLoop(opts.Logger),
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	go c.loop.run()
	return c
}

// SetBaseURL replaces the base URL. An empty value is rejected with a
// BaseUrlError event and the previous base URL is kept.
func (c *Client) SetBaseURL(url string) {
	if url == "" {
		c.reportError(CodeBaseURL, "Base URL cannot be null or empty.")
		return
	}
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetAsync controls whether verb calls return before the exchange completes.
func (c *Client) SetAsync(async bool) {
	c.mu.Lock()
	c.async = async
	c.mu.Unlock()
}

// Async reports whether verb calls run asynchronously.
func (c *Client) Async() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.async
}

// SetHeaders replaces the header set wholesale. A nil map clears it.
// Invalid names or values are rejected with a HeadersError event and the
// previous headers are kept.
func (c *Client) SetHeaders(headers map[string]string) {
	next := make(map[string]string, len(headers))
	for k, v := range headers {
		if !httpguts.ValidHeaderFieldName(k) {
			c.reportError(CodeHeaders, "Error setting headers: invalid header name "+strconv.Quote(k))
			return
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			c.reportError(CodeHeaders, "Error setting headers: invalid value for header "+strconv.Quote(k))
			return
		}
		next[k] = v
	}
	c.mu.Lock()
	c.headers = next
	c.mu.Unlock()
}

// Headers returns a copy of the current header set.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyHeaders(c.headers)
}

// SetData replaces the request body sent with non-GET verbs.
func (c *Client) SetData(data string) {
	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
}

// Data returns the current request body.
func (c *Client) Data() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Subscribe registers a listener for all future events. The returned func
// removes it.
func (c *Client) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	return c.loop.subscribe(l)
}

// Close stops accepting calls, waits for in-flight exchanges and delivers
// all pending events. Calls issued afterwards resolve with ErrClosed and
// produce no event. Close must not be called from a listener.
func (c *Client) Close(ctx context.Context) error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.closed = true
	c.stateMu.Unlock()

	idle := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		_ = c.loop.close(ctx)
		return ctx.Err()
	}
	return c.loop.close(ctx)
}

func (c *Client) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		BaseURL: c.baseURL,
		Headers: copyHeaders(c.headers),
		Data:    c.data,
		Async:   c.async,
	}
}

// reportError posts an Error event that is not tied to a call.
func (c *Client) reportError(code, message string) {
	c.log.WarnObj("webr error", "webr_error", map[string]any{
		"code":    code,
		"message": message,
	})
	c.loop.post(newErrorEvent(code, message))
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
