package webr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bosonshiggs/webr/internal/domain"
	"github.com/bosonshiggs/webr/pkg/httpclient"
	"github.com/google/uuid"
)

// Get issues a GET request to base URL + endpoint.
func (c *Client) Get(ctx context.Context, endpoint, tag string) *Call {
	return c.Do(ctx, MethodGet, endpoint, tag)
}

// Post issues a POST request carrying the configured data.
func (c *Client) Post(ctx context.Context, endpoint, tag string) *Call {
	return c.Do(ctx, MethodPost, endpoint, tag)
}

// Put issues a PUT request carrying the configured data.
func (c *Client) Put(ctx context.Context, endpoint, tag string) *Call {
	return c.Do(ctx, MethodPut, endpoint, tag)
}

// Patch issues a PATCH request carrying the configured data.
func (c *Client) Patch(ctx context.Context, endpoint, tag string) *Call {
	return c.Do(ctx, MethodPatch, endpoint, tag)
}

// Delete issues a DELETE request carrying the configured data.
func (c *Client) Delete(ctx context.Context, endpoint, tag string) *Call {
	return c.Do(ctx, MethodDelete, endpoint, tag)
}

// Do issues a request with the given verb. The URL is the literal
// concatenation of the base URL and endpoint. With async enabled Do returns
// immediately; otherwise it returns once the call has resolved. In both cases
// exactly one event is posted for the call.
func (c *Client) Do(ctx context.Context, verb Verb, endpoint, tag string) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	snap := c.snapshot()
	req := Request{
		ID:       uuid.NewString(),
		Verb:     verb,
		Endpoint: endpoint,
		Tag:      tag,
		URL:      snap.BaseURL + endpoint,
		Config:   snap,
	}
	callCtx, cancel := context.WithCancel(ctx)
	call := newCall(req, cancel)

	c.stateMu.RLock()
	if c.closed {
		c.stateMu.RUnlock()
		cancel()
		res := errorResult(req, CodeRequest, ErrClosed.Error())
		res.Err = ErrClosed
		call.resolve(res)
		return call
	}
	c.inflight.Add(1)
	c.stateMu.RUnlock()

	c.log.DebugObj("request dispatched", "webr_request", map[string]any{
		"request_id": req.ID,
		"verb":       req.Verb,
		"url":        req.URL,
		"tag":        req.Tag,
		"async":      snap.Async,
	})

	if snap.Async {
		go c.runAsync(callCtx, call)
	} else {
		c.run(callCtx, call)
	}
	return call
}

// runAsync waits for a worker slot before running the exchange.
func (c *Client) runAsync(ctx context.Context, call *Call) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
	}
	c.run(ctx, call)
}

func (c *Client) run(ctx context.Context, call *Call) {
	defer c.inflight.Done()
	defer call.Cancel()

	start := time.Now()
	res := c.exchange(ctx, call.req)
	c.finish(call, res, time.Since(start))
}

func (c *Client) finish(call *Call, res Result, elapsed time.Duration) {
	if !call.resolve(res) {
		return
	}
	meta := map[string]any{
		"request_id": res.Request.ID,
		"event":      res.Event.Name,
		"tag":        res.Request.Tag,
		"status":     res.Event.StatusCode,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	switch res.Event.Name {
	case domain.EventRequestCompleted:
		c.log.DebugObj("request completed", "webr_result", meta)
	default:
		meta["message"] = res.Event.Payload
		c.log.WarnObj("request did not complete", "webr_result", meta)
	}
	c.loop.post(res.Event)
}

// exchange performs the HTTP round trip and classifies the outcome.
func (c *Client) exchange(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(req, CodeUnexpected, fmt.Sprintf("Unexpected error: %v", r))
		}
	}()

	if !req.Verb.Valid() {
		return errorResult(req, CodeRequest, fmt.Sprintf("Unsupported verb %q.", string(req.Verb)))
	}
	if req.URL == "" {
		return errorResult(req, CodeRequest, "The URL cannot be null or empty.")
	}
	if err := validateURL(req.URL); err != nil {
		return errorResult(req, CodeMalformedURL, "Invalid URL: "+err.Error())
	}
	if err := ctx.Err(); err != nil {
		return cancelledResult(req, err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return cancelledResult(req, ctx.Err())
			}
			return failedResult(req, 0, "IO error: "+err.Error())
		}
	}

	body := ""
	if req.Verb.WritesBody() {
		body = req.Config.Data
	}
	resp, err := c.http.Do(ctx, httpclient.Exchange{
		Method:  string(req.Verb),
		URL:     req.URL,
		Headers: req.Config.Headers,
		Body:    body,
	})
	if err != nil {
		if ctx.Err() != nil {
			return cancelledResult(req, ctx.Err())
		}
		return failedResult(req, 0, "IO error: "+err.Error())
	}

	text := joinLines(resp.Body)
	if resp.OK() {
		return completedResult(req, resp.StatusCode, text)
	}
	return failedResult(req, resp.StatusCode, fmt.Sprintf("Response code: %d. Response: %s", resp.StatusCode, text))
}

// validateURL accepts absolute http and https URLs with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		return fmt.Errorf("no protocol: %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unknown protocol: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host in " + raw)
	}
	return nil
}

// joinLines concatenates the lines of a body, dropping the line breaks.
func joinLines(body []byte) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, string(body))
}

func baseEvent(req Request, name EventName) Event {
	return Event{
		Name:      name,
		Tag:       req.Tag,
		RequestID: req.ID,
		Verb:      req.Verb,
		URL:       req.URL,
		At:        time.Now().UTC(),
	}
}

func completedResult(req Request, status int, body string) Result {
	evt := baseEvent(req, domain.EventRequestCompleted)
	evt.StatusCode = status
	evt.Payload = body
	return Result{Request: req, Event: evt}
}

func failedResult(req Request, status int, message string) Result {
	evt := baseEvent(req, domain.EventRequestFailed)
	evt.StatusCode = status
	evt.Payload = message
	return Result{Request: req, Event: evt, Err: fmt.Errorf("%w: %s", ErrRequestFailed, message)}
}

func cancelledResult(req Request, cause error) Result {
	res := failedResult(req, 0, "Request cancelled: "+cause.Error())
	res.Err = fmt.Errorf("%w: %w", ErrRequestFailed, cause)
	return res
}

func errorResult(req Request, code, message string) Result {
	evt := baseEvent(req, domain.EventError)
	evt.Code = code
	evt.Payload = message
	return Result{Request: req, Event: evt, Err: fmt.Errorf("%w: %s: %s", ErrConfiguration, code, message)}
}
