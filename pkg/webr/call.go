package webr

import (
	"context"
	"sync"
)

// Call is the handle for one issued request. It resolves exactly once.
type Call struct {
	req    Request
	cancel context.CancelFunc
	done   chan struct{}

	once   sync.Once
	mu     sync.Mutex
	result Result
}

func newCall(req Request, cancel context.CancelFunc) *Call {
	return &Call{
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the generated request id.
func (c *Call) ID() string { return c.req.ID }

// Tag returns the caller supplied correlation tag.
func (c *Call) Tag() string { return c.req.Tag }

// Request returns the request as captured when the call was issued.
func (c *Call) Request() Request { return c.req }

// Done is closed once the result is available.
func (c *Call) Done() <-chan struct{} { return c.done }

// Cancel aborts the exchange. A cancelled call still resolves, with a
// RequestFailed result. Cancelling a resolved call has no effect.
func (c *Call) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Result returns the outcome and whether the call has resolved.
func (c *Call) Result() (Result, bool) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the call resolves or ctx is done.
func (c *Call) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		res, _ := c.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve stores the result and reports whether this was the first resolution.
func (c *Call) resolve(res Result) bool {
	first := false
	c.once.Do(func() {
		c.mu.Lock()
		c.result = res
		c.mu.Unlock()
		close(c.done)
		first = true
	})
	return first
}
