// Package httpclient performs single HTTP exchanges.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Exchange describes one outgoing request.
type Exchange struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is written only for non-GET methods and only when non-empty.
	Body string
}

// Response is the outcome of a completed exchange. Any status, including
// 4xx and 5xx, is a response rather than an error.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer performs one exchange. Errors are reserved for transport failures.
type Doer interface {
	Do(ctx context.Context, ex Exchange) (Response, error)
}

// Resty is a Doer backed by resty with retries and redirects disabled, so
// every call is exactly one round trip and a 3xx reaches the caller as is.
type Resty struct {
	client *resty.Client
}

// New creates a Resty doer. A non-positive timeout leaves resty's default.
func New(timeout time.Duration) *Resty {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.SetRetryCount(0)
	c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	return &Resty{client: c}
}

// Do executes the exchange.
func (r *Resty) Do(ctx context.Context, ex Exchange) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(ex.Headers) > 0 {
		req.SetHeaders(ex.Headers)
	}
	if ex.Method != http.MethodGet && ex.Body != "" {
		req.SetBody(ex.Body)
	}
	resp, err := req.Execute(ex.Method, ex.URL)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}
