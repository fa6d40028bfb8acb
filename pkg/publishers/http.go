package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bosonshiggs/webr/pkg/httpclient"
)

// httpPublisher posts each event as a JSON document to a webhook.
type httpPublisher struct {
	id      string
	typ     string
	method  string
	url     string
	headers map[string]string
	doer    httpclient.Doer
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	method := cfg.HTTP.Method
	if method == "" {
		method = httpDefaultMethod
	}

	headers := make(map[string]string, len(cfg.HTTP.Headers)+1)
	headers["Content-Type"] = "application/json"
	for k, v := range cfg.HTTP.Headers {
		headers[k] = v
	}

	return &httpPublisher{
		id:      cfg.ID,
		typ:     TypeHTTP,
		method:  method,
		url:     cfg.HTTP.URL,
		headers: headers,
		doer:    httpclient.New(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second),
		log:     ensureLogger(log),
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return h.typ }

// Publish sends the event and treats any non-2xx status as a failure.
func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	resp, err := h.doer.Do(ctx, httpclient.Exchange{
		Method:  h.method,
		URL:     h.url,
		Headers: h.headers,
		Body:    string(payload),
	})
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("http response status %d: %s", resp.StatusCode, bodySnippet(resp.Body))
	}

	h.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"status":       resp.StatusCode,
	})
	return nil
}

func bodySnippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		body = body[:limit]
	}
	return strings.TrimSpace(string(body))
}
