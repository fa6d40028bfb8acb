package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bosonshiggs/webr/pkg/webr"
	"gopkg.in/yaml.v3"
)

// Collection is a YAML file of requests sharing a base URL and headers.
type Collection struct {
	BaseURL  string              `yaml:"base_url"`
	Headers  map[string]string   `yaml:"headers"`
	Async    *bool               `yaml:"async"`
	Requests []CollectionRequest `yaml:"requests"`
}

// CollectionRequest is one call in a collection. Tag defaults to Name.
type CollectionRequest struct {
	Name     string            `yaml:"name"`
	Verb     string            `yaml:"verb"`
	Endpoint string            `yaml:"endpoint"`
	Tag      string            `yaml:"tag"`
	Headers  map[string]string `yaml:"headers"`
	Data     string            `yaml:"data"`
}

// LoadCollection reads and validates a collection file.
func LoadCollection(path string) (*Collection, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("collection file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collection file: %w", err)
	}
	return ParseCollection(raw)
}

// ParseCollection decodes collection YAML and normalizes every entry.
func ParseCollection(raw []byte) (*Collection, error) {
	var col Collection
	if err := yaml.Unmarshal(raw, &col); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if len(col.Requests) == 0 {
		return nil, errors.New("collection contains no requests")
	}
	for i := range col.Requests {
		req := &col.Requests[i]
		req.Name = strings.TrimSpace(req.Name)
		verb, err := webr.ParseVerb(req.Verb)
		if err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		req.Verb = string(verb)
		if req.Tag == "" {
			req.Tag = req.Name
		}
	}
	return &col, nil
}

// RunCollection issues every request in order and waits for all results.
// Each request's headers are the collection headers overlaid with its own,
// and its body is its own data. Results are returned in request order.
func RunCollection(ctx context.Context, client *webr.Client, col *Collection) ([]webr.Result, error) {
	if client == nil || col == nil {
		return nil, errors.New("client and collection are required")
	}
	if col.BaseURL != "" {
		client.SetBaseURL(col.BaseURL)
	}
	if col.Async != nil {
		client.SetAsync(*col.Async)
	}

	calls := make([]*webr.Call, 0, len(col.Requests))
	for _, req := range col.Requests {
		client.SetHeaders(nil)
		client.SetHeaders(mergeHeaders(col.Headers, req.Headers))
		client.SetData(req.Data)
		calls = append(calls, client.Do(ctx, webr.Verb(req.Verb), req.Endpoint, req.Tag))
	}

	results := make([]webr.Result, 0, len(calls))
	for _, call := range calls {
		res, err := call.Wait(ctx)
		if err != nil {
			return results, fmt.Errorf("wait for %q: %w", call.Tag(), err)
		}
		results = append(results, res)
	}
	return results, nil
}

func mergeHeaders(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
