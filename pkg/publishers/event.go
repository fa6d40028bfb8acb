package publishers

import (
	"time"

	"github.com/bosonshiggs/webr/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	Source      string       `json:"source"`
	Result      domain.Event `json:"result"`
	PublishedAt time.Time    `json:"published_at"`
}

// NewEvent wraps a client event for delivery to sinks.
func NewEvent(source string, evt domain.Event) Event {
	return Event{
		Source:      source,
		Result:      evt,
		PublishedAt: time.Now().UTC(),
	}
}

// Attributes returns the routing attributes sinks attach to a message.
// Empty values are omitted because some brokers reject them.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{
		"event_name": string(e.Result.Name),
	}
	if e.Source != "" {
		attrs["source"] = e.Source
	}
	if e.Result.Tag != "" {
		attrs["tag"] = e.Result.Tag
	}
	if e.Result.Code != "" {
		attrs["code"] = e.Result.Code
	}
	return attrs
}
