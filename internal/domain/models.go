package domain

import (
	"fmt"
	"strings"
	"time"
)

// Domain contains the request, result and event models shared across packages.

// Verb is one of the HTTP methods the client can issue.
type Verb string

const (
	VerbGet    Verb = "GET"
	VerbPost   Verb = "POST"
	VerbPut    Verb = "PUT"
	VerbPatch  Verb = "PATCH"
	VerbDelete Verb = "DELETE"
)

// Verbs lists the supported verbs in declaration order.
var Verbs = []Verb{VerbGet, VerbPost, VerbPut, VerbPatch, VerbDelete}

// Valid reports whether v is a supported verb.
func (v Verb) Valid() bool {
	for _, known := range Verbs {
		if v == known {
			return true
		}
	}
	return false
}

// WritesBody reports whether a request with this verb may carry a body.
func (v Verb) WritesBody() bool {
	return v != VerbGet
}

// ParseVerb resolves a verb name case-insensitively.
func ParseVerb(s string) (Verb, error) {
	v := Verb(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unsupported verb %q", s)
	}
	return v, nil
}

// Snapshot is the client configuration captured when a call is issued.
// It is never mutated after creation.
type Snapshot struct {
	BaseURL string            `json:"base_url"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    string            `json:"data,omitempty"`
	Async   bool              `json:"async"`
}

// Request describes a single exchange.
type Request struct {
	ID       string   `json:"id"`
	Verb     Verb     `json:"verb"`
	Endpoint string   `json:"endpoint"`
	Tag      string   `json:"tag"`
	URL      string   `json:"url"`
	Config   Snapshot `json:"config"`
}

// EventName identifies one of the three result channels.
type EventName string

const (
	EventRequestCompleted EventName = "RequestCompleted"
	EventRequestFailed    EventName = "RequestFailed"
	EventError            EventName = "Error"
)

// Error codes reported through the Error channel.
const (
	CodeBaseURL          = "BaseUrlError"
	CodeHeaders          = "HeadersError"
	CodeRequest          = "RequestError"
	CodeMalformedURL     = "MalformedURLException"
	CodeUnexpected       = "UnexpectedError"
	CodeJSONToDictionary = "JsonToDictionaryError"
	CodeDictionaryToJSON = "DictionaryToJsonError"
)

// Event is a single notification delivered to listeners.
// Tag is set for RequestCompleted and RequestFailed, Code for Error.
type Event struct {
	Name       EventName `json:"name"`
	Tag        string    `json:"tag,omitempty"`
	Code       string    `json:"code,omitempty"`
	Payload    string    `json:"payload"`
	RequestID  string    `json:"request_id,omitempty"`
	Verb       Verb      `json:"verb,omitempty"`
	URL        string    `json:"url,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	At         time.Time `json:"at"`
}

// Succeeded reports whether the event is a RequestCompleted.
func (e Event) Succeeded() bool { return e.Name == EventRequestCompleted }

// Key returns the correlation value for the event: the tag for request
// events and the code for errors.
func (e Event) Key() string {
	if e.Name == EventError {
		return e.Code
	}
	return e.Tag
}

// Result is the terminal outcome of a call.
type Result struct {
	Request Request
	Event   Event
	Err     error
}
