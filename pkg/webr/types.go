package webr

import (
	"errors"
	"time"

	"github.com/bosonshiggs/webr/internal/domain"
)

type (
	Verb      = domain.Verb
	Snapshot  = domain.Snapshot
	Request   = domain.Request
	Event     = domain.Event
	EventName = domain.EventName
	Result    = domain.Result
)

const (
	MethodGet    = domain.VerbGet
	MethodPost   = domain.VerbPost
	MethodPut    = domain.VerbPut
	MethodPatch  = domain.VerbPatch
	MethodDelete = domain.VerbDelete

	EventRequestCompleted = domain.EventRequestCompleted
	EventRequestFailed    = domain.EventRequestFailed
	EventError            = domain.EventError

	CodeBaseURL          = domain.CodeBaseURL
	CodeHeaders          = domain.CodeHeaders
	CodeRequest          = domain.CodeRequest
	CodeMalformedURL     = domain.CodeMalformedURL
	CodeUnexpected       = domain.CodeUnexpected
	CodeJSONToDictionary = domain.CodeJSONToDictionary
	CodeDictionaryToJSON = domain.CodeDictionaryToJSON
)

var (
	// ErrRequestFailed wraps the message of a RequestFailed result.
	ErrRequestFailed = errors.New("request failed")
	// ErrConfiguration wraps the message of an Error result.
	ErrConfiguration = errors.New("configuration error")
)

// ParseVerb resolves a verb name case-insensitively.
func ParseVerb(s string) (Verb, error) { return domain.ParseVerb(s) }

func newErrorEvent(code, message string) Event {
	return Event{
		Name:    domain.EventError,
		Code:    code,
		Payload: message,
		At:      time.Now().UTC(),
	}
}
