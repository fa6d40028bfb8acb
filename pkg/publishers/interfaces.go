package publishers

import (
	"context"

	"github.com/bosonshiggs/webr/pkg/logging"
)

// Publisher sends events to a downstream sink (SQS, SNS, Pub/Sub, HTTP).
// Publishers holding connections also implement io.Closer.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Logger defines the logging surface publishers rely on.
type Logger = logging.Logger

func ensureLogger(log Logger) Logger { return logging.OrNop(log) }
