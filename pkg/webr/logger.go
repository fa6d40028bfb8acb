package webr

import "github.com/bosonshiggs/webr/pkg/logging"

// Logger is the structured logging surface the client writes to.
type Logger = logging.Logger

func ensureLogger(log Logger) Logger { return logging.OrNop(log) }
