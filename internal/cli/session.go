package cli

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/bosonshiggs/webr/internal/app"
	"github.com/bosonshiggs/webr/pkg/webr"
	"github.com/spf13/cobra"
)

const closeTimeout = 30 * time.Second

// session prints every event of one command invocation and counts failures.
type session struct {
	rt       *app.Runtime
	out      io.Writer
	failures atomic.Int64
}

func openSession(cmd *cobra.Command, factory RuntimeFactory) (*session, error) {
	s := &session{out: cmd.OutOrStdout()}
	rt, err := factory(cmd.Context(), webr.ListenerFunc(s.print))
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: fmt.Errorf("init runtime: %w", err)}
	}
	s.rt = rt
	return s, nil
}

func (s *session) client() *webr.Client { return s.rt.Client() }

// print runs on the client's event goroutine.
func (s *session) print(evt webr.Event) {
	fmt.Fprintf(s.out, "[%s] %s: %s\n", evt.Name, evt.Key(), evt.Payload)
	if !evt.Succeeded() {
		s.failures.Add(1)
	}
}

// close drains pending events and reports whether any of them was a failure.
// Output written by the caller after close never interleaves with events.
func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := s.rt.Close(ctx); err != nil {
		return fmt.Errorf("close runtime: %w", err)
	}
	if n := s.failures.Load(); n > 0 {
		return &exitError{code: ExitRequestFailure, err: fmt.Errorf("%d event(s) reported a failure", n)}
	}
	return nil
}
