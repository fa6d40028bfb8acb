package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bosonshiggs/webr/internal/app"
	"github.com/bosonshiggs/webr/internal/config"
	"github.com/bosonshiggs/webr/internal/logger"
	"github.com/bosonshiggs/webr/pkg/webr"
	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
}

// RuntimeFactory builds the runtime a command operates on. Listeners must be
// subscribed before any configuration is applied to the client.
type RuntimeFactory func(ctx context.Context, listeners ...webr.Listener) (*app.Runtime, error)

// NewRootCmd assembles the webr command tree.
func NewRootCmd(info BuildInfo, factory RuntimeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "webr",
		Short: "Fire HTTP requests and report every outcome as an event.",
		Long: `webr sends HTTP requests against a configurable base URL and prints one
event per call: RequestCompleted for 2xx responses, RequestFailed for any
other status or transport failure, and Error for configuration problems.`,
		SilenceUsage: true,
	}

	for _, verb := range []webr.Verb{webr.MethodGet, webr.MethodPost, webr.MethodPut, webr.MethodPatch, webr.MethodDelete} {
		root.AddCommand(newRequestCmd(verb, factory))
	}
	root.AddCommand(newRunCmd(factory))
	root.AddCommand(newJSONToDictCmd(factory))
	root.AddCommand(newDictToJSONCmd(factory))
	root.AddCommand(newHistoryCmd(factory))
	root.AddCommand(newVersionCmd(info))
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(info BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer logger.Close()

	if err := NewRootCmd(info, defaultRuntime).ExecuteContext(ctx); err != nil {
		return exitCode(err)
	}
	return ExitSuccess
}

func defaultRuntime(ctx context.Context, listeners ...webr.Listener) (*app.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	sugar, err := logger.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := logger.Wrap(sugar)
	log.DebugObj("webr starting", "config", cfg)

	return app.NewRuntime(ctx, cfg, log, app.RuntimeOptions{Listeners: listeners})
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

func usageError(format string, args ...any) error {
	return &exitError{code: ExitUsageError, err: fmt.Errorf(format, args...)}
}
