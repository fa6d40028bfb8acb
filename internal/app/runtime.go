package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosonshiggs/webr/internal/config"
	"github.com/bosonshiggs/webr/internal/logger"
	"github.com/bosonshiggs/webr/internal/storage"
	"github.com/bosonshiggs/webr/pkg/publishers"
	"github.com/bosonshiggs/webr/pkg/webr"
)

const publishTimeout = 10 * time.Second

// Runtime owns a configured client together with the listeners that journal
// and forward its events.
type Runtime struct {
	cfg     *config.Config
	client  *webr.Client
	journal storage.Journal
	fanout  *publishers.Fanout
	log     logger.Logger
}

// RuntimeOptions carries optional overrides for NewRuntime.
type RuntimeOptions struct {
	Client webr.Options

	// Listeners are subscribed before the configured base URL is applied, so
	// they also observe configuration errors.
	Listeners []webr.Listener
}

// NewRuntime builds a client runtime from config.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, opts RuntimeOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	journalOpts := storage.Options{
		TTL:             cfg.JournalTTL,
		CleanupInterval: cfg.JournalCleanupInterval,
	}
	journal, err := storage.NewJournal(cfg.JournalType, cfg.JournalPath, journalOpts)
	if errors.Is(err, storage.ErrJournalBusy) {
		log.WarnObj("journal busy; history disabled for this run", "journal_path", cfg.JournalPath)
		journal, err = storage.NewJournal("none", "", journalOpts)
	}
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	log.InfoObj("journal initialized", "journal_config", map[string]any{
		"type":                     cfg.JournalType,
		"path":                     cfg.JournalPath,
		"ttl_seconds":              int(cfg.JournalTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.JournalCleanupInterval.Seconds()),
	})

	clientOpts := opts.Client
	if clientOpts.Timeout <= 0 {
		clientOpts.Timeout = cfg.RequestTimeout
	}
	if clientOpts.MaxConcurrent <= 0 {
		clientOpts.MaxConcurrent = cfg.MaxConcurrent
	}
	if clientOpts.RequestsPerSecond <= 0 {
		clientOpts.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if clientOpts.Logger == nil {
		clientOpts.Logger = log
	}
	client := webr.New(clientOpts)

	r := &Runtime{
		cfg:     cfg,
		client:  client,
		journal: journal,
		fanout:  fanout,
		log:     log,
	}
	client.Subscribe(webr.ListenerFunc(r.record))
	if fanout.Size() > 0 {
		client.Subscribe(webr.ListenerFunc(r.forward))
	}
	for _, l := range opts.Listeners {
		client.Subscribe(l)
	}

	client.SetAsync(cfg.Async)
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}

	log.InfoObj("runtime ready", "runtime_state", map[string]any{
		"base_url":         cfg.BaseURL,
		"async":            cfg.Async,
		"max_concurrent":   clientOpts.MaxConcurrent,
		"publishers_count": fanout.Size(),
	})
	return r, nil
}

// buildFanout loads the publishers file when one is configured. A runtime
// without publishers gets an empty fanout.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		log.WarnObj("no enabled publishers; events stay local", "publishers_file", cfg.PublishersFile)
		return publishers.NewFanout(nil), nil
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Client returns the runtime's client.
func (r *Runtime) Client() *webr.Client { return r.client }

// Journal returns the result journal.
func (r *Runtime) Journal() storage.Journal { return r.journal }

func (r *Runtime) record(evt webr.Event) {
	if err := r.journal.Record(evt); err != nil {
		r.log.ErrorObj("journal record failed", "error", err.Error())
	}
}

func (r *Runtime) forward(evt webr.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	delivered, err := r.fanout.Publish(ctx, publishers.NewEvent(r.cfg.AppName, evt))
	if err != nil {
		r.log.WarnObj("event publish incomplete", "publish_meta", map[string]any{
			"event":     evt.Name,
			"tag":       evt.Tag,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

// Close drains the client so every pending event reaches the journal and the
// publishers, then releases both.
func (r *Runtime) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if err := r.client.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	if err := r.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	return errors.Join(errs...)
}
