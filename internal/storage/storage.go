package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bosonshiggs/webr/internal/domain"
)

// Package storage keeps a local journal of delivered result events.

// Journal records result events and answers history queries.
type Journal interface {
	Close() error
	Record(evt domain.Event) error
	// Recent returns up to limit unexpired events, newest first.
	Recent(limit int) ([]domain.Event, error)
	// ByTag returns unexpired events carrying tag, oldest first.
	ByTag(tag string) ([]domain.Event, error)
}

// ErrJournalBusy reports that another process holds the journal file.
var ErrJournalBusy = errors.New("journal is locked by another process")

// Options controls retention characteristics for concrete journal implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 7 * 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
)

// NewJournal creates the configured journal backend.
func NewJournal(typ, path string, opts Options) (Journal, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopJournal{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt journal requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported journal type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopJournal struct{}

func (noopJournal) Close() error                         { return nil }
func (noopJournal) Record(domain.Event) error            { return nil }
func (noopJournal) Recent(int) ([]domain.Event, error)   { return nil, nil }
func (noopJournal) ByTag(string) ([]domain.Event, error) { return nil, nil }
