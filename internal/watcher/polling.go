package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corpussearch/searchd/pkg/logger"
)

// PollingWatcher scans the corpus directory at a fixed interval and compares
// each file's modification time against the previously recorded state. A
// path absent from the prior state is a create; a strictly newer mod time is
// a modify. After each cycle the state is replaced with the fresh listing,
// so deleted files simply drop out without an event.
type PollingWatcher struct {
	interval time.Duration
	ext      string
	state    map[string]time.Time
	events   chan Event
	errors   chan error
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewPolling creates a polling watcher for files with the given extension.
func NewPolling(interval time.Duration, ext string) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		ext:      ext,
		state:    make(map[string]time.Time),
		events:   make(chan Event, 64),
		errors:   make(chan error, 8),
		stopCh:   make(chan struct{}),
		logger:   logger.WithComponent("corpus-watcher"),
	}
}

// Start establishes a baseline from the current directory listing (no
// events for files already present) and then polls until the context is
// cancelled or Stop is called. The inter-poll wait is the only
// cancellation checkpoint.
func (p *PollingWatcher) Start(ctx context.Context, dir string) error {
	defer close(p.events)
	defer close(p.errors)

	baseline, err := listFiles(dir, p.ext)
	if err != nil {
		return fmt.Errorf("initial corpus scan: %w", err)
	}
	p.state = baseline
	p.logger.Info("watching corpus directory",
		"dir", dir,
		"interval", p.interval,
		"files", len(baseline),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.cycle(dir)
		}
	}
}

// Stop signals the poll loop to exit between cycles.
func (p *PollingWatcher) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	return nil
}

// Events returns the channel of corpus change events.
func (p *PollingWatcher) Events() <-chan Event {
	return p.events
}

// Errors returns the channel of non-fatal scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// cycle runs one full listing and comparison pass.
func (p *PollingWatcher) cycle(dir string) {
	listing, err := listFiles(dir, p.ext)
	if err != nil {
		select {
		case p.errors <- fmt.Errorf("listing corpus directory: %w", err):
		default:
		}
		return
	}

	for path, modTime := range listing {
		prev, seen := p.state[path]
		switch {
		case !seen:
			p.emit(Event{Path: path, Kind: KindCreate})
		case modTime.After(prev):
			p.emit(Event{Path: path, Kind: KindModify})
		}
	}
	p.state = listing
}

func (p *PollingWatcher) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.stopCh:
	}
}

// listFiles returns the (path, mod time) pairs of regular files with the
// given extension directly under dir. Entries that fail to stat are skipped.
func listFiles(dir, ext string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	listing := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		listing[filepath.Join(dir, entry.Name())] = info.ModTime()
	}
	return listing, nil
}
