package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/corpussearch/searchd/pkg/logger"
)

// NotifyWatcher emits corpus change events from OS-level file notifications
// instead of polling. It implements the same Watcher contract, so the server
// is oblivious to which backend is configured.
type NotifyWatcher struct {
	ext      string
	events   chan Event
	errors   chan error
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewNotify creates an fsnotify-backed watcher for files with the given
// extension.
func NewNotify(ext string) *NotifyWatcher {
	return &NotifyWatcher{
		ext:    ext,
		events: make(chan Event, 64),
		errors: make(chan error, 8),
		stopCh: make(chan struct{}),
		logger: logger.WithComponent("corpus-watcher"),
	}
}

// Start watches dir until the context is cancelled or Stop is called.
func (n *NotifyWatcher) Start(ctx context.Context, dir string) error {
	defer close(n.events)
	defer close(n.errors)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	n.logger.Info("watching corpus directory", "dir", dir, "backend", "fsnotify")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != n.ext {
				continue
			}
			switch {
			case ev.Op&fsnotify.Create != 0:
				n.emit(Event{Path: ev.Name, Kind: KindCreate})
			case ev.Op&fsnotify.Write != 0:
				n.emit(Event{Path: ev.Name, Kind: KindModify})
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case n.errors <- err:
			default:
			}
		}
	}
}

func (n *NotifyWatcher) emit(ev Event) {
	select {
	case n.events <- ev:
	case <-n.stopCh:
	}
}

// Stop signals the event loop to exit.
func (n *NotifyWatcher) Stop() error {
	n.stopOnce.Do(func() {
		close(n.stopCh)
	})
	return nil
}

// Events returns the channel of corpus change events.
func (n *NotifyWatcher) Events() <-chan Event {
	return n.events
}

// Errors returns the channel of backend errors.
func (n *NotifyWatcher) Errors() <-chan error {
	return n.errors
}
