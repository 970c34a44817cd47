// Package watcher detects new and modified corpus files and publishes them
// as events. Two backends implement the same interface: a fixed-interval
// polling scanner and an fsnotify-based listener, so the detection strategy
// can change without touching the index or the server.
package watcher

import "context"

// Kind classifies a corpus change.
type Kind int

const (
	KindCreate Kind = iota
	KindModify
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindModify:
		return "modify"
	default:
		return "unknown"
	}
}

// Event is one observed corpus change.
type Event struct {
	Path string
	Kind Kind
}

// Watcher emits corpus change events until stopped. Start blocks until the
// context is cancelled or Stop is called, and closes the Events channel on
// return. Deletions are tracked internally but not surfaced.
type Watcher interface {
	Start(ctx context.Context, dir string) error
	Events() <-chan Event
	Errors() <-chan error
	Stop() error
}
