package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testInterval = 10 * time.Millisecond

func startPolling(t *testing.T, dir string) (*PollingWatcher, context.CancelFunc) {
	t.Helper()
	w := NewPolling(testInterval, ".txt")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = w.Start(ctx, dir)
	}()
	// Give the baseline scan a few cycles to complete before the test
	// mutates the directory.
	time.Sleep(5 * testInterval)
	return w, cancel
}

func waitForEvent(t *testing.T, w *PollingWatcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatal("events channel closed before an event arrived")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a watcher event")
	}
	return Event{}
}

func TestPollingDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	w, cancel := startPolling(t, dir)
	defer cancel()

	path := filepath.Join(dir, "fresh.txt")
	if err := os.WriteFile(path, []byte("new content"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitForEvent(t, w)
	if ev.Kind != KindCreate {
		t.Errorf("event kind = %s, want create", ev.Kind)
	}
	if ev.Path != path {
		t.Errorf("event path = %s, want %s", ev.Path, path)
	}
}

func TestPollingDetectsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(path, []byte("before"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Age the file so the later touch is strictly newer.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}

	w, cancel := startPolling(t, dir)
	defer cancel()

	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}

	ev := waitForEvent(t, w)
	if ev.Kind != KindModify {
		t.Errorf("event kind = %s, want modify", ev.Kind)
	}
	if ev.Path != path {
		t.Errorf("event path = %s, want %s", ev.Path, path)
	}
}

// TestPollingBaselineEmitsNothing verifies files present before Start never
// produce events; they belong to the initial corpus, not to the watcher.
func TestPollingBaselineEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "already.txt"), []byte("here"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, cancel := startPolling(t, dir)
	defer cancel()

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event for baseline file: %+v", ev)
	case <-time.After(10 * testInterval):
	}
}

func TestPollingIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	w, cancel := startPolling(t, dir)
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("markdown"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event for non-corpus file: %+v", ev)
	case <-time.After(10 * testInterval):
	}
}

// TestStopTerminatesLoop verifies Stop ends Start and closes the events
// channel, which is the cancellation contract the server relies on.
func TestStopTerminatesLoop(t *testing.T) {
	dir := t.TempDir()
	w := NewPolling(testInterval, ".txt")

	done := make(chan error, 1)
	go func() {
		done <- w.Start(context.Background(), dir)
	}()
	time.Sleep(3 * testInterval)

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop returned %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if _, ok := <-w.Events(); ok {
		t.Error("events channel still open after Start returned")
	}
}

func TestContextCancelTerminatesLoop(t *testing.T) {
	dir := t.TempDir()
	w := NewPolling(testInterval, ".txt")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx, dir)
	}()
	time.Sleep(3 * testInterval)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
