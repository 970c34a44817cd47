package pool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/corpussearch/searchd/pkg/errors"
)

// TestJoinWithNoJobs verifies Join returns immediately when nothing is
// outstanding.
func TestJoinWithNoJobs(t *testing.T) {
	p := New(2)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		p.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join blocked with zero outstanding jobs")
	}
}

// TestJoinWaitsForAllJobs verifies Join returns only after every submitted
// job has executed, observed through a shared counter.
func TestJoinWaitsForAllJobs(t *testing.T) {
	const jobs = 100
	p := New(4)
	defer p.Close()

	var counter atomic.Int64
	for i := 0; i < jobs; i++ {
		if err := p.Submit(func() { counter.Add(1) }); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	p.Join()

	if got := counter.Load(); got != jobs {
		t.Errorf("counter = %d after Join, want %d", got, jobs)
	}
}

func TestJoinIsReusable(t *testing.T) {
	p := New(2)
	defer p.Close()

	var counter atomic.Int64
	for round := 0; round < 3; round++ {
		for i := 0; i < 10; i++ {
			p.Submit(func() { counter.Add(1) })
		}
		p.Join()
		want := int64((round + 1) * 10)
		if got := counter.Load(); got != want {
			t.Fatalf("round %d: counter = %d after Join, want %d", round, got, want)
		}
	}
}

// TestCloseDrainsQueue verifies no job enqueued before Close is dropped,
// even with a single slow worker.
func TestCloseDrainsQueue(t *testing.T) {
	const jobs = 50
	p := New(1)

	var counter atomic.Int64
	for i := 0; i < jobs; i++ {
		if err := p.Submit(func() {
			time.Sleep(time.Millisecond)
			counter.Add(1)
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	p.Close()

	if got := counter.Load(); got != jobs {
		t.Errorf("counter = %d after Close, want %d: enqueued jobs were dropped", got, jobs)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()

	err := p.Submit(func() { t.Error("job ran after Close") })
	if !errors.Is(err, pkgerrors.ErrPoolClosed) {
		t.Errorf("Submit after Close returned %v, want ErrPoolClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(2)
	p.Close()
	p.Close()
}

// TestPanickingJobDoesNotKillWorker verifies a panicking job is contained:
// the worker survives and later jobs still run.
func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	p := New(1)
	defer p.Close()

	p.Submit(func() { panic("job failure") })

	ran := make(chan struct{})
	p.Submit(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
	p.Join()
}

func TestSubmitDoesNotBlock(t *testing.T) {
	p := New(1)
	defer p.Close()

	blocker := make(chan struct{})
	p.Submit(func() { <-blocker })

	// With the only worker occupied, submissions must still return
	// promptly; the queue is unbounded.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			p.Submit(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while the worker was busy")
	}
	close(blocker)
}
