// Package pool provides a fixed-size worker pool draining a single shared
// unbounded FIFO queue. The pool knows nothing about the jobs it runs.
package pool

import (
	"container/list"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/corpussearch/searchd/pkg/errors"
	"github.com/corpussearch/searchd/pkg/logger"
)

// Job is a unit of deferred, side-effecting work with no return value.
// Retries, if needed, are the job's responsibility.
type Job func()

// Pool runs jobs on a fixed set of worker goroutines. Submit never blocks
// the caller; Join waits until every submitted job has completed; Close
// stops intake, drains the queue, and waits for the workers to exit.
type Pool struct {
	mu          sync.Mutex
	hasWork     *sync.Cond // signalled on submit and on close
	idle        *sync.Cond // broadcast when outstanding returns to zero
	queue       *list.List
	outstanding int
	closed      bool
	workers     sync.WaitGroup
	logger      *slog.Logger
}

// New starts a pool with the given number of workers (at least one).
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		queue:  list.New(),
		logger: logger.WithComponent("worker-pool"),
	}
	p.hasWork = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// Submit enqueues a job. It never blocks waiting for a worker. After Close
// it returns ErrPoolClosed and the job is not enqueued.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.ErrPoolClosed
	}
	p.queue.PushBack(job)
	p.outstanding++
	p.mu.Unlock()
	p.hasWork.Signal()
	return nil
}

// Join blocks until every job submitted so far has completed. It returns
// immediately when nothing is outstanding.
func (p *Pool) Join() {
	p.mu.Lock()
	for p.outstanding > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// Close stops accepting jobs, lets the workers drain everything already
// enqueued, and returns once every worker has exited. No enqueued job is
// dropped. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if !alreadyClosed {
		p.hasWork.Broadcast()
	}
	p.workers.Wait()
}

// QueueDepth reports the number of jobs waiting for a worker.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.hasWork.Wait()
		}
		front := p.queue.Front()
		if front == nil {
			// Closed and drained.
			p.mu.Unlock()
			return
		}
		p.queue.Remove(front)
		p.mu.Unlock()

		p.run(id, front.Value.(Job))

		p.mu.Lock()
		p.outstanding--
		if p.outstanding == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// run executes one job, recovering a panic so the worker and the queue
// survive a failing job.
func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	job()
}
