// Package server wires the inverted index, the worker pool, and the corpus
// watcher together and serves the line-based search protocol over TCP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/corpussearch/searchd/internal/analytics"
	"github.com/corpussearch/searchd/internal/index"
	"github.com/corpussearch/searchd/internal/pool"
	"github.com/corpussearch/searchd/internal/watcher"
	"github.com/corpussearch/searchd/pkg/logger"
	"github.com/corpussearch/searchd/pkg/metrics"
)

// Options configures a Server.
type Options struct {
	Addr      string
	CorpusDir string
	Extension string
	Metrics   *metrics.Metrics     // may be nil
	Collector *analytics.Collector // may be nil
}

// Server owns one index, one worker pool, and one watcher. Startup order:
// index the existing corpus, join the pool so serving begins with a
// complete index, start the watcher as a background pool job, then accept
// connections, each handled as its own pool job.
//
// The watcher loop occupies one worker for the life of the server, so the
// pool should have at least two workers to also serve connections.
type Server struct {
	opts       Options
	ix         *index.Index
	pool       *pool.Pool
	watcher    watcher.Watcher
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	connIDs  atomic.Uint64
}

func New(opts Options, ix *index.Index, p *pool.Pool, w watcher.Watcher, d *Dispatcher) *Server {
	return &Server{
		opts:       opts,
		ix:         ix,
		pool:       p,
		watcher:    w,
		dispatcher: d,
		logger:     logger.WithComponent("server"),
	}
}

// Run indexes the corpus, starts the watcher, and serves until ctx is
// cancelled. It returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	if err := s.indexCorpus(); err != nil {
		return err
	}
	s.startWatcher(ctx)
	return s.serve(ctx)
}

// Addr reports the bound listen address, empty until Run has bound it.
// Useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the watcher and drains the pool. Call after Run returns.
func (s *Server) Close() {
	if err := s.watcher.Stop(); err != nil {
		s.logger.Error("stopping watcher", "error", err)
	}
	s.pool.Close()
}

// indexCorpus submits one indexing job per corpus file and waits for all of
// them before serving begins.
func (s *Server) indexCorpus() error {
	entries, err := os.ReadDir(s.opts.CorpusDir)
	if err != nil {
		return fmt.Errorf("scanning corpus directory: %w", err)
	}
	submitted := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != s.opts.Extension {
			continue
		}
		path := filepath.Join(s.opts.CorpusDir, entry.Name())
		if err := s.pool.Submit(func() { s.indexFile(path) }); err != nil {
			return fmt.Errorf("submitting indexing job: %w", err)
		}
		submitted++
	}
	s.pool.Join()
	s.logger.Info("initial indexing complete",
		"files", submitted,
		"documents", s.ix.DocumentCount(),
		"terms", s.ix.TermCount(),
	)
	return nil
}

// indexFile reads and indexes one file. A read failure is logged and the
// file skipped; it is retried only when the watcher observes a newer
// modification.
func (s *Server) indexFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("reading corpus file", "path", path, "error", err)
		return
	}
	id := s.ix.AddDocument(string(content), filepath.Base(path))
	s.logger.Info("indexed file", "path", path, "doc_id", id)

	if s.opts.Collector != nil {
		s.opts.Collector.Track(analytics.NewIndexedEvent(id, path))
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.DocsIndexedTotal.Inc()
		s.opts.Metrics.IndexDocuments.Set(float64(s.ix.DocumentCount()))
		s.opts.Metrics.IndexTerms.Set(float64(s.ix.TermCount()))
	}
}

// startWatcher runs the watch loop as a background pool job and consumes
// its events, turning each into a fire-and-forget indexing job.
func (s *Server) startWatcher(ctx context.Context) {
	if err := s.pool.Submit(func() {
		err := s.watcher.Start(ctx, s.opts.CorpusDir)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("watcher stopped", "error", err)
		}
	}); err != nil {
		s.logger.Error("starting watcher", "error", err)
		return
	}

	go func() {
		for err := range s.watcher.Errors() {
			s.logger.Error("watcher error", "error", err)
		}
	}()

	go func() {
		for ev := range s.watcher.Events() {
			s.logger.Info("corpus change detected", "path", ev.Path, "kind", ev.Kind.String())
			if s.opts.Metrics != nil {
				s.opts.Metrics.WatcherEventsTotal.WithLabelValues(ev.Kind.String()).Inc()
			}
			path := ev.Path
			if err := s.pool.Submit(func() { s.indexFile(path) }); err != nil {
				return
			}
		}
	}()
}

// serve accepts connections until ctx is cancelled; each connection becomes
// one pool job.
func (s *Server) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("accepting connections", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		connID := s.connIDs.Add(1)
		connCtx := logger.WithConnID(ctx, connID)
		if err := s.pool.Submit(func() { s.dispatcher.Handle(connCtx, conn) }); err != nil {
			conn.Close()
			return nil
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.PoolQueueDepth.Set(float64(s.pool.QueueDepth()))
		}
	}
}
