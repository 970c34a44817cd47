package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corpussearch/searchd/internal/analytics"
	"github.com/corpussearch/searchd/internal/index"
	"github.com/corpussearch/searchd/internal/pool"
	"github.com/corpussearch/searchd/internal/search"
	"github.com/corpussearch/searchd/internal/server"
	"github.com/corpussearch/searchd/internal/watcher"
	"github.com/corpussearch/searchd/pkg/config"
	"github.com/corpussearch/searchd/pkg/health"
	"github.com/corpussearch/searchd/pkg/kafka"
	"github.com/corpussearch/searchd/pkg/logger"
	"github.com/corpussearch/searchd/pkg/metrics"
	"github.com/corpussearch/searchd/pkg/postgres"
	pkgredis "github.com/corpussearch/searchd/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	ip := flag.String("ip", "", "listen IP (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	corpusDir := flag.String("corpus-dir", "", "corpus directory (overrides config)")
	workers := flag.Int("workers", 0, "worker pool size (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *ip != "" {
		cfg.Server.IP = *ip
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}
	if *workers != 0 {
		cfg.Pool.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	info, err := os.Stat(cfg.Corpus.Dir)
	if err != nil || !info.IsDir() {
		slog.Error("corpus directory is not usable", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}
	if cfg.Pool.Workers < 2 {
		slog.Warn("watcher occupies one worker; connections need another",
			"workers", cfg.Pool.Workers,
		)
	}
	slog.Info("starting searchd",
		"addr", cfg.Server.Addr(),
		"corpus_dir", cfg.Corpus.Dir,
		"workers", cfg.Pool.Workers,
		"watcher", cfg.Corpus.Watcher,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := index.New()

	var redisClient *pkgredis.Client
	var queryCache *search.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.UseRedis {
			redisClient, err = pkgredis.NewClient(cfg.Redis)
			if err != nil {
				slog.Warn("redis unavailable, using in-process cache only", "error", err)
				redisClient = nil
			} else {
				defer redisClient.Close()
			}
		}
		queryCache, err = search.NewCache(cfg.Cache.Size, redisClient, cfg.Cache.TTL)
		if err != nil {
			slog.Error("failed to create query cache", "error", err)
			os.Exit(1)
		}
	}
	searcher := search.New(ix, queryCache)

	var collector *analytics.Collector
	aggregator := analytics.NewAggregator()
	if cfg.Analytics.Enabled {
		var producer *kafka.Producer
		if cfg.Analytics.Kafka {
			producer = kafka.NewProducer(cfg.Kafka)
			defer producer.Close()
			slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topic)
		}
		collector = analytics.NewCollector(aggregator, producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()

		if cfg.Analytics.Postgres {
			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				slog.Warn("postgres unavailable, stats snapshots disabled", "error", err)
			} else {
				defer db.Close()
				analytics.NewStore(db).StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			}
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()

		checker := health.NewChecker()
		checker.Register("index", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d documents, %d terms", ix.DocumentCount(), ix.TermCount()),
			}
		})
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if redisClient == nil {
				return health.ComponentHealth{Status: health.StatusUp, Message: "not configured"}
			}
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})

		shutdown := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	var w watcher.Watcher
	switch cfg.Corpus.Watcher {
	case "fsnotify":
		w = watcher.NewNotify(cfg.Corpus.Extension)
	default:
		w = watcher.NewPolling(cfg.Corpus.PollInterval, cfg.Corpus.Extension)
	}

	p := pool.New(cfg.Pool.Workers)
	dispatcher := server.NewDispatcher(ix, searcher, p, collector, m)
	srv := server.New(server.Options{
		Addr:      cfg.Server.Addr(),
		CorpusDir: cfg.Corpus.Dir,
		Extension: cfg.Corpus.Extension,
		Metrics:   m,
		Collector: collector,
	}, ix, p, w, dispatcher)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		srv.Close()
		os.Exit(1)
	}

	slog.Info("shutdown signal received, draining")
	srv.Close()
	slog.Info("searchd stopped")
}
