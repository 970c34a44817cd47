package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corpussearch/searchd/pkg/kafka"
	"github.com/corpussearch/searchd/pkg/logger"
)

// Collector folds events into the in-memory aggregator and, when a Kafka
// producer is configured, buffers them for batch publishing. Flushes happen
// when the buffer reaches batchSize or after flushInterval, whichever comes
// first.
type Collector struct {
	aggregator    *Aggregator
	producer      *kafka.Producer
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector. producer may be nil, in which case
// events feed the aggregator only.
func NewCollector(aggregator *Aggregator, producer *kafka.Producer, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		aggregator:    aggregator,
		producer:      producer,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.WithComponent("analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled. With no producer configured there is nothing to flush and the
// loop only waits for cancellation.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				// Final flush with a short deadline.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
}

// Track records one event. It never blocks on publishing.
func (c *Collector) Track(ev Event) {
	c.aggregator.Apply(ev)
	if c.producer == nil {
		return
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: ev.Type, Value: ev})
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		go c.flush(context.Background())
	}
}

// Stats exposes the aggregator totals.
func (c *Collector) Stats() Stats {
	return c.aggregator.Stats()
}

// Close waits for the background flush loop to finish.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) flush(ctx context.Context) {
	if c.producer == nil {
		return
	}
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
	}
}
