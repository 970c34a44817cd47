package analytics

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAggregatorTotals(t *testing.T) {
	agg := NewAggregator()

	agg.Apply(NewSearchEvent("rust", 2, time.Millisecond))
	agg.Apply(NewSearchEvent("rust", 2, time.Millisecond))
	agg.Apply(NewSearchEvent("missing", 0, time.Millisecond))
	agg.Apply(NewIndexedEvent(0, "a.txt"))
	agg.Apply(NewIndexedEvent(1, "b.txt"))
	agg.Apply(NewFetchEvent(0))

	stats := agg.Stats()
	if stats.TotalSearches != 3 {
		t.Errorf("TotalSearches = %d, want 3", stats.TotalSearches)
	}
	if stats.ZeroResultSearches != 1 {
		t.Errorf("ZeroResultSearches = %d, want 1", stats.ZeroResultSearches)
	}
	if stats.TotalHits != 4 {
		t.Errorf("TotalHits = %d, want 4", stats.TotalHits)
	}
	if stats.DocumentsIndexed != 2 {
		t.Errorf("DocumentsIndexed = %d, want 2", stats.DocumentsIndexed)
	}
	if stats.DocumentFetches != 1 {
		t.Errorf("DocumentFetches = %d, want 1", stats.DocumentFetches)
	}
	if stats.QueryCounts["rust"] != 2 {
		t.Errorf("QueryCounts[rust] = %d, want 2", stats.QueryCounts["rust"])
	}
}

// TestStatsReturnsACopy verifies callers cannot mutate the aggregator's
// internal map through a returned snapshot.
func TestStatsReturnsACopy(t *testing.T) {
	agg := NewAggregator()
	agg.Apply(NewSearchEvent("rust", 1, 0))

	snapshot := agg.Stats()
	snapshot.QueryCounts["rust"] = 99

	if got := agg.Stats().QueryCounts["rust"]; got != 1 {
		t.Errorf("QueryCounts[rust] = %d after external mutation, want 1", got)
	}
}

func TestAggregatorConcurrentApply(t *testing.T) {
	agg := NewAggregator()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Apply(NewSearchEvent("shared", 1, 0))
			}
		}()
	}
	wg.Wait()

	if got := agg.Stats().TotalSearches; got != 800 {
		t.Errorf("TotalSearches = %d, want 800", got)
	}
}

// TestCollectorWithoutProducer verifies a collector with no Kafka producer
// still feeds the aggregator and shuts down cleanly.
func TestCollectorWithoutProducer(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(agg, nil, 10, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(NewSearchEvent("rust", 1, 0))
	c.Track(NewIndexedEvent(0, "a.txt"))

	if got := c.Stats().TotalSearches; got != 1 {
		t.Errorf("TotalSearches = %d, want 1", got)
	}

	cancel()
	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not shut down after context cancellation")
	}
}
