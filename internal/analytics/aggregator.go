package analytics

import "sync"

// maxTrackedQueries bounds the per-query counter map so a hostile client
// cannot grow it without limit.
const maxTrackedQueries = 1000

// Stats is the aggregate view over all tracked events.
type Stats struct {
	TotalSearches      int64            `json:"total_searches"`
	ZeroResultSearches int64            `json:"zero_result_searches"`
	TotalHits          int64            `json:"total_hits"`
	DocumentsIndexed   int64            `json:"documents_indexed"`
	DocumentFetches    int64            `json:"document_fetches"`
	QueryCounts        map[string]int64 `json:"query_counts"`
}

// Aggregator keeps running totals of tracked events in memory.
type Aggregator struct {
	mu    sync.Mutex
	stats Stats
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		stats: Stats{QueryCounts: make(map[string]int64)},
	}
}

// Apply folds one event into the running totals.
func (a *Aggregator) Apply(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Type {
	case EventSearch:
		a.stats.TotalSearches++
		a.stats.TotalHits += int64(ev.Hits)
		if ev.Hits == 0 {
			a.stats.ZeroResultSearches++
		}
		if _, tracked := a.stats.QueryCounts[ev.Query]; tracked || len(a.stats.QueryCounts) < maxTrackedQueries {
			a.stats.QueryCounts[ev.Query]++
		}
	case EventDocumentIndexed:
		a.stats.DocumentsIndexed++
	case EventDocumentFetch:
		a.stats.DocumentFetches++
	}
}

// Stats returns a copy of the current totals.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.stats
	out.QueryCounts = make(map[string]int64, len(a.stats.QueryCounts))
	for q, n := range a.stats.QueryCounts {
		out.QueryCounts[q] = n
	}
	return out
}
