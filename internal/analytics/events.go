// Package analytics collects query and indexing events, aggregates them
// in memory, and optionally publishes them to Kafka and snapshots the
// aggregate to PostgreSQL.
package analytics

import "time"

// Event types tracked across the server.
const (
	EventSearch          = "search"
	EventDocumentIndexed = "document_indexed"
	EventDocumentFetch   = "document_fetch"
)

// Event is a single tracked occurrence.
type Event struct {
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	Hits      int    `json:"hits,omitempty"`
	DocID     uint64 `json:"doc_id,omitempty"`
	Path      string `json:"path,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewSearchEvent records one executed query.
func NewSearchEvent(query string, hits int, latency time.Duration) Event {
	return Event{
		Type:      EventSearch,
		Query:     query,
		Hits:      hits,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().Unix(),
	}
}

// NewIndexedEvent records one indexed (or re-indexed) file.
func NewIndexedEvent(docID uint64, path string) Event {
	return Event{
		Type:      EventDocumentIndexed,
		DocID:     docID,
		Path:      path,
		Timestamp: time.Now().Unix(),
	}
}

// NewFetchEvent records one document lookup by id.
func NewFetchEvent(docID uint64) Event {
	return Event{
		Type:      EventDocumentFetch,
		DocID:     docID,
		Timestamp: time.Now().Unix(),
	}
}
