// Package search runs queries against the inverted index and caches result
// payloads in an in-process LRU with an optional shared Redis tier.
package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/corpussearch/searchd/internal/index"
)

// Hit is one search match enriched with the document name.
type Hit struct {
	DocID    uint64            `json:"doc_id"`
	Name     string            `json:"name"`
	Postings index.PostingList `json:"postings"`
}

// Response is the payload returned for a search query.
type Response struct {
	Query     string `json:"query"`
	TotalHits int    `json:"total_hits"`
	Hits      []Hit  `json:"hits"`
}

// Searcher answers queries from the index, consulting the cache first when
// one is configured.
type Searcher struct {
	ix    *index.Index
	cache *Cache
}

// New creates a Searcher. cache may be nil to disable caching.
func New(ix *index.Index, cache *Cache) *Searcher {
	return &Searcher{ix: ix, cache: cache}
}

// Search runs the query and reports whether the response was served from
// cache. Cache keys are versioned by the index's document count, so results
// computed before an index change are never returned after it.
func (s *Searcher) Search(ctx context.Context, query string) (*Response, bool, error) {
	compute := func() (*Response, error) {
		return s.execute(query), nil
	}
	if s.cache == nil {
		resp, err := compute()
		return resp, false, err
	}
	return s.cache.GetOrCompute(ctx, s.cacheKey(query), compute)
}

func (s *Searcher) execute(query string) *Response {
	results := s.ix.Search(query)
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		var name string
		if doc, ok := s.ix.GetDocument(r.DocID); ok {
			name = doc.Name
		}
		hits = append(hits, Hit{DocID: r.DocID, Name: name, Postings: r.Postings})
	}
	return &Response{Query: query, TotalHits: len(hits), Hits: hits}
}

// cacheKey hashes the normalized query terms plus the current index version
// (document count). Term order is preserved because the per-term postings
// in the response follow query order.
func (s *Searcher) cacheKey(query string) string {
	terms := index.Tokenize(query)
	raw := fmt.Sprintf("%s|v=%d", strings.Join(terms, " "), s.ix.DocumentCount())
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("search:%x", sum[:16])
}

// CacheStats reports cache hit/miss counters, zeros when caching is off.
func (s *Searcher) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}
