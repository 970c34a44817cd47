// Package index implements a thread-safe in-memory inverted index mapping
// normalized terms to posting lists, plus a document store for retrieval
// by id.
package index

import (
	"sort"
	"sync"
)

// sequence hands out strictly increasing document IDs starting at zero.
// A mutex-guarded counter rather than a raw atomic keeps the invariant
// explicit: no two callers ever observe the same value.
type sequence struct {
	mu   sync.Mutex
	next uint64
}

func (s *sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// Index is safe for concurrent use: searches and document lookups may
// proceed in parallel, while a writer holds each of the two locks
// exclusively only for the duration of its own mutation. The term lock and
// the document lock are never held at the same time, so no lock ordering
// deadlock is possible.
type Index struct {
	mu    sync.RWMutex
	terms map[string]PostingList

	docMu sync.RWMutex
	docs  map[uint64]Document

	ids sequence
}

func New() *Index {
	return &Index{
		terms: make(map[string]PostingList),
		docs:  make(map[uint64]Document),
	}
}

// AddDocument tokenizes content, records one posting per distinct term with
// the accumulated token positions, stores the document, and returns its id.
//
// The index is append-only: re-indexing a changed file goes through
// AddDocument again, so the new content gets a fresh id and the previous
// id's postings remain searchable.
func (ix *Index) AddDocument(content, name string) uint64 {
	id := ix.ids.Next()

	byTerm := make(map[string]*Posting)
	for pos, term := range Tokenize(content) {
		p, ok := byTerm[term]
		if !ok {
			p = &Posting{DocID: id}
			byTerm[term] = p
		}
		p.Positions = append(p.Positions, pos)
	}

	ix.mu.Lock()
	for term, posting := range byTerm {
		ix.terms[term] = append(ix.terms[term], *posting)
	}
	ix.mu.Unlock()

	ix.docMu.Lock()
	ix.docs[id] = Document{ID: id, Name: name, Content: content}
	ix.docMu.Unlock()

	return id
}

// Search tokenizes the query and intersects the per-term document sets
// (AND semantics). A query with no terms, or containing any term absent
// from the index, yields no results. Each surviving document carries one
// matched posting per query term. Results are sorted by ascending doc ID.
func (ix *Index) Search(query string) []Result {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matched := make(map[uint64]PostingList)
	for i, term := range terms {
		postings, ok := ix.terms[term]
		if !ok {
			return nil
		}
		if i == 0 {
			for _, p := range postings {
				matched[p.DocID] = PostingList{p}
			}
			continue
		}
		docSet := make(map[uint64]Posting, len(postings))
		for _, p := range postings {
			docSet[p.DocID] = p
		}
		for docID := range matched {
			p, ok := docSet[docID]
			if !ok {
				delete(matched, docID)
				continue
			}
			matched[docID] = append(matched[docID], p)
		}
		if len(matched) == 0 {
			return nil
		}
	}

	results := make([]Result, 0, len(matched))
	for docID, postings := range matched {
		results = append(results, Result{DocID: docID, Postings: postings})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DocID < results[j].DocID
	})
	return results
}

// GetDocument returns the document stored under id. The second return is
// false when the id was never assigned.
func (ix *Index) GetDocument(id uint64) (Document, bool) {
	ix.docMu.RLock()
	defer ix.docMu.RUnlock()
	doc, ok := ix.docs[id]
	return doc, ok
}

// DocumentCount reports the number of stored documents, consistent with the
// latest completed AddDocument at call time.
func (ix *Index) DocumentCount() int {
	ix.docMu.RLock()
	defer ix.docMu.RUnlock()
	return len(ix.docs)
}

// TermCount reports the number of unique terms in the index.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.terms)
}
