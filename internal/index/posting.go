package index

// Document is one indexed file. Immutable once stored; ID is assigned by
// the index at insertion time and never reused.
type Document struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Posting links a term to one document and the token positions (0-based,
// in tokenization order) at which the term occurs. Within a term's posting
// list doc IDs are unique.
type Posting struct {
	DocID     uint64 `json:"doc_id"`
	Positions []int  `json:"positions"`
}

type PostingList []Posting

// Result is one matching document together with the posting matched for
// each query term, in query-term order.
type Result struct {
	DocID    uint64      `json:"doc_id"`
	Postings PostingList `json:"postings"`
}
