package index

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/tokenizer"
)

// MemoryIndex is an immutable inverted index from token to the positions of
// the documents containing it. A new MemoryIndex is built for every change
// of the collection; callers swap the pointer instead of patching in place.
type MemoryIndex struct {
	postings map[string]PostingList
	terms    []string
	docCount int
	entries  int
}

// Build indexes every entry of src. Positions within each posting list
// follow collection order.
func Build(src Source) *MemoryIndex {
	m := &MemoryIndex{
		postings: make(map[string]PostingList),
		docCount: src.Len(),
	}
	for pos := 0; pos < src.Len(); pos++ {
		for _, term := range tokenizer.Tokenize(src.Text(pos)) {
			m.postings[term] = append(m.postings[term], pos)
			m.entries++
		}
	}
	m.terms = make([]string, 0, len(m.postings))
	for term := range m.postings {
		m.terms = append(m.terms, term)
	}
	sort.Strings(m.terms)
	return m
}

// Empty returns an index with no terms.
func Empty() *MemoryIndex {
	return &MemoryIndex{postings: make(map[string]PostingList)}
}

// Search returns the posting list for term, or nil when the term is not
// indexed. The returned slice must not be modified.
func (m *MemoryIndex) Search(term string) PostingList {
	return m.postings[term]
}

// WithPrefix returns up to limit distinct terms starting with prefix in
// lexicographic order. A non-positive limit returns every match.
func (m *MemoryIndex) WithPrefix(prefix string, limit int) []string {
	start := sort.SearchStrings(m.terms, prefix)
	result := make([]string, 0)
	for i := start; i < len(m.terms); i++ {
		if !strings.HasPrefix(m.terms[i], prefix) {
			break
		}
		result = append(result, m.terms[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// Terms returns the number of distinct terms.
func (m *MemoryIndex) Terms() int {
	return len(m.terms)
}

// DocCount returns the number of documents the index was built from.
func (m *MemoryIndex) DocCount() int {
	return m.docCount
}

// Size returns the total number of posting entries.
func (m *MemoryIndex) Size() int {
	return m.entries
}
