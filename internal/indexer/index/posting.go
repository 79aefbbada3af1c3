package index

// PostingList holds the collection positions of every occurrence of a term.
// A position appears once per occurrence, so a document mentioning a term
// three times contributes three entries.
type PostingList []int

// Source is anything the index can be built from: an ordered collection
// whose i-th entry yields the text indexed at position i.
type Source interface {
	Len() int
	Text(pos int) string
}
