// Package indexer owns the portal's document collection and the inverted
// index built over it, and answers ranked keyword queries, category
// filters and autocomplete lookups.
package indexer

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/metrics"
)

const (
	// MinQueryLength is the shortest query, in characters, that is searched.
	MinQueryLength = 2
	// DefaultSuggestionLimit is used when Suggestions gets no positive limit.
	DefaultSuggestionLimit = 5
)

// Engine keeps the collection and its index consistent. Mutations hold the
// write lock for the whole append-and-rebuild, so readers only ever see a
// fully built index for the current collection.
type Engine struct {
	mu         sync.RWMutex
	docs       collection
	idx        *index.MemoryIndex
	generation uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics reports rebuild counts and index sizes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine copies docs into a new collection and builds its index. A nil
// or empty slice yields an empty, queryable engine.
func NewEngine(docs []catalog.Document, opts ...Option) *Engine {
	e := &Engine{
		docs:   make(collection, len(docs)),
		idx:    index.Empty(),
		logger: slog.Default().With("component", "search-engine"),
	}
	copy(e.docs, docs)
	for _, opt := range opts {
		opt(e)
	}
	e.BuildIndex()
	return e
}

// BuildIndex discards the index and rebuilds it from the current collection.
func (e *Engine) BuildIndex() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebuildLocked()
}

// Search returns up to limit documents matching any query token, ranked by
// relevance. Queries shorter than MinQueryLength characters return an empty
// slice. A non-positive limit means ranker.DefaultLimit.
func (e *Engine) Search(query string, limit int) []ranker.Result {
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []ranker.Result{}
	}
	terms := tokenizer.Tokenize(query)

	e.mu.RLock()
	defer e.mu.RUnlock()

	postingsPerTerm := make([]index.PostingList, 0, len(terms))
	for _, term := range terms {
		postingsPerTerm = append(postingsPerTerm, e.idx.Search(term))
	}
	ranked := ranker.Rank(postingsPerTerm, limit)
	results := make([]ranker.Result, 0, len(ranked))
	for _, sd := range ranked {
		results = append(results, ranker.Result{
			Document:  e.docs[sd.Position],
			Relevance: sd.Score,
		})
	}
	return results
}

// FilterByCategory returns, in collection order, every document whose
// category equals category ignoring case. Documents without a category
// never match.
func (e *Engine) FilterByCategory(category string) []catalog.Document {
	want := strings.ToLower(category)

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]catalog.Document, 0)
	for _, d := range e.docs {
		if d.Category == "" {
			continue
		}
		if strings.ToLower(d.Category) == want {
			result = append(result, d)
		}
	}
	return result
}

// Suggestions returns up to limit distinct indexed tokens starting with the
// lowercased prefix, sorted lexicographically. An empty prefix returns an
// empty slice. A non-positive limit means DefaultSuggestionLimit.
func (e *Engine) Suggestions(prefix string, limit int) []string {
	if prefix == "" {
		return []string{}
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	lower := strings.ToLower(prefix)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.WithPrefix(lower, limit)
}

// AddItem appends doc and rebuilds the index. Identifiers are not checked
// for uniqueness.
func (e *Engine) AddItem(doc catalog.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = append(e.docs, doc)
	e.rebuildLocked()
}

// RemoveItem drops every document whose ID equals id, rebuilds the index
// and returns how many documents were removed. Unknown ids are a no-op
// apart from the rebuild.
func (e *Engine) RemoveItem(id int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := make(collection, 0, len(e.docs))
	for _, d := range e.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	removed := len(e.docs) - len(kept)
	e.docs = kept
	e.rebuildLocked()
	return removed
}

// HighlightMatches wraps query tokens found in text. See highlight.Matches.
func (e *Engine) HighlightMatches(text, query string) string {
	return highlight.Matches(text, query)
}

// Documents returns a copy of the collection in order.
func (e *Engine) Documents() []catalog.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]catalog.Document, len(e.docs))
	copy(out, e.docs)
	return out
}

// Generation increases by one on every rebuild. Cached answers tagged with
// an older generation are stale.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Stats reports the current collection and index sizes.
func (e *Engine) Stats() (docs, terms, postings int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.DocCount(), e.idx.Terms(), e.idx.Size()
}

func (e *Engine) rebuildLocked() {
	start := time.Now()
	e.idx = index.Build(e.docs)
	e.generation++
	if e.metrics != nil {
		e.metrics.IndexRebuildsTotal.Inc()
		e.metrics.IndexedDocuments.Set(float64(e.idx.DocCount()))
		e.metrics.IndexTerms.Set(float64(e.idx.Terms()))
	}
	e.logger.Debug("index rebuilt",
		"docs", e.idx.DocCount(),
		"terms", e.idx.Terms(),
		"generation", e.generation,
		"duration", time.Since(start),
	)
}

// collection adapts the document slice to index.Source.
type collection []catalog.Document

func (c collection) Len() int { return len(c) }

func (c collection) Text(pos int) string { return c[pos].SearchableText() }
