// Package analytics collects search, suggestion and catalog events, ships
// them over the event bus and aggregates them into service-level stats.
package analytics

import "time"

type EventType string

const (
	EventSearch          EventType = "search"
	EventSuggest         EventType = "suggest"
	EventDocumentAdded   EventType = "document_added"
	EventDocumentRemoved EventType = "document_removed"
)

// Envelope carries the fields common to every event. Category and Action
// feed the top-events ranking.
type Envelope struct {
	Type      EventType `json:"type"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type SearchEvent struct {
	Envelope
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	TotalHits int      `json:"total_hits"`
	Returned  int      `json:"returned"`
	LatencyMs int64    `json:"latency_ms"`
	CacheHit  bool     `json:"cache_hit"`
}

type SuggestEvent struct {
	Envelope
	Prefix    string `json:"prefix"`
	Returned  int    `json:"returned"`
	LatencyMs int64  `json:"latency_ms"`
}

type CatalogEvent struct {
	Envelope
	DocumentID  int64  `json:"document_id"`
	DocCategory string `json:"doc_category,omitempty"`
	Affected    int    `json:"affected"`
}

// NewSearchEvent stamps a search event.
func NewSearchEvent(requestID, query string, terms []string, totalHits, returned int, latency time.Duration, cacheHit bool) SearchEvent {
	return SearchEvent{
		Envelope:  newEnvelope(EventSearch, "search", "query", requestID),
		Query:     query,
		Terms:     terms,
		TotalHits: totalHits,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
	}
}

func NewSuggestEvent(requestID, prefix string, returned int, latency time.Duration) SuggestEvent {
	return SuggestEvent{
		Envelope:  newEnvelope(EventSuggest, "search", "suggest", requestID),
		Prefix:    prefix,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
	}
}

// NewCatalogEvent builds a document_added or document_removed event.
func NewCatalogEvent(requestID string, typ EventType, id int64, category string, affected int) CatalogEvent {
	action := "add"
	if typ == EventDocumentRemoved {
		action = "remove"
	}
	return CatalogEvent{
		Envelope:    newEnvelope(typ, "catalog", action, requestID),
		DocumentID:  id,
		DocCategory: category,
		Affected:    affected,
	}
}

func newEnvelope(typ EventType, category, action, requestID string) Envelope {
	return Envelope{
		Type:      typ,
		Category:  category,
		Action:    action,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// Key is the top-events bucket, "category:action".
func (e Envelope) Key() string {
	return e.Category + ":" + e.Action
}
