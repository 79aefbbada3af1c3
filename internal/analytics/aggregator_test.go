package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/kafka"
)

func handle(t *testing.T, agg *Aggregator, typ EventType, event any) {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, agg.Handle(context.Background(), []byte(typ), value))
}

func TestAggregatorCountsEvents(t *testing.T) {
	agg := NewAggregator()

	handle(t, agg, EventSearch, NewSearchEvent("r1", "kanker", []string{"kanker"}, 1, 1, 4*time.Millisecond, false))
	handle(t, agg, EventSearch, NewSearchEvent("r2", "kanker", []string{"kanker"}, 1, 1, 2*time.Millisecond, true))
	handle(t, agg, EventSearch, NewSearchEvent("r3", "gunung", []string{"gunung"}, 0, 0, 6*time.Millisecond, false))
	handle(t, agg, EventSuggest, NewSuggestEvent("r4", "ka", 1, time.Millisecond))
	handle(t, agg, EventDocumentAdded, NewCatalogEvent("r5", EventDocumentAdded, 4, "Alam", 1))
	handle(t, agg, EventDocumentRemoved, NewCatalogEvent("r6", EventDocumentRemoved, 4, "", 1))

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalSuggestions)
	assert.Equal(t, int64(1), stats.DocumentsAdded)
	assert.Equal(t, int64(1), stats.DocumentsRemoved)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 4.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(4), stats.P50LatencyMs)
	assert.Equal(t, int64(6), stats.P99LatencyMs)

	assert.Equal(t, []QueryCount{{"kanker", 2}, {"gunung", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"gunung", 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []EventCount{
		{"search:query", 3},
		{"catalog:add", 1},
		{"catalog:remove", 1},
		{"search:suggest", 1},
	}, stats.TopEvents)
}

func TestAggregatorSkipsBadEvents(t *testing.T) {
	agg := NewAggregator()
	assert.NoError(t, agg.Handle(context.Background(), nil, []byte("not json")))
	assert.NoError(t, agg.Handle(context.Background(), nil, []byte(`{"type":"mystery"}`)))
	assert.NoError(t, agg.Handle(context.Background(), nil, []byte(`{"type":"search","total_hits":"many"}`)))

	stats := agg.Stats()
	assert.Zero(t, stats.TotalSearches)
	assert.Empty(t, stats.TopEvents)
}

func TestAggregatorEmptyStats(t *testing.T) {
	stats := NewAggregator().Stats()
	assert.Zero(t, stats.AvgLatencyMs)
	assert.Zero(t, stats.P95LatencyMs)
	assert.NotNil(t, stats.TopQueries)
	assert.NotNil(t, stats.TopEvents)
}

func TestAggregatorRestore(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches:    10,
		TotalSuggestions: 4,
		DocumentsAdded:   2,
		CacheHits:        6,
		ZeroResultCount:  1,
		TopQueries:       []QueryCount{{"planet", 9}},
		TopEvents:        []EventCount{{"search:query", 10}},
	})
	handle(t, agg, EventSearch, NewSearchEvent("", "planet", []string{"planet"}, 1, 1, time.Millisecond, true))

	stats := agg.Stats()
	assert.Equal(t, int64(11), stats.TotalSearches)
	assert.Equal(t, int64(4), stats.TotalSuggestions)
	assert.Equal(t, int64(7), stats.CacheHits)
	assert.Equal(t, []QueryCount{{"planet", 10}}, stats.TopQueries)
	assert.Equal(t, []EventCount{{"search:query", 11}}, stats.TopEvents)
}

func TestAggregatorQueriesPerMinute(t *testing.T) {
	agg := NewAggregator()
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }
	for i := 0; i < 6; i++ {
		handle(t, agg, EventSearch, NewSearchEvent("", "es", []string{"es"}, 1, 1, 0, false))
	}
	assert.InDelta(t, 3.0, agg.Stats().QueriesPerMinute, 0.001)
}

func TestQueriesPerMinuteIgnoresRestoredTotals(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{TotalSearches: 100})
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }
	for i := 0; i < 6; i++ {
		handle(t, agg, EventSearch, NewSearchEvent("", "es", []string{"es"}, 1, 1, 0, false))
	}

	stats := agg.Stats()
	assert.Equal(t, int64(106), stats.TotalSearches)
	assert.InDelta(t, 3.0, stats.QueriesPerMinute, 0.001)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+5; i++ {
		handle(t, agg, EventSearch, NewSearchEvent("", "es", nil, 1, 1, 0, false))
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	assert.Len(t, agg.latencies, latencyWindow)
	assert.Equal(t, 5, agg.latencyNext)
}

func TestRankBreaksTiesByName(t *testing.T) {
	got := topQueries(map[string]int64{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	assert.Equal(t, []QueryCount{{"c", 5}, {"a", 2}, {"b", 2}}, got)
}

func TestLocalPublisher(t *testing.T) {
	agg := NewAggregator()
	pub := LocalPublisher{Aggregator: agg}
	err := pub.PublishBatch(context.Background(), []kafka.Event{
		{Key: string(EventSuggest), Value: NewSuggestEvent("", "pl", 1, 0)},
		{Key: string(EventSuggest), Value: NewSuggestEvent("", "te", 1, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.Stats().TotalSuggestions)
}

func TestLocalPublisherMarshalError(t *testing.T) {
	pub := LocalPublisher{Aggregator: NewAggregator()}
	err := pub.PublishBatch(context.Background(), []kafka.Event{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}

func TestNewCatalogEventAction(t *testing.T) {
	added := NewCatalogEvent("", EventDocumentAdded, 1, "Medis", 1)
	removed := NewCatalogEvent("", EventDocumentRemoved, 1, "", 2)
	assert.Equal(t, "catalog:add", added.Key())
	assert.Equal(t, "catalog:remove", removed.Key())
	assert.Equal(t, 2, removed.Affected)
	assert.False(t, added.Timestamp.IsZero())
}
