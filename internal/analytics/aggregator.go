package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/kafka"
)

// latencyWindow bounds the number of latency samples kept for percentiles.
const latencyWindow = 10000

const topListSize = 10

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalSuggestions  int64        `json:"total_suggestions"`
	DocumentsAdded    int64        `json:"documents_added"`
	DocumentsRemoved  int64        `json:"documents_removed"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopEvents         []EventCount `json:"top_events"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type EventCount struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}

// Aggregator folds decoded events into running totals. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	sessionSearches   int64
	totalSuggestions  int64
	documentsAdded    int64
	documentsRemoved  int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	eventCounts       map[string]int64
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		eventCounts:       make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Handle decodes one raw event and records it. It has the kafka.MessageHandler
// signature so it can sit directly behind a consumer. Undecodable or unknown
// events are logged and skipped so they never block the partition.
func (a *Aggregator) Handle(ctx context.Context, key []byte, value []byte) error {
	env, err := kafka.DecodeJSON[Envelope](value)
	if err != nil {
		a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		return nil
	}
	switch env.Type {
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			a.logger.Error("failed to decode search event", "error", err)
			return nil
		}
		a.recordSearch(event)
	case EventSuggest:
		a.recordEnvelope(env, func() { a.totalSuggestions++ })
	case EventDocumentAdded:
		a.recordEnvelope(env, func() { a.documentsAdded++ })
	case EventDocumentRemoved:
		a.recordEnvelope(env, func() { a.documentsRemoved++ })
	default:
		a.logger.Warn("unknown analytics event type", "type", env.Type)
	}
	return nil
}

func (a *Aggregator) recordEnvelope(env Envelope, bump func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bump()
	a.eventCounts[env.Key()]++
}

func (a *Aggregator) recordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	a.sessionSearches++
	a.eventCounts[event.Key()]++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % latencyWindow
	}
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
}

// Restore seeds the running totals from a persisted snapshot so counters
// survive restarts. Percentiles and the per-minute rate start fresh.
func (a *Aggregator) Restore(prev AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += prev.TotalSearches
	a.totalSuggestions += prev.TotalSuggestions
	a.documentsAdded += prev.DocumentsAdded
	a.documentsRemoved += prev.DocumentsRemoved
	a.cacheHits += prev.CacheHits
	a.cacheMisses += prev.CacheMisses
	a.zeroResults += prev.ZeroResultCount
	for _, q := range prev.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range prev.ZeroResultQueries {
		a.zeroResultQueries[q.Query] += q.Count
	}
	for _, e := range prev.TopEvents {
		a.eventCounts[e.Event] += e.Count
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		TotalSuggestions: a.totalSuggestions,
		DocumentsAdded:   a.documentsAdded,
		DocumentsRemoved: a.documentsRemoved,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topQueries(a.queryCounts, topListSize)
	stats.ZeroResultQueries = topQueries(a.zeroResultQueries, topListSize)
	stats.TopEvents = topEvents(a.eventCounts, topListSize)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.sessionSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type counted struct {
	name  string
	count int64
}

// rank orders by count descending, then name ascending, and keeps n.
func rank(counts map[string]int64, n int) []counted {
	out := make([]counted, 0, len(counts))
	for name, count := range counts {
		out = append(out, counted{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topQueries(counts map[string]int64, n int) []QueryCount {
	ranked := rank(counts, n)
	result := make([]QueryCount, len(ranked))
	for i, c := range ranked {
		result[i] = QueryCount{Query: c.name, Count: c.count}
	}
	return result
}

func topEvents(counts map[string]int64, n int) []EventCount {
	ranked := rank(counts, n)
	result := make([]EventCount, len(ranked))
	for i, c := range ranked {
		result[i] = EventCount{Event: c.name, Count: c.count}
	}
	return result
}

// LocalPublisher feeds events straight into an Aggregator, for deployments
// without a broker.
type LocalPublisher struct {
	Aggregator *Aggregator
}

func (p LocalPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return fmt.Errorf("marshaling %s event: %w", event.Key, err)
		}
		if err := p.Aggregator.Handle(ctx, []byte(event.Key), value); err != nil {
			return err
		}
	}
	return nil
}
