// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/portal-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/middleware"
)

// maxBodyBytes leaves room for a maximum-size document plus JSON overhead.
const maxBodyBytes = 2 << 20

// SearchEngine is the engine surface the handlers need. *indexer.Engine
// implements it.
type SearchEngine interface {
	Search(query string, limit int) []ranker.Result
	FilterByCategory(category string) []catalog.Document
	Suggestions(prefix string, limit int) []string
	AddItem(doc catalog.Document)
	RemoveItem(id int64) int
	Generation() uint64
	Stats() (docs, terms, postings int)
}

// Tracker receives analytics events. *analytics.Collector implements it.
type Tracker interface {
	Track(typ analytics.EventType, event any)
}

// Deps groups the handler's collaborators. Cache, Tracker, Repository and
// Metrics are optional.
type Deps struct {
	Engine     SearchEngine
	Cache      *cache.QueryCache
	Tracker    Tracker
	Repository catalog.Repository
	Metrics    *metrics.Metrics
	Limits     config.SearchConfig
}

type Handler struct {
	// mutateMu serializes catalog mutations so the repository and the
	// engine apply them in the same order.
	mutateMu sync.Mutex

	engine  SearchEngine
	cache   *cache.QueryCache
	tracker Tracker
	repo    catalog.Repository
	metrics *metrics.Metrics
	limits  config.SearchConfig
	logger  *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		engine:  deps.Engine,
		cache:   deps.Cache,
		tracker: deps.Tracker,
		repo:    deps.Repository,
		metrics: deps.Metrics,
		limits:  deps.Limits,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/categories/{category}/documents", h.Category)
	mux.HandleFunc("POST /api/v1/documents", h.AddDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.RemoveDocument)
	mux.HandleFunc("POST /api/v1/highlight", h.Highlight)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// SearchHit is one ranked document with its title highlighted for the
// query that found it. HighlightedTitle is HTML: the title is escaped
// before the <mark> tags are added.
type SearchHit struct {
	ranker.Result
	HighlightedTitle string `json:"highlighted_title"`
}

type SearchResponse struct {
	Query     string      `json:"query"`
	TotalHits int         `json:"total_hits"`
	CacheHit  bool        `json:"cache_hit"`
	Results   []SearchHit `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := params.Get("q")
	limit, err := parseLimit(params.Get("limit"), h.limits.DefaultLimit, h.limits.MaxResults)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if utf8.RuneCountInString(query) < indexer.MinQueryLength {
		h.observeSearch("too_short", "bypass", 0, start)
		h.writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: []SearchHit{}})
		return
	}

	var results []ranker.Result
	cacheHit := false
	cacheStatus := "disabled"
	if h.cache != nil {
		results, cacheHit = h.cache.GetOrCompute(ctx, query, limit, h.engine.Generation(), func() []ranker.Result {
			return h.engine.Search(query, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		results = h.engine.Search(query, limit)
	}

	resp := SearchResponse{
		Query:     query,
		TotalHits: len(results),
		CacheHit:  cacheHit,
		Results:   make([]SearchHit, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchHit{
			Result:           res,
			HighlightedTitle: highlight.Matches(html.EscapeString(res.Title), query),
		})
	}

	resultType := cacheStatus
	if len(results) == 0 {
		resultType = "zero_result"
	}
	h.observeSearch(resultType, cacheStatus, len(results), start)
	latency := time.Since(start)
	log.Info("search completed",
		"query", query,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.EventSearch, analytics.NewSearchEvent(
			middleware.GetRequestID(ctx), query, tokenizer.Tokenize(query),
			len(results), len(resp.Results), latency, cacheHit,
		))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type SuggestResponse struct {
	Prefix      string   `json:"prefix"`
	Suggestions []string `json:"suggestions"`
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()
	prefix := params.Get("prefix")
	limit, err := parseLimit(params.Get("limit"), h.limits.DefaultSuggestionLimit, h.limits.MaxSuggestions)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	suggestions := h.engine.Suggestions(prefix, limit)
	if h.metrics != nil {
		h.metrics.SuggestionsTotal.Inc()
	}
	if h.tracker != nil && prefix != "" {
		h.tracker.Track(analytics.EventSuggest, analytics.NewSuggestEvent(
			middleware.GetRequestID(r.Context()), prefix, len(suggestions), time.Since(start),
		))
	}
	h.writeJSON(w, http.StatusOK, SuggestResponse{Prefix: prefix, Suggestions: suggestions})
}

func (h *Handler) Category(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	docs := h.engine.FilterByCategory(category)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"category":  category,
		"count":     len(docs),
		"documents": docs,
	})
}

func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var doc catalog.Document
	if err := decodeBody(w, r, &doc); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := catalog.Validate(&doc); err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutateMu.Lock()
	defer h.mutateMu.Unlock()
	if h.repo != nil {
		if err := h.repo.Insert(ctx, doc); err != nil {
			logger.FromContext(ctx).Error("persisting document failed", "doc_id", doc.ID, "error", err)
			h.writeAppError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "document store unavailable"))
			return
		}
	}
	h.engine.AddItem(doc)
	h.afterMutation(ctx, "add")
	if h.tracker != nil {
		h.tracker.Track(analytics.EventDocumentAdded, analytics.NewCatalogEvent(
			middleware.GetRequestID(ctx), analytics.EventDocumentAdded, doc.ID, doc.Category, 1,
		))
	}
	logger.FromContext(ctx).Info("document added", "doc_id", doc.ID, "category", doc.Category)
	h.writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid document id %q", r.PathValue("id")))
		return
	}
	h.mutateMu.Lock()
	defer h.mutateMu.Unlock()
	if h.repo != nil {
		if _, err := h.repo.Delete(ctx, id); err != nil {
			logger.FromContext(ctx).Error("deleting document failed", "doc_id", id, "error", err)
			h.writeAppError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "document store unavailable"))
			return
		}
	}
	removed := h.engine.RemoveItem(id)
	h.afterMutation(ctx, "remove")
	if removed == 0 {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "no document with id %d", id))
		return
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.EventDocumentRemoved, analytics.NewCatalogEvent(
			middleware.GetRequestID(ctx), analytics.EventDocumentRemoved, id, "", removed,
		))
	}
	logger.FromContext(ctx).Info("document removed", "doc_id", id, "removed", removed)
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "removed": removed})
}

type highlightRequest struct {
	Text  string `json:"text"`
	Query string `json:"query"`
}

func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"highlighted": highlight.Matches(req.Text, req.Query),
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	docs, terms, postings := h.engine.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":  docs,
		"terms":      terms,
		"postings":   postings,
		"generation": h.engine.Generation(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// afterMutation records the mutation and drops cached searches. Keys already
// carry the index generation, so a failed flush only leaves unreachable
// entries behind until their TTL.
func (h *Handler) afterMutation(ctx context.Context, op string) {
	if h.metrics != nil {
		h.metrics.CatalogMutations.WithLabelValues(op).Inc()
	}
	if h.cache == nil {
		return
	}
	if _, err := h.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Warn("cache invalidation after mutation failed", "op", op, "error", err)
	}
}

func (h *Handler) observeSearch(resultType, cacheStatus string, returned int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

// parseLimit returns def for an empty value and clamps to ceiling.
func parseLimit(raw string, def, ceiling int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, apperrors.HTTPStatusCode(err), message)
}
