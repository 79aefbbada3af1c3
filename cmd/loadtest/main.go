package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	SuggestEvery int
	Queries      []string
	Prefixes     []string
}

// Stats is kept per endpoint.
type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latenciesMu   sync.Mutex
	latencies     []time.Duration
	statusCodesMu sync.Mutex
	statusCodes   map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	s.statusCodes[statusCode]++
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the portal search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	suggestEvery := flag.Int("suggest-every", 3, "send an autocomplete request every N requests (0 disables)")
	flag.Parse()

	cfg := Config{
		BaseURL:      *baseURL,
		Concurrency:  *concurrency,
		Duration:     *duration,
		SuggestEvery: *suggestEvery,
		Queries: []string{
			"kanker",
			"planet",
			"iklim es",
			"teleskop james webb",
			"kecerdasan buatan",
			"satelit greenland",
			"molekul organik atmosfer",
			"deteksi kanker payudara",
			"alam",
			"astronomi planet planet",
			"medis",
			"kutub utara",
		},
		Prefixes: []string{"k", "pl", "te", "sa", "mo", "de", "a", "me"},
	}

	fmt.Println("=== Portal Search Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Queries:      %d unique\n", len(cfg.Queries))
	fmt.Printf("Suggest every %d requests\n", cfg.SuggestEvery)
	fmt.Println()

	search, suggest := runLoadTest(cfg)
	ok := printReport("search", search, cfg.Duration)
	if cfg.SuggestEvery > 0 {
		ok = printReport("suggest", suggest, cfg.Duration) || ok
	}
	if !ok {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) (search, suggest *Stats) {
	search, suggest = NewStats(), NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i++ {
				var target string
				var stats *Stats
				if cfg.SuggestEvery > 0 && i%cfg.SuggestEvery == 0 {
					prefix := cfg.Prefixes[i%len(cfg.Prefixes)]
					target = fmt.Sprintf("%s/api/v1/suggest?prefix=%s", cfg.BaseURL, url.QueryEscape(prefix))
					stats = suggest
				} else {
					query := cfg.Queries[i%len(cfg.Queries)]
					target = fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", cfg.BaseURL, url.QueryEscape(query))
					stats = search
				}
				doRequest(ctx, client, target, stats)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return search, suggest
}

func doRequest(ctx context.Context, client *http.Client, target string, stats *Stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		stats.RecordRequest(0, 0, err)
		return
	}
	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		// Requests cut off by the end of the run are not failures.
		if ctx.Err() == nil {
			stats.RecordRequest(duration, 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.RecordRequest(duration, resp.StatusCode, nil)
}

// printReport returns false when no request of this kind completed.
func printReport(name string, stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()

	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", failed)
	if total == 0 {
		fmt.Println()
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println("Latency:")
		fmt.Printf("  Min:    %s\n", latencies[0])
		fmt.Printf("  Avg:    %s\n", avg)
		fmt.Printf("  P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("  P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("  P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("  Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("  StdDev: %s\n", stddev(latencies, avg))
	}

	fmt.Println("Status Codes:")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.statusCodesMu.Unlock()
	fmt.Println()
	return true
}

func stddev(latencies []time.Duration, avg time.Duration) time.Duration {
	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l - avg)
		sumSquared += diff * diff
	}
	return time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
}

// percentile uses the nearest-rank method on a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
