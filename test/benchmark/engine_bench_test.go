// Package benchmark contains Go benchmarks for the tokenizer, the inverted
// index, ranking, highlighting and the search engine as a whole.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer"
)

var words = []string{
	"perubahan", "iklim", "kutub", "utara", "mencair", "satelit", "kanker",
	"kecerdasan", "buatan", "teleskop", "planet", "layak", "huni", "molekul",
	"organik", "atmosfer", "gempa", "bumi", "gunung", "berapi",
}

func syntheticCatalog(n int) []catalog.Document {
	docs := make([]catalog.Document, n)
	for i := range docs {
		docs[i] = catalog.Document{
			ID:       int64(i + 1),
			Title:    fmt.Sprintf("%s %s %s", words[i%len(words)], words[(i*3)%len(words)], words[(i*7)%len(words)]),
			Content:  fmt.Sprintf("laporan %d tentang %s dan %s di %s", i, words[(i+1)%len(words)], words[(i+5)%len(words)], words[(i+11)%len(words)]),
			Category: []string{"Alam", "Medis", "Astronomi"}[i%3],
		}
	}
	return docs
}

// BenchmarkBuildIndex measures a full rebuild, which every catalog mutation
// pays.
func BenchmarkBuildIndex(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			engine := indexer.NewEngine(syntheticCatalog(n))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				engine.BuildIndex()
			}
		})
	}
}

func BenchmarkEngineSearch(b *testing.B) {
	engine := indexer.NewEngine(syntheticCatalog(10000))
	queries := []struct {
		name  string
		query string
	}{
		{"single_term", "kanker"},
		{"two_terms", "planet huni"},
		{"repeated_term", "es es es"},
		{"no_match", "xyzzy"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = engine.Search(q.query, 10)
			}
		})
	}
}

// BenchmarkEngineSearchParallel measures read throughput under the engine's
// read lock.
func BenchmarkEngineSearchParallel(b *testing.B) {
	engine := indexer.NewEngine(syntheticCatalog(10000))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = engine.Search("gempa bumi", 10)
		}
	})
}

func BenchmarkSuggestions(b *testing.B) {
	engine := indexer.NewEngine(syntheticCatalog(10000))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Suggestions("ke", 5)
	}
}

func BenchmarkFilterByCategory(b *testing.B) {
	engine := indexer.NewEngine(syntheticCatalog(10000))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.FilterByCategory("medis")
	}
}

func BenchmarkAddItem(b *testing.B) {
	engine := indexer.NewEngine(syntheticCatalog(1000))
	doc := catalog.Document{Title: "Gempa Bumi Terbaru", Content: "gempa terasa di pulau", Category: "Alam"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc.ID = int64(100000 + i)
		engine.AddItem(doc)
		engine.RemoveItem(doc.ID)
	}
}
