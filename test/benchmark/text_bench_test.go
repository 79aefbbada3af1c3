package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/ranker"
)

func BenchmarkTokenize(b *testing.B) {
	inputs := []struct {
		name string
		text string
	}{
		{"short", "AI Google Mampu Deteksi Kanker Payudara"},
		{"medium", strings.Repeat("Data satelit terbaru menunjukkan lapisan es Greenland ", 10)},
		{"long", strings.Repeat("Ditemukan tanda-tanda molekul organik dalam atmosfer planet ekstrasolar. ", 200)},
	}
	for _, in := range inputs {
		b.Run(in.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(in.text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(in.text)
			}
		})
	}
}

type corpus []string

func (c corpus) Len() int            { return len(c) }
func (c corpus) Text(pos int) string { return c[pos] }

func BenchmarkIndexBuild(b *testing.B) {
	docs := syntheticCatalog(5000)
	texts := make(corpus, len(docs))
	for i, d := range docs {
		texts[i] = d.SearchableText()
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = index.Build(texts)
	}
}

func BenchmarkRank(b *testing.B) {
	postings := make([]index.PostingList, 3)
	for t := range postings {
		pl := make(index.PostingList, 0, 5000)
		for pos := 0; pos < 5000; pos += t + 1 {
			pl = append(pl, pos)
		}
		postings[t] = pl
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ranker.Rank(postings, 10)
	}
}

func BenchmarkHighlight(b *testing.B) {
	text := strings.Repeat("Teleskop James Webb Temukan Planet Layak Huni ", 20)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = highlight.Matches(text, "planet huni teleskop")
	}
}

func BenchmarkCacheKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = cache.BuildKey("3f1c9a2e", "  Planet   Layak HUNI ", 10, 42)
	}
}
