// Package ranker scores documents by raw posting occurrences.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/index"
)

// DefaultLimit is the number of results returned when no limit is given.
const DefaultLimit = 10

// ScoredDoc is a collection position with its relevance score.
type ScoredDoc struct {
	Position int `json:"position"`
	Score    int `json:"score"`
}

// Result is a copy of a matching document plus its relevance score.
type Result struct {
	catalog.Document
	Relevance int `json:"relevance"`
}

// Rank sums, for every document, the posting entries it owns across all
// query-term posting lists. One list is expected per query token, repeats
// included, so a document matching two distinct terms once each ties with
// a document matching one term twice.
//
// Results are ordered by score descending, then by position ascending, and
// truncated to limit. A non-positive limit means DefaultLimit.
func Rank(postingsPerTerm []index.PostingList, limit int) []ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	scores := make(map[int]int)
	for _, postings := range postingsPerTerm {
		for _, pos := range postings {
			scores[pos]++
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for pos, score := range scores {
		result = append(result, ScoredDoc{Position: pos, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Position < result[j].Position
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
