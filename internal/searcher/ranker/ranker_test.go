package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/index"
)

func TestRankSumsOccurrences(t *testing.T) {
	got := Rank([]index.PostingList{{2, 2, 0}, {0, 1}}, 10)
	assert.Equal(t, []ScoredDoc{
		{Position: 0, Score: 2},
		{Position: 2, Score: 2},
		{Position: 1, Score: 1},
	}, got)
}

func TestRankRepeatedTermCountsTwice(t *testing.T) {
	list := index.PostingList{3}
	got := Rank([]index.PostingList{list, list}, 10)
	assert.Equal(t, []ScoredDoc{{Position: 3, Score: 2}}, got)
}

func TestRankTieBreaksByPosition(t *testing.T) {
	got := Rank([]index.PostingList{{4, 1, 3, 0}}, 10)
	assert.Equal(t, []ScoredDoc{
		{Position: 0, Score: 1},
		{Position: 1, Score: 1},
		{Position: 3, Score: 1},
		{Position: 4, Score: 1},
	}, got)
}

func TestRankLimit(t *testing.T) {
	list := make(index.PostingList, 0, 15)
	for i := 0; i < 15; i++ {
		list = append(list, i)
	}
	assert.Len(t, Rank([]index.PostingList{list}, 3), 3)
	assert.Len(t, Rank([]index.PostingList{list}, 0), DefaultLimit)
	assert.Len(t, Rank([]index.PostingList{list}, -1), DefaultLimit)
	assert.Len(t, Rank([]index.PostingList{list}, 50), 15)
}

func TestRankNoPostings(t *testing.T) {
	assert.Empty(t, Rank(nil, 10))
	assert.Empty(t, Rank([]index.PostingList{nil, {}}, 10))
}
