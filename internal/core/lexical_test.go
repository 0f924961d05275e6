package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fallbackCorpus() []FallbackChunk {
	return []FallbackChunk{
		{DocumentID: "doc1", Filename: "a.txt", Index: 0, Text: "Go channels connect goroutines"},
		{DocumentID: "doc1", Filename: "a.txt", Index: 1, Text: "Nothing relevant here"},
		{DocumentID: "doc2", Filename: "b.md", Index: 0, Text: "Goroutines are cheap"},
		{DocumentID: "doc2", Filename: "b.md", Index: 1, Text: "Channels and goroutines in Go"},
	}
}

func TestLexicalSearch_ScoresAndOrder(t *testing.T) {
	got := LexicalSearch("go CHANNELS", fallbackCorpus(), 10)

	require.Len(t, got, 3)
	assert.Equal(t, "doc1_0", got[0].ID)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, "doc2_1", got[1].ID, "equal scores keep insertion order")
	assert.Equal(t, 1.0, got[1].Score)
	// "go" is a substring of "goroutines".
	assert.Equal(t, "doc2_0", got[2].ID)
	assert.Equal(t, 0.5, got[2].Score)

	for _, item := range got {
		assert.Equal(t, OriginLexical, item.Origin)
		assert.Nil(t, item.RerankScore)
		assert.GreaterOrEqual(t, item.Score, 0.0)
		assert.LessOrEqual(t, item.Score, 1.0)
	}
	assert.Equal(t, Metadata{"filename": "a.txt", "chunk_index": 0}, got[0].Metadata)
}

func TestLexicalSearch_ExcludesZeroScores(t *testing.T) {
	got := LexicalSearch("kubernetes", fallbackCorpus(), 10)
	assert.Empty(t, got)
}

func TestLexicalSearch_Limit(t *testing.T) {
	got := LexicalSearch("goroutines", fallbackCorpus(), 2)
	require.Len(t, got, 2)
	assert.Equal(t, "doc1_0", got[0].ID)
	assert.Equal(t, "doc2_0", got[1].ID)
}

func TestLexicalSearch_EmptyInputs(t *testing.T) {
	assert.Nil(t, LexicalSearch("   ", fallbackCorpus(), 5))
	assert.Nil(t, LexicalSearch("go", fallbackCorpus(), 0))
	assert.Nil(t, LexicalSearch("go", nil, 5))
}
