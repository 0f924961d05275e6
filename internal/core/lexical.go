package core

import (
	"fmt"
	"sort"
	"strings"
)

// LexicalSearch scores fallback chunks by the fraction of query words that
// appear (as substrings) in the lower-cased chunk. Zero-score chunks are
// dropped; ties keep insertion order.
func LexicalSearch(query string, chunks []FallbackChunk, limit int) []RetrievedItem {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 || limit <= 0 {
		return nil
	}

	var results []RetrievedItem
	for _, ch := range chunks {
		chunkLower := strings.ToLower(ch.Text)
		hits := 0
		for _, w := range queryWords {
			if strings.Contains(chunkLower, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		results = append(results, RetrievedItem{
			ID:     fmt.Sprintf("%s_%d", ch.DocumentID, ch.Index),
			Text:   ch.Text,
			Score:  float64(hits) / float64(len(queryWords)),
			Origin: OriginLexical,
			Metadata: Metadata{
				"filename":    ch.Filename,
				"chunk_index": ch.Index,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
