package core

import (
	"fmt"
	"strings"
)

// ChunkText splits text into windows of chunkSize whitespace-delimited words,
// each window starting chunkSize-overlap words after the previous one.
func ChunkText(text string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, &ConfigError{Msg: fmt.Sprintf("chunk size must be positive, got %d", chunkSize)}
	}
	if overlap < 0 {
		return nil, &ConfigError{Msg: fmt.Sprintf("chunk overlap must not be negative, got %d", overlap)}
	}
	stride := chunkSize - overlap
	if stride <= 0 {
		return nil, &ConfigError{Msg: fmt.Sprintf("chunk overlap %d must be smaller than chunk size %d", overlap, chunkSize)}
	}

	words := strings.Fields(text)
	var chunks []Chunk
	for start := 0; start < len(words); start += stride {
		end := min(start+chunkSize, len(words))
		window := strings.Join(words[start:end], " ")
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{Text: window, Index: len(chunks)})
		}
		if start+chunkSize >= len(words) {
			break
		}
	}
	return chunks, nil
}
