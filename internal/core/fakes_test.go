package core

import (
	"context"
	"errors"
	"sync"
)

// fakeEmbedder returns scripted errors for the first calls, then deterministic vectors.
type fakeEmbedder struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	dim    int
	vector func(text string) []float32
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.vector != nil {
			out[i] = f.vector(t)
			continue
		}
		v := make([]float32, f.dim)
		v[0] = float32(len(t)) + 1
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIndex struct {
	mu        sync.Mutex
	upsertErr error
	queryErr  error
	deleteErr error
	records   []VectorRecord
	results   []RetrievedItem
	queries   int
}

func (f *fakeIndex) Upsert(_ context.Context, records []VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]RetrievedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeReranker struct {
	mu    sync.Mutex
	err   error
	hits  []RerankHit
	calls int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]RerankHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.hits != nil {
		return f.hits, nil
	}
	// Reverse order by default.
	var hits []RerankHit
	for i := len(documents) - 1; i >= 0 && len(hits) < topN; i-- {
		hits = append(hits, RerankHit{Index: i, Score: float64(i) / 10})
	}
	return hits, nil
}

func (f *fakeReranker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCompleter struct {
	mu      sync.Mutex
	err     error
	text    string
	usage   TokenUsage
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return Completion{}, f.err
	}
	return Completion{Text: f.text, Usage: f.usage}, nil
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeStore struct {
	mu          sync.Mutex
	indexed     []Document
	fallback    []Document
	indexedErr  error
	fallbackErr error
	chunksErr   error
	logErr      error
	logs        []QueryLogEntry
}

func (f *fakeStore) StoreIndexedDocument(_ context.Context, doc Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexedErr != nil {
		return f.indexedErr
	}
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeStore) StoreFallbackDocument(_ context.Context, doc Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fallbackErr != nil {
		return f.fallbackErr
	}
	f.fallback = append(f.fallback, doc)
	return nil
}

func (f *fakeStore) FallbackChunks(_ context.Context) ([]FallbackChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chunksErr != nil {
		return nil, f.chunksErr
	}
	var out []FallbackChunk
	for _, d := range f.fallback {
		for i, c := range d.Chunks {
			out = append(out, FallbackChunk{DocumentID: d.ID, Filename: d.Filename, Index: i, Text: c})
		}
	}
	return out, nil
}

func (f *fakeStore) LogQuery(_ context.Context, entry QueryLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) Logs() []QueryLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]QueryLogEntry(nil), f.logs...)
}

var (
	errTransient = errors.New("connection reset by peer")
	errQuota     = errors.New("Error 429: You exceeded your current quota")
)
