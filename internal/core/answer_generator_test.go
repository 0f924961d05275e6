package core

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBuildPrompt_NumbersSourcesInOrder(t *testing.T) {
	items := []RetrievedItem{{Text: "first"}, {Text: "second"}}

	prompt := BuildPrompt("why?", items)

	assert.Contains(t, prompt, "[1] first\n\n[2] second")
	assert.Contains(t, prompt, "Question: why?")
	assert.Contains(t, prompt, "[1], [2]")
}

func TestGenerate_Success(t *testing.T) {
	client := &fakeCompleter{text: "Answer [1].", usage: TokenUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13}}
	gen := NewAnswerGenerator(client, time.Second, zaptest.NewLogger(t), nil)

	res := gen.Generate(context.Background(), "q", []RetrievedItem{{Text: "ctx"}})

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Answer [1].", res.Value.Text)
	assert.Equal(t, 13, res.Value.Usage.TotalTokens)
	assert.GreaterOrEqual(t, res.Value.Latency, 0.0)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "[1] ctx")
}

var excerptRe = regexp.MustCompile(`(?s)\[(\d)\] (.*?)(?:\n\n|$)`)

func TestGenerate_QuotaProducesExtractiveFallback(t *testing.T) {
	client := &fakeCompleter{err: errors.New("googleapi: Error 429: Resource has been exhausted (e.g. check quota).")}
	gen := NewAnswerGenerator(client, time.Second, zaptest.NewLogger(t), nil)

	items := []RetrievedItem{
		{Text: strings.Repeat("x", 500)},
		{Text: "short"},
		{Text: strings.Repeat("é", 301)},
		{Text: "never shown"},
	}
	res := gen.Generate(context.Background(), "q", items)

	require.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, TokenUsage{}, res.Value.Usage)
	assert.Equal(t, 0.1, res.Value.Latency)
	assert.True(t, strings.HasPrefix(res.Value.Text, "Based on available info:\n\n"))
	assert.NotContains(t, res.Value.Text, "never shown")

	body := strings.TrimPrefix(res.Value.Text, "Based on available info:\n\n")
	matches := excerptRe.FindAllStringSubmatch(body, -1)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.LessOrEqual(t, len([]rune(m[2])), 303)
	}
	assert.Equal(t, strings.Repeat("x", 300)+"...", matches[0][2])
	assert.Equal(t, "short", matches[1][2])
	assert.Equal(t, strings.Repeat("é", 300)+"...", matches[2][2])
}

func TestGenerate_OtherErrorsAreFatal(t *testing.T) {
	client := &fakeCompleter{err: errors.New("model not found")}
	gen := NewAnswerGenerator(client, time.Second, zaptest.NewLogger(t), nil)

	res := gen.Generate(context.Background(), "q", []RetrievedItem{{Text: "ctx"}})

	require.Equal(t, StatusFatal, res.Status)
	var hard *HardServiceError
	require.True(t, errors.As(res.Err, &hard))
	assert.Contains(t, hard.Error(), "model not found")
}

func TestExtractiveAnswer_NoItems(t *testing.T) {
	assert.Equal(t, "Found some information but can't generate answer right now.", ExtractiveAnswer(nil))
}
