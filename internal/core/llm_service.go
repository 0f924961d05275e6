package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultEmbeddingModelName = "text-embedding-004"
	DefaultChatModelName      = "gemini-1.5-flash-latest"

	embedBatchSize   = 100
	embedConcurrency = 4

	answerTemperature = float32(0.1)
	answerMaxTokens   = int32(500)
)

// LLMService is the Gemini adapter. It serves both the EmbeddingClient and
// the CompletionClient ports.
type LLMService struct {
	client         *genai.Client
	embeddingModel string
	chatModel      string
	logger         *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey, embeddingModel, chatModel string, logger *zap.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, &ConfigError{Msg: "gemini api key is required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModelName
	}
	if chatModel == "" {
		chatModel = DefaultChatModelName
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{
		client:         client,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		logger:         logger.With(zap.String("component", "gemini")),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error("Error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Info("GenAI client closed")
		}
	}
}

// EmbeddingModel names the model vectors are produced with; cache keys use it.
func (s *LLMService) EmbeddingModel() string { return s.embeddingModel }

// EmbedTexts embeds texts in batches, running up to four batches at once.
// The output order matches the input.
func (s *LLMService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	em := s.client.EmbeddingModel(s.embeddingModel)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, r := range batchRanges(len(texts), embedBatchSize) {
		g.Go(func() error {
			b := em.NewBatch()
			for _, t := range texts[r[0]:r[1]] {
				b.AddContent(genai.Text(t))
			}
			res, err := em.BatchEmbedContents(gctx, b)
			if err != nil {
				return classifyGenAIError("gemini embedding request failed", err)
			}
			if res == nil || len(res.Embeddings) != r[1]-r[0] {
				return fmt.Errorf("gemini returned an incomplete embedding batch for inputs %d-%d", r[0], r[1])
			}
			for i, e := range res.Embeddings {
				if e == nil || len(e.Values) == 0 {
					return fmt.Errorf("no embedding data received from gemini for input %d", r[0]+i)
				}
				out[r[0]+i] = e.Values
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LLMService) Complete(ctx context.Context, systemInstruction, prompt string) (Completion, error) {
	model := s.client.GenerativeModel(s.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	temp := answerTemperature
	maxTokens := answerMaxTokens
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Completion{}, classifyGenAIError("gemini generation request failed", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Completion{}, errors.New("gemini response was empty or had no valid candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			s.logger.Debug("Gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if text.Len() == 0 {
		return Completion{}, errors.New("gemini response contained no text")
	}

	return Completion{Text: text.String(), Usage: usageFromMetadata(resp.UsageMetadata)}, nil
}

func usageFromMetadata(m *genai.UsageMetadata) TokenUsage {
	if m == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		PromptTokens:     int(m.PromptTokenCount),
		CompletionTokens: int(m.CandidatesTokenCount),
		TotalTokens:      int(m.TotalTokenCount),
	}
}

// classifyGenAIError wraps err with msg, marking quota exhaustion so callers
// can pick the non-retrying fallback.
func classifyGenAIError(msg string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %w", msg, ErrQuotaExhausted, err)
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return fmt.Errorf("%s: %w: %w", msg, ErrQuotaExhausted, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// batchRanges splits n items into [start, end) ranges of at most size.
func batchRanges(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
