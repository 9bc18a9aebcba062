package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"muhasibi/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Empty input yields a zero vector of
// the configured dimension.
func (c *AnswerClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if len(input) == 0 || strings.TrimSpace(string(input)) == "" {
		return make([]float32, c.embeddingDim), nil
	}
	if c.embeddingClient == nil {
		return nil, fmt.Errorf("embedding endpoint not configured")
	}

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{string(input)}},
		Model: c.embeddingModel,
	}

	start := time.Now()
	response, err := c.embeddingClient.Embeddings.New(ctx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}

	out := make([]float32, 0, len(response.Data[0].Embedding))
	for _, v := range response.Data[0].Embedding {
		out = append(out, float32(v))
	}
	return out, nil
}
