package ollama

import (
	"context"
	"strings"

	"muhasibi/pkg/ai"

	"github.com/ollama/ollama/api"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Empty input yields a zero vector of
// the configured dimension.
func (c *LocalClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if len(input) == 0 || strings.TrimSpace(string(input)) == "" {
		return make([]float32, c.embeddingDim), nil
	}

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.client.Embed(ctx, req)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	out := make([]float32, 0, c.embeddingDim)
	for _, v := range res.Embeddings {
		for _, val := range v {
			if len(out) >= c.embeddingDim {
				break
			}
			out = append(out, float32(val))
		}
	}
	return out, nil
}
