// Package openai implements the ai.Client backend against any
// OpenAI-compatible chat and embedding API.
package openai

import (
	"sync"

	"muhasibi/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// AnswerClient talks to OpenAI-compatible endpoints for chat and
// embeddings. Separate endpoints may be configured for the two concerns.
type AnswerClient struct {
	chatModel      string
	embeddingModel string
	embeddingDim   int

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	chatClient      *openai.Client
	embeddingClient *openai.Client
}

// Params configures an AnswerClient.
type Params struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string
}

// New creates an AnswerClient from the given endpoint configuration.
func New(params Params) *AnswerClient {
	dim := params.EmbeddingDim
	if dim == 0 {
		dim = 1536
	}
	return &AnswerClient{
		chatModel:       params.ChatModel,
		embeddingModel:  params.EmbeddingModel,
		embeddingDim:    dim,
		chatClient:      newClient(params.ChatURL, params.ChatKey),
		embeddingClient: newClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newClient(baseURL, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(options...)
	return &client
}

func (c *AnswerClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// GetMetrics returns the accumulated model metrics.
func (c *AnswerClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics clears the accumulated model metrics.
func (c *AnswerClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}
