package ai

import (
	"context"
)

// GenerateOptions holds configuration for model generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
}

// GenerateOption is a functional option for configuring generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// prepended to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling
// temperature. Lower values make outputs more deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// ModelMetrics contains performance metrics from model operations.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// Client is the low-level foundation-model backend: plain completions,
// schema-constrained completions, and embeddings. Implementations must be
// safe for concurrent use.
type Client interface {
	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)

	// GenerateCompletionWithFormat constrains the model output to the JSON
	// schema derived from out's type and unmarshals the response into out.
	// A response that cannot be decoded against the schema is an error.
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error

	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)

	GetMetrics() ModelMetrics
	ResetMetrics()
}
