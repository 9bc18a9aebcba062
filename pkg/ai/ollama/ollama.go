// Package ollama implements the ai.Client backend against a locally-hosted
// Ollama server, for deployments that keep the corpus and the model on-prem.
package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"muhasibi/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// LocalClient implements ai.Client using Ollama chat and embedding models.
type LocalClient struct {
	chatModel      string
	embeddingModel string
	embeddingDim   int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	client *api.Client
}

// Params configures a LocalClient.
type Params struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	BaseURL string
	APIKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// New creates a LocalClient connected to the Ollama server at BaseURL.
func New(params Params) (*LocalClient, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.APIKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.APIKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	dim := params.EmbeddingDim
	if dim == 0 {
		dim = 1024
	}

	return &LocalClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   dim,
		reqLock:        semaphore.NewWeighted(maxConcurrent),
		client:         api.NewClient(u, httpClient),
	}, nil
}

func (c *LocalClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// GetMetrics returns the accumulated model metrics.
func (c *LocalClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics clears the accumulated model metrics.
func (c *LocalClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}
