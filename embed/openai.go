package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lavafroth/silos/core"
)

// DefaultModel matches the sentence-transformers model the rule corpora
// were authored against; any OpenAI-compatible server exposing it works.
const (
	DefaultModel     = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultDimension = 384
)

// OpenAI is an Embedder backed by an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAI builds a client for the endpoint at baseURL. An empty model
// selects DefaultModel; dimension must match what the model emits.
func NewOpenAI(baseURL, apiKey, model string, dimension int) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}
}

// Embed requests one embedding and L2-normalizes it.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbedFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: endpoint returned no embedding", core.ErrEmbedFailed)
	}
	vector := resp.Data[0].Embedding
	if len(vector) != o.dimension {
		return nil, fmt.Errorf("%w: endpoint returned dimension %d, want %d", core.ErrEmbedFailed, len(vector), o.dimension)
	}
	return NormalizeL2(vector), nil
}

// Dimension implements Embedder.
func (o *OpenAI) Dimension() int {
	return o.dimension
}
