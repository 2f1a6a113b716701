package embedding

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const defaultEmbeddingModel = "text-embedding-3-small"

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder generates embeddings through the OpenAI embeddings
// API (or any compatible endpoint via a custom base URL).
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures the embeddings client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIEmbedder creates an embeddings client.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, errors.Wrap(err, "embedding request failed")
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, errors.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// ModelName returns the embedding model in use.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
