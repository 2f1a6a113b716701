// Package embedding turns text into vectors via an embedding model.
package embedding

import "context"

// Embedder generates vector embeddings from text. The index and search
// skills depend on this interface so tests can substitute a
// deterministic fake.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model in use.
	ModelName() string
}
