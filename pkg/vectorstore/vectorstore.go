// Package vectorstore defines the boundary contract for vector storage
// and similarity search. Stored vectors are partitioned into
// namespaces so one agent's documents stay isolated from another's.
package vectorstore

import "context"

// Document is one embedded chunk of source text.
type Document struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Source string    `json:"source"`
	Vector []float32 `json:"-"`
}

// Match is a similarity search hit.
type Match struct {
	Document
	Score float32 `json:"score"`
}

// NamespaceStat describes one namespace and its vector count.
type NamespaceStat struct {
	Name    string `json:"name"`
	Vectors int    `json:"vectors"`
}

// Store stores embedded documents and answers similarity queries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert inserts or replaces documents in the namespace.
	Upsert(ctx context.Context, namespace string, docs []Document) error

	// Search returns the topK most similar documents in the namespace,
	// best first. An unknown namespace yields an empty result, not an
	// error.
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// ListNamespaces returns stats for every namespace in the store.
	ListNamespaces(ctx context.Context) ([]NamespaceStat, error)

	// DeleteNamespace removes a namespace and all its vectors.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Close releases resources held by the store.
	Close() error
}
