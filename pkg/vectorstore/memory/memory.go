// Package memory provides an in-memory vector store using brute-force
// cosine similarity, suitable for demos and tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Store keeps all vectors in process memory, partitioned by namespace.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]vectorstore.Document // namespace -> id -> doc
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		namespaces: make(map[string]map[string]vectorstore.Document),
	}
}

// Upsert inserts or replaces documents in the namespace.
func (s *Store) Upsert(_ context.Context, namespace string, docs []vectorstore.Document) error {
	if namespace == "" {
		return errors.New("namespace cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]vectorstore.Document)
		s.namespaces[namespace] = ns
	}
	for _, d := range docs {
		if d.ID == "" {
			return errors.New("document id cannot be empty")
		}
		ns[d.ID] = d
	}
	return nil
}

// Search returns the topK most similar documents by cosine similarity.
func (s *Store) Search(_ context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	matches := make([]vectorstore.Match, 0, len(ns))
	for _, d := range ns {
		score, err := cosine(vector, d.Vector)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", d.ID)
		}
		matches = append(matches, vectorstore.Match{Document: d, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// ListNamespaces returns stats for every namespace, sorted by name.
func (s *Store) ListNamespaces(_ context.Context) ([]vectorstore.NamespaceStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]vectorstore.NamespaceStat, 0, len(s.namespaces))
	for name, docs := range s.namespaces {
		stats = append(stats, vectorstore.NamespaceStat{Name: name, Vectors: len(docs)})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

// DeleteNamespace removes a namespace and all its vectors.
func (s *Store) DeleteNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}
