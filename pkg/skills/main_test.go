package skills

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/openlibrary"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

// fakeStore is a counting in-memory vectorstore.Store for tests.
type fakeStore struct {
	mu sync.Mutex

	upsertCalls int
	searchCalls int
	listCalls   int
	deleteCalls int

	namespaces map[string][]vectorstore.Document
	searchHits []vectorstore.Match

	upsertErr error
	deleteErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		namespaces: make(map[string][]vectorstore.Document),
		deleteErr:  make(map[string]error),
	}
}

func (f *fakeStore) Upsert(_ context.Context, namespace string, docs []vectorstore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.namespaces[namespace] = append(f.namespaces[namespace], docs...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, namespace string, _ []float32, topK int) ([]vectorstore.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if len(f.searchHits) > topK {
		return f.searchHits[:topK], nil
	}
	return f.searchHits, nil
}

func (f *fakeStore) ListNamespaces(_ context.Context) ([]vectorstore.NamespaceStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var stats []vectorstore.NamespaceStat
	for name, docs := range f.namespaces {
		stats = append(stats, vectorstore.NamespaceStat{Name: name, Vectors: len(docs)})
	}
	return stats, nil
}

func (f *fakeStore) DeleteNamespace(_ context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if err := f.deleteErr[namespace]; err != nil {
		return err
	}
	delete(f.namespaces, namespace)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeEmbedder returns fixed-direction unit vectors.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedding-model" }

// fakeExtractor returns canned document text.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// fakeMetadata is a counting MetadataClient.
type fakeMetadata struct {
	mu    sync.Mutex
	calls int
	book  *openlibrary.Book
	err   error
}

func (f *fakeMetadata) Search(_ context.Context, title string) (*openlibrary.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.book != nil {
		return f.book, nil
	}
	return nil, errors.Errorf("no records found for title %q", title)
}
