package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfagent/shelfagent/pkg/document"
	"github.com/shelfagent/shelfagent/pkg/gate"
)

func testRegistry(store *fakeStore, embedder *fakeEmbedder, extractor *fakeExtractor, metadata *fakeMetadata) *Registry {
	return NewRegistry(
		NewIndexDocumentSkill(extractor, document.NewChunker(3, 1), embedder, store),
		NewSearchDocumentsSkill(embedder, store),
		NewPurgeDocumentsSkill(store),
		NewBookInfoSkill(metadata),
		NewSendEmailSkill(),
		NewListDocumentsSkill(store),
	)
}

func defaultTestRegistry() (*Registry, *fakeStore) {
	store := newFakeStore()
	return testRegistry(store, &fakeEmbedder{}, &fakeExtractor{text: "One. Two. Three."}, &fakeMetadata{}), store
}

func TestRunSkillExecutesOnceThenBlocks(t *testing.T) {
	ctx := context.Background()
	registry, store := defaultTestRegistry()
	g := gate.New()
	g.StartSession("s1")

	params := `{"document_path": "bitcoin.pdf"}`

	first := RunSkill(ctx, g, registry, IndexDocumentSkillName, params)
	require.False(t, first.IsError(), first.Error)
	assert.Contains(t, first.Result, "bitcoin.pdf")
	assert.Equal(t, 1, store.upsertCalls)

	second := RunSkill(ctx, g, registry, IndexDocumentSkillName, params)
	require.False(t, second.IsError())
	assert.Contains(t, second.Result, "already been completed")
	assert.Contains(t, second.Result, "bitcoin.pdf")
	// The external store must not see a second write.
	assert.Equal(t, 1, store.upsertCalls)
}

func TestRunSkillStrictPolicyBlocksSecondSkill(t *testing.T) {
	ctx := context.Background()
	registry, store := defaultTestRegistry()
	g := gate.New(gate.WithPolicy(gate.StrictSingleSkill))
	g.StartSession("s1")

	first := RunSkill(ctx, g, registry, SearchDocumentsSkillName, `{"query": "what is bitcoin"}`)
	require.False(t, first.IsError())

	second := RunSkill(ctx, g, registry, PurgeDocumentsSkillName, `{"confirm": true}`)
	require.False(t, second.IsError())
	assert.Contains(t, second.Result, "already been completed")
	assert.Equal(t, 0, store.deleteCalls)
}

func TestRunSkillUnknownSkillDoesNotTouchGate(t *testing.T) {
	ctx := context.Background()
	registry, _ := defaultTestRegistry()
	g := gate.New(gate.WithPolicy(gate.StrictSingleSkill))
	g.StartSession("s1")

	result := RunSkill(ctx, g, registry, "no_such_skill", `{}`)
	assert.True(t, result.IsError())
	assert.Contains(t, result.Error, "unknown skill")

	// The failed lookup must not count as the session's one skill.
	assert.True(t, g.TryAcquire(SendEmailSkillName))
}

func TestRunSkillRecordsValidationFailure(t *testing.T) {
	ctx := context.Background()
	registry, store := defaultTestRegistry()
	g := gate.New()
	g.StartSession("s1")

	result := RunSkill(ctx, g, registry, IndexDocumentSkillName, `{}`)
	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "document_path is required")
	assert.Equal(t, 0, store.upsertCalls)

	// A retry is blocked and sees the recorded failure, not a generic message.
	retry := RunSkill(ctx, g, registry, IndexDocumentSkillName, `{"document_path": "bitcoin.pdf"}`)
	require.False(t, retry.IsError())
	assert.Contains(t, retry.Result, "document_path is required")
	assert.Equal(t, 0, store.upsertCalls)
}

func TestRunSkillRecordsHandlerFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	extractor := &fakeExtractor{err: assert.AnError}
	registry := testRegistry(store, &fakeEmbedder{}, extractor, &fakeMetadata{})
	g := gate.New()
	g.StartSession("s1")

	result := RunSkill(ctx, g, registry, IndexDocumentSkillName, `{"document_path": "bitcoin.pdf"}`)
	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "failed to extract document text")

	retry := RunSkill(ctx, g, registry, IndexDocumentSkillName, `{"document_path": "bitcoin.pdf"}`)
	require.False(t, retry.IsError())
	assert.Contains(t, retry.Result, "failed to extract document text")
}

func TestRunSkillNewSessionResets(t *testing.T) {
	ctx := context.Background()
	registry, store := defaultTestRegistry()
	g := gate.New()

	g.StartSession("s1")
	RunSkill(ctx, g, registry, IndexDocumentSkillName, `{"document_path": "bitcoin.pdf"}`)
	require.Equal(t, 1, store.upsertCalls)

	g.StartSession("s2")
	result := RunSkill(ctx, g, registry, IndexDocumentSkillName, `{"document_path": "bitcoin.pdf"}`)
	require.False(t, result.IsError())
	assert.NotContains(t, result.Result, "already been completed")
	assert.Equal(t, 2, store.upsertCalls)
}
