package skills

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfagent/shelfagent/pkg/document"
	"github.com/shelfagent/shelfagent/pkg/openlibrary"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

func TestRegistryDefinitions(t *testing.T) {
	registry, _ := defaultTestRegistry()

	defs := registry.Definitions()
	require.Len(t, defs, 6)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
		assert.NotEmpty(t, d.Description)
		assert.NotNil(t, d.InputSchema)
	}
	assert.Equal(t, []string{
		BookInfoSkillName,
		IndexDocumentSkillName,
		ListDocumentsSkillName,
		PurgeDocumentsSkillName,
		SearchDocumentsSkillName,
		SendEmailSkillName,
	}, names)
}

func TestRegistryValidateSkills(t *testing.T) {
	registry, _ := defaultTestRegistry()

	assert.NoError(t, registry.ValidateSkills([]string{IndexDocumentSkillName, SendEmailSkillName}))
	assert.ErrorContains(t, registry.ValidateSkills([]string{"bogus"}), "unknown skill: bogus")
}

func TestIndexDocumentSkill(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	skill := NewIndexDocumentSkill(
		&fakeExtractor{text: "One. Two. Three. Four. Five."},
		document.NewChunker(3, 1), embedder, store)

	result := skill.Execute(ctx, `{"document_path": "/docs/bitcoin.pdf"}`)
	require.False(t, result.IsError(), result.Error)
	assert.Contains(t, result.Result, `"bitcoin.pdf"`)
	assert.Contains(t, result.Result, "fake-embedding-model")
	assert.Equal(t, 1, store.upsertCalls)
	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, store.namespaces["bitcoin.pdf"], 2)
}

func TestIndexDocumentSkillValidation(t *testing.T) {
	skill := NewIndexDocumentSkill(&fakeExtractor{}, document.NewChunker(3, 1), &fakeEmbedder{}, newFakeStore())

	assert.Error(t, skill.ValidateInput(`{}`))
	assert.Error(t, skill.ValidateInput(`not json`))
	assert.NoError(t, skill.ValidateInput(`{"document_path": "a.pdf"}`))
}

func TestIndexDocumentSkillEmptyDocument(t *testing.T) {
	skill := NewIndexDocumentSkill(&fakeExtractor{text: "   "}, document.NewChunker(3, 1), &fakeEmbedder{}, newFakeStore())

	result := skill.Execute(context.Background(), `{"document_path": "empty.pdf"}`)
	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "no indexable text")
}

func TestSearchDocumentsSkillReturnsPassages(t *testing.T) {
	store := newFakeStore()
	store.namespaces["bitcoin.pdf"] = []vectorstore.Document{{ID: "a"}}
	store.searchHits = []vectorstore.Match{
		{Document: vectorstore.Document{ID: "a", Text: "A purely peer-to-peer version of electronic cash", Source: "bitcoin.pdf"}, Score: 0.91},
	}
	skill := NewSearchDocumentsSkill(&fakeEmbedder{}, store)

	result := skill.Execute(context.Background(), `{"query": "what is bitcoin"}`)
	require.False(t, result.IsError())
	assert.Contains(t, result.Result, "peer-to-peer version of electronic cash")
	assert.Contains(t, result.Result, "bitcoin.pdf")
	assert.Contains(t, result.Result, "0.910")
}

func TestSearchDocumentsSkillNoHits(t *testing.T) {
	skill := NewSearchDocumentsSkill(&fakeEmbedder{}, newFakeStore())

	result := skill.Execute(context.Background(), `{"query": "anything"}`)
	require.False(t, result.IsError())
	assert.Contains(t, result.Result, "No relevant content found")
}

func TestSearchDocumentsSkillValidation(t *testing.T) {
	skill := NewSearchDocumentsSkill(&fakeEmbedder{}, newFakeStore())

	assert.Error(t, skill.ValidateInput(`{"query": "  "}`))
	assert.NoError(t, skill.ValidateInput(`{"query": "x"}`))
}

func TestPurgeDocumentsSkill(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.namespaces["alpha.pdf"] = []vectorstore.Document{{ID: "a"}}
	store.namespaces["beta.pdf"] = []vectorstore.Document{{ID: "b"}}
	skill := NewPurgeDocumentsSkill(store)

	result := skill.Execute(ctx, `{"confirm": true}`)
	require.False(t, result.IsError())
	assert.Contains(t, result.Result, "Purged 2 namespace(s)")
	assert.Equal(t, 2, store.deleteCalls)
	assert.Empty(t, store.namespaces)
}

func TestPurgeDocumentsSkillEmptyStore(t *testing.T) {
	skill := NewPurgeDocumentsSkill(newFakeStore())

	result := skill.Execute(context.Background(), `{}`)
	require.False(t, result.IsError())
	assert.Contains(t, result.Result, "already empty")
}

func TestPurgeDocumentsSkillAggregatesPartialFailures(t *testing.T) {
	store := newFakeStore()
	store.namespaces["alpha.pdf"] = []vectorstore.Document{{ID: "a"}}
	store.namespaces["beta.pdf"] = []vectorstore.Document{{ID: "b"}}
	store.deleteErr["beta.pdf"] = assert.AnError
	skill := NewPurgeDocumentsSkill(store)

	result := skill.Execute(context.Background(), `{"confirm": true}`)
	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "purged 1 of 2 namespaces")
	assert.Contains(t, result.Error, "beta.pdf")
}

func TestBookInfoSkill(t *testing.T) {
	metadata := &fakeMetadata{book: &openlibrary.Book{
		Title:            "Mastering Bitcoin",
		Authors:          []string{"Andreas M. Antonopoulos"},
		FirstPublishYear: 2014,
		EditionCount:     5,
		Key:              "/works/OL1",
	}}
	skill := NewBookInfoSkill(metadata)

	result := skill.Execute(context.Background(), `{"title": "Mastering Bitcoin"}`)
	require.False(t, result.IsError())
	assert.Equal(t, 1, metadata.calls)

	var book openlibrary.Book
	require.NoError(t, json.Unmarshal([]byte(result.Result), &book))
	assert.Equal(t, "Mastering Bitcoin", book.Title)
	assert.Equal(t, 2014, book.FirstPublishYear)
}

func TestBookInfoSkillLookupFailure(t *testing.T) {
	skill := NewBookInfoSkill(&fakeMetadata{})

	result := skill.Execute(context.Background(), `{"title": "Unknown Book"}`)
	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "no records found")
}

func TestSendEmailSkill(t *testing.T) {
	skill := NewSendEmailSkill()

	require.Error(t, skill.ValidateInput(`{"subject": "hi"}`))
	require.NoError(t, skill.ValidateInput(`{"recipient": "a@b.c", "subject": "hi", "body": "text"}`))

	result := skill.Execute(context.Background(), `{"recipient": "a@b.c", "subject": "hi", "body": "text"}`)
	require.False(t, result.IsError())

	var confirmation map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Result), &confirmation))
	assert.Equal(t, "simulated", confirmation["status"])
	assert.Equal(t, "a@b.c", confirmation["recipient"])
	assert.NotEmpty(t, confirmation["messageId"])
}

func TestListDocumentsSkill(t *testing.T) {
	store := newFakeStore()
	store.namespaces["bitcoin.pdf"] = []vectorstore.Document{{ID: "a"}, {ID: "b"}}
	skill := NewListDocumentsSkill(store)

	result := skill.Execute(context.Background(), ``)
	require.False(t, result.IsError())
	assert.Contains(t, result.Result, "bitcoin.pdf: 2 vector(s)")
}

func TestListDocumentsSkillEmpty(t *testing.T) {
	skill := NewListDocumentsSkill(newFakeStore())

	result := skill.Execute(context.Background(), `{}`)
	require.False(t, result.IsError())
	assert.Contains(t, result.Result, "No documents are indexed yet")
}
