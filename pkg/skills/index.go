package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/document"
	"github.com/shelfagent/shelfagent/pkg/embedding"
	"github.com/shelfagent/shelfagent/pkg/logger"
	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

// IndexDocumentInput defines the input parameters for the
// index_document skill.
type IndexDocumentInput struct {
	DocumentPath string `json:"document_path" jsonschema:"description=Path to the PDF document to index"`
}

// IndexDocumentSkill extracts a PDF's text, chunks it, embeds the
// chunks, and upserts them into the vector store under a namespace
// derived from the file name.
type IndexDocumentSkill struct {
	extractor document.Extractor
	chunker   *document.Chunker
	embedder  embedding.Embedder
	store     vectorstore.Store
}

// NewIndexDocumentSkill creates the index_document skill.
func NewIndexDocumentSkill(extractor document.Extractor, chunker *document.Chunker, embedder embedding.Embedder, store vectorstore.Store) *IndexDocumentSkill {
	return &IndexDocumentSkill{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
	}
}

// Name returns the name of the skill.
func (s *IndexDocumentSkill) Name() string {
	return IndexDocumentSkillName
}

// Description returns the description of the skill.
func (s *IndexDocumentSkill) Description() string {
	return "Index a PDF document into the vector store so its content becomes searchable. The document is chunked, embedded, and stored under a namespace named after the file."
}

// GenerateSchema generates the JSON schema for the skill's input.
func (s *IndexDocumentSkill) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[IndexDocumentInput]()
}

// ValidateInput checks the parameters before execution.
func (s *IndexDocumentSkill) ValidateInput(parameters string) error {
	var input IndexDocumentInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if input.DocumentPath == "" {
		return errors.New("document_path is required")
	}
	return nil
}

// Execute runs the skill. External failures are converted to
// error-shaped results; nothing propagates past the handler boundary.
func (s *IndexDocumentSkill) Execute(ctx context.Context, parameters string) skilltypes.SkillResult {
	var input IndexDocumentInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "invalid input").Error()}
	}

	namespace := filepath.Base(input.DocumentPath)
	log := logger.G(ctx).WithFields(map[string]any{
		"document":  input.DocumentPath,
		"namespace": namespace,
	})

	text, err := s.extractor.Extract(input.DocumentPath)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to extract document text").Error()}
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return skilltypes.SkillResult{Error: fmt.Sprintf("document %q produced no indexable text", namespace)}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to embed document chunks").Error()}
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			ID:     fmt.Sprintf("%s-%04d", namespace, c.Index),
			Text:   c.Text,
			Source: namespace,
			Vector: vectors[i],
		}
	}
	if err := s.store.Upsert(ctx, namespace, docs); err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to store document vectors").Error()}
	}

	log.WithField("chunks", len(chunks)).Info("document indexed")
	return skilltypes.SkillResult{
		Result: fmt.Sprintf("Document %q indexed: %d chunks embedded with %s and stored in namespace %q.",
			namespace, len(chunks), s.embedder.ModelName(), namespace),
	}
}
