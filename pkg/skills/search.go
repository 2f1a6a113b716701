package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/embedding"
	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

// searchTopK is the number of passages returned per query.
const searchTopK = 3

// SearchDocumentsInput defines the input parameters for the
// search_documents skill.
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema:"description=Natural-language query to search the indexed documents with"`
}

// SearchDocumentsSkill embeds a query and runs a similarity search
// across every namespace in the vector store.
type SearchDocumentsSkill struct {
	embedder embedding.Embedder
	store    vectorstore.Store
}

// NewSearchDocumentsSkill creates the search_documents skill.
func NewSearchDocumentsSkill(embedder embedding.Embedder, store vectorstore.Store) *SearchDocumentsSkill {
	return &SearchDocumentsSkill{embedder: embedder, store: store}
}

// Name returns the name of the skill.
func (s *SearchDocumentsSkill) Name() string {
	return SearchDocumentsSkillName
}

// Description returns the description of the skill.
func (s *SearchDocumentsSkill) Description() string {
	return "Search the indexed documents with a natural-language query and return the best-matching passages with their source document."
}

// GenerateSchema generates the JSON schema for the skill's input.
func (s *SearchDocumentsSkill) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[SearchDocumentsInput]()
}

// ValidateInput checks the parameters before execution.
func (s *SearchDocumentsSkill) ValidateInput(parameters string) error {
	var input SearchDocumentsInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if strings.TrimSpace(input.Query) == "" {
		return errors.New("query is required")
	}
	return nil
}

// Execute runs the skill.
func (s *SearchDocumentsSkill) Execute(ctx context.Context, parameters string) skilltypes.SkillResult {
	var input SearchDocumentsInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "invalid input").Error()}
	}

	vector, err := s.embedder.Embed(ctx, input.Query)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to embed query").Error()}
	}

	namespaces, err := s.store.ListNamespaces(ctx)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to list namespaces").Error()}
	}

	var merged []vectorstore.Match
	for _, ns := range namespaces {
		matches, err := s.store.Search(ctx, ns.Name, vector, searchTopK)
		if err != nil {
			return skilltypes.SkillResult{Error: errors.Wrapf(err, "search failed in namespace %s", ns.Name).Error()}
		}
		merged = append(merged, matches...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > searchTopK {
		merged = merged[:searchTopK]
	}

	if len(merged) == 0 {
		return skilltypes.SkillResult{
			Result: fmt.Sprintf("No relevant content found for query %q. Index a document first or rephrase the query.", input.Query),
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matching passage(s) for %q:\n", len(merged), input.Query)
	for i, m := range merged {
		fmt.Fprintf(&sb, "\n%d. [source: %s, score: %.3f]\n%s\n", i+1, m.Source, m.Score, m.Text)
	}
	return skilltypes.SkillResult{Result: sb.String()}
}
