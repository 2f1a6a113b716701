package skills

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/openlibrary"
	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
)

// MetadataClient is the boundary to the public book-metadata API.
type MetadataClient interface {
	Search(ctx context.Context, title string) (*openlibrary.Book, error)
}

// BookInfoInput defines the input parameters for the book_info skill.
type BookInfoInput struct {
	Title string `json:"title" jsonschema:"description=Title of the book or document to look up"`
}

// BookInfoSkill looks up book metadata from the Open Library API.
type BookInfoSkill struct {
	client MetadataClient
}

// NewBookInfoSkill creates the book_info skill.
func NewBookInfoSkill(client MetadataClient) *BookInfoSkill {
	return &BookInfoSkill{client: client}
}

// Name returns the name of the skill.
func (s *BookInfoSkill) Name() string {
	return BookInfoSkillName
}

// Description returns the description of the skill.
func (s *BookInfoSkill) Description() string {
	return "Look up public metadata (authors, first publish year, editions) for a book title via the Open Library API."
}

// GenerateSchema generates the JSON schema for the skill's input.
func (s *BookInfoSkill) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[BookInfoInput]()
}

// ValidateInput checks the parameters before execution.
func (s *BookInfoSkill) ValidateInput(parameters string) error {
	var input BookInfoInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if strings.TrimSpace(input.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

// Execute runs the skill.
func (s *BookInfoSkill) Execute(ctx context.Context, parameters string) skilltypes.SkillResult {
	var input BookInfoInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "invalid input").Error()}
	}

	book, err := s.client.Search(ctx, input.Title)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrapf(err, "metadata lookup for %q failed", input.Title).Error()}
	}

	payload, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to encode metadata").Error()}
	}
	return skilltypes.SkillResult{Result: string(payload)}
}
