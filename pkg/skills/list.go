package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

// ListDocumentsInput defines the input parameters for the
// list_documents skill. It takes no parameters.
type ListDocumentsInput struct{}

// ListDocumentsSkill lists the indexed documents (namespaces) and
// their vector counts.
type ListDocumentsSkill struct {
	store vectorstore.Store
}

// NewListDocumentsSkill creates the list_documents skill.
func NewListDocumentsSkill(store vectorstore.Store) *ListDocumentsSkill {
	return &ListDocumentsSkill{store: store}
}

// Name returns the name of the skill.
func (s *ListDocumentsSkill) Name() string {
	return ListDocumentsSkillName
}

// Description returns the description of the skill.
func (s *ListDocumentsSkill) Description() string {
	return "List the indexed documents and how many vectors each one holds."
}

// GenerateSchema generates the JSON schema for the skill's input.
func (s *ListDocumentsSkill) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[ListDocumentsInput]()
}

// ValidateInput checks the parameters before execution.
func (s *ListDocumentsSkill) ValidateInput(parameters string) error {
	if strings.TrimSpace(parameters) == "" {
		return nil
	}
	var input ListDocumentsInput
	return errors.Wrap(json.Unmarshal([]byte(parameters), &input), "invalid input")
}

// Execute runs the skill.
func (s *ListDocumentsSkill) Execute(ctx context.Context, _ string) skilltypes.SkillResult {
	namespaces, err := s.store.ListNamespaces(ctx)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to list namespaces").Error()}
	}
	if len(namespaces) == 0 {
		return skilltypes.SkillResult{Result: "No documents are indexed yet."}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d indexed document(s):\n", len(namespaces))
	for _, ns := range namespaces {
		fmt.Fprintf(&sb, "- %s: %d vector(s)\n", ns.Name, ns.Vectors)
	}
	return skilltypes.SkillResult{Result: sb.String()}
}
