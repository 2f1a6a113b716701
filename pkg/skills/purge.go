package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/logger"
	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
	"github.com/shelfagent/shelfagent/pkg/vectorstore"
)

// PurgeDocumentsInput defines the input parameters for the
// purge_documents skill.
type PurgeDocumentsInput struct {
	Confirm bool `json:"confirm,omitempty" jsonschema:"description=Set to true to confirm deleting every indexed document"`
}

// PurgeDocumentsSkill deletes all vectors across all namespaces in the
// store.
type PurgeDocumentsSkill struct {
	store vectorstore.Store
}

// NewPurgeDocumentsSkill creates the purge_documents skill.
func NewPurgeDocumentsSkill(store vectorstore.Store) *PurgeDocumentsSkill {
	return &PurgeDocumentsSkill{store: store}
}

// Name returns the name of the skill.
func (s *PurgeDocumentsSkill) Name() string {
	return PurgeDocumentsSkillName
}

// Description returns the description of the skill.
func (s *PurgeDocumentsSkill) Description() string {
	return "Delete every indexed document from the vector store, across all namespaces. Pass confirm=true to acknowledge the deletion."
}

// GenerateSchema generates the JSON schema for the skill's input.
func (s *PurgeDocumentsSkill) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[PurgeDocumentsInput]()
}

// ValidateInput checks the parameters before execution.
func (s *PurgeDocumentsSkill) ValidateInput(parameters string) error {
	var input PurgeDocumentsInput
	return errors.Wrap(json.Unmarshal([]byte(parameters), &input), "invalid input")
}

// Execute runs the skill. Namespaces are deleted one by one; partial
// failures are aggregated so the caller learns what was purged and
// what was not.
func (s *PurgeDocumentsSkill) Execute(ctx context.Context, parameters string) skilltypes.SkillResult {
	var input PurgeDocumentsInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "invalid input").Error()}
	}
	if !input.Confirm {
		logger.G(ctx).Warn("purge requested without confirm flag")
	}

	namespaces, err := s.store.ListNamespaces(ctx)
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to list namespaces").Error()}
	}
	if len(namespaces) == 0 {
		return skilltypes.SkillResult{Result: "The vector store is already empty; nothing to purge."}
	}

	var purged []string
	var merr *multierror.Error
	for _, ns := range namespaces {
		if err := s.store.DeleteNamespace(ctx, ns.Name); err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "namespace %s", ns.Name))
			continue
		}
		purged = append(purged, ns.Name)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return skilltypes.SkillResult{
			Error: errors.Wrapf(err, "purged %d of %d namespaces", len(purged), len(namespaces)).Error(),
		}
	}

	return skilltypes.SkillResult{
		Result: fmt.Sprintf("Purged %d namespace(s): %s.", len(purged), strings.Join(purged, ", ")),
	}
}
