// Package skills provides the skill implementations and the executor
// that runs them through the execution gate.
package skills

import (
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
)

// Skill name constants, as exposed on the HTTP surface.
const (
	IndexDocumentSkillName   = "index_document"
	SearchDocumentsSkillName = "search_documents"
	PurgeDocumentsSkillName  = "purge_documents"
	BookInfoSkillName        = "book_info"
	SendEmailSkillName       = "send_email"
	ListDocumentsSkillName   = "list_documents"
)

// GenerateSchema reflects a JSON schema from an input struct type.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Registry holds the available skills keyed by name.
type Registry struct {
	skills map[string]skilltypes.Skill
}

// NewRegistry creates a registry from the given skills.
func NewRegistry(skills ...skilltypes.Skill) *Registry {
	m := make(map[string]skilltypes.Skill, len(skills))
	for _, s := range skills {
		m[s.Name()] = s
	}
	return &Registry{skills: m}
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (skilltypes.Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// Names returns the registered skill names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the registry entries served by the skills
// endpoint, sorted by name.
func (r *Registry) Definitions() []skilltypes.Definition {
	defs := make([]skilltypes.Definition, 0, len(r.skills))
	for _, name := range r.Names() {
		s := r.skills[name]
		defs = append(defs, skilltypes.Definition{
			Name:        s.Name(),
			Description: s.Description(),
			InputSchema: s.GenerateSchema(),
		})
	}
	return defs
}

// ValidateSkills checks that every name refers to a registered skill.
func (r *Registry) ValidateSkills(names []string) error {
	for _, name := range names {
		if _, ok := r.skills[name]; !ok {
			return errors.Errorf("unknown skill: %s", name)
		}
	}
	return nil
}
