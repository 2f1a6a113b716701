// Package skills defines the Skill contract shared by skill
// implementations, the executor, and the HTTP surface.
package skills

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Skill is a named, parameterized unit of externally visible work. Each
// implementation wraps exactly one external collaborator (vector store,
// metadata API, mailer) and never blocks on anything else.
type Skill interface {
	Name() string
	Description() string
	GenerateSchema() *jsonschema.Schema
	ValidateInput(parameters string) error
	Execute(ctx context.Context, parameters string) SkillResult
}

// SkillResult is the outcome of a single skill execution. Exactly one
// of Result and Error is normally set; a blocked invocation is reported
// through Result because it is not a failure from the caller's view.
type SkillResult struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// IsError reports whether the execution failed.
func (r SkillResult) IsError() bool {
	return r.Error != ""
}

// Outcome returns the string a retried caller should see again: the
// error message for failures, the result otherwise.
func (r SkillResult) Outcome() string {
	if r.IsError() {
		return r.Error
	}
	return r.Result
}

// AssistantFacing renders the result for a language model consumer.
func (r SkillResult) AssistantFacing() string {
	out := ""
	if r.Error != "" {
		out = fmt.Sprintf("<error>\n%s\n</error>\n", r.Error)
	}
	if r.Result != "" {
		out += fmt.Sprintf("<result>\n%s\n</result>\n", r.Result)
	}
	if out == "" {
		out = "<result>\n(No output)\n</result>\n"
	}
	return out
}

// Definition is the registry entry served by the HTTP skills endpoint.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}
