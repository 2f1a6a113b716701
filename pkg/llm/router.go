package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/shelfagent/shelfagent/pkg/logger"
	"github.com/shelfagent/shelfagent/pkg/skills"
)

// Route is the outcome of classifying a free-text prompt.
type Route struct {
	Skill      string `json:"skill"`
	Parameters string `json:"parameters"`
}

// Router maps free-text prompts to registered skills with a single
// best-effort classification call. The model's output has no
// guaranteed schema; anything unparseable falls back to a document
// search with the raw prompt as the query.
type Router struct {
	client   *Client
	registry *skills.Registry
}

// NewRouter creates a prompt router over the registry.
func NewRouter(client *Client, registry *skills.Registry) *Router {
	return &Router{client: client, registry: registry}
}

func (r *Router) classifierPrompt() string {
	var sb strings.Builder
	sb.WriteString("You route user requests to exactly one of these skills:\n\n")
	for _, def := range r.registry.Definitions() {
		schemaBytes, _ := json.Marshal(def.InputSchema)
		fmt.Fprintf(&sb, "- %s: %s\n  input schema: %s\n", def.Name, def.Description, string(schemaBytes))
	}
	sb.WriteString("\nRespond with a single JSON object of the form " +
		`{"skill": "<skill name>", "parameters": {...}}` +
		" and nothing else.")
	return sb.String()
}

// ClassifySkill maps a prompt to a skill name and JSON parameters.
func (r *Router) ClassifySkill(ctx context.Context, message string) (Route, error) {
	if strings.TrimSpace(message) == "" {
		return Route{}, errors.New("message cannot be empty")
	}

	resp, err := r.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.client.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.classifierPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return Route{}, errors.Wrap(err, "classification request failed")
	}
	if len(resp.Choices) == 0 {
		return Route{}, errors.New("classification returned no choices")
	}

	route, ok := r.parseRoute(resp.Choices[0].Message.Content)
	if !ok {
		logger.G(ctx).WithField("content", resp.Choices[0].Message.Content).
			Warn("unparseable classification output, falling back to document search")
		fallback, _ := json.Marshal(map[string]string{"query": message})
		return Route{Skill: skills.SearchDocumentsSkillName, Parameters: string(fallback)}, nil
	}
	return route, nil
}

// parseRoute extracts the routing JSON from model output, tolerating
// markdown fences and surrounding prose.
func (r *Router) parseRoute(content string) (Route, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Route{}, false
	}

	var raw struct {
		Skill      string          `json:"skill"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Route{}, false
	}
	if err := r.registry.ValidateSkills([]string{raw.Skill}); err != nil {
		return Route{}, false
	}

	parameters := "{}"
	if len(raw.Parameters) > 0 {
		parameters = string(raw.Parameters)
	}
	return Route{Skill: raw.Skill, Parameters: parameters}, true
}
