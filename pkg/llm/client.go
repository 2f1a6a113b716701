// Package llm wraps the chat-completions API used for prompt routing
// and the tool-calling agent loop.
package llm

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
)

const defaultChatModel = "gpt-4o-mini"

// Config configures the chat client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client is a thin wrapper around the OpenAI chat-completions client.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a chat client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultChatModel
	}
	return &Client{
		api:   openai.NewClientWithConfig(clientConfig),
		model: model,
	}, nil
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.model
}

// toOpenAITools converts skill definitions to the wire tool format.
func toOpenAITools(defs []skilltypes.Definition) []openai.Tool {
	tools := make([]openai.Tool, len(defs))
	for i, def := range defs {
		schemaBytes, _ := json.Marshal(def.InputSchema)
		var jsonSchema map[string]interface{}
		json.Unmarshal(schemaBytes, &jsonSchema)

		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  jsonSchema,
			},
		}
	}
	return tools
}
