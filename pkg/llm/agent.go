package llm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/shelfagent/shelfagent/pkg/gate"
	"github.com/shelfagent/shelfagent/pkg/logger"
	"github.com/shelfagent/shelfagent/pkg/skills"
)

// maxAgentIterations bounds the tool-calling loop so a looping model
// cannot spin forever. The gate already makes repeated calls harmless;
// the bound keeps latency sane.
const maxAgentIterations = 8

const agentSystemPrompt = `You are a document assistant. You can index PDF documents, ` +
	`search their content, look up book metadata, list or purge indexed documents, ` +
	`and send email summaries. Use the provided tools to fulfill the user's request, ` +
	`then answer with a short summary of what was done. Each tool runs at most once ` +
	`per conversation turn; if a tool reports the task as already completed, do not ` +
	`call it again.`

// Agent runs a tool-calling conversation turn, dispatching the model's
// skill invocations through the execution gate.
type Agent struct {
	client   *Client
	registry *skills.Registry
}

// NewAgent creates an agent loop over the registry.
func NewAgent(client *Client, registry *skills.Registry) *Agent {
	return &Agent{client: client, registry: registry}
}

// Run processes one user message. All tool calls in the turn share the
// given gate session, so duplicates surface as cached completion
// messages instead of repeated side effects.
func (a *Agent) Run(ctx context.Context, g *gate.ExecutionGate, message string) (string, error) {
	if message == "" {
		return "", errors.New("message cannot be empty")
	}

	log := logger.G(ctx).WithField("session", g.SessionID())
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: agentSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: message},
	}
	tools := toOpenAITools(a.registry.Definitions())

	for i := 0; i < maxAgentIterations; i++ {
		resp, err := a.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.client.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", errors.Wrap(err, "agent completion request failed")
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("agent completion returned no choices")
		}

		choice := resp.Choices[0].Message
		messages = append(messages, choice)

		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}

		for _, call := range choice.ToolCalls {
			log.WithField("skill", call.Function.Name).Info("agent dispatching skill")
			result := skills.RunSkill(ctx, g, a.registry, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result.AssistantFacing(),
				ToolCallID: call.ID,
			})
		}
	}

	return "", errors.Errorf("agent did not converge within %d iterations", maxAgentIterations)
}
