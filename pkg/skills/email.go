package skills

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/logger"
	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
)

// SendEmailInput defines the input parameters for the send_email skill.
type SendEmailInput struct {
	Recipient string `json:"recipient" jsonschema:"description=Email address of the recipient"`
	Subject   string `json:"subject" jsonschema:"description=Subject line"`
	Body      string `json:"body" jsonschema:"description=Message body"`
}

// SendEmailSkill simulates sending an email. No real delivery happens;
// the skill exists to give the routing layer a side-effect-shaped
// target that is safe to demo.
type SendEmailSkill struct{}

// NewSendEmailSkill creates the send_email skill.
func NewSendEmailSkill() *SendEmailSkill {
	return &SendEmailSkill{}
}

// Name returns the name of the skill.
func (s *SendEmailSkill) Name() string {
	return SendEmailSkillName
}

// Description returns the description of the skill.
func (s *SendEmailSkill) Description() string {
	return "Send an email to a recipient. Delivery is simulated; a structured confirmation payload is returned."
}

// GenerateSchema generates the JSON schema for the skill's input.
func (s *SendEmailSkill) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[SendEmailInput]()
}

// ValidateInput checks the parameters before execution.
func (s *SendEmailSkill) ValidateInput(parameters string) error {
	var input SendEmailInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if strings.TrimSpace(input.Recipient) == "" {
		return errors.New("recipient is required")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}

// Execute runs the skill.
func (s *SendEmailSkill) Execute(ctx context.Context, parameters string) skilltypes.SkillResult {
	var input SendEmailInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "invalid input").Error()}
	}

	confirmation := map[string]any{
		"status":    "simulated",
		"messageId": uuid.New().String(),
		"recipient": input.Recipient,
		"subject":   input.Subject,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(confirmation, "", "  ")
	if err != nil {
		return skilltypes.SkillResult{Error: errors.Wrap(err, "failed to encode confirmation").Error()}
	}

	logger.G(ctx).WithField("recipient", input.Recipient).Info("simulated email send")
	return skilltypes.SkillResult{Result: string(payload)}
}
