package skills

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shelfagent/shelfagent/pkg/gate"
	"github.com/shelfagent/shelfagent/pkg/logger"
	"github.com/shelfagent/shelfagent/pkg/telemetry"
	skilltypes "github.com/shelfagent/shelfagent/pkg/types/skills"
)

var tracer = telemetry.Tracer("shelfagent.skills")

// RunSkill executes a named skill through the execution gate. The gate
// check-and-set happens before any work: a denied invocation returns
// the blocked message as a success-shaped result without touching the
// skill. Every executed invocation, including validation failures and
// timeouts, records its outcome so a blocked retry sees it.
func RunSkill(ctx context.Context, g *gate.ExecutionGate, registry *Registry, skillName, parameters string) skilltypes.SkillResult {
	skill, ok := registry.Get(skillName)
	if !ok {
		return skilltypes.SkillResult{
			Error: errors.Errorf("unknown skill: %s", skillName).Error(),
		}
	}

	if !g.TryAcquire(skillName) {
		logger.G(ctx).WithFields(map[string]any{
			"skill":   skillName,
			"session": g.SessionID(),
		}).Info("skill invocation blocked by gate")
		return skilltypes.SkillResult{Result: g.DescribeBlocked(skillName)}
	}

	ctx, span := tracer.Start(
		ctx,
		fmt.Sprintf("skills.run_skill.%s", skillName),
		trace.WithAttributes(
			attribute.String("skill.name", skillName),
			attribute.String("gate.session_id", g.SessionID()),
		),
	)
	defer span.End()

	if err := skill.ValidateInput(parameters); err != nil {
		result := skilltypes.SkillResult{Error: err.Error()}
		g.RecordResult(skillName, result.Outcome())
		span.SetStatus(codes.Error, result.Error)
		return result
	}

	result := skill.Execute(ctx, parameters)
	g.RecordResult(skillName, result.Outcome())

	if result.IsError() {
		span.SetStatus(codes.Error, result.Error)
		span.RecordError(errors.New(result.Error))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result
}
