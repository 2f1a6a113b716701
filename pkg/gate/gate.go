// Package gate implements the per-session skill execution gate: a
// small state machine that deduplicates skill invocations within a
// conversational turn. A driving language model may dispatch the same
// tool call several times before it sees any result; the gate makes
// those repeats safe by letting the first acquire win and answering
// every later attempt with a cached completion message.
package gate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Policy selects how aggressively the gate blocks repeat invocations.
type Policy int

const (
	// PerSkillDedup allows each skill to run at most once per session.
	PerSkillDedup Policy = iota
	// StrictSingleSkill allows at most one skill per session across all
	// skill names. Once anything has run, everything else is blocked.
	StrictSingleSkill
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case StrictSingleSkill:
		return "strict_single"
	default:
		return "per_skill"
	}
}

// ParsePolicy parses a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "per_skill", "":
		return PerSkillDedup, nil
	case "strict_single":
		return StrictSingleSkill, nil
	default:
		return PerSkillDedup, errors.Errorf("unknown gate policy: %s", s)
	}
}

// ExecutionGate tracks which skills have run in the current session and
// blocks duplicates. It holds only the current session's state; starting
// a new session discards everything. All methods are safe for
// concurrent use; TryAcquire is a single check-then-set critical
// section so that racing tool calls resolve to exactly one winner.
//
// The zero value is not usable; construct with New.
type ExecutionGate struct {
	mu sync.Mutex

	policy      Policy
	sessionID   string
	executed    map[string]bool
	results     map[string]string
	anyExecuted bool
}

// Option configures an ExecutionGate.
type Option func(*ExecutionGate)

// WithPolicy sets the blocking policy. The default is PerSkillDedup.
func WithPolicy(p Policy) Option {
	return func(g *ExecutionGate) {
		g.policy = p
	}
}

// New creates an ExecutionGate with no active session. Callers must
// invoke StartSession once per logical unit of work before running any
// skill through the gate.
func New(opts ...Option) *ExecutionGate {
	g := &ExecutionGate{
		policy:   PerSkillDedup,
		executed: make(map[string]bool),
		results:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the configured blocking policy.
func (g *ExecutionGate) Policy() Policy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy
}

// SessionID returns the active session id, empty before the first
// StartSession.
func (g *ExecutionGate) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID
}

// StartSession discards all invocation records and cached results and
// sets the active session id. Each call fully supersedes the previous
// session; it never fails.
func (g *ExecutionGate) StartSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionID = sessionID
	g.executed = make(map[string]bool)
	g.results = make(map[string]string)
	g.anyExecuted = false
}

// TryAcquire attempts to claim the right to run skillName in the
// current session. It returns true at most once per (session, skill)
// pair, and under StrictSingleSkill at most once per session across all
// skill names. Skill names are accepted opaquely; the gate does not
// validate them against a registry.
func (g *ExecutionGate) TryAcquire(skillName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.policy == StrictSingleSkill && g.anyExecuted {
		return false
	}
	if g.executed[skillName] {
		return false
	}

	g.executed[skillName] = true
	g.anyExecuted = true
	return true
}

// RecordResult stores the outcome of a skill execution for the current
// session. Handlers call it exactly once on every exit path, success or
// failure, so that a blocked retry sees the real outcome instead of a
// generic message. Calling it without a prior acquire is tolerated.
func (g *ExecutionGate) RecordResult(skillName, result string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[skillName] = result
}

// DescribeBlocked produces the message returned to a caller that was
// denied execution. It is read-only and idempotent: repeated calls
// return the same message.
func (g *ExecutionGate) DescribeBlocked(skillName string) string {
	g.mu.Lock()
	cached, ok := g.results[skillName]
	g.mu.Unlock()

	if !ok {
		return fmt.Sprintf("Skill %q has already been completed in this session. No further action is needed.", skillName)
	}
	return fmt.Sprintf("Skill %q has already been completed in this session. Previous outcome: %s",
		skillName, stripCompletionNotices(cached))
}

// stripCompletionNotices removes "already completed" decorations from a
// cached result so repeated blocked calls do not stack notices inside
// each other.
func stripCompletionNotices(result string) string {
	for {
		idx := strings.Index(result, "has already been completed in this session.")
		if idx < 0 {
			break
		}
		end := idx + len("has already been completed in this session.")
		rest := strings.TrimSpace(result[end:])
		rest = strings.TrimPrefix(rest, "No further action is needed.")
		rest = strings.TrimPrefix(rest, "Previous outcome:")
		start := strings.LastIndex(result[:idx], "Skill ")
		if start < 0 {
			start = 0
		}
		result = strings.TrimSpace(result[:start] + strings.TrimSpace(rest))
		if result == "" {
			return "no additional output was recorded"
		}
	}
	return result
}
