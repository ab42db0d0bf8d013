// Package planner turns user input plus perception context into an execution
// plan: a classified goal, an ordered task graph with dependencies, and a
// response strategy chosen from a deterministic rule table.
package planner

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Goal classifies what the user is trying to accomplish.
type Goal string

const (
	GoalInformationQuery Goal = "information_query"
	GoalEmotionalSupport Goal = "emotional_support"
	GoalProblemSolving   Goal = "problem_solving"
	GoalBehaviorChange   Goal = "behavior_change"
	GoalCasualChat       Goal = "casual_chat"
)

// Strategy is the high-level response approach.
type Strategy string

const (
	StrategyDirectResponse    Strategy = "direct_response"
	StrategyEmpathyFirst      Strategy = "empathy_first"
	StrategyToolUse           Strategy = "tool_use"
	StrategyScheduledFollowup Strategy = "scheduled_followup"
	StrategyConversational    Strategy = "conversational"
)

// Task is one step of an execution plan.
type Task struct {
	// ID identifies the task within its plan.
	ID string `json:"id"`

	// Description says what the step does.
	Description string `json:"description"`

	// Tool names the tool to invoke, empty for LLM-only steps.
	Tool string `json:"tool,omitempty"`

	// Params are passed to the tool when Tool is set.
	Params map[string]interface{} `json:"params,omitempty"`

	// DependsOn lists task IDs that must complete first. Tasks with no
	// dependencies may run in parallel.
	DependsOn []string `json:"depends_on,omitempty"`
}

// Plan is the planner's output: a non-empty ordered step list with a goal
// and strategy.
type Plan struct {
	// Goal is the classified user goal.
	Goal Goal `json:"goal"`

	// Strategy is the selected response approach.
	Strategy Strategy `json:"strategy"`

	// Tasks is the ordered step list. Never empty.
	Tasks []Task `json:"tasks"`
}

// Context carries the perception signals the planner keys its rules on.
type Context struct {
	// EmotionTag labels the dominant detected emotion.
	EmotionTag string

	// EmotionIntensity is the detected emotion strength (0-10).
	EmotionIntensity float64

	// HasUnresolvedConcern reports a long-running concern memory with no
	// recent follow-up.
	HasUnresolvedConcern bool

	// AvailableTools lists the tools registered for this turn.
	AvailableTools []string
}

// Config configures a Planner.
type Config struct {
	// EmpathyIntensityThreshold is the emotion intensity above which
	// empathy_first wins (default 7.0).
	EmpathyIntensityThreshold float64

	// Logger receives planning events. A zero Logger is usable and silent.
	Logger zerolog.Logger
}

// Planner classifies goals and builds execution plans. It is stateless and
// safe for concurrent use.
type Planner struct {
	empathyThreshold float64
	logger           zerolog.Logger
}

// New creates a Planner.
func New(cfg *Config) *Planner {
	p := &Planner{empathyThreshold: 7.0}
	if cfg != nil {
		if cfg.EmpathyIntensityThreshold > 0 {
			p.empathyThreshold = cfg.EmpathyIntensityThreshold
		}
		p.logger = cfg.Logger
	}
	return p
}

// Plan builds an execution plan for user input under the given context.
//
// The pipeline is: goal identification from keyword rules, a complexity
// check that short-circuits simple inputs to direct_response, decomposition
// into a task graph, and strategy selection from the rule table. The
// returned plan always has at least one step; when no rule matches, the
// strategy falls back to conversational.
func (p *Planner) Plan(userInput string, pctx *Context) (*Plan, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, fmt.Errorf("plan: user input is required")
	}
	if pctx == nil {
		pctx = &Context{}
	}

	goal := ClassifyGoal(userInput)

	if isSimple(userInput, goal, pctx) {
		plan := &Plan{
			Goal:     goal,
			Strategy: StrategyDirectResponse,
			Tasks: []Task{
				{ID: "respond", Description: "Answer directly from context"},
			},
		}
		p.logPlan(userInput, plan)
		return plan, nil
	}

	strategy := p.selectStrategy(goal, pctx)
	plan := &Plan{
		Goal:     goal,
		Strategy: strategy,
		Tasks:    decompose(goal, strategy, pctx),
	}
	if len(plan.Tasks) == 0 {
		// A plan must always carry at least one step.
		plan.Strategy = StrategyConversational
		plan.Tasks = []Task{
			{ID: "respond", Description: "Continue the conversation naturally"},
		}
	}

	p.logPlan(userInput, plan)
	return plan, nil
}

// ClassifyGoal identifies the user's goal from keyword and pattern rules.
func ClassifyGoal(userInput string) Goal {
	lower := strings.ToLower(userInput)

	switch {
	case matchAny(lower,
		"feel", "sad", "depressed", "anxious", "worried", "lonely",
		"upset", "stressed", "scared", "miss "):
		return GoalEmotionalSupport
	case matchAny(lower,
		"how do i", "how can i", "help me", "fix", "solve", "stuck",
		"not working", "error", "problem"):
		return GoalProblemSolving
	case matchAny(lower,
		"i want to start", "i want to stop", "i want to quit", "habit",
		"every day", "routine", "remind me", "hold me accountable"):
		return GoalBehaviorChange
	case matchAny(lower,
		"what is", "what are", "who is", "when is", "where is", "why",
		"tell me about", "explain", "?"):
		return GoalInformationQuery
	}
	return GoalCasualChat
}

// isSimple reports whether the input can be answered in a single direct
// step: short, unemotional, and not asking for problem-solving work.
func isSimple(userInput string, goal Goal, pctx *Context) bool {
	if pctx.EmotionIntensity >= 7.0 || pctx.HasUnresolvedConcern {
		return false
	}
	if goal == GoalProblemSolving || goal == GoalBehaviorChange || goal == GoalEmotionalSupport {
		return false
	}
	return len(strings.Fields(userInput)) <= 12
}

// selectStrategy applies the deterministic rule table keyed by goal, emotion
// intensity, and concern state.
func (p *Planner) selectStrategy(goal Goal, pctx *Context) Strategy {
	switch {
	case pctx.EmotionIntensity > p.empathyThreshold:
		return StrategyEmpathyFirst
	case goal == GoalProblemSolving && len(pctx.AvailableTools) > 0:
		return StrategyToolUse
	case pctx.HasUnresolvedConcern || goal == GoalBehaviorChange:
		return StrategyScheduledFollowup
	case goal == GoalEmotionalSupport:
		return StrategyEmpathyFirst
	case goal == GoalInformationQuery:
		return StrategyDirectResponse
	}
	return StrategyConversational
}

// decompose builds the task graph for a goal and strategy.
func decompose(goal Goal, strategy Strategy, pctx *Context) []Task {
	switch strategy {
	case StrategyToolUse:
		tasks := []Task{
			{ID: "gather", Description: "Collect relevant facts via tools", Tool: firstTool(pctx)},
			{ID: "synthesize", Description: "Combine tool output with memory context", DependsOn: []string{"gather"}},
			{ID: "respond", Description: "Present the solution", DependsOn: []string{"synthesize"}},
		}
		return tasks
	case StrategyEmpathyFirst:
		return []Task{
			{ID: "acknowledge", Description: "Acknowledge the user's feelings"},
			{ID: "explore", Description: "Ask a gentle follow-up question", DependsOn: []string{"acknowledge"}},
			{ID: "respond", Description: "Offer support grounded in what the user shared", DependsOn: []string{"explore"}},
		}
	case StrategyScheduledFollowup:
		return []Task{
			{ID: "respond", Description: "Address the immediate message"},
			{ID: "schedule", Description: "Schedule a follow-up check-in", DependsOn: []string{"respond"}},
		}
	case StrategyDirectResponse:
		return []Task{
			{ID: "respond", Description: "Answer directly from context"},
		}
	}
	return []Task{
		{ID: "respond", Description: "Continue the conversation naturally"},
	}
}

func firstTool(pctx *Context) string {
	if len(pctx.AvailableTools) > 0 {
		return pctx.AvailableTools[0]
	}
	return ""
}

func matchAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func (p *Planner) logPlan(userInput string, plan *Plan) {
	p.logger.Debug().
		Str("goal", string(plan.Goal)).
		Str("strategy", string(plan.Strategy)).
		Int("steps", len(plan.Tasks)).
		Msg("plan built")
}
