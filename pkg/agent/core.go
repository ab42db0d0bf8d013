package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentio-ai/sentio-go/pkg/llm"
	"github.com/sentio-ai/sentio-go/pkg/memory"
	"github.com/sentio-ai/sentio-go/pkg/planner"
	"github.com/sentio-ai/sentio-go/pkg/protocol"
	"github.com/sentio-ai/sentio-go/pkg/reflector"
	"github.com/sentio-ai/sentio-go/pkg/scheduler"
	"github.com/sentio-ai/sentio-go/pkg/tool"
)

// State is a stage of the turn pipeline. Transitions are strictly forward;
// DEGRADED is reachable from any stage on unrecoverable dependency failure
// and still produces a best-effort reply.
type State string

const (
	StatePerceiving    State = "PERCEIVING"
	StateRetrieving    State = "RETRIEVING"
	StatePlanning      State = "PLANNING"
	StateExecuting     State = "EXECUTING"
	StateResponding    State = "RESPONDING"
	StateConsolidating State = "CONSOLIDATING"
	StateReflecting    State = "REFLECTING"
	StateDone          State = "DONE"
	StateDegraded      State = "DEGRADED"
	StateIdle          State = "IDLE"
)

// InteractionSummary is one entry of a user's execution history.
type InteractionSummary struct {
	InteractionID string           `json:"interaction_id"`
	Input         string           `json:"input"`
	Response      string           `json:"response"`
	Goal          planner.Goal     `json:"goal"`
	Strategy      planner.Strategy `json:"strategy"`
	Outcome       string           `json:"outcome,omitempty"`
	Degraded      bool             `json:"degraded"`
	Latency       time.Duration    `json:"latency"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Status is the agent's read-only health snapshot.
type Status struct {
	// State is the state of the most recent turn.
	State State `json:"state"`

	// RegisteredTools is the registry size.
	RegisteredTools int `json:"registered_tools"`

	// LoggedEnvelopes is the total number of envelopes appended to the log.
	LoggedEnvelopes uint64 `json:"logged_envelopes"`

	// ProcessedTurns counts completed Process calls.
	ProcessedTurns uint64 `json:"processed_turns"`
}

// CoreConfig wires an agent core together. Hub, Planner, and LLM are
// required; the rest default to in-process implementations.
type CoreConfig struct {
	// Hub is the memory hub (required).
	Hub *memory.Hub

	// Planner builds execution plans (required).
	Planner *planner.Planner

	// LLM generates replies (required).
	LLM llm.Provider

	// Registry holds callable tools (default empty).
	Registry *tool.Registry

	// Caller executes tools (default caller over Registry).
	Caller *tool.Caller

	// Reflector evaluates turns and plans follow-ups (default over Hub).
	Reflector *reflector.Reflector

	// Scheduler receives follow-up deliveries (default in-memory recorder).
	Scheduler scheduler.Scheduler

	// Emotion analyzes emotional state (default keyword analyzer).
	Emotion EmotionAnalyzer

	// Safety screens content (default keyword screener).
	Safety SafetyScreener

	// Log is the envelope log (default new log).
	Log *protocol.Log

	// Logger receives pipeline events. A zero Logger is usable and silent.
	Logger zerolog.Logger

	// Pipeline holds the orchestration tunables (zero fields take defaults).
	Pipeline PipelineConfig
}

// Core is the top-level orchestrator. One Process call runs the full
// perceive, retrieve, plan, execute, respond, consolidate, reflect pipeline
// for a single user turn.
//
// All collaborators are injected at construction; Core holds no process-wide
// mutable globals and is safe for concurrent Process calls across users.
type Core struct {
	hub       *memory.Hub
	planner   *planner.Planner
	llmp      llm.Provider
	registry  *tool.Registry
	caller    *tool.Caller
	reflector *reflector.Reflector
	sched     scheduler.Scheduler
	emotion   EmotionAnalyzer
	safety    SafetyScreener
	log       *protocol.Log
	logger    zerolog.Logger
	pipeline  PipelineConfig

	mu        sync.Mutex
	lastState State
	turns     uint64
	histories map[string][]InteractionSummary
}

// NewCore creates an agent core from cfg, filling in defaults for optional
// collaborators.
func NewCore(cfg *CoreConfig) (*Core, error) {
	if cfg == nil {
		return nil, &AgentError{Op: "new", Err: errors.New("config is required")}
	}
	if cfg.Hub == nil {
		return nil, &AgentError{Op: "new", Err: errors.New("memory hub is required")}
	}
	if cfg.Planner == nil {
		return nil, &AgentError{Op: "new", Err: errors.New("planner is required")}
	}
	if cfg.LLM == nil {
		return nil, &AgentError{Op: "new", Err: errors.New("llm provider is required")}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	caller := cfg.Caller
	if caller == nil {
		var err error
		caller, err = tool.NewCaller(&tool.CallerConfig{Registry: registry, Logger: cfg.Logger})
		if err != nil {
			return nil, &AgentError{Op: "new", Err: err}
		}
	}
	refl := cfg.Reflector
	if refl == nil {
		var err error
		refl, err = reflector.New(&reflector.Config{Hub: cfg.Hub, Logger: cfg.Logger})
		if err != nil {
			return nil, &AgentError{Op: "new", Err: err}
		}
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.NewRecorder()
	}
	emotion := cfg.Emotion
	if emotion == nil {
		emotion = &KeywordEmotionAnalyzer{}
	}
	safety := cfg.Safety
	if safety == nil {
		safety = &KeywordSafetyScreener{}
	}
	log := cfg.Log
	if log == nil {
		log = protocol.NewLog(0)
	}

	pipeline := cfg.Pipeline
	defaults := DefaultPipelineConfig()
	if pipeline.LLMTimeout <= 0 {
		pipeline.LLMTimeout = defaults.LLMTimeout
	}
	if pipeline.PerceptionTimeout <= 0 {
		pipeline.PerceptionTimeout = defaults.PerceptionTimeout
	}
	if pipeline.RetrievalTopK <= 0 {
		pipeline.RetrievalTopK = defaults.RetrievalTopK
	}
	if pipeline.MaxTurns <= 0 {
		pipeline.MaxTurns = defaults.MaxTurns
	}
	if pipeline.TokenBudget <= 0 {
		pipeline.TokenBudget = defaults.TokenBudget
	}
	if pipeline.HistoryLimit <= 0 {
		pipeline.HistoryLimit = defaults.HistoryLimit
	}

	return &Core{
		hub:       cfg.Hub,
		planner:   cfg.Planner,
		llmp:      cfg.LLM,
		registry:  registry,
		caller:    caller,
		reflector: refl,
		sched:     sched,
		emotion:   emotion,
		safety:    safety,
		log:       log,
		logger:    cfg.Logger,
		pipeline:  pipeline,
		lastState: StateIdle,
		histories: make(map[string][]InteractionSummary),
	}, nil
}

// ProcessOption customizes a single Process call.
type ProcessOption func(*processOptions)

type processOptions struct {
	sessionID string
}

// WithSessionID scopes the turn to a session's working memory window.
// Defaults to the owner ID.
func WithSessionID(sessionID string) ProcessOption {
	return func(o *processOptions) { o.sessionID = sessionID }
}

// turnState accumulates everything one Process call produces on its way
// through the pipeline.
type turnState struct {
	interactionID string
	ownerID       string
	sessionID     string
	input         string
	started       time.Time

	emotion       *EmotionState
	safety        *SafetyResult
	memories      []*memory.Record
	profile       *memory.UserProfile
	plan          *planner.Plan
	toolResponses []protocol.ToolResponse
	toolFailures  int
	reply         string
	evaluation    *reflector.EvaluationResult

	degraded       bool
	degradedCauses []string
}

func (t *turnState) degrade(cause string) {
	t.degraded = true
	t.degradedCauses = append(t.degradedCauses, cause)
}

// Process runs one full turn and always returns an agent_response envelope,
// even when external dependencies failed along the way (degraded mode). The
// only error returns are input validation and caller cancellation.
func (c *Core) Process(ctx context.Context, userInput, ownerID string, opts ...ProcessOption) (*protocol.Envelope, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, &AgentError{Op: "process", Err: fmt.Errorf("%w: user input is empty", ErrValidation)}
	}
	if ownerID == "" {
		return nil, &AgentError{Op: "process", Err: fmt.Errorf("%w: owner id is empty", ErrValidation)}
	}

	options := &processOptions{sessionID: ownerID}
	for _, opt := range opts {
		opt(options)
	}

	t := &turnState{
		interactionID: protocol.NewInteractionID(),
		ownerID:       ownerID,
		sessionID:     options.sessionID,
		input:         userInput,
		started:       time.Now(),
	}

	logger := c.logger.With().Str("interaction_id", t.interactionID).Str("owner_id", ownerID).Logger()
	c.log.Append(protocol.NewEnvelope(t.interactionID, protocol.TypeUserInput, userInput, "user", "agent_core"))

	// PERCEIVING and RETRIEVING run as one fan-out: emotion, safety, and
	// memory retrieval are independent and join before planning.
	c.setState(StatePerceiving)
	if err := c.perceive(ctx, t, logger); err != nil {
		return nil, err
	}
	c.setState(StateRetrieving)

	if err := ctx.Err(); err != nil {
		return nil, &AgentError{Op: "process", Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
	}

	c.setState(StatePlanning)
	c.buildPlan(ctx, t, logger)

	// EXECUTING is skipped entirely for direct responses.
	if t.plan.Strategy != planner.StrategyDirectResponse {
		c.setState(StateExecuting)
		c.execute(ctx, t, logger)
	}

	if err := ctx.Err(); err != nil {
		return nil, &AgentError{Op: "process", Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
	}

	c.setState(StateResponding)
	c.respond(ctx, t, logger)

	c.setState(StateConsolidating)
	c.consolidate(ctx, t, logger)

	c.setState(StateReflecting)
	c.reflect(ctx, t, logger)

	envelope := c.finish(t, logger)
	return envelope, nil
}

// perceive fans out emotion analysis, safety screening, and memory retrieval
// and joins the results. Each sub-task wraps its own result; a failure
// degrades the turn instead of cancelling siblings.
func (c *Core) perceive(ctx context.Context, t *turnState, logger zerolog.Logger) error {
	fanCtx, cancel := context.WithTimeout(ctx, c.pipeline.PerceptionTimeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		emotionRes *EmotionState
		emotionErr error
		safetyRes  *SafetyResult
		safetyErr  error
		memRes     []*memory.Record
		memErr     error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		emotionRes, emotionErr = c.emotion.Analyze(fanCtx, t.input)
	}()
	go func() {
		defer wg.Done()
		safetyRes, safetyErr = c.safety.Screen(fanCtx, t.input)
	}()
	go func() {
		defer wg.Done()
		memRes, memErr = c.hub.Retrieve(fanCtx, t.input, t.ownerID, nil, c.pipeline.RetrievalTopK)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return &AgentError{Op: "perceive", Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
	}

	if emotionErr != nil {
		logger.Warn().Err(wrapTimeout("perceive", emotionErr)).Msg("emotion analysis failed; using neutral fallback")
		t.degrade("emotion_analysis")
		emotionRes = &EmotionState{Tag: "neutral", Intensity: 2.0}
	}
	if safetyErr != nil {
		logger.Warn().Err(wrapTimeout("perceive", safetyErr)).Msg("safety screening failed; continuing unflagged")
		t.degrade("safety_screening")
		safetyRes = &SafetyResult{}
	}
	if memErr != nil {
		logger.Warn().Err(wrapTimeout("perceive", memErr)).Msg("memory retrieval failed; continuing without memories")
		t.degrade("memory_retrieval")
		memRes = nil
	}

	t.emotion = emotionRes
	t.safety = safetyRes
	t.memories = memRes
	return nil
}

// buildPlan derives the planner context from perception and memory and asks
// the planner for an execution plan. Planner failure falls back to a
// single-step conversational plan rather than aborting the turn.
func (c *Core) buildPlan(ctx context.Context, t *turnState, logger zerolog.Logger) {
	profile, err := c.hub.GetUserProfile(ctx, t.ownerID)
	if err != nil {
		logger.Warn().Err(err).Msg("profile unavailable")
		t.degrade("user_profile")
	}
	t.profile = profile

	pctx := &planner.Context{
		EmotionTag:           t.emotion.Tag,
		EmotionIntensity:     t.emotion.Intensity,
		HasUnresolvedConcern: hasUnresolvedConcern(t.memories),
		AvailableTools:       c.registry.Names(),
	}

	plan, err := c.planner.Plan(t.input, pctx)
	if err != nil {
		err = &AgentError{Op: "plan", Err: fmt.Errorf("%w: %v", ErrPlanning, err)}
		logger.Warn().Err(err).Msg("planning failed; falling back to conversational")
		t.degrade("planning")
		plan = &planner.Plan{
			Goal:     planner.GoalCasualChat,
			Strategy: planner.StrategyConversational,
			Tasks:    []planner.Task{{ID: "respond", Description: "Continue the conversation naturally"}},
		}
	}
	t.plan = plan

	c.log.Append(protocol.NewEnvelope(
		t.interactionID, protocol.TypePlannerOutput,
		fmt.Sprintf("goal=%s strategy=%s steps=%d", plan.Goal, plan.Strategy, len(plan.Tasks)),
		"planner", "agent_core",
		protocol.WithContext(protocol.Context{TaskGoal: string(plan.Goal)}),
	))
}

// execute runs the plan's tool-bearing tasks. Tasks without dependencies run
// in parallel; dependent tasks run afterwards in plan order. Every result is
// independent; failures count toward the degraded signal only when all tool
// work failed.
func (c *Core) execute(ctx context.Context, t *turnState, logger zerolog.Logger) {
	var independent, dependent []planner.Task
	for _, task := range t.plan.Tasks {
		if task.Tool == "" {
			continue
		}
		if len(task.DependsOn) == 0 {
			independent = append(independent, task)
		} else {
			dependent = append(dependent, task)
		}
	}
	if len(independent)+len(dependent) == 0 {
		return
	}

	var calls []tool.Invocation
	for _, task := range independent {
		calls = append(calls, tool.Invocation{Name: task.Tool, Params: task.Params})
	}
	c.log.Append(protocol.NewEnvelope(
		t.interactionID, protocol.TypeToolRequest,
		fmt.Sprintf("%d tool call(s)", len(independent)+len(dependent)),
		"agent_core", "tool_caller",
		protocol.WithToolCalls(toProtocolCalls(independent, dependent)...),
	))

	results := c.caller.CallParallel(ctx, calls)
	for _, task := range dependent {
		results = append(results, c.caller.Call(ctx, task.Tool, task.Params))
	}

	for _, res := range results {
		t.toolResponses = append(t.toolResponses, protocol.ToolResponse{
			Name:      res.Tool,
			Success:   res.Success,
			Result:    res.Result,
			Error:     res.ErrorMessage(),
			LatencyMs: res.Latency.Milliseconds(),
		})
		if !res.Success {
			t.toolFailures++
		}
	}
	if t.toolFailures == len(results) {
		t.degrade("tool_execution")
	}

	c.log.Append(protocol.NewEnvelope(
		t.interactionID, protocol.TypeToolResponse,
		fmt.Sprintf("%d/%d tool call(s) succeeded", len(results)-t.toolFailures, len(results)),
		"tool_caller", "agent_core",
		protocol.WithToolResponses(t.toolResponses...),
	))
}

// respond generates the reply with the LLM under its timeout. On failure the
// turn degrades to a strategy-appropriate canned reply; the user always
// receives something.
func (c *Core) respond(ctx context.Context, t *turnState, logger zerolog.Logger) {
	llmCtx, cancel := context.WithTimeout(ctx, c.pipeline.LLMTimeout)
	defer cancel()

	messages := c.buildMessages(t)
	reply, err := c.llmp.GenerateWithMessages(llmCtx, messages)
	if err != nil {
		cause := "llm_generation"
		if errors.Is(err, context.DeadlineExceeded) {
			err = wrapTimeout("respond", err)
			cause = "llm_timeout"
		}
		logger.Warn().Err(err).Msg("reply generation failed; using fallback reply")
		t.degrade(cause)
		reply = fallbackReply(t)
	}
	t.reply = reply
}

// consolidate encodes the turn into memory and appends it to the session's
// working window. A degraded encode (no embedding) is still consolidated;
// the record stays reachable through recency retrieval.
func (c *Core) consolidate(ctx context.Context, t *turnState, logger zerolog.Logger) {
	record, err := c.hub.Encode(ctx, memory.Experience{
		OwnerID:          t.ownerID,
		SessionID:        t.sessionID,
		Content:          t.input,
		EmotionTag:       t.emotion.Tag,
		EmotionIntensity: t.emotion.Intensity,
		Metadata:         map[string]string{"interaction_id": t.interactionID},
	})
	if err != nil {
		if record == nil {
			logger.Warn().Err(err).Msg("encoding failed; turn not remembered")
			t.degrade("memory_encoding")
		} else {
			// Degraded encode: keep the record without a vector index.
			logger.Warn().Err(err).Msg("encoding degraded; storing without vector index")
			t.degrade("memory_encoding")
		}
	}
	if record != nil {
		if _, err := c.hub.Consolidate(ctx, record); err != nil {
			logger.Warn().Err(err).Msg("consolidation failed")
			t.degrade("memory_consolidation")
		}
	}

	window := c.hub.Window(t.sessionID, c.pipeline.MaxTurns, c.pipeline.TokenBudget)
	window.Append(memory.Turn{Role: "user", Content: t.input, EmotionIntensity: t.emotion.Intensity})
	window.Append(memory.Turn{Role: "assistant", Content: t.reply})

	c.hub.RecordInteraction(t.ownerID)
}

// reflect evaluates the turn and, when warranted, hands a follow-up to the
// scheduler.
func (c *Core) reflect(ctx context.Context, t *turnState, logger zerolog.Logger) {
	t.evaluation = c.reflector.Evaluate(&reflector.Interaction{
		OwnerID:              t.ownerID,
		InteractionID:        t.interactionID,
		Goal:                 t.plan.Goal,
		Strategy:             t.plan.Strategy,
		GoalAddressed:        t.reply != "" && !t.degraded,
		Latency:              time.Since(t.started),
		PreEmotionIntensity:  t.emotion.Intensity,
		PostEmotionIntensity: -1,
		ToolFailures:         t.toolFailures,
		Degraded:             t.degraded,
	})

	c.log.Append(protocol.NewEnvelope(
		t.interactionID, protocol.TypeReflectorEvaluation,
		fmt.Sprintf("outcome=%s score=%.2f", t.evaluation.Outcome, t.evaluation.Score),
		"reflector", "agent_core",
	))

	if t.plan.Strategy != planner.StrategyScheduledFollowup {
		return
	}

	task, err := c.reflector.PlanFollowup(ctx, t.ownerID, &reflector.FollowupContext{
		CurrentEmotionIntensity: t.emotion.Intensity,
		CurrentEmotionTag:       t.emotion.Tag,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("followup planning failed")
		return
	}
	if task == nil {
		return
	}

	err = c.sched.Schedule(t.ownerID, task.At, scheduler.Payload{
		OwnerID: t.ownerID,
		Message: task.Message,
		Reason:  task.Reason,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("followup scheduling failed")
		return
	}
	c.log.Append(protocol.NewEnvelope(
		t.interactionID, protocol.TypeInternal,
		fmt.Sprintf("followup scheduled: %s", task.Reason),
		"reflector", "scheduler",
	))
}

// finish assembles the final agent_response envelope, logs it, and records
// the turn into the execution history.
func (c *Core) finish(t *turnState, logger zerolog.Logger) *protocol.Envelope {
	metadata := map[string]interface{}{
		"degraded": t.degraded,
		"strategy": string(t.plan.Strategy),
	}
	if t.degraded {
		metadata["degraded_causes"] = strings.Join(t.degradedCauses, ",")
	}
	if t.evaluation != nil {
		metadata["evaluation_outcome"] = string(t.evaluation.Outcome)
	}
	if t.safety != nil && t.safety.Flagged {
		metadata["safety_flagged"] = true
	}

	envelope := protocol.NewEnvelope(
		t.interactionID, protocol.TypeAgentResponse, t.reply,
		"agent_core", "user",
		protocol.WithContext(c.buildContext(t)),
		protocol.WithToolResponses(t.toolResponses...),
		protocol.WithMetadata(metadata),
	)
	c.log.Append(envelope)

	final := StateDone
	if t.degraded {
		final = StateDegraded
	}
	c.setState(final)

	c.mu.Lock()
	c.turns++
	hist := append(c.histories[t.ownerID], InteractionSummary{
		InteractionID: t.interactionID,
		Input:         t.input,
		Response:      t.reply,
		Goal:          t.plan.Goal,
		Strategy:      t.plan.Strategy,
		Outcome:       outcomeOf(t.evaluation),
		Degraded:      t.degraded,
		Latency:       time.Since(t.started),
		Timestamp:     t.started,
	})
	if len(hist) > c.pipeline.HistoryLimit {
		hist = hist[len(hist)-c.pipeline.HistoryLimit:]
	}
	c.histories[t.ownerID] = hist
	c.mu.Unlock()

	logger.Info().
		Str("state", string(final)).
		Bool("degraded", t.degraded).
		Dur("latency", time.Since(t.started)).
		Msg("turn completed")

	return envelope
}

// buildMessages assembles the LLM conversation: a system prompt carrying
// profile, memories, strategy guidance, and the recent window, then the user
// message.
func (c *Core) buildMessages(t *turnState) []llm.Message {
	var sb strings.Builder
	sb.WriteString("You are a caring companion agent. Respond naturally and concretely.\n")
	sb.WriteString(fmt.Sprintf("Response strategy: %s. Goal: %s.\n", t.plan.Strategy, t.plan.Goal))

	if t.safety != nil && t.safety.Flagged {
		sb.WriteString("The user may be in distress. Respond with care and point to support.\n")
	}
	if t.profile != nil {
		if len(t.profile.CoreConcerns) > 0 {
			sb.WriteString("Known concerns: " + strings.Join(t.profile.CoreConcerns, "; ") + "\n")
		}
		if t.profile.CommunicationStyle != "" {
			sb.WriteString("User communication style: " + t.profile.CommunicationStyle + "\n")
		}
	}
	if len(t.memories) > 0 {
		sb.WriteString("Relevant memories:\n")
		for _, m := range t.memories {
			sb.WriteString("- " + m.Content + "\n")
		}
	}
	for _, tr := range t.toolResponses {
		if tr.Success {
			sb.WriteString(fmt.Sprintf("Tool %s returned: %v\n", tr.Name, tr.Result))
		}
	}

	messages := []llm.Message{{Role: "system", Content: sb.String()}}
	window := c.hub.Window(t.sessionID, c.pipeline.MaxTurns, c.pipeline.TokenBudget)
	for _, turn := range window.Recent(6) {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: t.input})
	return messages
}

// buildContext renders the envelope context block for the final response.
func (c *Core) buildContext(t *turnState) protocol.Context {
	pc := protocol.Context{
		TaskGoal: string(t.plan.Goal),
		EmotionState: map[string]interface{}{
			"tag":       t.emotion.Tag,
			"intensity": t.emotion.Intensity,
		},
	}
	if t.profile != nil {
		pc.UserProfile = map[string]interface{}{
			"core_concerns":       t.profile.CoreConcerns,
			"emotional_trend":     t.profile.EmotionalTrend,
			"communication_style": t.profile.CommunicationStyle,
			"interaction_count":   t.profile.InteractionCount,
		}
	}
	if len(t.memories) > 0 {
		parts := make([]string, 0, len(t.memories))
		for _, m := range t.memories {
			if m.Summary != "" {
				parts = append(parts, m.Summary)
			} else {
				parts = append(parts, truncate(m.Content, 80))
			}
		}
		pc.MemorySummary = strings.Join(parts, "; ")
	}

	window := c.hub.Window(t.sessionID, c.pipeline.MaxTurns, c.pipeline.TokenBudget)
	for _, turn := range window.Recent(6) {
		pc.ConversationHistory = append(pc.ConversationHistory, turn.Role+": "+turn.Content)
	}
	return pc
}

// GetStatus returns a read-only health snapshot.
func (c *Core) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:           c.lastState,
		RegisteredTools: c.registry.Len(),
		LoggedEnvelopes: c.log.TotalAppended(),
		ProcessedTurns:  c.turns,
	}
}

// GetExecutionHistory returns up to limit recent interaction summaries for
// ownerID, newest first.
func (c *Core) GetExecutionHistory(ownerID string, limit int) []InteractionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := c.histories[ownerID]
	if limit <= 0 || limit > len(hist) {
		limit = len(hist)
	}

	out := make([]InteractionSummary, limit)
	for i := 0; i < limit; i++ {
		out[i] = hist[len(hist)-1-i]
	}
	return out
}

// GetMemorySummary returns a short digest of the user's durable memories.
func (c *Core) GetMemorySummary(ctx context.Context, ownerID string) (string, error) {
	return c.hub.Summary(ctx, ownerID)
}

// RegisterTool adds a tool to the agent's registry. Registration is a
// startup-time operation; a duplicate name fails with *tool.DuplicateToolError.
func (c *Core) RegisterTool(desc *tool.Descriptor) error {
	return c.registry.Register(desc)
}

// ListTools returns the registered tool descriptors.
func (c *Core) ListTools() []*tool.Descriptor {
	return c.registry.List()
}

// EnvelopeLog exposes the turn's envelope log for replay and debugging.
func (c *Core) EnvelopeLog() *protocol.Log {
	return c.log
}

// Close releases the core's collaborators.
func (c *Core) Close() error {
	c.sched.Stop()
	return c.hub.Close()
}

func (c *Core) setState(s State) {
	c.mu.Lock()
	c.lastState = s
	c.mu.Unlock()
}

func hasUnresolvedConcern(records []*memory.Record) bool {
	for _, r := range records {
		if r.Category == memory.CategoryConcern && r.Importance >= 0.7 {
			if _, followedUp := r.Metadata["followup_at"]; !followedUp {
				return true
			}
		}
	}
	return false
}

func toProtocolCalls(groups ...[]planner.Task) []protocol.ToolCall {
	var out []protocol.ToolCall
	for _, group := range groups {
		for _, task := range group {
			out = append(out, protocol.ToolCall{Name: task.Tool, Parameters: task.Params})
		}
	}
	return out
}

func fallbackReply(t *turnState) string {
	switch {
	case t.safety != nil && t.safety.Flagged:
		return "I'm here with you. What you're feeling matters, and you don't have to face it alone. If you're in crisis, please reach out to someone you trust or a local support line."
	case t.plan.Strategy == planner.StrategyEmpathyFirst:
		return "That sounds really hard. I'm here, and I'd like to hear more about how you're feeling."
	case t.plan.Goal == planner.GoalInformationQuery:
		return "I couldn't look that up just now, but I'd be glad to try again in a moment."
	}
	return "I'm having a little trouble on my end, but I'm still here. Tell me more?"
}

// wrapTimeout folds deadline failures into ErrTimeout so log consumers can
// match the sentinel with errors.Is.
func wrapTimeout(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &AgentError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	return err
}

func outcomeOf(eval *reflector.EvaluationResult) string {
	if eval == nil {
		return ""
	}
	return string(eval.Outcome)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
