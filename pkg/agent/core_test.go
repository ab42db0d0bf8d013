package agent_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/agent"
	"github.com/sentio-ai/sentio-go/pkg/embedder/mock"
	"github.com/sentio-ai/sentio-go/pkg/llm"
	"github.com/sentio-ai/sentio-go/pkg/memory"
	"github.com/sentio-ai/sentio-go/pkg/planner"
	"github.com/sentio-ai/sentio-go/pkg/protocol"
	"github.com/sentio-ai/sentio-go/pkg/storage/chromem"
	"github.com/sentio-ai/sentio-go/pkg/tool"
)

// stubProvider returns a fixed reply, or fails when err is set.
type stubProvider struct {
	reply string
	err   error
	calls atomic.Int64
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return s.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

func (s *stubProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) Close() error { return nil }

// stallingProvider never answers; it waits out the caller's deadline.
type stallingProvider struct{}

func (s *stallingProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return s.GenerateWithMessages(ctx, nil)
}

func (s *stallingProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (s *stallingProvider) Close() error { return nil }

func newTestCore(t *testing.T, provider llm.Provider) *agent.Core {
	t.Helper()

	store, err := chromem.NewClient()
	require.NoError(t, err)
	hub, err := memory.NewHub(&memory.HubConfig{Store: store, Embedder: mock.New(64)})
	require.NoError(t, err)

	core, err := agent.NewCore(&agent.CoreConfig{
		Hub:     hub,
		Planner: planner.New(nil),
		LLM:     provider,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })
	return core
}

func TestProcessRejectsEmptyInput(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "hi"})

	_, err := core.Process(context.Background(), "   ", "u1")
	assert.ErrorIs(t, err, agent.ErrValidation)

	_, err = core.Process(context.Background(), "hello", "")
	assert.ErrorIs(t, err, agent.ErrValidation)
}

func TestProcessHappyPath(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "Nice to hear from you!"})

	env, err := core.Process(context.Background(), "hello there", "u1")
	require.NoError(t, err)
	require.NotNil(t, env)

	assert.Equal(t, protocol.TypeAgentResponse, env.Type)
	assert.Equal(t, "Nice to hear from you!", env.Content)
	assert.Equal(t, false, env.Metadata["degraded"])
	assert.NotEmpty(t, env.InteractionID)

	status := core.GetStatus()
	assert.Equal(t, agent.StateDone, status.State)
	assert.Equal(t, uint64(1), status.ProcessedTurns)
}

func TestProcessDegradesOnGenerationFailure(t *testing.T) {
	core := newTestCore(t, &stubProvider{err: errors.New("model unavailable")})

	env, err := core.Process(context.Background(), "hello there", "u1")
	require.NoError(t, err, "generation failure must not abort the turn")
	require.NotNil(t, env)

	assert.Equal(t, protocol.TypeAgentResponse, env.Type)
	assert.NotEmpty(t, env.Content, "the user still gets a reply")
	assert.Equal(t, true, env.Metadata["degraded"])
	assert.Contains(t, env.Metadata["degraded_causes"], "llm_generation")
	assert.Equal(t, agent.StateDegraded, core.GetStatus().State)
}

func TestProcessDegradesOnGenerationTimeout(t *testing.T) {
	store, err := chromem.NewClient()
	require.NoError(t, err)
	hub, err := memory.NewHub(&memory.HubConfig{Store: store, Embedder: mock.New(64)})
	require.NoError(t, err)

	core, err := agent.NewCore(&agent.CoreConfig{
		Hub:      hub,
		Planner:  planner.New(nil),
		LLM:      &stallingProvider{},
		Pipeline: agent.PipelineConfig{LLMTimeout: 20 * time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })

	env, err := core.Process(context.Background(), "hello there", "u1")
	require.NoError(t, err, "a generation timeout must not abort the turn")

	assert.Equal(t, true, env.Metadata["degraded"])
	assert.Contains(t, env.Metadata["degraded_causes"], "llm_timeout",
		"deadline failures are reported distinctly from other generation errors")
	assert.NotEmpty(t, env.Content)
}

func TestDirectResponseSkipsToolExecution(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "It's 9pm in Tokyo."})

	var invoked atomic.Int64
	require.NoError(t, core.RegisterTool(&tool.Descriptor{
		Name:        "world_clock",
		Description: "look up the current time in a city",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			invoked.Add(1)
			return "21:00", nil
		},
	}))

	env, err := core.Process(context.Background(), "What time is it in Tokyo?", "u1")
	require.NoError(t, err)

	assert.Equal(t, string(planner.StrategyDirectResponse), env.Metadata["strategy"])
	assert.Equal(t, int64(0), invoked.Load(), "simple queries bypass the tool stage")
	assert.Empty(t, env.ToolResponses)
}

func TestProblemSolvingInvokesTools(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "Here's how to fix the chain."})

	var invoked atomic.Int64
	require.NoError(t, core.RegisterTool(&tool.Descriptor{
		Name:        "search_guides",
		Description: "search repair guides",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			invoked.Add(1)
			return "guide: loosen the rear axle first", nil
		},
	}))

	env, err := core.Process(context.Background(), "help me fix my bike chain", "u1")
	require.NoError(t, err)

	assert.Equal(t, string(planner.StrategyToolUse), env.Metadata["strategy"])
	assert.Equal(t, int64(1), invoked.Load())
	require.Len(t, env.ToolResponses, 1)
	assert.True(t, env.ToolResponses[0].Success)
	assert.Equal(t, false, env.Metadata["degraded"])
}

func TestProcessCancelledContext(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "hi"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := core.Process(ctx, "hello there", "u1")
	assert.ErrorIs(t, err, agent.ErrCancelled)
}

func TestExecutionHistoryNewestFirst(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "ok"})

	_, err := core.Process(context.Background(), "good morning", "u1")
	require.NoError(t, err)
	_, err = core.Process(context.Background(), "what a lovely day", "u1")
	require.NoError(t, err)

	history := core.GetExecutionHistory("u1", 0)
	require.Len(t, history, 2)
	assert.Equal(t, "what a lovely day", history[0].Input)
	assert.Equal(t, "good morning", history[1].Input)
	assert.Equal(t, "ok", history[0].Response)
	assert.False(t, history[0].Degraded)

	assert.Empty(t, core.GetExecutionHistory("someone-else", 0))
}

func TestEnvelopeLogCoversTheTurn(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "ok"})

	env, err := core.Process(context.Background(), "hello there", "u1")
	require.NoError(t, err)

	entries := core.EnvelopeLog().ByInteraction(env.InteractionID)
	require.NotEmpty(t, entries)
	assert.Equal(t, protocol.TypeUserInput, entries[0].Type, "the raw input opens the turn")
	assert.Equal(t, protocol.TypeAgentResponse, entries[len(entries)-1].Type, "the reply closes the turn")

	types := make(map[protocol.MessageType]bool)
	for _, e := range entries {
		assert.Equal(t, env.InteractionID, e.InteractionID)
		types[e.Type] = true
	}
	assert.True(t, types[protocol.TypePlannerOutput])
	assert.True(t, types[protocol.TypeReflectorEvaluation])
}

func TestConsecutiveTurnsShareWorkingMemory(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "noted"})

	_, err := core.Process(context.Background(), "my cat is named Biscuit", "u1")
	require.NoError(t, err)

	summary, err := core.GetMemorySummary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Contains(t, summary, "Biscuit")
}

func TestSafetyFlagSurfacesInMetadata(t *testing.T) {
	core := newTestCore(t, &stubProvider{reply: "I'm here with you."})

	env, err := core.Process(context.Background(), "sometimes I think about how to hurt myself", "u1")
	require.NoError(t, err)

	assert.Equal(t, true, env.Metadata["safety_flagged"])
}
