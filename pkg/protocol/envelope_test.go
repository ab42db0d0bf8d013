package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/protocol"
)

func TestMessageTypeSetIsClosed(t *testing.T) {
	valid := []protocol.MessageType{
		protocol.TypeUserInput,
		protocol.TypePlannerOutput,
		protocol.TypeToolRequest,
		protocol.TypeToolResponse,
		protocol.TypeAgentResponse,
		protocol.TypeReflectorEvaluation,
		protocol.TypeInternal,
	}
	for _, typ := range valid {
		assert.True(t, typ.Valid(), "type=%s", typ)
	}
	assert.False(t, protocol.MessageType("telemetry").Valid())
	assert.False(t, protocol.MessageType("").Valid())
}

func TestNewEnvelopeRejectsUnknownType(t *testing.T) {
	env := protocol.NewEnvelope("int-1", protocol.MessageType("telemetry"), "payload", "a", "b")

	assert.Equal(t, protocol.TypeInternal, env.Type, "unknown types collapse to internal")
}

func TestNewEnvelopeFields(t *testing.T) {
	env := protocol.NewEnvelope("int-1", protocol.TypeUserInput, "hello", "user", "agent_core")

	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, "int-1", env.InteractionID)
	assert.Equal(t, "hello", env.Content)
	assert.Equal(t, "user", env.SourceModule)
	assert.Equal(t, "agent_core", env.TargetModule)
	assert.False(t, env.Timestamp.IsZero())

	other := protocol.NewEnvelope("int-1", protocol.TypeUserInput, "hello", "user", "agent_core")
	assert.NotEqual(t, env.MessageID, other.MessageID, "every envelope gets its own id")
}

func TestWireFormatFieldNames(t *testing.T) {
	env := protocol.NewEnvelope("int-1", protocol.TypeAgentResponse, "done", "agent_core", "user",
		protocol.WithContext(protocol.Context{
			UserProfile: map[string]interface{}{"communication_style": "concise"},
			TaskGoal:    "casual_chat",
		}),
		protocol.WithToolResponses(protocol.ToolResponse{Name: "clock", Success: true, LatencyMs: 12}),
		protocol.WithMetadata(map[string]interface{}{"degraded": false}),
	)

	data, err := env.MarshalWire()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{
		"message_id", "interaction_id", "message_type", "content",
		"context", "tool_responses", "timestamp", "source_module",
		"target_module", "metadata",
	} {
		assert.Contains(t, raw, field)
	}

	var ctx map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["context"], &ctx))
	assert.Contains(t, ctx, "user_profile")
	assert.Contains(t, ctx, "task_goal")
	assert.NotContains(t, ctx, "memory_summary", "empty context fields stay off the wire")

	back, err := protocol.UnmarshalWire(data)
	require.NoError(t, err)
	assert.Equal(t, env.MessageID, back.MessageID)
	assert.Equal(t, env.Type, back.Type)
	require.Len(t, back.ToolResponses, 1)
	assert.Equal(t, "clock", back.ToolResponses[0].Name)
}

func TestCloneIsolatesMutations(t *testing.T) {
	env := protocol.NewEnvelope("int-1", protocol.TypeToolRequest, "calls", "agent_core", "tool_caller",
		protocol.WithToolCalls(protocol.ToolCall{Name: "clock"}),
		protocol.WithMetadata(map[string]interface{}{"k": "v"}),
	)

	cp := env.Clone()
	cp.ToolCalls[0].Name = "changed"
	cp.Metadata["k"] = "changed"

	assert.Equal(t, "clock", env.ToolCalls[0].Name)
	assert.Equal(t, "v", env.Metadata["k"])
}
