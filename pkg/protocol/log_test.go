package protocol_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/protocol"
)

func TestLogByInteractionKeepsArrivalOrder(t *testing.T) {
	log := protocol.NewLog(16)

	log.Append(protocol.NewEnvelope("turn-1", protocol.TypeUserInput, "hi", "user", "agent_core"))
	log.Append(protocol.NewEnvelope("turn-2", protocol.TypeUserInput, "other turn", "user", "agent_core"))
	log.Append(protocol.NewEnvelope("turn-1", protocol.TypePlannerOutput, "plan", "planner", "agent_core"))
	log.Append(protocol.NewEnvelope("turn-1", protocol.TypeAgentResponse, "hello!", "agent_core", "user"))

	entries := log.ByInteraction("turn-1")
	require.Len(t, entries, 3)
	assert.Equal(t, protocol.TypeUserInput, entries[0].Type)
	assert.Equal(t, protocol.TypePlannerOutput, entries[1].Type)
	assert.Equal(t, protocol.TypeAgentResponse, entries[2].Type)
}

func TestLogRingEvictsOldest(t *testing.T) {
	log := protocol.NewLog(3)

	for i := 0; i < 5; i++ {
		log.Append(protocol.NewEnvelope("turn-1", protocol.TypeInternal, fmt.Sprintf("e%d", i), "a", "b"))
	}

	assert.Equal(t, 3, log.Len())
	assert.Equal(t, uint64(5), log.TotalAppended())

	entries := log.ByInteraction("turn-1")
	require.Len(t, entries, 3)
	assert.Equal(t, "e2", entries[0].Content, "oldest entries are evicted first")
	assert.Equal(t, "e4", entries[2].Content)
}

func TestLogRecentNewestFirstWithFilter(t *testing.T) {
	log := protocol.NewLog(16)

	log.Append(protocol.NewEnvelope("turn-1", protocol.TypeUserInput, "in", "user", "agent_core"))
	log.Append(protocol.NewEnvelope("turn-1", protocol.TypeToolRequest, "req", "agent_core", "tool_caller"))
	log.Append(protocol.NewEnvelope("turn-1", protocol.TypeAgentResponse, "out", "agent_core", "user"))

	recent := log.Recent(2, nil)
	require.Len(t, recent, 2)
	assert.Equal(t, "out", recent[0].Content)
	assert.Equal(t, "req", recent[1].Content)

	responses := log.Recent(0, func(e *protocol.Envelope) bool {
		return e.Type == protocol.TypeAgentResponse
	})
	require.Len(t, responses, 1)
	assert.Equal(t, "out", responses[0].Content)
}

func TestLogEntriesAreImmutable(t *testing.T) {
	log := protocol.NewLog(16)

	original := protocol.NewEnvelope("turn-1", protocol.TypeUserInput, "hi", "user", "agent_core",
		protocol.WithMetadata(map[string]interface{}{"k": "v"}))
	log.Append(original)

	// Mutating the appended envelope must not reach the log.
	original.Metadata["k"] = "changed"

	entries := log.ByInteraction("turn-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "v", entries[0].Metadata["k"])

	// Mutating a read copy must not reach the log either.
	entries[0].Metadata["k"] = "changed again"
	fresh := log.ByInteraction("turn-1")
	assert.Equal(t, "v", fresh[0].Metadata["k"])
}
