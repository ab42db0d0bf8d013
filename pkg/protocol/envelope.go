// Package protocol defines the typed message envelope exchanged between the
// agent core, planner, tool caller and reflector, along with an immutable
// in-memory log of envelopes keyed by interaction ID.
//
// Envelopes are the only hand-off format between modules. Once logged, an
// envelope is never mutated; each hand-off creates a new envelope sharing the
// same InteractionID so a full turn can be replayed for debugging.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies an envelope. The set is closed; free-form types are
// rejected at construction time.
type MessageType string

const (
	// TypeUserInput carries the raw user utterance entering the pipeline.
	TypeUserInput MessageType = "user_input"

	// TypePlannerOutput carries the execution plan emitted by the planner.
	TypePlannerOutput MessageType = "planner_output"

	// TypeToolRequest carries a tool invocation request.
	TypeToolRequest MessageType = "tool_request"

	// TypeToolResponse carries the result of a tool invocation.
	TypeToolResponse MessageType = "tool_response"

	// TypeAgentResponse carries the final reply returned to the caller.
	TypeAgentResponse MessageType = "agent_response"

	// TypeReflectorEvaluation carries the reflector's post-turn evaluation.
	TypeReflectorEvaluation MessageType = "reflector_evaluation"

	// TypeInternal carries intermediate state between pipeline stages.
	TypeInternal MessageType = "internal"
)

// Valid reports whether t is one of the closed set of message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeUserInput, TypePlannerOutput, TypeToolRequest, TypeToolResponse,
		TypeAgentResponse, TypeReflectorEvaluation, TypeInternal:
		return true
	}
	return false
}

// Context is the structured context block carried by an envelope. All fields
// are optional; empty fields are omitted on the wire.
type Context struct {
	// UserProfile is a compact rendering of the owner's derived profile.
	UserProfile map[string]interface{} `json:"user_profile,omitempty"`

	// EmotionState is the perceived emotional state for this turn.
	EmotionState map[string]interface{} `json:"emotion_state,omitempty"`

	// TaskGoal is the planner's classified goal for this turn.
	TaskGoal string `json:"task_goal,omitempty"`

	// MemorySummary summarizes the memories retrieved for this turn.
	MemorySummary string `json:"memory_summary,omitempty"`

	// ConversationHistory holds the recent working-memory turns.
	ConversationHistory []string `json:"conversation_history,omitempty"`
}

// ToolCall describes a single requested tool invocation.
type ToolCall struct {
	// Name is the registered tool name.
	Name string `json:"name"`

	// Parameters are the arguments passed to the tool.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ToolResponse describes the outcome of a single tool invocation. Each
// response is independent; one failed call does not invalidate siblings.
type ToolResponse struct {
	// Name is the tool that was invoked.
	Name string `json:"name"`

	// Success reports whether the invocation completed without error.
	Success bool `json:"success"`

	// Result is the tool's return value (nil on failure).
	Result interface{} `json:"result,omitempty"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// LatencyMs is the wall-clock duration of the call in milliseconds.
	LatencyMs int64 `json:"latency_ms"`
}

// Envelope is the immutable typed message unit exchanged between modules.
//
// An envelope is created with NewEnvelope and must not be modified after it
// has been handed off or logged. Hand-offs create new envelopes linked by a
// shared InteractionID.
type Envelope struct {
	// MessageID uniquely identifies this envelope.
	MessageID string `json:"message_id"`

	// InteractionID links all envelopes belonging to one user turn.
	InteractionID string `json:"interaction_id"`

	// Type classifies the envelope.
	Type MessageType `json:"message_type"`

	// Content is the primary text payload.
	Content string `json:"content"`

	// Context is the structured context block.
	Context Context `json:"context"`

	// ToolCalls lists requested tool invocations (tool_request envelopes).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResponses lists completed tool invocations.
	ToolResponses []ToolResponse `json:"tool_responses,omitempty"`

	// Timestamp is when the envelope was created (UTC).
	Timestamp time.Time `json:"timestamp"`

	// SourceModule names the module that produced the envelope.
	SourceModule string `json:"source_module"`

	// TargetModule names the module the envelope is addressed to.
	TargetModule string `json:"target_module"`

	// Metadata carries auxiliary key/value pairs (degraded flags, scores).
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EnvelopeOption customizes an envelope at construction time.
type EnvelopeOption func(*Envelope)

// WithContext attaches a structured context block.
func WithContext(c Context) EnvelopeOption {
	return func(e *Envelope) { e.Context = c }
}

// WithToolCalls attaches requested tool invocations.
func WithToolCalls(calls ...ToolCall) EnvelopeOption {
	return func(e *Envelope) { e.ToolCalls = calls }
}

// WithToolResponses attaches completed tool invocations.
func WithToolResponses(responses ...ToolResponse) EnvelopeOption {
	return func(e *Envelope) { e.ToolResponses = responses }
}

// WithMetadata attaches a metadata map. The map is copied so later caller
// mutations cannot leak into a logged envelope.
func WithMetadata(md map[string]interface{}) EnvelopeOption {
	return func(e *Envelope) {
		e.Metadata = make(map[string]interface{}, len(md))
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// NewEnvelope creates an envelope for one hand-off within an interaction.
//
// A fresh MessageID is generated; interactionID groups the envelope with the
// rest of its turn. Invalid message types fall back to TypeInternal rather
// than producing an envelope the wire format cannot express.
func NewEnvelope(interactionID string, typ MessageType, content, source, target string, opts ...EnvelopeOption) *Envelope {
	if !typ.Valid() {
		typ = TypeInternal
	}
	e := &Envelope{
		MessageID:     uuid.NewString(),
		InteractionID: interactionID,
		Type:          typ,
		Content:       content,
		Timestamp:     time.Now().UTC(),
		SourceModule:  source,
		TargetModule:  target,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewInteractionID generates a fresh interaction identifier for a user turn.
func NewInteractionID() string {
	return uuid.NewString()
}

// MarshalWire serializes the envelope to the JSON wire format.
func (e *Envelope) MarshalWire() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalWire deserializes an envelope from the JSON wire format.
func UnmarshalWire(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Clone returns a deep enough copy for safe hand-off: slices and maps are
// duplicated so the original stays immutable once logged.
func (e *Envelope) Clone() *Envelope {
	cp := *e
	if e.ToolCalls != nil {
		cp.ToolCalls = append([]ToolCall(nil), e.ToolCalls...)
	}
	if e.ToolResponses != nil {
		cp.ToolResponses = append([]ToolResponse(nil), e.ToolResponses...)
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
