package core

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Turn represents a polymorphic entry of a conversation transcript. Concrete
// turn types implement the unexported isTurn marker enabling a closed set.
type Turn interface{ isTurn() }

// UserMessage is a message authored by the end user.
type UserMessage struct {
	Text string
}

// isTurn implements the Turn interface for UserMessage.
func (UserMessage) isTurn() {}

// AssistantMessage is a model-authored turn. It carries the generated text
// and, when the model decided to use tools, the ordered set of tool call
// requests issued in that turn.
type AssistantMessage struct {
	Text      string
	ToolCalls []ToolCallRequest
}

// isTurn implements the Turn interface for AssistantMessage.
func (AssistantMessage) isTurn() {}

// ToolResult records the outcome of a single tool call. It pairs 1:1 with a
// ToolCallRequest via CallID. Exactly one of Output / Err is meaningful:
// a non-empty Err marks a failed call whose message is fed back to the model.
type ToolResult struct {
	CallID   string
	ToolName string
	Output   string
	Err      string
}

// isTurn implements the Turn interface for ToolResult.
func (ToolResult) isTurn() {}

// ToolCallRequest describes a tool invocation requested by the model.
// Arguments hold the raw JSON argument payload as produced by the model.
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallOutcome is the execution result matched to a ToolCallRequest.
// Err is nil on success.
type ToolCallOutcome struct {
	CallID string
	Name   string
	Output string
	Err    error
}

// Result converts the outcome into a transcript ToolResult turn.
func (o ToolCallOutcome) Result() ToolResult {
	tr := ToolResult{CallID: o.CallID, ToolName: o.Name, Output: o.Output}
	if o.Err != nil {
		tr.Err = o.Err.Error()
	}
	return tr
}

// Transcript is the ordered conversation history used as model input.
// It is append-only for the duration of one session run.
type Transcript []Turn

// Append returns the transcript extended by the given turns. The receiver is
// not mutated when it has spare capacity owned elsewhere; sessions always
// reassign the result.
func (t Transcript) Append(turns ...Turn) Transcript {
	return append(t, turns...)
}

// Clone returns a shallow copy safe for handing to a model adapter while the
// owning session keeps appending.
func (t Transcript) Clone() Transcript {
	c := make(Transcript, len(t))
	copy(c, t)
	return c
}

// LastAssistantText returns the text of the last assistant turn, or "" when
// the transcript holds none.
func (t Transcript) LastAssistantText() string {
	for i := len(t) - 1; i >= 0; i-- {
		if am, ok := t[i].(AssistantMessage); ok {
			return am.Text
		}
	}
	return ""
}

// NewID generates a unique identifier for runs and tool calls.
func NewID() string { return uuid.NewString() }
