// Package stream defines the wire protocol of a chat run: the ordered event
// variants pushed to consumers and the Emitter that enforces the ordering and
// termination guarantees of the stream.
package stream

import (
	"encoding/json"

	"github.com/hupe1980/mcpchat/core"
)

// Kind tags the event variants of the wire protocol.
type Kind string

const (
	// KindToken carries one text fragment of the streamed answer.
	KindToken Kind = "token"
	// KindToolStart announces a tool dispatch.
	KindToolStart Kind = "tool_start"
	// KindToolEnd reports a tool outcome.
	KindToolEnd Kind = "tool_end"
	// KindDone terminates a successful stream.
	KindDone Kind = "done"
	// KindError terminates a failed stream.
	KindError Kind = "error"
)

// maxToolOutputBytes caps tool output forwarded on the wire. The full output
// still reaches the model via the transcript.
const maxToolOutputBytes = 500

// Event is one element of the ordered stream. Which fields are meaningful
// depends on Type; MarshalJSON emits only the fields of the variant.
type Event struct {
	Type Kind

	// token
	Content string

	// tool_start / tool_end
	Tool         string
	Input        json.RawMessage
	Output       string
	ErrorMessage string

	// done
	FinalText string
	ToolsUsed []string

	// error
	Message string
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool { return e.Type == KindDone || e.Type == KindError }

// MarshalJSON emits the per-variant wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case KindToken:
		return json.Marshal(struct {
			Type    Kind   `json:"type"`
			Content string `json:"content"`
		}{e.Type, e.Content})
	case KindToolStart:
		input := e.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return json.Marshal(struct {
			Type  Kind            `json:"type"`
			Tool  string          `json:"tool"`
			Input json.RawMessage `json:"input"`
		}{e.Type, e.Tool, input})
	case KindToolEnd:
		return json.Marshal(struct {
			Type         Kind   `json:"type"`
			Tool         string `json:"tool"`
			Output       string `json:"output"`
			ErrorMessage string `json:"error_message,omitempty"`
		}{e.Type, e.Tool, e.Output, e.ErrorMessage})
	case KindDone:
		toolsUsed := e.ToolsUsed
		if toolsUsed == nil {
			toolsUsed = []string{}
		}
		return json.Marshal(struct {
			Type      Kind     `json:"type"`
			FinalText string   `json:"final_text"`
			ToolsUsed []string `json:"tools_used"`
		}{e.Type, e.FinalText, toolsUsed})
	default:
		return json.Marshal(struct {
			Type    Kind   `json:"type"`
			Message string `json:"message"`
		}{e.Type, e.Message})
	}
}

// Token builds a token event.
func Token(content string) Event {
	return Event{Type: KindToken, Content: content}
}

// ToolStart builds a tool_start event from a call request.
func ToolStart(call core.ToolCallRequest) Event {
	return Event{Type: KindToolStart, Tool: call.Name, Input: call.Arguments}
}

// ToolEnd builds a tool_end event from an outcome, truncating oversized
// output for the wire.
func ToolEnd(outcome core.ToolCallOutcome) Event {
	ev := Event{Type: KindToolEnd, Tool: outcome.Name, Output: truncate(outcome.Output)}
	if outcome.Err != nil {
		ev.ErrorMessage = outcome.Err.Error()
	}
	return ev
}

// Done builds the successful terminal event.
func Done(finalText string, toolsUsed []string) Event {
	return Event{Type: KindDone, FinalText: finalText, ToolsUsed: toolsUsed}
}

// Error builds the failure terminal event.
func Error(message string) Event {
	return Event{Type: KindError, Message: message}
}

func truncate(s string) string {
	if len(s) <= maxToolOutputBytes {
		return s
	}
	return s[:maxToolOutputBytes]
}
