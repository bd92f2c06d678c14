// Package model abstracts the language model capability behind a minimal
// interface: given a transcript and a tool catalog, produce either a text
// continuation or a set of tool call requests. Provider adapters live in the
// openai and anthropic subpackages; Mock provides a scriptable
// implementation for deterministic tests.
package model

import (
	"context"

	"github.com/hupe1980/mcpchat/core"
	"github.com/hupe1980/mcpchat/tool"
)

// Request captures the normalized model input for one turn.
type Request struct {
	// Instructions is the system prompt prepended to the conversation.
	Instructions string
	// Transcript is the full ordered conversation history.
	Transcript core.Transcript
	// Tools is the catalog exposed to the model for this turn.
	Tools []tool.Descriptor
	// Stream requests incremental text fragments before the final response.
	Stream bool
}

// Response is a (partial or final) chunk emitted by a model turn. Partial
// responses carry text fragments in generation order; the single final
// response carries the complete text and any tool calls the model decided
// to issue. Zero tool calls plus empty text is a valid final answer.
type Response struct {
	// Partial marks a streaming fragment that precedes the final response.
	Partial bool
	// Text is the fragment text (partial) or the complete answer (final).
	Text string
	// ToolCalls are set only on the final response.
	ToolCalls []core.ToolCallRequest
	// FinishReason is the provider's stop reason ("stop", "tool_calls", ...).
	FinishReason string
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the capability interface driven by the reasoning loop. Generate
// returns a response channel and an error channel; both are closed when the
// turn completes. An error on the error channel is fatal for the turn.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}
