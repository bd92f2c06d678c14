package server

import (
	"fmt"

	"github.com/hupe1980/mcpchat/core"
)

// ChatMessage is a single prior conversation turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body shared by the chat endpoints.
type ChatRequest struct {
	Message           string        `json:"message"`
	SelectedProviders []string      `json:"selected_providers"`
	History           []ChatMessage `json:"history"`
}

// Validate checks the request invariants.
func (r ChatRequest) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("message must not be empty")
	}
	for _, m := range r.History {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Errorf("history role must be 'user' or 'assistant', got %q", m.Role)
		}
	}
	return nil
}

// Transcript seeds a session transcript from the history plus the new user
// message.
func (r ChatRequest) Transcript() core.Transcript {
	transcript := make(core.Transcript, 0, len(r.History)+1)
	for _, m := range r.History {
		switch m.Role {
		case "user":
			transcript = transcript.Append(core.UserMessage{Text: m.Content})
		case "assistant":
			transcript = transcript.Append(core.AssistantMessage{Text: m.Content})
		}
	}
	return transcript.Append(core.UserMessage{Text: r.Message})
}

// ChatResponse is the non-streaming chat reply.
type ChatResponse struct {
	Response  string   `json:"response"`
	ToolsUsed []string `json:"tools_used"`
}

// HealthResponse reports API liveness and version.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Detail string `json:"detail"`
}
