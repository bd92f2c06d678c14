package tool

import (
	"errors"
	"fmt"
)

// Kind categorizes tool and provider failures so callers can branch on the
// failure class without string matching.
type Kind string

const (
	// KindUnreachable marks transport-level connection failures.
	KindUnreachable Kind = "unreachable"
	// KindTimeout marks per-call deadline expiry.
	KindTimeout Kind = "timeout"
	// KindNotFound marks a call against a tool absent from the catalog.
	KindNotFound Kind = "tool_not_found"
	// KindRemote marks an error reported by the provider itself. The call may
	// have had side effects; it is not safe to retry blindly.
	KindRemote Kind = "remote_error"
	// KindMalformed marks a provider response the client could not interpret.
	KindMalformed Kind = "malformed_response"
	// KindInvalidArguments marks call arguments rejected by the descriptor's
	// input schema before any dispatch happened.
	KindInvalidArguments Kind = "invalid_arguments"
)

// Error is a typed tool/provider failure carrying the failure kind, the
// involved tool and provider names and an optional provider error code.
type Error struct {
	Kind     Kind
	Tool     string
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	target := e.Tool
	if target == "" {
		target = e.Provider
	}
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s/%s] %s: %s", e.Kind, e.Code, target, e.Message)
	}
	return fmt.Sprintf("tool error [%s] %s: %s", e.Kind, target, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a typed tool error.
func NewError(kind Kind, toolName, message string) *Error {
	return &Error{Kind: kind, Tool: toolName, Message: message}
}

// KindOf extracts the Kind from an error chain. Unknown errors map to
// KindUnreachable, the conservative default for transport failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnreachable
}

// Retryable reports whether a failed call is idempotent-safe to retry.
// Remote errors may reflect side effects already taken and are excluded.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnreachable, KindTimeout:
		return true
	default:
		return false
	}
}
