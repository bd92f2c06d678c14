// Package core defines the conversation primitives shared by the rest of the
// module: the closed set of transcript turns, tool call requests and
// outcomes, and id generation. Everything here is a plain value type with no
// behavior beyond construction and inspection; orchestration lives in the
// agent and stream packages.
package core
