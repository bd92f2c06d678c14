package stream

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mcpchat/core"
)

func marshal(t *testing.T, ev Event) map[string]any {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestEvent_TokenWire(t *testing.T) {
	m := marshal(t, Token("hel"))
	assert.Equal(t, map[string]any{"type": "token", "content": "hel"}, m)
}

func TestEvent_ToolStartWire(t *testing.T) {
	call := core.ToolCallRequest{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{"path":"/tmp/x"}`)}
	m := marshal(t, ToolStart(call))
	assert.Equal(t, "tool_start", m["type"])
	assert.Equal(t, "read_file", m["tool"])
	assert.Equal(t, map[string]any{"path": "/tmp/x"}, m["input"])
}

func TestEvent_ToolStartEmptyInput(t *testing.T) {
	m := marshal(t, ToolStart(core.ToolCallRequest{Name: "list_dir"}))
	assert.Equal(t, map[string]any{}, m["input"])
}

func TestEvent_ToolEndWire(t *testing.T) {
	m := marshal(t, ToolEnd(core.ToolCallOutcome{Name: "read_file", Output: "data"}))
	assert.Equal(t, "tool_end", m["type"])
	assert.Equal(t, "data", m["output"])
	_, hasErr := m["error_message"]
	assert.False(t, hasErr)

	m = marshal(t, ToolEnd(core.ToolCallOutcome{Name: "read_file", Err: errors.New("boom")}))
	assert.Equal(t, "boom", m["error_message"])
}

func TestEvent_ToolEndTruncatesOutput(t *testing.T) {
	long := strings.Repeat("x", maxToolOutputBytes+100)
	ev := ToolEnd(core.ToolCallOutcome{Name: "read_file", Output: long})
	assert.Len(t, ev.Output, maxToolOutputBytes)
}

func TestEvent_DoneWire(t *testing.T) {
	m := marshal(t, Done("final", []string{"read_file"}))
	assert.Equal(t, "done", m["type"])
	assert.Equal(t, "final", m["final_text"])
	assert.Equal(t, []any{"read_file"}, m["tools_used"])

	m = marshal(t, Done("final", nil))
	assert.Equal(t, []any{}, m["tools_used"])
}

func TestEvent_ErrorWire(t *testing.T) {
	m := marshal(t, Error("model failure"))
	assert.Equal(t, map[string]any{"type": "error", "message": "model failure"}, m)
}

func TestEvent_Terminal(t *testing.T) {
	assert.True(t, Done("x", nil).Terminal())
	assert.True(t, Error("x").Terminal())
	assert.False(t, Token("x").Terminal())
	assert.False(t, ToolStart(core.ToolCallRequest{}).Terminal())
	assert.False(t, ToolEnd(core.ToolCallOutcome{}).Terminal())
}
