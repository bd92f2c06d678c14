package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscript_AppendAndClone(t *testing.T) {
	base := Transcript{}.Append(UserMessage{Text: "hi"})
	assert.Len(t, base, 1)

	clone := base.Clone()
	extended := base.Append(AssistantMessage{Text: "hello"})

	assert.Len(t, clone, 1)
	assert.Len(t, extended, 2)
}

func TestTranscript_LastAssistantText(t *testing.T) {
	tr := Transcript{
		UserMessage{Text: "q1"},
		AssistantMessage{Text: "a1"},
		UserMessage{Text: "q2"},
		AssistantMessage{Text: "a2", ToolCalls: []ToolCallRequest{{Name: "read_file"}}},
		ToolResult{CallID: "c1", ToolName: "read_file", Output: "data"},
	}
	assert.Equal(t, "a2", tr.LastAssistantText())
	assert.Equal(t, "", Transcript{UserMessage{Text: "q"}}.LastAssistantText())
}

func TestToolCallOutcome_Result(t *testing.T) {
	ok := ToolCallOutcome{CallID: "c1", Name: "read_file", Output: "data"}
	res := ok.Result()
	assert.Equal(t, ToolResult{CallID: "c1", ToolName: "read_file", Output: "data"}, res)

	failed := ToolCallOutcome{CallID: "c2", Name: "read_file", Err: errors.New("boom")}
	res = failed.Result()
	assert.Equal(t, "boom", res.Err)
	assert.Empty(t, res.Output)
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
