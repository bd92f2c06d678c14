package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/mcpchat/core"
	"github.com/hupe1980/mcpchat/model"
	"github.com/hupe1980/mcpchat/stream"
	"github.com/hupe1980/mcpchat/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeInvoker answers tool calls from a canned table, optionally delaying
// individual tools to exercise out-of-order completion.
type fakeInvoker struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	delays  map[string]time.Duration
	calls   []string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		outputs: map[string]string{},
		errs:    map[string]error{},
		delays:  map[string]time.Duration{},
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, _ string, toolName string, _ json.RawMessage) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolName)
	delay := f.delays[toolName]
	out := f.outputs[toolName]
	err := f.errs[toolName]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return out, err
}

func testCatalog(names ...string) *tool.Catalog {
	c := tool.NewCatalog()
	for _, n := range names {
		c.Add(tool.Descriptor{Name: n, Provider: "test"})
	}
	return c
}

func userTranscript(text string) core.Transcript {
	return core.Transcript{core.UserMessage{Text: text}}
}

func TestSession_FinalAnswerWithoutTools(t *testing.T) {
	m := model.NewMock("m").EnqueueText("just an answer")
	sink := &stream.Collector{}

	sess := New(m, testCatalog(), newFakeInvoker(), sink, userTranscript("hi"))
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "just an answer", res.FinalText)
	assert.Empty(t, res.ToolsUsed)
	assert.False(t, res.Truncated)
	assert.Equal(t, StateCompleted, sess.State())
	assert.Equal(t, "just an answer", res.Transcript.LastAssistantText())
}

func TestSession_ToolLoop(t *testing.T) {
	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "read_file", Arguments: json.RawMessage(`{"path":"/tmp/greeting"}`)}).
		EnqueueText("the file says hello")

	inv := newFakeInvoker()
	inv.outputs["read_file"] = "hello"
	sink := &stream.Collector{}

	sess := New(m, testCatalog("read_file"), inv, sink, userTranscript("what does the file say?"))
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "the file says hello", res.FinalText)
	assert.Equal(t, []string{"read_file"}, res.ToolsUsed)

	// Transcript: user, assistant(tool call), tool result, assistant(final).
	require.Len(t, res.Transcript, 4)
	am, ok := res.Transcript[1].(core.AssistantMessage)
	require.True(t, ok)
	require.Len(t, am.ToolCalls, 1)
	assert.NotEmpty(t, am.ToolCalls[0].ID)

	tr, ok := res.Transcript[2].(core.ToolResult)
	require.True(t, ok)
	assert.Equal(t, am.ToolCalls[0].ID, tr.CallID)
	assert.Equal(t, "hello", tr.Output)
	assert.Empty(t, tr.Err)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, stream.KindToolStart, events[0].Type)
	assert.Equal(t, stream.KindToolEnd, events[1].Type)
}

func TestSession_OutcomesFoldInRequestOrder(t *testing.T) {
	m := model.NewMock("m").
		EnqueueToolCalls(
			core.ToolCallRequest{Name: "slow_tool"},
			core.ToolCallRequest{Name: "fast_tool"},
		).
		EnqueueText("done")

	inv := newFakeInvoker()
	inv.outputs["slow_tool"] = "slow output"
	inv.outputs["fast_tool"] = "fast output"
	inv.delays["slow_tool"] = 50 * time.Millisecond

	sink := &stream.Collector{}
	sess := New(m, testCatalog("slow_tool", "fast_tool"), inv, sink, userTranscript("go"))
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	// Despite fast_tool finishing first, results fold in request order.
	tr1, ok := res.Transcript[2].(core.ToolResult)
	require.True(t, ok)
	tr2, ok := res.Transcript[3].(core.ToolResult)
	require.True(t, ok)
	assert.Equal(t, "slow_tool", tr1.ToolName)
	assert.Equal(t, "fast_tool", tr2.ToolName)

	// tool_start events precede every tool_end and keep request order.
	events := sink.Events()
	require.Len(t, events, 4)
	assert.Equal(t, stream.KindToolStart, events[0].Type)
	assert.Equal(t, "slow_tool", events[0].Tool)
	assert.Equal(t, stream.KindToolStart, events[1].Type)
	assert.Equal(t, "fast_tool", events[1].Tool)
	assert.Equal(t, stream.KindToolEnd, events[2].Type)
	assert.Equal(t, stream.KindToolEnd, events[3].Type)

	assert.Equal(t, []string{"slow_tool", "fast_tool"}, res.ToolsUsed)
}

func TestSession_ToolNotFoundIsErrorOutcome(t *testing.T) {
	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "ghost_tool"}).
		EnqueueText("could not use that tool")

	sink := &stream.Collector{}
	sess := New(m, testCatalog("read_file"), newFakeInvoker(), sink, userTranscript("go"))
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, sess.State())
	assert.Equal(t, []string{"ghost_tool"}, res.ToolsUsed)

	tr, ok := res.Transcript[2].(core.ToolResult)
	require.True(t, ok)
	assert.Contains(t, tr.Err, "tool_not_found")

	events := sink.Events()
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[1].ErrorMessage)
}

func TestSession_ToolFailureFedBackToModel(t *testing.T) {
	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "fetch"}).
		EnqueueText("the fetch failed, sorry")

	inv := newFakeInvoker()
	inv.errs["fetch"] = tool.NewError(tool.KindRemote, "fetch", "upstream 500")

	sess := New(m, testCatalog("fetch"), inv, nil, userTranscript("go"))
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	// The failure is data in the transcript, not a session error.
	tr, ok := res.Transcript[2].(core.ToolResult)
	require.True(t, ok)
	assert.Contains(t, tr.Err, "upstream 500")

	// The second model request saw the failed result.
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Transcript[len(reqs[1].Transcript)-1]
	_, ok = last.(core.ToolResult)
	assert.True(t, ok)
}

func TestSession_StepLimitTruncates(t *testing.T) {
	m := model.NewMock("m")
	for i := 0; i < 5; i++ {
		m.EnqueueToolCalls(core.ToolCallRequest{Name: "read_file"})
	}
	inv := newFakeInvoker()
	inv.outputs["read_file"] = "data"

	sess := New(m, testCatalog("read_file"), inv, nil, userTranscript("loop"), func(o *Options) {
		o.StepLimit = 3
	})
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Contains(t, res.FinalText, "3")
	assert.Equal(t, StateCompleted, sess.State())
	assert.Len(t, m.Requests(), 3)
}

func TestSession_ModelFailureIsFatal(t *testing.T) {
	m := model.NewMock("m").FailWith(errors.New("api key rejected"))

	sess := New(m, testCatalog(), newFakeInvoker(), nil, userTranscript("hi"))
	_, err := sess.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model capability failure")
	assert.Equal(t, StateFailed, sess.State())
}

func TestSession_ContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := model.NewMock("m").EnqueueText("never delivered")
	sess := New(m, testCatalog(), newFakeInvoker(), nil, userTranscript("hi"))
	_, err := sess.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, StateAborted, sess.State())
}

func TestSession_AbortDuringToolCall(t *testing.T) {
	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "slow_tool"}).
		EnqueueText("never reached")

	inv := newFakeInvoker()
	inv.delays["slow_tool"] = 5 * time.Second

	sess := New(m, testCatalog("slow_tool"), inv, nil, userTranscript("go"))

	done := make(chan error, 1)
	go func() {
		_, err := sess.Run(context.Background())
		done <- err
	}()

	// Wait for the tool call to be in flight, then abort.
	require.Eventually(t, func() bool {
		inv.mu.Lock()
		defer inv.mu.Unlock()
		return len(inv.calls) > 0
	}, time.Second, 5*time.Millisecond)
	sess.Abort()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not abort")
	}
	assert.Equal(t, StateAborted, sess.State())
}

func TestSession_SinkFailureAborts(t *testing.T) {
	e := stream.NewEmitter(1)
	e.Stop() // consumer gone before the run starts

	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "read_file"}).
		EnqueueText("never reached")
	inv := newFakeInvoker()
	inv.outputs["read_file"] = "data"

	sess := New(m, testCatalog("read_file"), inv, e, userTranscript("go"))
	_, err := sess.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, StateAborted, sess.State())
}

func TestSession_StreamsTokens(t *testing.T) {
	m := model.NewMock("m").EnqueueText("hey")
	sink := &stream.Collector{}

	sess := New(m, testCatalog(), newFakeInvoker(), sink, userTranscript("hi"), func(o *Options) {
		o.Stream = true
	})
	res, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hey", res.FinalText)

	var streamed strings.Builder
	for _, ev := range sink.Events() {
		require.Equal(t, stream.KindToken, ev.Type)
		streamed.WriteString(ev.Content)
	}
	assert.Equal(t, "hey", streamed.String())
}

func TestSession_RunOnlyOnce(t *testing.T) {
	m := model.NewMock("m").EnqueueText("once")
	sess := New(m, testCatalog(), newFakeInvoker(), nil, userTranscript("hi"))

	_, err := sess.Run(context.Background())
	require.NoError(t, err)

	_, err = sess.Run(context.Background())
	assert.Error(t, err)
}

func TestSession_InvalidArgumentsRejectedBeforeDispatch(t *testing.T) {
	c := tool.NewCatalog()
	c.Add(tool.Descriptor{
		Name:     "read_file",
		Provider: "test",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string"},
			},
			"required": []any{"path"},
		},
	})

	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "read_file", Arguments: json.RawMessage(`{"path": 42}`)}).
		EnqueueText("bad arguments")

	inv := newFakeInvoker()
	sess := New(m, c, inv, nil, userTranscript("go"))
	res, err := sess.Run(context.Background())
	require.NoError(t, err)

	tr, ok := res.Transcript[2].(core.ToolResult)
	require.True(t, ok)
	assert.Contains(t, tr.Err, "invalid_arguments")
	assert.Empty(t, inv.calls)
}
