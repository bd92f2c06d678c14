package mcpchat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mcpchat/config"
	"github.com/hupe1980/mcpchat/core"
	"github.com/hupe1980/mcpchat/model"
	"github.com/hupe1980/mcpchat/provider"
	"github.com/hupe1980/mcpchat/stream"
	"github.com/hupe1980/mcpchat/tool"
)

// cannedClient is a provider.Client serving a fixed tool set.
type cannedClient struct {
	descriptors []tool.Descriptor
	outputs     map[string]string
}

func (c *cannedClient) ListTools(context.Context, string, config.ProviderSpec) ([]tool.Descriptor, error) {
	return c.descriptors, nil
}

func (c *cannedClient) CallTool(_ context.Context, _ string, _ config.ProviderSpec, toolName string, _ json.RawMessage) (string, error) {
	return c.outputs[toolName], nil
}

func withCannedClient(cc provider.Client) func(o *Options) {
	return func(o *Options) { o.Client = cc }
}

func TestChat_ToolLess(t *testing.T) {
	m := model.NewMock("m").EnqueueText("plain answer")
	c := New(m, nil, withCannedClient(&cannedClient{}))

	res, err := c.Chat(context.Background(), "hello", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain answer", res.FinalText)
	assert.Empty(t, res.ToolsUsed)
}

func TestChat_WithTools(t *testing.T) {
	m := model.NewMock("m").
		EnqueueToolCalls(core.ToolCallRequest{Name: "read_file", Arguments: json.RawMessage(`{"path":"/tmp/x"}`)}).
		EnqueueText("the file says hello")
	cc := &cannedClient{
		descriptors: []tool.Descriptor{{Name: "read_file", Provider: "filesystem"}},
		outputs:     map[string]string{"read_file": "hello"},
	}
	providers := map[string]config.ProviderSpec{
		"filesystem": {Type: "stdio", Command: "true"},
	}
	c := New(m, providers, withCannedClient(cc))

	res, err := c.Chat(context.Background(), "read it", []string{"filesystem"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "the file says hello", res.FinalText)
	assert.Equal(t, []string{"read_file"}, res.ToolsUsed)
}

func TestChat_EmptyMessage(t *testing.T) {
	c := New(model.NewMock("m"), nil, withCannedClient(&cannedClient{}))
	_, err := c.Chat(context.Background(), "", nil, nil)
	assert.Error(t, err)
}

func TestChatStream_TerminatesWithDone(t *testing.T) {
	m := model.NewMock("m").EnqueueText("hi")
	c := New(m, nil, withCannedClient(&cannedClient{}))

	var events []stream.Event
	for ev := range c.ChatStream(context.Background(), "hello", nil, nil) {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.KindDone, last.Type)
	assert.Equal(t, "hi", last.FinalText)
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, stream.KindToken, ev.Type)
	}
}

func TestProviders_Status(t *testing.T) {
	cc := &cannedClient{descriptors: []tool.Descriptor{{Name: "read_file", Provider: "filesystem"}}}
	providers := map[string]config.ProviderSpec{
		"filesystem": {Type: "stdio", Command: "true"},
	}
	c := New(model.NewMock("m"), providers, withCannedClient(cc))

	statuses := c.Providers(context.Background())
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Reachable)
	assert.Equal(t, []string{"read_file"}, statuses[0].ToolNames)
}
