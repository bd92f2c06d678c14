package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mcpchat/tool"
)

func TestRegistry_ProbeUpdatesState(t *testing.T) {
	fc := newFakeClient()
	fc.tools["filesystem"] = []tool.Descriptor{{Name: "read_file", Provider: "filesystem"}}

	reg := NewRegistry(specs("filesystem"), fc)

	// Before any probe the provider is listed but unreachable.
	statuses := reg.List()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Reachable)

	descriptors, err := reg.Probe(context.Background(), "filesystem")
	require.NoError(t, err)
	assert.Len(t, descriptors, 1)

	statuses = reg.List()
	assert.True(t, statuses[0].Reachable)
	assert.Equal(t, []string{"read_file"}, statuses[0].ToolNames)
	assert.Empty(t, statuses[0].LastError)
}

func TestRegistry_ProbeFailureRecorded(t *testing.T) {
	fc := newFakeClient()
	fc.tools["filesystem"] = []tool.Descriptor{{Name: "read_file", Provider: "filesystem"}}

	reg := NewRegistry(specs("filesystem"), fc)
	_, err := reg.Probe(context.Background(), "filesystem")
	require.NoError(t, err)

	fc.mu.Lock()
	fc.listErr["filesystem"] = tool.NewError(tool.KindUnreachable, "", "connection refused")
	fc.mu.Unlock()

	_, err = reg.Probe(context.Background(), "filesystem")
	require.Error(t, err)

	statuses := reg.List()
	assert.False(t, statuses[0].Reachable)
	assert.Empty(t, statuses[0].ToolNames)
	assert.Contains(t, statuses[0].LastError, "connection refused")
}

func TestRegistry_ProbeUnknownProvider(t *testing.T) {
	reg := NewRegistry(specs("filesystem"), newFakeClient())
	_, err := reg.Probe(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestRegistry_ProbeAllNameOrder(t *testing.T) {
	fc := newFakeClient()
	fc.tools["zeta"] = []tool.Descriptor{{Name: "z_tool", Provider: "zeta"}}
	fc.tools["alpha"] = []tool.Descriptor{{Name: "a_tool", Provider: "alpha"}}
	fc.listErr["mid"] = tool.NewError(tool.KindUnreachable, "", "down")

	reg := NewRegistry(specs("zeta", "alpha", "mid"), fc)
	statuses := reg.ProbeAll(context.Background())

	require.Len(t, statuses, 3)
	assert.Equal(t, "alpha", statuses[0].Name)
	assert.Equal(t, "mid", statuses[1].Name)
	assert.Equal(t, "zeta", statuses[2].Name)
	assert.True(t, statuses[0].Reachable)
	assert.False(t, statuses[1].Reachable)
	assert.True(t, statuses[2].Reachable)
}

func TestRegistry_Invoke(t *testing.T) {
	fc := newFakeClient()
	fc.callOut["filesystem/read_file"] = "hello"

	reg := NewRegistry(specs("filesystem"), fc)
	out, err := reg.Invoke(context.Background(), "filesystem", "read_file", json.RawMessage(`{"path":"/tmp/x"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRegistry_InvokeUnknownProvider(t *testing.T) {
	reg := NewRegistry(specs("filesystem"), newFakeClient())
	_, err := reg.Invoke(context.Background(), "ghost", "read_file", nil)
	require.Error(t, err)
	assert.Equal(t, tool.KindUnreachable, tool.KindOf(err))
}
