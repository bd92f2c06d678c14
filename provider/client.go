package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/mcpchat/config"
	"github.com/hupe1980/mcpchat/tool"
)

// Client talks to a single remote tool provider. Implementations map
// transport failures to typed tool errors and perform no implicit retries;
// retry policy belongs to the caller.
type Client interface {
	// ListTools returns the provider's tool descriptors in the provider's
	// own order.
	ListTools(ctx context.Context, name string, spec config.ProviderSpec) ([]tool.Descriptor, error)

	// CallTool invokes a named tool and returns its flattened text output.
	CallTool(ctx context.Context, name string, spec config.ProviderSpec, toolName string, args json.RawMessage) (string, error)
}

// MCPClientOptions configure the MCP client.
type MCPClientOptions struct {
	// CallTimeout bounds each ListTools / CallTool round trip.
	CallTimeout time.Duration
	// InheritEnv prepends the process environment to stdio server env.
	InheritEnv bool
}

// MCPClient implements Client using the MCP protocol. A fresh connection is
// established per call and torn down afterwards, so the client itself holds
// no per-provider state.
type MCPClient struct {
	opts MCPClientOptions
}

// NewMCPClient constructs an MCPClient with optional overrides.
func NewMCPClient(optFns ...func(o *MCPClientOptions)) *MCPClient {
	opts := MCPClientOptions{
		CallTimeout: 30 * time.Second,
		InheritEnv:  true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MCPClient{opts: opts}
}

// ListTools implements Client.
func (c *MCPClient) ListTools(ctx context.Context, name string, spec config.ProviderSpec) ([]tool.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	cli, err := c.connect(ctx, name, spec)
	if err != nil {
		return nil, err
	}
	defer cli.Close() //nolint:errcheck

	res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, c.transportError(name, "", "list tools", err)
	}

	descriptors := make([]tool.Descriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		if t.Name == "" {
			return nil, &tool.Error{
				Kind:     tool.KindMalformed,
				Provider: name,
				Message:  "provider returned a tool without a name",
			}
		}
		schema, err := schemaToMap(t.InputSchema)
		if err != nil {
			return nil, &tool.Error{
				Kind:     tool.KindMalformed,
				Provider: name,
				Tool:     t.Name,
				Message:  fmt.Sprintf("input schema of %s is not a JSON object: %v", t.Name, err),
				Err:      err,
			}
		}
		descriptors = append(descriptors, tool.Descriptor{
			Name:        t.Name,
			Provider:    name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return descriptors, nil
}

// CallTool implements Client.
func (c *MCPClient) CallTool(ctx context.Context, name string, spec config.ProviderSpec, toolName string, args json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	cli, err := c.connect(ctx, name, spec)
	if err != nil {
		return "", err
	}
	defer cli.Close() //nolint:errcheck

	var argMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argMap); err != nil {
			return "", &tool.Error{
				Kind:     tool.KindInvalidArguments,
				Provider: name,
				Tool:     toolName,
				Message:  fmt.Sprintf("arguments are not a JSON object: %v", err),
				Err:      err,
			}
		}
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = toolName
	request.Params.Arguments = argMap

	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", c.transportError(name, toolName, "call tool", err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[non-text content]")
		}
	}

	if result.IsError {
		return "", &tool.Error{
			Kind:     tool.KindRemote,
			Provider: name,
			Tool:     toolName,
			Message:  sb.String(),
		}
	}
	return sb.String(), nil
}

// connect establishes, starts and initializes an MCP session for the given
// provider endpoint.
func (c *MCPClient) connect(ctx context.Context, name string, spec config.ProviderSpec) (*client.Client, error) {
	var cli *client.Client
	var err error

	switch spec.Type {
	case "", "stdio":
		env := spec.Env
		if c.opts.InheritEnv {
			env = append(os.Environ(), spec.Env...)
		}
		cli, err = client.NewStdioMCPClient(spec.Command, env, spec.Args...)
	case "sse":
		cli, err = client.NewSSEMCPClient(spec.URL)
	case "http":
		cli, err = client.NewStreamableHttpClient(spec.URL)
	default:
		return nil, &tool.Error{
			Kind:     tool.KindUnreachable,
			Provider: name,
			Message:  fmt.Sprintf("unsupported provider type %q, supported types are: stdio, sse, http", spec.Type),
		}
	}
	if err != nil {
		return nil, c.transportError(name, "", "create client", err)
	}

	if err := cli.Start(ctx); err != nil {
		cli.Close() //nolint:errcheck
		return nil, c.transportError(name, "", "start client", err)
	}
	if _, err := cli.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		cli.Close() //nolint:errcheck
		return nil, c.transportError(name, "", "initialize", err)
	}
	return cli, nil
}

// transportError maps a transport failure to a typed tool error, keeping
// deadline expiry distinct from plain unreachability.
func (c *MCPClient) transportError(provider, toolName, op string, err error) error {
	kind := tool.KindUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = tool.KindTimeout
	}
	return &tool.Error{
		Kind:     kind,
		Provider: provider,
		Tool:     toolName,
		Message:  fmt.Sprintf("%s: %v", op, err),
		Err:      err,
	}
}

// schemaToMap converts the MCP input schema struct to the raw JSON Schema
// map carried by tool descriptors.
func schemaToMap(schema mcp.ToolInputSchema) (map[string]any, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
