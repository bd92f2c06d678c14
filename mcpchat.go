// Package mcpchat provides a high-level façade over the provider registry,
// catalog resolver and agent session for embedding tool-augmented chat in a
// Go program without running the HTTP server. Most applications:
//  1. Create an MCPChat via New() with a model and a provider inventory
//  2. Call Chat() for a buffered answer or ChatStream() for live events
//
// The façade wires the same components the server uses; defaults are safe
// for local development.
package mcpchat

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/mcpchat/agent"
	"github.com/hupe1980/mcpchat/config"
	"github.com/hupe1980/mcpchat/core"
	"github.com/hupe1980/mcpchat/logging"
	"github.com/hupe1980/mcpchat/model"
	"github.com/hupe1980/mcpchat/provider"
	"github.com/hupe1980/mcpchat/stream"
)

// Options configures the MCPChat instance.
type Options struct {
	// StepLimit bounds model turns per chat.
	StepLimit int
	// MaxParallelTools caps concurrent tool dispatches within one turn.
	MaxParallelTools int
	// EventBuffer sets the per-stream channel buffer for ChatStream.
	EventBuffer int
	// CallTimeout bounds each provider call.
	CallTimeout time.Duration
	// Logger defaults to NoOp when nil.
	Logger logging.Logger

	// Client overrides the provider client, mainly for tests.
	Client provider.Client
}

// MCPChat aggregates a model and a fixed provider inventory behind simple
// chat entry points.
type MCPChat struct {
	model    model.Model
	registry *provider.Registry
	resolver *provider.Resolver
	opts     Options
}

// New creates an MCPChat instance from a model and a provider inventory.
func New(m model.Model, providers map[string]config.ProviderSpec, optFns ...func(o *Options)) *MCPChat {
	opts := Options{
		StepLimit:   8,
		EventBuffer: 64,
		CallTimeout: 30 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = provider.NewMCPClient(func(o *provider.MCPClientOptions) {
			o.CallTimeout = opts.CallTimeout
		})
	}

	registry := provider.NewRegistry(providers, opts.Client, func(o *provider.RegistryOptions) {
		o.Logger = opts.Logger
	})
	return &MCPChat{
		model:    m,
		registry: registry,
		resolver: provider.NewResolver(registry, opts.Logger),
		opts:     opts,
	}
}

// Providers probes every configured provider and returns the refreshed
// statuses in name order.
func (c *MCPChat) Providers(ctx context.Context) []provider.Status {
	return c.registry.ProbeAll(ctx)
}

// Chat runs one buffered chat turn against the selected providers and
// returns the terminal result.
func (c *MCPChat) Chat(ctx context.Context, message string, providerNames []string, history core.Transcript) (*agent.Result, error) {
	if message == "" {
		return nil, fmt.Errorf("message must not be empty")
	}
	sess := c.newSession(ctx, message, providerNames, history, stream.Discard{}, false)
	return sess.Run(ctx)
}

// ChatStream runs one chat turn and returns its live event stream. The
// channel delivers tokens and tool events in order and closes after exactly
// one terminal done or error event. Cancel ctx to abort the run.
func (c *MCPChat) ChatStream(ctx context.Context, message string, providerNames []string, history core.Transcript) <-chan stream.Event {
	emitter := stream.NewEmitter(c.opts.EventBuffer)
	if message == "" {
		emitter.Fail("message must not be empty")
		return emitter.Events()
	}
	sess := c.newSession(ctx, message, providerNames, history, emitter, true)

	go func() {
		res, err := sess.Run(ctx)
		if err != nil {
			emitter.Fail(fmt.Sprintf("agent execution failed: %v", err))
			return
		}
		emitter.Done(res.FinalText, res.ToolsUsed)
	}()
	return emitter.Events()
}

func (c *MCPChat) newSession(ctx context.Context, message string, providerNames []string, history core.Transcript, sink agent.Sink, streaming bool) *agent.Session {
	catalog, warnings := c.resolver.Resolve(ctx, providerNames)
	for _, warn := range warnings {
		c.opts.Logger.Warn("catalog warning",
			"provider", warn.Provider,
			"tool", warn.Tool,
			"reason", warn.Reason,
		)
	}
	transcript := history.Clone().Append(core.UserMessage{Text: message})
	return agent.New(c.model, catalog, c.registry, sink, transcript, func(o *agent.Options) {
		o.StepLimit = c.opts.StepLimit
		o.MaxParallelTools = c.opts.MaxParallelTools
		o.Stream = streaming
		o.Logger = c.opts.Logger
	})
}
