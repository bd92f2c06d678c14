package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mcpchat/config"
	"github.com/hupe1980/mcpchat/logging"
	"github.com/hupe1980/mcpchat/tool"
)

// Status is the externally visible snapshot of one provider: its name, the
// result of the most recent probe and the tool names it advertised.
type Status struct {
	Name      string   `json:"name"`
	Reachable bool     `json:"reachable"`
	ToolNames []string `json:"tool_names"`
	LastError string   `json:"last_error,omitempty"`
}

// providerState is the mutable per-provider record. Only the registry
// mutates it; reads go through snapshots.
type providerState struct {
	spec      config.ProviderSpec
	reachable bool
	lastErr   string
	toolNames []string
}

// Registry holds the configured tool providers for the process lifetime.
// Providers are loaded once at construction and never removed; probes update
// reachability with last-writer-wins semantics. All methods are safe for
// concurrent use and List never blocks on an in-flight probe.
type Registry struct {
	mu        sync.RWMutex
	names     []string
	providers map[string]*providerState

	client Client
	logger logging.Logger
}

// RegistryOptions configure construction of a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry builds a registry from the configured provider inventory.
// Providers are ordered by name for stable listings.
func NewRegistry(specs map[string]config.ProviderSpec, client Client, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	names := make([]string, 0, len(specs))
	providers := make(map[string]*providerState, len(specs))
	for name, spec := range specs {
		names = append(names, name)
		providers[name] = &providerState{spec: spec}
	}
	sort.Strings(names)

	return &Registry{
		names:     names,
		providers: providers,
		client:    client,
		logger:    opts.Logger,
	}
}

// Lookup returns the endpoint spec of a configured provider.
func (r *Registry) Lookup(name string) (config.ProviderSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.providers[name]
	if !ok {
		return config.ProviderSpec{}, false
	}
	return st.spec, true
}

// Probe re-runs tool discovery against one provider and records the outcome.
// The descriptors of a successful probe are returned so callers building a
// catalog do not have to list twice.
func (r *Registry) Probe(ctx context.Context, name string) ([]tool.Descriptor, error) {
	spec, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", name)
	}

	descriptors, err := r.client.ListTools(ctx, name, spec)

	r.mu.Lock()
	st := r.providers[name]
	if err != nil {
		st.reachable = false
		st.lastErr = err.Error()
		st.toolNames = nil
	} else {
		st.reachable = true
		st.lastErr = ""
		names := make([]string, len(descriptors))
		for i, d := range descriptors {
			names[i] = d.Name
		}
		st.toolNames = names
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("provider probe failed", "provider", name, "error", err)
		return nil, err
	}
	r.logger.Debug("provider probe succeeded", "provider", name, "tools", len(descriptors))
	return descriptors, nil
}

// ProbeAll probes every configured provider concurrently and returns the
// refreshed statuses. Individual failures are recorded, not returned.
func (r *Registry) ProbeAll(ctx context.Context) []Status {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	r.mu.RUnlock()

	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			_, _ = r.Probe(ctx, name) // failure is captured in provider state
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return r.List()
}

// List returns a snapshot of all providers in name order. Pure read, no side
// effects.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]Status, 0, len(r.names))
	for _, name := range r.names {
		st := r.providers[name]
		toolNames := make([]string, len(st.toolNames))
		copy(toolNames, st.toolNames)
		statuses = append(statuses, Status{
			Name:      name,
			Reachable: st.reachable,
			ToolNames: toolNames,
			LastError: st.lastErr,
		})
	}
	return statuses
}

// Invoke dispatches a tool call to the named provider. It satisfies the
// agent package's Invoker interface.
func (r *Registry) Invoke(ctx context.Context, providerName, toolName string, args json.RawMessage) (string, error) {
	spec, ok := r.Lookup(providerName)
	if !ok {
		return "", &tool.Error{
			Kind:     tool.KindUnreachable,
			Provider: providerName,
			Tool:     toolName,
			Message:  "provider not configured",
		}
	}
	return r.client.CallTool(ctx, providerName, spec, toolName, args)
}
