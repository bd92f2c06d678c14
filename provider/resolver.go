package provider

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mcpchat/logging"
	"github.com/hupe1980/mcpchat/tool"
)

// WarnReason classifies why a provider or tool was excluded from a resolved
// catalog.
type WarnReason string

const (
	// WarnUnknown marks a requested provider name that is not configured.
	WarnUnknown WarnReason = "unknown_provider"
	// WarnUnreachable marks a provider that could not be contacted.
	WarnUnreachable WarnReason = "unreachable"
	// WarnTimeout marks a provider whose discovery call timed out.
	WarnTimeout WarnReason = "timeout"
	// WarnMalformed marks a provider whose tool listing could not be parsed.
	WarnMalformed WarnReason = "malformed_response"
	// WarnCollision marks a tool name already claimed by an earlier provider.
	WarnCollision WarnReason = "collision"
)

// Warning records one degradation encountered during catalog resolution.
// Provider is always set; Tool only for collisions.
type Warning struct {
	Provider string     `json:"provider"`
	Tool     string     `json:"tool,omitempty"`
	Reason   WarnReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

// Resolver builds request-scoped tool catalogs from a set of selected
// provider names. Resolution degrades, it never fails: every problem becomes
// a warning and an empty catalog is a valid result.
type Resolver struct {
	registry *Registry
	logger   logging.Logger
}

// NewResolver constructs a Resolver bound to a registry.
func NewResolver(registry *Registry, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Resolver{registry: registry, logger: logger}
}

// Resolve queries all requested providers concurrently and merges their
// tools in request order. Duplicate requested names are collapsed to their
// first occurrence. Unknown and failing providers contribute zero tools plus
// a warning; tool name collisions keep the first-seen descriptor.
func (r *Resolver) Resolve(ctx context.Context, providerNames []string) (*tool.Catalog, []Warning) {
	catalog := tool.NewCatalog()
	var warnings []Warning

	names := dedupe(providerNames)

	type listing struct {
		descriptors []tool.Descriptor
		err         error
		known       bool
	}
	listings := make([]listing, len(names))

	var g errgroup.Group
	for i, name := range names {
		if _, ok := r.registry.Lookup(name); !ok {
			listings[i] = listing{known: false}
			continue
		}
		listings[i].known = true
		g.Go(func() error {
			descriptors, err := r.registry.Probe(ctx, name)
			listings[i].descriptors = descriptors
			listings[i].err = err
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures become warnings

	for i, name := range names {
		l := listings[i]
		if !l.known {
			warnings = append(warnings, Warning{Provider: name, Reason: WarnUnknown})
			continue
		}
		if l.err != nil {
			warnings = append(warnings, Warning{
				Provider: name,
				Reason:   reasonFor(l.err),
				Detail:   l.err.Error(),
			})
			continue
		}
		for _, d := range l.descriptors {
			if !catalog.Add(d) {
				existing, _ := catalog.Get(d.Name)
				warnings = append(warnings, Warning{
					Provider: name,
					Tool:     d.Name,
					Reason:   WarnCollision,
					Detail:   "already provided by " + existing.Provider,
				})
			}
		}
	}

	r.logger.Info("catalog resolved",
		"requested", len(names),
		"tools", catalog.Len(),
		"warnings", len(warnings),
	)
	return catalog, warnings
}

func reasonFor(err error) WarnReason {
	switch tool.KindOf(err) {
	case tool.KindTimeout:
		return WarnTimeout
	case tool.KindMalformed:
		return WarnMalformed
	default:
		return WarnUnreachable
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
