// Package tool models the request-scoped tool catalog: descriptors advertised
// by remote providers, the merged insertion-ordered catalog handed to a
// reasoning loop, typed tool errors and argument validation.
package tool

// Descriptor describes a single callable tool advertised by a provider.
// InputSchema is the raw JSON Schema object published by the provider; it is
// forwarded verbatim to the model and used to validate call arguments.
type Descriptor struct {
	Name        string
	Provider    string
	Description string
	InputSchema map[string]any
}

// Catalog is the merged, request-scoped set of tools available to one run.
// Iteration order is insertion order: providers in request order, tools in
// per-provider order. Tool names are unique; on collision the first-seen
// descriptor wins.
type Catalog struct {
	order  []string
	byName map[string]Descriptor
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]Descriptor)}
}

// Add inserts a descriptor. It reports false when the name is already taken,
// leaving the existing entry untouched.
func (c *Catalog) Add(d Descriptor) bool {
	if _, exists := c.byName[d.Name]; exists {
		return false
	}
	c.byName[d.Name] = d
	c.order = append(c.order, d.Name)
	return true
}

// Get looks up a descriptor by tool name.
func (c *Catalog) Get(name string) (Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int { return len(c.order) }

// Names returns tool names in insertion order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Descriptors returns all descriptors in insertion order.
func (c *Catalog) Descriptors() []Descriptor {
	ds := make([]Descriptor, 0, len(c.order))
	for _, name := range c.order {
		ds = append(ds, c.byName[name])
	}
	return ds
}
