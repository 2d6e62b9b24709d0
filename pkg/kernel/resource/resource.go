// Package resource tracks the processed resources (layers, tables, ...) that
// commands create and register with a processor under unique identifiers.
package resource

import "sort"

// SourceMemory is the source descriptor of resources created in memory.
const SourceMemory = "in-memory"

// Resource is an opaque, identified artifact produced by a command.
type Resource struct {
	ID         string
	Source     string         // file path, or SourceMemory
	Kind       string         // free-form type tag, e.g. "GeoLayer"
	Properties map[string]any // local to the resource, independent of the processor store
	Data       any            // owned by the domain command package
}

// New creates a resource with an empty property map.
func New(id, kind, source string, data any) *Resource {
	return &Resource{ID: id, Kind: kind, Source: source, Properties: make(map[string]any), Data: data}
}

// Registry holds the active resources of one processor, in registration order.
// Registering an id that is already present replaces the old resource in
// place; Add reports the replacement so the caller can record a Warning.
type Registry struct {
	order []string
	byID  map[string]*Resource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Resource)}
}

// Add registers r and reports whether an existing resource was replaced.
func (g *Registry) Add(r *Resource) (replaced bool) {
	if g.byID == nil {
		g.byID = make(map[string]*Resource)
	}
	if _, ok := g.byID[r.ID]; ok {
		replaced = true
	} else {
		g.order = append(g.order, r.ID)
	}
	g.byID[r.ID] = r
	return replaced
}

// Get returns the resource with the given id.
func (g *Registry) Get(id string) (*Resource, bool) {
	r, ok := g.byID[id]
	return r, ok
}

// Has reports whether id is registered.
func (g *Registry) Has(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// Remove unregisters id and reports whether it was present.
func (g *Registry) Remove(id string) bool {
	if _, ok := g.byID[id]; !ok {
		return false
	}
	delete(g.byID, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns registered ids in registration order.
func (g *Registry) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// SortedIDs returns registered ids sorted lexically.
func (g *Registry) SortedIDs() []string {
	out := g.IDs()
	sort.Strings(out)
	return out
}

// Len returns the number of registered resources.
func (g *Registry) Len() int { return len(g.order) }

// Reset removes every resource.
func (g *Registry) Reset() {
	g.order = nil
	g.byID = make(map[string]*Resource)
}
