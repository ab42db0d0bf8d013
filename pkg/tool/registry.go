package tool

import (
	"errors"
	"sort"
	"sync"
)

// Registry holds the registered tool descriptors.
//
// The registry is read-mostly: registration happens at startup, lookups
// happen on every turn from many goroutines. A RWMutex keeps lookups cheap
// and registration safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor. The parameter schema is compiled eagerly so
// schema defects fail here, at startup.
//
// Returns *DuplicateToolError when the name is taken.
func (r *Registry) Register(desc *Descriptor) error {
	if desc == nil {
		return errors.New("register: descriptor is required")
	}
	if desc.Name == "" {
		return errors.New("register: tool name is required")
	}
	if desc.Handler == nil {
		return errors.New("register: tool handler is required")
	}

	if err := desc.compileSchema(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		return &DuplicateToolError{Name: desc.Name}
	}
	r.tools[desc.Name] = desc
	return nil
}

// Get returns the descriptor for name, or *UnknownToolError.
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return desc, nil
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns all registered descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.tools))
	for _, desc := range r.tools {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
