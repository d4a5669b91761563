// Package registry discovers and caches invokable entry points.
//
// Entry points are declared explicitly: instance capabilities with Instance and
// static components with NewComponent. Each capability type or component is
// scanned once, on first use, and the resulting identifier map never changes
// afterwards. A scan that fails with a configuration error is cached as well,
// so the error surfaces on every lookup and the scan is never retried.
package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// Registry implements ports.EntryResolver.
// It is safe for concurrent use.
type Registry struct {
	logger        *slog.Logger
	capabilities  sync.Map // reflect.Type -> *Capability
	components    sync.Map // string -> *Component
	instanceCache sync.Map // reflect.Type -> *cacheEntry
	staticCache   sync.Map // string -> *cacheEntry
	scans         singleflight.Group
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	logger       *slog.Logger
	capabilities []*Capability
	components   []*Component
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*registryBuilder)

// WithCapabilities declares instance capabilities.
func WithCapabilities(caps ...*Capability) RegistryOption {
	return func(b *registryBuilder) {
		b.capabilities = append(b.capabilities, caps...)
	}
}

// WithComponents loads components for static discovery.
func WithComponents(components ...*Component) RegistryOption {
	return func(b *registryBuilder) {
		b.components = append(b.components, components...)
	}
}

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(b *registryBuilder) {
		b.logger = logger
	}
}

// New creates a Registry with the given options.
// Returns an error if a capability type is declared twice or a component
// name is loaded twice.
//
// Example usage:
//
//	reg, err := registry.New(
//	    registry.WithCapabilities(registry.Instance[*Greeter](registry.Invokable("Greet"))),
//	    registry.WithComponents(registry.NewComponent("math",
//	        registry.Type("Calc", registry.Func("Add", Add)),
//	    )),
//	)
func New(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	r := &Registry{logger: b.logger}
	if err := r.Declare(b.capabilities...); err != nil {
		return nil, err
	}
	if err := r.Load(b.components...); err != nil {
		return nil, err
	}
	return r, nil
}

// Declare adds instance capabilities. A capability must be declared before the
// first lookup against its type.
func (r *Registry) Declare(caps ...*Capability) error {
	for _, c := range caps {
		if c == nil || c.decl.goType == nil {
			return fmt.Errorf("capability cannot be nil")
		}
		if _, scanned := r.instanceCache.Load(c.decl.goType); scanned {
			return fmt.Errorf("capability %q was already discovered", c.decl.name)
		}
		if _, exists := r.capabilities.LoadOrStore(c.decl.goType, c); exists {
			return fmt.Errorf("capability %q already declared", c.decl.name)
		}
	}
	return nil
}

// Load makes components visible to static discovery.
func (r *Registry) Load(components ...*Component) error {
	for _, c := range components {
		if c == nil || c.name == "" {
			return fmt.Errorf("component name cannot be empty")
		}
		if _, exists := r.components.LoadOrStore(c.name, c); exists {
			return fmt.Errorf("component %q already loaded", c.name)
		}
	}
	return nil
}

// ResolveInstance finds the entry point with the given identifier on the
// capability declared for capabilityType.
func (r *Registry) ResolveInstance(capabilityType reflect.Type, identifier string) (*entities.EntryDescriptor, error) {
	if capabilityType == nil {
		return nil, &errors.NotFoundError{Owner: "<nil>", Identifier: identifier}
	}
	return r.instanceEntry(capabilityType).lookup(identifier, false)
}

// ResolveStatic finds the static entry point with the given identifier in a
// loaded component.
func (r *Registry) ResolveStatic(component, identifier string) (*entities.EntryDescriptor, error) {
	entry, err := r.staticEntry(component)
	if err != nil {
		return nil, err
	}
	return entry.lookup(identifier, true)
}

// InstanceEntries returns the entry points of a capability type sorted by identifier.
func (r *Registry) InstanceEntries(capabilityType reflect.Type) ([]*entities.EntryDescriptor, error) {
	if capabilityType == nil {
		return nil, fmt.Errorf("capability type cannot be nil")
	}
	entry := r.instanceEntry(capabilityType)
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.sorted(), nil
}

// StaticEntries returns the static entry points of a component sorted by identifier.
func (r *Registry) StaticEntries(component string) ([]*entities.EntryDescriptor, error) {
	entry, err := r.staticEntry(component)
	if err != nil {
		return nil, err
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.sorted(), nil
}

// Components returns a sorted list of loaded component names.
func (r *Registry) Components() []string {
	var names []string
	r.components.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// instanceEntry returns the cached scan for t, scanning it on first use.
// Concurrent first lookups share one scan; LoadOrStore keeps the first result.
func (r *Registry) instanceEntry(t reflect.Type) *cacheEntry {
	if v, ok := r.instanceCache.Load(t); ok {
		return v.(*cacheEntry)
	}
	v, _, _ := r.scans.Do(typeKey(t), func() (any, error) {
		if v, ok := r.instanceCache.Load(t); ok {
			return v, nil
		}
		actual, _ := r.instanceCache.LoadOrStore(t, r.scanInstance(t))
		return actual, nil
	})
	return v.(*cacheEntry)
}

// staticEntry returns the cached scan for a component. Unknown components are
// not cached because they may be loaded later.
func (r *Registry) staticEntry(component string) (*cacheEntry, error) {
	if v, ok := r.staticCache.Load(component); ok {
		return v.(*cacheEntry), nil
	}
	v, err, _ := r.scans.Do("component:"+component, func() (any, error) {
		if v, ok := r.staticCache.Load(component); ok {
			return v, nil
		}
		c, ok := r.components.Load(component)
		if !ok {
			return nil, &errors.ComponentNotLoadedError{Component: component}
		}
		actual, _ := r.staticCache.LoadOrStore(component, r.scanComponent(c.(*Component)))
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cacheEntry), nil
}

func (e *cacheEntry) lookup(identifier string, static bool) (*entities.EntryDescriptor, error) {
	if e.err != nil {
		return nil, e.err
	}
	if desc, ok := e.entries[identifier]; ok {
		return desc, nil
	}
	if reason, ok := e.excluded[identifier]; ok {
		return nil, &errors.UnsuitableError{Owner: e.owner, Identifier: identifier, Reason: reason}
	}
	return nil, &errors.NotFoundError{Owner: e.owner, Identifier: identifier, Static: static}
}

func (e *cacheEntry) sorted() []*entities.EntryDescriptor {
	out := make([]*entities.EntryDescriptor, 0, len(e.entries))
	for _, d := range e.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier() < out[j].Identifier()
	})
	return out
}

// typeKey names t for singleflight. Each reflect.Type is backed by a unique
// runtime descriptor, so its address identifies the type.
func typeKey(t reflect.Type) string {
	return fmt.Sprintf("type:%p", t)
}
