package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// cacheEntry is the immutable result of scanning one capability type or component.
type cacheEntry struct {
	err      error
	entries  map[string]*entities.EntryDescriptor
	excluded map[string]string // identifier -> reason
	owner    string
}

// entryBuilder accumulates descriptors for one scan and enforces identifier uniqueness.
type entryBuilder struct {
	entries  map[string]*entities.EntryDescriptor
	labels   map[string]string
	excluded map[string]string
	owner    string
	scope    string
}

func newEntryBuilder(owner, scope string) *entryBuilder {
	return &entryBuilder{
		entries:  make(map[string]*entities.EntryDescriptor),
		labels:   make(map[string]string),
		excluded: make(map[string]string),
		owner:    owner,
		scope:    scope,
	}
}

func (b *entryBuilder) add(label string, desc *entities.EntryDescriptor) error {
	id := desc.Identifier()
	if existing, ok := b.labels[id]; ok {
		return &errors.ConfigurationError{
			Owner:      b.owner,
			Identifier: id,
			Reason: fmt.Sprintf("%s and %s share the identifier %q; all entry points within the same %s must have different identifiers",
				existing, label, id, b.scope),
			Entries: []string{existing, label},
		}
	}
	b.labels[id] = label
	b.entries[id] = desc
	delete(b.excluded, id)
	return nil
}

func (b *entryBuilder) exclude(id, reason string) {
	if _, ok := b.entries[id]; !ok {
		b.excluded[id] = reason
	}
}

func (b *entryBuilder) result() *cacheEntry {
	return &cacheEntry{entries: b.entries, excluded: b.excluded, owner: b.owner}
}

// ownedMember is a member together with the declaration that marked it.
type ownedMember struct {
	owner string
	member
}

// collectMembers returns ancestor members first, each ancestor visited once.
func collectMembers(c *Capability) []ownedMember {
	var out []ownedMember
	seen := make(map[*Capability]bool)
	var walk func(*Capability)
	walk = func(c *Capability) {
		if c == nil || seen[c] {
			return
		}
		seen[c] = true
		for _, p := range c.decl.parents {
			walk(p)
		}
		for _, m := range c.decl.members {
			out = append(out, ownedMember{owner: c.decl.name, member: m})
		}
	}
	walk(c)
	return out
}

// scanInstance builds the identifier map for instances whose dynamic type is t.
func (r *Registry) scanInstance(t reflect.Type) *cacheEntry {
	v, ok := r.capabilities.Load(t)
	if !ok {
		r.logger.Debug("registry: type declares no invokable entry points", "type", t.String())
		return &cacheEntry{owner: t.String(), entries: map[string]*entities.EntryDescriptor{}}
	}
	c := v.(*Capability)
	d := &c.decl

	if len(d.typeParams) > 0 {
		return &cacheEntry{owner: d.name, err: &errors.ConfigurationError{
			Owner:  d.name,
			Reason: fmt.Sprintf("cannot determine generic argument types for capability %q (unresolved %s)", d.name, strings.Join(d.typeParams, ", ")),
		}}
	}
	if t.Kind() == reflect.Interface {
		return &cacheEntry{owner: d.name, err: &errors.ConfigurationError{
			Owner:  d.name,
			Reason: "capability type must be concrete, not an interface",
		}}
	}

	b := newEntryBuilder(d.name, "capability")
	for _, m := range collectMembers(c) {
		label := m.owner + "." + m.name
		if !isPublic(m.name) {
			r.logger.Debug("registry: non-public entry point excluded", "capability", d.name, "method", m.name)
			b.exclude(m.id(), fmt.Sprintf("%s is not public", label))
			continue
		}

		var desc *entities.EntryDescriptor
		switch m.kind {
		case memberMethod:
			method, found := t.MethodByName(m.name)
			if !found {
				return b.fail(m.id(), fmt.Sprintf("type %s has no public method %s", t, m.name))
			}
			shape, err := shapeOf(method.Type, 1)
			if err != nil {
				return b.fail(m.id(), fmt.Sprintf("method %s: %v", label, err))
			}
			desc = entities.NewEntryDescriptor(m.owner, m.id(), m.name, shape.params, shape.returns,
				reflectInvoker(method.Func, shape, t))
		case memberFunc:
			return b.fail(m.id(), fmt.Sprintf("static function %s cannot be declared on an instance capability", label))
		case memberHandler:
			var err *errors.ConfigurationError
			desc, err = handlerDescriptor(m.owner, label, m.member)
			if err != nil {
				return &cacheEntry{owner: d.name, err: err}
			}
		}

		if err := b.add(label, desc); err != nil {
			return &cacheEntry{owner: d.name, err: err}
		}
	}

	r.logger.Debug("registry: discovered instance entry points", "capability", d.name, "count", len(b.entries))
	return b.result()
}

// scanComponent builds the identifier map for the static entry points of comp.
// Only exported types are searched and only members declared directly on each
// type count; Extends has no effect on static discovery.
func (r *Registry) scanComponent(comp *Component) *cacheEntry {
	b := newEntryBuilder(comp.name, "component")
	for _, d := range comp.types {
		if !isPublic(d.name) {
			r.logger.Debug("registry: unexported type skipped", "component", comp.name, "type", d.name)
			continue
		}
		for _, m := range d.members {
			label := d.name + "." + m.name
			if !isPublic(m.name) {
				b.exclude(m.id(), fmt.Sprintf("%s is not public", label))
				continue
			}
			if len(d.typeParams) > 0 {
				return b.fail(m.id(), fmt.Sprintf("static entry points of type %q cannot be invokable because the type is generic", d.name))
			}

			var desc *entities.EntryDescriptor
			switch m.kind {
			case memberMethod:
				return b.fail(m.id(), fmt.Sprintf("method mark %s requires an instance capability", label))
			case memberFunc:
				fn := reflect.ValueOf(m.fn)
				if !fn.IsValid() {
					return b.fail(m.id(), fmt.Sprintf("function %s is nil", label))
				}
				shape, err := shapeOf(fn.Type(), 0)
				if err != nil {
					return b.fail(m.id(), fmt.Sprintf("function %s: %v", label, err))
				}
				desc = entities.NewEntryDescriptor(d.name, m.id(), m.name, shape.params, shape.returns,
					reflectInvoker(fn, shape, nil))
			case memberHandler:
				var err *errors.ConfigurationError
				desc, err = handlerDescriptor(d.name, label, m)
				if err != nil {
					return &cacheEntry{owner: comp.name, err: err}
				}
			}

			if err := b.add(label, desc); err != nil {
				return &cacheEntry{owner: comp.name, err: err}
			}
		}
	}

	r.logger.Debug("registry: discovered static entry points", "component", comp.name, "count", len(b.entries))
	return b.result()
}

func (b *entryBuilder) fail(identifier, reason string) *cacheEntry {
	return &cacheEntry{owner: b.owner, err: &errors.ConfigurationError{
		Owner:      b.owner,
		Identifier: identifier,
		Reason:     reason,
	}}
}

func handlerDescriptor(owner, label string, mm member) (*entities.EntryDescriptor, *errors.ConfigurationError) {
	if mm.invoke == nil {
		return nil, &errors.ConfigurationError{Owner: owner, Identifier: mm.id(), Reason: fmt.Sprintf("handler %s is nil", label)}
	}
	if mm.sig.isOpen() {
		return nil, &errors.ConfigurationError{
			Owner:      owner,
			Identifier: mm.id(),
			Reason:     fmt.Sprintf("cannot determine generic argument types for entry point %s", label),
		}
	}
	for i, p := range mm.sig.Params {
		if p.IsVoid() {
			return nil, &errors.ConfigurationError{
				Owner:      owner,
				Identifier: mm.id(),
				Reason:     fmt.Sprintf("parameter %d of %s has no type", i, label),
			}
		}
	}
	return entities.NewEntryDescriptor(owner, mm.id(), mm.name, mm.sig.Params, mm.sig.Returns, guardHandler(mm.invoke)), nil
}
