package registry

import (
	"go/token"
	"reflect"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// Signature describes a hand-written entry point declared with Handler.
type Signature struct {
	Returns    entities.TypeDescriptor
	TypeParams []string
	Params     []entities.TypeDescriptor
}

type memberKind int

const (
	memberMethod memberKind = iota
	memberFunc
	memberHandler
)

// member is one marked entry point in a declaration.
type member struct {
	fn         any
	invoke     entities.InvokeFunc
	sig        Signature
	name       string
	identifier string
	kind       memberKind
}

func (m member) id() string {
	if m.identifier != "" {
		return m.identifier
	}
	return m.name
}

// declaration is shared by instance capabilities and component types.
type declaration struct {
	goType     reflect.Type
	name       string
	typeParams []string
	parents    []*Capability
	members    []member
}

// Option configures a Capability or a component Type.
type Option func(*declaration)

// Capability declares which methods of an instance type are invokable.
type Capability struct {
	decl declaration
}

// Instance declares the capability of tracked instances whose dynamic type is T.
//
// Example usage:
//
//	registry.Instance[*Greeter](
//	    registry.Invokable("Greet"),
//	    registry.InvokableAs("Farewell", "Bye"),
//	)
func Instance[T any](opts ...Option) *Capability {
	t := reflect.TypeFor[T]()
	c := &Capability{decl: declaration{goType: t, name: t.String()}}
	for _, opt := range opts {
		opt(&c.decl)
	}
	return c
}

// Name returns the capability type name.
func (c *Capability) Name() string { return c.decl.name }

// Type returns the Go type the capability is declared for.
func (c *Capability) Type() reflect.Type { return c.decl.goType }

// Component is a named unit of code whose exported types declare static entry points.
type Component struct {
	name  string
	types []*declaration
}

// StaticType is a type within a component.
type StaticType struct {
	decl declaration
}

// NewComponent groups static types under a component name.
func NewComponent(name string, types ...*StaticType) *Component {
	c := &Component{name: name}
	for _, t := range types {
		c.types = append(c.types, &t.decl)
	}
	return c
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// Type declares a type within a component. Only types with exported names
// (upper-case first letter) take part in static discovery.
func Type(name string, opts ...Option) *StaticType {
	t := &StaticType{decl: declaration{name: name}}
	for _, opt := range opts {
		opt(&t.decl)
	}
	return t
}

// Invokable marks a method of the capability type; its identifier is the method name.
func Invokable(method string) Option {
	return InvokableAs(method, "")
}

// InvokableAs marks a method of the capability type under a custom identifier.
func InvokableAs(method, identifier string) Option {
	return func(d *declaration) {
		d.members = append(d.members, member{kind: memberMethod, name: method, identifier: identifier})
	}
}

// Func marks a static function; its identifier is the function name.
func Func(name string, fn any) Option {
	return FuncAs(name, "", fn)
}

// FuncAs marks a static function under a custom identifier.
func FuncAs(name, identifier string, fn any) Option {
	return func(d *declaration) {
		d.members = append(d.members, member{kind: memberFunc, name: name, identifier: identifier, fn: fn})
	}
}

// Handler declares an entry point with an explicit signature. It can be used on
// both capabilities and component types.
func Handler(name, identifier string, sig Signature, fn entities.InvokeFunc) Option {
	return func(d *declaration) {
		d.members = append(d.members, member{kind: memberHandler, name: name, identifier: identifier, sig: sig, invoke: fn})
	}
}

// Extends makes the entries marked on parent part of this capability. The
// concrete type must carry the parent's methods, usually through embedding.
func Extends(parent *Capability) Option {
	return func(d *declaration) {
		d.parents = append(d.parents, parent)
	}
}

// Generic declares unresolved type parameters. Declarations with unresolved
// parameters are rejected at discovery.
func Generic(params ...string) Option {
	return func(d *declaration) {
		d.typeParams = append(d.typeParams, params...)
	}
}

// Named overrides the display name used in errors and catalogs.
func Named(name string) Option {
	return func(d *declaration) {
		d.name = name
	}
}

func isPublic(name string) bool {
	return token.IsExported(name)
}
