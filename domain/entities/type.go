package entities

import (
	"reflect"
)

// TypeDescriptor describes the declared type of a parameter or return value.
// The zero value describes "no value" (void).
type TypeDescriptor struct {
	// Type is the concrete Go type. Nil for void and for unbound type parameters.
	Type reflect.Type

	// Param names an unbound generic type parameter (e.g. "T").
	Param string
}

// Void describes the absence of a return value.
var Void = TypeDescriptor{}

// TypeOf returns the descriptor for the concrete type T.
func TypeOf[T any]() TypeDescriptor {
	return TypeDescriptor{Type: reflect.TypeFor[T]()}
}

// TypeFrom returns the descriptor for t. A nil t yields Void.
func TypeFrom(t reflect.Type) TypeDescriptor {
	return TypeDescriptor{Type: t}
}

// TypeParam returns a descriptor for an unbound type parameter.
// Entries declared with one can never be invoked.
func TypeParam(name string) TypeDescriptor {
	return TypeDescriptor{Param: name}
}

// IsVoid reports whether the descriptor describes no value.
func (t TypeDescriptor) IsVoid() bool {
	return t.Type == nil && t.Param == ""
}

// IsOpen reports whether the descriptor is an unbound type parameter.
func (t TypeDescriptor) IsOpen() bool {
	return t.Param != ""
}

// Is reports whether the descriptor is exactly the concrete type other.
func (t TypeDescriptor) Is(other reflect.Type) bool {
	return t.Type != nil && t.Type == other
}

// String returns a readable name for the type.
func (t TypeDescriptor) String() string {
	switch {
	case t.IsOpen():
		return t.Param
	case t.Type == nil:
		return "void"
	default:
		return t.Type.String()
	}
}
