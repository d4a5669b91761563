// Package jsoncodec implements ports.Codec on top of encoding/json.
//
// Decoded struct arguments are validated with go-playground/validator, so an
// entry point can declare constraints with `validate` tags. Values of the form
// {"__objref": <handle>} are resolved to tracked instances when the codec has
// an object store.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/ports"
)

var (
	objectRefType = reflect.TypeFor[entities.ObjectRef]()
	handleType    = reflect.TypeFor[entities.Handle]()
	rawType       = reflect.TypeFor[json.RawMessage]()
	timeType      = reflect.TypeFor[time.Time]()
)

// Codec implements ports.Codec.
type Codec struct {
	store    ports.ObjectStore
	validate *validator.Validate
}

// Option configures a Codec.
type Option func(*Codec)

// WithObjectStore enables decoding of object references into tracked instances.
func WithObjectStore(store ports.ObjectStore) Option {
	return func(c *Codec) {
		c.store = store
	}
}

// WithValidator replaces the struct validator.
func WithValidator(v *validator.Validate) Option {
	return func(c *Codec) {
		c.validate = v
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	if c.validate == nil {
		c.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return c
}

// Decode converts raw into a value of the target type.
func (c *Codec) Decode(raw json.RawMessage, target entities.TypeDescriptor) (any, error) {
	if target.Type == nil {
		return nil, fmt.Errorf("cannot decode into %s", target)
	}
	t := target.Type

	if t == rawType {
		return append(json.RawMessage(nil), raw...), nil
	}
	if c.store != nil && t != objectRefType && t != handleType {
		if h, ok := objectRef(raw); ok {
			return c.lookup(h, t)
		}
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, err
	}
	if err := c.validateStruct(ptr.Elem()); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return ptr.Elem().Interface(), nil
}

// Encode converts v to JSON.
func (c *Codec) Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

func (c *Codec) lookup(h entities.Handle, t reflect.Type) (any, error) {
	v, err := c.store.Lookup(h)
	if err != nil {
		return nil, err
	}
	if !reflect.TypeOf(v).AssignableTo(t) {
		return nil, fmt.Errorf("object %d is a %T, not %s", uint64(h), v, t)
	}
	return v, nil
}

// objectRef reports whether raw is exactly {"__objref": <handle>}.
func objectRef(raw json.RawMessage) (entities.Handle, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || len(fields) != 1 {
		return 0, false
	}
	v, ok := fields[entities.ObjectRefKey]
	if !ok {
		return 0, false
	}
	var h entities.Handle
	if err := json.Unmarshal(v, &h); err != nil || h.IsZero() {
		return 0, false
	}
	return h, true
}

// validateStruct runs struct validation on v when v is a struct or a non-nil
// pointer to one.
func (c *Codec) validateStruct(v reflect.Value) error {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || v.Type() == timeType {
		return nil
	}
	return c.validate.Struct(v.Interface())
}
