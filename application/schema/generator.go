// Package schema describes registered entry points as JSON Schema documents.
//
// Each entry's parameter list is a tuple schema (one prefix item per declared
// parameter) and its return value a plain schema. Catalogs group the entries
// of one capability or component so the calling side can generate typed stubs.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

var (
	deferredType = reflect.TypeFor[entities.DeferredResult]()
	rawType      = reflect.TypeFor[json.RawMessage]()
	refType      = reflect.TypeFor[entities.ObjectRef]()
	timeType     = reflect.TypeFor[time.Time]()
)

// GenerateSchema creates a JSON schema from a Go value.
// It uses the `invopop/jsonschema` library to reflect on the value
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v interface{}) ([]byte, error) {
	reflector := newReflector(reflect.TypeOf(v))
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}

// EntrySchema describes one entry point.
type EntrySchema struct {
	Params     *jsonschema.Schema `json:"params"`
	Returns    *jsonschema.Schema `json:"returns,omitempty"`
	Identifier string             `json:"identifier"`
	Owner      string             `json:"owner"`
	Method     string             `json:"method"`
	Arity      int                `json:"arity"`
	Void       bool               `json:"void,omitempty"`
}

// ForEntry builds the schema of entry.
func ForEntry(entry *entities.EntryDescriptor) *EntrySchema {
	params := &jsonschema.Schema{
		Type:        "array",
		Description: fmt.Sprintf("arguments of %s", entry),
	}
	for _, p := range entry.ParameterTypes() {
		params.PrefixItems = append(params.PrefixItems, typeSchema(p))
	}

	s := &EntrySchema{
		Params:     params,
		Identifier: entry.Identifier(),
		Owner:      entry.Owner(),
		Method:     entry.Method(),
		Arity:      entry.Arity(),
		Void:       entry.IsVoid(),
	}
	if !entry.IsVoid() {
		s.Returns = typeSchema(entry.ReturnType())
	}
	return s
}

// Catalog lists the entry points of one capability type or component.
type Catalog struct {
	Owner   string         `json:"owner"`
	Entries []*EntrySchema `json:"entries"`
}

// NewCatalog builds a catalog from entries in the given order.
func NewCatalog(owner string, entries []*entities.EntryDescriptor) *Catalog {
	c := &Catalog{Owner: owner, Entries: make([]*EntrySchema, 0, len(entries))}
	for _, e := range entries {
		c.Entries = append(c.Entries, ForEntry(e))
	}
	return c
}

// JSON returns the indented catalog document.
func (c *Catalog) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}
	return data, nil
}

// newReflector returns a reflector for t. ExpandedStruct is only valid for
// named struct types; the library dereferences a missing definition otherwise.
func newReflector(t reflect.Type) *jsonschema.Reflector {
	return &jsonschema.Reflector{
		ExpandedStruct: expandable(t), // Expand struct definitions inline
		DoNotReference: true,
	}
}

func expandable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.Name() != "" && t != timeType
}

// typeSchema reflects a single declared type. Types the codec treats
// specially get hand-written schemas.
func typeSchema(td entities.TypeDescriptor) *jsonschema.Schema {
	switch {
	case td.Type == nil:
		return &jsonschema.Schema{Type: "null"}
	case td.Type == deferredType, td.Type == rawType:
		return &jsonschema.Schema{Description: "uninterpreted JSON value"}
	case td.Type == refType:
		return objectRefSchema()
	}

	s := newReflector(td.Type).ReflectFromType(td.Type)
	s.Version = ""
	s.ID = ""
	s.Definitions = nil
	return s
}

func objectRefSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set(entities.ObjectRefKey, &jsonschema.Schema{Type: "integer"})
	return &jsonschema.Schema{
		Type:        "object",
		Properties:  props,
		Required:    []string{entities.ObjectRefKey},
		Description: "reference to a tracked object",
	}
}
