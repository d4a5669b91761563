// Package validation checks call arguments against the JSON Schema generated
// for the entry they are addressed to.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/reglet-interop/application/schema"
	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// ArgsValidator validates each argument against the schema of its parameter.
// Compiled schemas are cached per entry.
type ArgsValidator struct {
	compiler *jsonschema.Compiler
	compiled map[*entities.EntryDescriptor][]*jsonschema.Schema
	mu       sync.Mutex
}

// NewArgsValidator creates a new validator.
func NewArgsValidator() *ArgsValidator {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	return &ArgsValidator{
		compiler: compiler,
		compiled: make(map[*entities.EntryDescriptor][]*jsonschema.Schema),
	}
}

// Validate implements dispatch.ArgsValidator. Object references and surplus
// arguments are not checked here; the codec and the coercer report those.
func (v *ArgsValidator) Validate(entry *entities.EntryDescriptor, args []json.RawMessage) error {
	schemas, err := v.schemasFor(entry)
	if err != nil {
		return &errors.CoercionError{Identifier: entry.Identifier(), Index: -1, Err: err}
	}

	for i, arg := range args {
		if i >= len(schemas) {
			break
		}
		if isObjectRef(arg) {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(arg))
		dec.UseNumber()
		var obj interface{}
		if err := dec.Decode(&obj); err != nil {
			return &errors.CoercionError{
				Identifier: entry.Identifier(),
				Index:      i,
				Target:     entry.ParameterType(i).String(),
				Err:        fmt.Errorf("failed to prepare validation object: %w", err),
			}
		}
		if err := schemas[i].Validate(obj); err != nil {
			return &errors.CoercionError{
				Identifier: entry.Identifier(),
				Index:      i,
				Target:     entry.ParameterType(i).String(),
				Err:        err,
			}
		}
	}
	return nil
}

func (v *ArgsValidator) schemasFor(entry *entities.EntryDescriptor) ([]*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[entry]; ok {
		return s, nil
	}

	params := schema.ForEntry(entry).Params.PrefixItems
	compiled := make([]*jsonschema.Schema, len(params))
	for i, p := range params {
		doc, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema of parameter %d: %w", i, err)
		}

		url := fmt.Sprintf("mem://entry/%p/%d.json", entry, i)
		if err := v.compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("failed to add schema resource for parameter %d: %w", i, err)
		}
		sch, err := v.compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("invalid schema for parameter %d: %w", i, err)
		}
		compiled[i] = sch
	}
	v.compiled[entry] = compiled
	return compiled, nil
}

// isObjectRef reports whether arg is a {"__objref": n} object.
func isObjectRef(arg json.RawMessage) bool {
	trimmed := bytes.TrimSpace(arg)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}
	_, ok := fields[entities.ObjectRefKey]
	return ok && len(fields) == 1
}
