package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
	"github.com/reglet-dev/reglet-interop/domain/ports"
)

var deferredType = reflect.TypeFor[entities.DeferredResult]()

// ParseArgs splits a JSON argument array into its elements. An absent payload
// or JSON null is an empty argument list.
func ParseArgs(payload json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("arguments must be a JSON array")
	}
	var args []json.RawMessage
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	return args, nil
}

// Coercer converts raw JSON arguments into the parameter types an entry declares.
type Coercer struct {
	codec ports.Codec
}

// NewCoercer creates a Coercer that decodes through codec.
func NewCoercer(codec ports.Codec) *Coercer {
	return &Coercer{codec: codec}
}

// Coerce converts raw to entry's parameter types. The argument count must
// match exactly. DeferredResult parameters receive the raw element unchanged.
func (c *Coercer) Coerce(entry *entities.EntryDescriptor, raw []json.RawMessage) ([]any, error) {
	if err := checkArity(entry, raw); err != nil {
		return nil, err
	}

	args := make([]any, len(raw))
	for i, elem := range raw {
		target := entry.ParameterType(i)
		if target.Is(deferredType) {
			args[i] = entities.NewDeferredResult(append(json.RawMessage(nil), elem...))
			continue
		}
		v, err := c.codec.Decode(elem, target)
		if err != nil {
			return nil, &errors.CoercionError{
				Identifier: entry.Identifier(),
				Index:      i,
				Target:     target.String(),
				Err:        err,
			}
		}
		args[i] = v
	}
	return args, nil
}

func checkArity(entry *entities.EntryDescriptor, raw []json.RawMessage) error {
	if len(raw) != entry.Arity() {
		return &errors.ArityMismatchError{
			Identifier: entry.Identifier(),
			Expected:   entry.Arity(),
			Actual:     len(raw),
		}
	}
	return nil
}
