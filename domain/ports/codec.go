package ports

import (
	"encoding/json"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// Codec converts between the generic JSON value representation and concrete types.
type Codec interface {
	// Decode converts raw into a value of the target type.
	Decode(raw json.RawMessage, target entities.TypeDescriptor) (any, error)

	// Encode converts a value into its JSON representation.
	Encode(v any) (json.RawMessage, error)
}
