package ports

import (
	"reflect"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// EntryResolver resolves identifiers to entry points.
type EntryResolver interface {
	// ResolveInstance finds an entry point declared by the capability type of a tracked instance.
	ResolveInstance(capabilityType reflect.Type, identifier string) (*entities.EntryDescriptor, error)

	// ResolveStatic finds a static entry point declared within a loaded component.
	ResolveStatic(component, identifier string) (*entities.EntryDescriptor, error)
}
