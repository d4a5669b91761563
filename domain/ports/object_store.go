package ports

import "github.com/reglet-dev/reglet-interop/domain/entities"

// ObjectStore maps opaque handles to live object instances.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Track mints a new handle for v. Tracking the same value twice yields
	// two independent handles.
	Track(v any) entities.Handle

	// Lookup returns the instance behind h, or a *errors.HandleExpiredError.
	Lookup(h entities.Handle) (any, error)

	// Release invalidates h. Releasing a stale handle returns a *errors.HandleExpiredError.
	Release(h entities.Handle) error
}
