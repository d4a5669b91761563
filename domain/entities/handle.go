package entities

import "strconv"

// Handle is an opaque reference to a tracked object instance.
// The zero Handle means "no instance".
type Handle uint64

// IsZero reports whether h is the "no instance" handle.
func (h Handle) IsZero() bool {
	return h == 0
}

// String returns the decimal form of the handle.
func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}
