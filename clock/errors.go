package clock

import "errors"

// Sentinel errors returned by Clock operations. Callers should use
// errors.Is rather than comparing error strings.
var (
	// ErrNoParent is returned by parent-relative operations on a root clock.
	ErrNoParent = errors.New("clock: no parent")

	// ErrImmutable is returned when mutating a field a concrete clock
	// type refuses to change (root speed/tickRate/parent/availability,
	// offset clock speed/tickRate). Correlation is a plain value type
	// with no setters, so no Correlation operation returns it.
	ErrImmutable = errors.New("clock: immutable")

	// ErrInvalidArgument is returned for out-of-range or malformed
	// constructor/setter arguments (tickRate <= 0, unknown ButWith field).
	ErrInvalidArgument = errors.New("clock: invalid argument")

	// ErrNoCommonAncestor is returned by cross-clock time conversion
	// between two clocks whose ancestries never meet.
	ErrNoCommonAncestor = errors.New("clock: no common ancestor")
)
