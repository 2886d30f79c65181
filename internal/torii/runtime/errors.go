package runtime

import "errors"

// Error kinds returned by runtime and registry implementations. Concrete
// errors wrap exactly one of these sentinels together with operation
// context, so callers branch with errors.Is.
var (
	// ErrValidation marks input rejected before any engine I/O: a blank
	// identifier, or a spec whose type this runtime does not support.
	ErrValidation = errors.New("invalid argument")

	// ErrNotFound marks an engine response saying the targeted resource
	// does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrEngine marks any other engine failure: transport errors,
	// non-success responses, malformed response bodies.
	ErrEngine = errors.New("engine request failed")

	// ErrSerialization marks a failure encoding structured data for the
	// engine, such as the registry credential blob.
	ErrSerialization = errors.New("serialization failed")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
