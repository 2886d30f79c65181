package runtime

import (
	"context"
	"io"
	"time"
)

// Module is the agent's view of a single engine-owned container. Instances
// are ephemeral snapshots produced by List; they hold no state beyond what
// the engine reported at list time.
type Module interface {
	// Name is the module's display name (the container name without the
	// engine's leading separator, or UnknownModuleName).
	Name() string

	// Type is the runtime type tag this module was created with.
	Type() string

	// Config is the engine configuration observed for the module.
	Config() EngineConfig

	// RuntimeState queries the engine for the module's current state.
	// Returns an error wrapping ErrNotFound when the module no longer
	// exists on the engine.
	RuntimeState(ctx context.Context) (RuntimeState, error)
}

// ModuleDetail is one element of a ListWithDetails scan. Exactly one of
// (Module, State) and Err is meaningful: an element with a non-nil Err
// terminates the scan, and previously delivered elements remain valid.
type ModuleDetail struct {
	Module Module
	State  RuntimeState
	Err    error
}

// ModuleRegistry is the image half of the engine capability: pulling and
// removing module images.
type ModuleRegistry interface {
	// Pull fetches config.Image from its registry, authenticating with
	// config.Auth when present.
	Pull(ctx context.Context, config EngineConfig) error

	// Remove deletes the named image from the engine. The name must be
	// non-blank.
	Remove(ctx context.Context, name string) error
}

// ModuleRuntime is the container half of the engine capability. Identifier
// arguments must be non-blank after trimming whitespace; blank identifiers
// fail with ErrValidation before any engine call is made. Implementations
// are safe for unsynchronized concurrent use and never retry internally.
type ModuleRuntime interface {
	// Init bootstraps the runtime. When a target network is configured it
	// is created unless it already exists; Init is idempotent either way.
	Init(ctx context.Context) error

	// Create creates (but does not start) a container for spec. Specs whose
	// Type does not match this runtime fail with ErrValidation. The spec's
	// env wins over pre-existing create-option env entries on key
	// collision, and the ownership label is always applied.
	Create(ctx context.Context, spec ModuleSpec) error

	// Start starts the identified module.
	Start(ctx context.Context, id string) error

	// Stop stops the identified module, allowing it grace to exit before
	// the engine kills it. A nil grace means DefaultStopGrace; oversized
	// values are clamped rather than overflowed.
	Stop(ctx context.Context, id string, grace *time.Duration) error

	// Restart restarts the identified module.
	Restart(ctx context.Context, id string) error

	// Remove force-removes the identified module. Volumes and links are
	// left in place.
	Remove(ctx context.Context, id string) error

	// List returns a snapshot of the modules this agent owns, per the
	// ownership label.
	List(ctx context.Context) ([]Module, error)

	// ListWithDetails streams (module, state) pairs for the current owned
	// set in completion order. Modules deleted between the List snapshot
	// and their state query are dropped silently; any other state-query
	// failure is delivered as a terminal element with Err set. The stream
	// is lazy and one-shot: it is closed when exhausted, and abandoning
	// ctx cancels outstanding queries.
	ListWithDetails(ctx context.Context) <-chan ModuleDetail

	// Logs opens the identified module's log stream (stdout and stderr).
	// The stream is finite unless options.Follow is set, and is not
	// restartable. The caller owns closing it.
	Logs(ctx context.Context, id string, options LogOptions) (io.ReadCloser, error)

	// SystemInfo reports the engine host's OS type and architecture.
	SystemInfo(ctx context.Context) (SystemInfo, error)

	// RemoveAll removes every owned module concurrently. All removals are
	// awaited; the first error observed fails the whole call.
	RemoveAll(ctx context.Context) error

	// Registry returns the image registry capability paired with this
	// runtime.
	Registry() ModuleRegistry
}
