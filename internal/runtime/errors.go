package runtime

import "errors"

// Domain errors for the runtime package.
var (
	// ErrClosed is returned when spawning a task on a closed runtime.
	ErrClosed = errors.New("runtime: closed")

	// ErrServiceNotFound is returned when calling an unregistered service.
	ErrServiceNotFound = errors.New("runtime: service not found")

	// ErrInvalidService is returned when registering a service without a
	// domain, name or handler.
	ErrInvalidService = errors.New("runtime: invalid service")

	// ErrNotInTask is returned by task-scoped host functions called outside
	// a spawned task.
	ErrNotInTask = errors.New("runtime: not running in a task")
)
