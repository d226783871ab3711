package trigger

import "errors"

// Domain errors for the trigger package.
var (
	// ErrNoAction is returned when a trigger is created without a function.
	ErrNoAction = errors.New("trigger: no action function")

	// ErrInvalidGuard is returned when a guard expression does not parse.
	ErrInvalidGuard = errors.New("trigger: invalid guard expression")
)
