package timespec

import "errors"

// Validation errors.
var (
	// ErrInvalidSpec is returned when a specification string has no
	// recognised form.
	ErrInvalidSpec = errors.New("timespec: invalid specification")

	// ErrInvalidCron is returned when a cron field does not parse or is
	// out of range.
	ErrInvalidCron = errors.New("timespec: invalid cron field")

	// ErrInvalidInterval is returned when a period interval is not a
	// positive duration.
	ErrInvalidInterval = errors.New("timespec: invalid period interval")

	// ErrNotAllowed is returned when a form is used where it has no
	// meaning, such as range() in a time trigger.
	ErrNotAllowed = errors.New("timespec: form not allowed here")
)
