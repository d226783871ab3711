package loader

import "errors"

// Domain errors for the loader package.
var (
	// ErrFolder is returned when the script folder cannot be read.
	ErrFolder = errors.New("loader: cannot read script folder")

	// ErrSyntax is returned when a module does not parse.
	ErrSyntax = errors.New("loader: syntax error")

	// ErrModuleFailed is returned when a module body raises an error.
	ErrModuleFailed = errors.New("loader: module failed")
)
