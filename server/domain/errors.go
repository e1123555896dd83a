package domain

import "errors"

// Error taxonomy shared by all layers. Validation errors are detected before
// any mutation; ErrStore wraps opaque persistence failures.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrStore           = errors.New("store error")
)
