package cubeview

import "errors"

// Diagnostics for operations that degrade to a logged no-op.
// None of these is fatal; they travel in types.Outcome.Err.
var (
	ErrInvalidAxis         = errors.New("invalid axis")
	ErrInvalidPosition     = errors.New("invalid slice position")
	ErrInvalidRange        = errors.New("invalid value range")
	ErrNoCube              = errors.New("cube not available")
	ErrHierarchyExhausted  = errors.New("hierarchy exhausted")
	ErrDimensionFloor      = errors.New("at least one dimension must remain visible")
	ErrNoCell              = errors.New("no cell available")
	ErrInvalidDimension    = errors.New("invalid dimension")
	ErrInvalidConfig       = errors.New("invalid cube configuration")
	ErrInvalidHierarchyMap = errors.New("invalid aggregation map")
)
