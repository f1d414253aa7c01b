package popgen

import "errors"

var (
	ErrInvalidFitnessDistribution = errors.New("invalid fitness distribution")
	ErrDuplicatePosition          = errors.New("mutation position already present")
	ErrIndexOutOfRange            = errors.New("index out of range")
	ErrInvariantViolation         = errors.New("invariant violation")
)
