package fluid

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrNoPipeline indicates the simulation was created without a way to
	// dispatch stages. The simulation disables itself.
	ErrNoPipeline = errors.New("fluid: no compute pipeline bound")

	// ErrDisabled is returned by every call on a simulation that failed a
	// fatal startup precondition.
	ErrDisabled = errors.New("fluid: simulation disabled")

	// ErrNotInitialized indicates Update was called before Init.
	ErrNotInitialized = errors.New("fluid: simulation not initialized")

	// ErrTornDown indicates the particle store has been released.
	ErrTornDown = errors.New("fluid: simulation torn down")

	// ErrLayoutMismatch indicates the host particle record does not match
	// the device record stride or field order.
	ErrLayoutMismatch = errors.New("fluid: particle record layout mismatch")

	// ErrInvalidSmoothingRadius indicates h <= 0.
	ErrInvalidSmoothingRadius = errors.New("fluid: smoothing radius must be positive")

	// ErrInvalidMass indicates a non-positive particle mass.
	ErrInvalidMass = errors.New("fluid: particle mass must be positive")

	// ErrInvalidTimestep indicates a non-positive delta time.
	ErrInvalidTimestep = errors.New("fluid: delta time must be positive")

	// ErrUnknownParam indicates a parameter update named a field that is not
	// part of the parameter set.
	ErrUnknownParam = errors.New("fluid: unknown parameter")
)

// StageError wraps a dispatch failure with pipeline context.
type StageError struct {
	Stage   Stage
	Frame   uint64
	Substep int
	Wrapped error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("frame %d substep %d stage %s: %v", e.Frame, e.Substep, e.Stage, e.Wrapped)
}

func (e *StageError) Unwrap() error {
	return e.Wrapped
}
