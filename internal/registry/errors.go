package registry

import "errors"

var (
	// ErrNotFound is returned for any operation on a device id the registry
	// does not hold. Registry operations on an unknown id fail immediately;
	// they never silently no-op.
	ErrNotFound = errors.New("device not found")

	// ErrTransitionInProgress is returned when a connect or disconnect is
	// requested while a transition for the same device is already in flight.
	// At most one transition per device runs at a time.
	ErrTransitionInProgress = errors.New("device transition already in progress")
)
