package kernel

import "errors"

// Kind is the closed error taxonomy callers compare with
// errors.Is against these sentinels, never against concrete error types.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrVersionConflict   = errors.New("version conflict")
	ErrAlreadyHeld       = errors.New("claim already held")
	ErrNotHolder         = errors.New("not the lock holder")
	ErrCapacityExceeded  = errors.New("agent capacity exceeded")
	ErrTimeout           = errors.New("operation timed out")
	ErrEmergencyHalt     = errors.New("emergency halt active")
	ErrIoError           = errors.New("storage io error")
	ErrContractViolation = errors.New("contract violation")
)
