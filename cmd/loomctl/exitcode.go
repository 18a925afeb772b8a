package main

import (
	"errors"

	"github.com/cuemby/loom/pkg/kernel"
)

// Exit codes follow the closed error taxonomy the kernel defines. 0 and 1 are
// reserved by Unix convention (success, generic failure); every kernel
// error kind gets its own code above that so shell callers can branch on
// $? without parsing stderr.
const (
	exitOK                 = 0
	exitGenericError        = 1
	exitNotFound            = 2
	exitAlreadyExists       = 3
	exitInvalidState        = 4
	exitVersionConflict     = 5
	exitAlreadyHeld         = 6
	exitNotHolder           = 7
	exitCapacityExceeded    = 8
	exitTimeout             = 9
	exitEmergencyHalt       = 10
	exitIoError             = 11
	exitContractViolation   = 12
)

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, kernel.ErrNotFound):
		return exitNotFound
	case errors.Is(err, kernel.ErrAlreadyExists):
		return exitAlreadyExists
	case errors.Is(err, kernel.ErrInvalidState):
		return exitInvalidState
	case errors.Is(err, kernel.ErrVersionConflict):
		return exitVersionConflict
	case errors.Is(err, kernel.ErrAlreadyHeld):
		return exitAlreadyHeld
	case errors.Is(err, kernel.ErrNotHolder):
		return exitNotHolder
	case errors.Is(err, kernel.ErrCapacityExceeded):
		return exitCapacityExceeded
	case errors.Is(err, kernel.ErrTimeout):
		return exitTimeout
	case errors.Is(err, kernel.ErrEmergencyHalt):
		return exitEmergencyHalt
	case errors.Is(err, kernel.ErrIoError):
		return exitIoError
	case errors.Is(err, kernel.ErrContractViolation):
		return exitContractViolation
	default:
		return exitGenericError
	}
}
