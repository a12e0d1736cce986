package booking

import "errors"

var (
	// ErrValidation marks a malformed request. Nothing external was called.
	ErrValidation = errors.New("invalid booking request")
	// ErrWorkflowStart marks a BookHotel execution that could not be started
	// or did not produce a result. Nothing was stored.
	ErrWorkflowStart = errors.New("booking workflow failed")
	// ErrPersistenceLost marks a workflow that completed while the local
	// write did not. The engine and the projection now disagree.
	ErrPersistenceLost = errors.New("booking completed but was not persisted")
	ErrNotFound        = errors.New("booking not found")
	// ErrWorkflowUnreachable marks a payment workflow that does not exist or
	// can no longer be checked in.
	ErrWorkflowUnreachable = errors.New("payment workflow unreachable")
	// ErrSignalFailure marks a check-in whose signal or result failed. The
	// booking was not changed.
	ErrSignalFailure = errors.New("check-in signal failed")
)
