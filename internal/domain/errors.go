package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	// ErrSpaceUnavailable is returned when a space already carries an active
	// booking or another reservation attempt holds its lock.
	ErrSpaceUnavailable = errors.New("space unavailable")

	// ErrInvalidChannel is returned for a malformed payment channel identifier.
	ErrInvalidChannel = errors.New("invalid payment channel")

	// ErrDuplicateInFlight is returned when a non-terminal payment attempt
	// already exists for the same correlation id.
	ErrDuplicateInFlight = errors.New("duplicate in-flight payment")

	// ErrInvalidTransition is returned for a state change the reservation
	// state machine does not permit.
	ErrInvalidTransition = errors.New("invalid state transition")
)
