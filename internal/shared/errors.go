package shared

import "errors"

var (
	// ErrNotFound indicates a missing or cross-organization resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates a disallowed lifecycle transition or an
	// operation against an entity whose current state forbids it.
	ErrInvalidState = errors.New("invalid state")
	// ErrMissingVehicle occurs when an install is requested without a target vehicle.
	ErrMissingVehicle = errors.New("vehicle required")
	// ErrAlreadyReverted occurs when a part change is reverted a second time.
	ErrAlreadyReverted = errors.New("part change already reverted")
	// ErrAlreadySuperseded occurs when the installed component of a part
	// change has itself been replaced since.
	ErrAlreadySuperseded = errors.New("part change already superseded")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a request without an authenticated actor.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation indicates a malformed or incomplete payload.
	ErrValidation = errors.New("validation failed")
)
