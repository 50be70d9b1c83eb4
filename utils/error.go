package utils

import "errors"

// Business-rule failures are detected before any write and surfaced as one of
// these sentinels (possibly wrapped with %w). Handlers map them to HTTP codes.
var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorInvalidState: operation attempted outside its allowed lifecycle transition.
	ErrorInvalidState = errors.New("invalid state for this operation")

	// ErrorForbidden: acting identity's role does not match the operation.
	ErrorForbidden = errors.New("forbidden")

	// ErrorConflict: duplicate idempotency key, e.g. paying an already-paid milestone.
	ErrorConflict = errors.New("conflict")

	ErrorValidation = errors.New("validation failed")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
