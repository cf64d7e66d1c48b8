package store

import (
	"errors"
	"fmt"
)

// InvalidStateError reports a candidate state rejected by the validator.
// The store raises it as a panic value: an operation that yields an invalid
// state is a programming defect, not a runtime condition.
type InvalidStateError struct {
	Err error
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("INVALID_STATE: %v", e.Err)
}

// Unwrap returns the validator's error.
func (e *InvalidStateError) Unwrap() error {
	return e.Err
}

// IsInvalidState reports whether err is an InvalidStateError.
// Uses errors.As to handle wrapped errors.
func IsInvalidState(err error) bool {
	var ie *InvalidStateError
	return errors.As(err, &ie)
}

// FreezeViolationError reports a state subscriber that changed the state it
// was handed. It is raised as a panic value when WithFreezeCheck is set.
type FreezeViolationError struct {
	// Subscriber is the registration index of the offending subscriber.
	Subscriber int

	// Before and After are the state fingerprints around the subscriber call.
	Before string
	After  string
}

// Error implements the error interface.
func (e *FreezeViolationError) Error() string {
	return fmt.Sprintf("FREEZE_VIOLATION: state subscriber %d mutated the published state", e.Subscriber)
}

// IsFreezeViolation reports whether err is a FreezeViolationError.
func IsFreezeViolation(err error) bool {
	var fe *FreezeViolationError
	return errors.As(err, &fe)
}
