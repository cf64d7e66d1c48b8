package event

import (
	"errors"
	"fmt"
)

// FreezeViolationError reports a subscriber that changed an event during
// fan-out. It is raised as a panic value when WithFreezeCheck is enabled.
type FreezeViolationError struct {
	// Kind of the event that was modified.
	Kind Kind

	// Subscriber is the registration index of the offending subscriber.
	Subscriber int

	// Before and After are the fingerprints around the subscriber call.
	Before string
	After  string
}

// Error implements the error interface.
func (e *FreezeViolationError) Error() string {
	return fmt.Sprintf("FREEZE_VIOLATION: subscriber %d mutated event %q", e.Subscriber, e.Kind)
}

// IsFreezeViolation reports whether err (or a panic value converted to an
// error) is a FreezeViolationError. Uses errors.As to handle wrapped errors.
func IsFreezeViolation(err error) bool {
	var fe *FreezeViolationError
	return errors.As(err, &fe)
}
