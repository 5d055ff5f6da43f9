package scheduling

import (
	"errors"
	"fmt"
)

// Storage-level outcomes reported by Repository implementations.
var (
	ErrNotFound         = errors.New("scheduling: not found")
	ErrSlotTaken        = errors.New("scheduling: slot already booked")
	ErrQueueNumberTaken = errors.New("scheduling: queue number already used")
)

// Kind classifies a scheduling outcome for callers.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindUnavailable    Kind = "unavailable"
	KindNotFound       Kind = "not_found"
	KindInfrastructure Kind = "infrastructure"
)

// Reason is the machine-readable cause within a Kind.
type Reason string

const (
	ReasonInvalidInput        Reason = "invalid_input"
	ReasonPastStart           Reason = "past_start"
	ReasonInvalidTransition   Reason = "invalid_transition"
	ReasonSlotTaken           Reason = "slot_taken"
	ReasonClinicianInactive   Reason = "clinician_inactive"
	ReasonAutoBookingDisabled Reason = "auto_booking_disabled"
	ReasonDailyLimit          Reason = "daily_limit"
	ReasonNoAvailability      Reason = "no_availability"
	ReasonOutsideHours        Reason = "outside_hours"
	ReasonClinicianNotFound   Reason = "clinician_not_found"
	ReasonAppointmentNotFound Reason = "appointment_not_found"
	ReasonStorage             Reason = "storage"
)

// Error is the single error type returned by Service operations. Business
// outcomes (validation, conflict, unavailable) are ordinary values of it.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	// Suggestions holds free slots offered alongside a conflict.
	Suggestions []Slot
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not a scheduling error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// ReasonOf returns the Reason of err, or "" when err is not a scheduling error.
func ReasonOf(err error) Reason {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}

// AsError unwraps err into a scheduling error.
func AsError(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}

func IsValidation(err error) bool     { return KindOf(err) == KindValidation }
func IsConflict(err error) bool       { return KindOf(err) == KindConflict }
func IsUnavailable(err error) bool    { return KindOf(err) == KindUnavailable }
func IsNotFound(err error) bool       { return KindOf(err) == KindNotFound }
func IsInfrastructure(err error) bool { return KindOf(err) == KindInfrastructure }

func validationError(reason Reason, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: msg}
}

func unavailableError(reason Reason, msg string) *Error {
	return &Error{Kind: KindUnavailable, Reason: reason, Message: msg}
}

func notFoundError(reason Reason, msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: msg}
}

func conflictError(msg string, suggestions []Slot) *Error {
	return &Error{Kind: KindConflict, Reason: ReasonSlotTaken, Message: msg, Suggestions: suggestions}
}

func infraError(op string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Reason: ReasonStorage, Message: "scheduling: " + op, Err: err}
}
