package scheduling

import (
	"context"
	"time"
)

// NewBooking carries everything InsertBooking needs to upsert the patient
// and insert the appointment in one atomic step.
type NewBooking struct {
	PatientName  string
	PatientPhone string
	Appointment  Appointment
}

// Completion records the actual timing of a finished appointment.
type Completion struct {
	AppointmentID string
	ActualStart   time.Time
	ActualEnd     time.Time
	ActualMinutes int
}

// Shift moves one appointment to a new interval during queue reflow.
type Shift struct {
	AppointmentID string
	OldStart      time.Time
	Start         time.Time
	End           time.Time
}

// Repository is the storage contract for the scheduling core. Implementations
// must enforce uniqueness of (clinician, scheduled start) among non-cancelled,
// non-deleted appointments and of (clinician, day, queue number) among
// non-deleted ones, reporting violations as ErrSlotTaken / ErrQueueNumberTaken.
type Repository interface {
	GetClinician(ctx context.Context, clinicianID string) (*Clinician, error)
	ListAvailability(ctx context.Context, clinicianID string) ([]AvailabilityWindow, error)

	// ListAppointments returns non-deleted appointments whose Day lies in
	// [fromDay, toDay], ordered by day then queue number.
	ListAppointments(ctx context.Context, clinicianID string, fromDay, toDay time.Time) ([]Appointment, error)
	MaxQueueNumber(ctx context.Context, clinicianID string, day time.Time) (int, error)
	GetAppointment(ctx context.Context, appointmentID string) (*Appointment, error)
	// NextAppointmentForPatient returns the earliest blocking appointment for
	// the phone with this clinician starting after the given instant.
	NextAppointmentForPatient(ctx context.Context, clinicianID, phone string, after time.Time) (*Appointment, error)

	InsertBooking(ctx context.Context, booking NewBooking) (*Appointment, error)
	// CompleteAppointment stores the completion and applies shifts, in order,
	// as one atomic unit.
	CompleteAppointment(ctx context.Context, completion Completion, shifts []Shift) error
	MarkCancelled(ctx context.Context, appointmentID string, at time.Time, deleted bool) error
}
