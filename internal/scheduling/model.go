// Package scheduling turns a clinician's weekly availability into bookable
// slots, commits appointments under the storage-level exclusivity guarantee,
// and reflows the day's queue when an appointment completes.
package scheduling

import (
	"math"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// BookingSource records who created an appointment.
type BookingSource string

const (
	SourceClinician BookingSource = "clinician"
	SourceStaff     BookingSource = "staff"
	SourceAgent     BookingSource = "agent"
	SourcePatient   BookingSource = "patient"
)

// Valid reports whether s is a known booking source.
func (s BookingSource) Valid() bool {
	switch s {
	case SourceClinician, SourceStaff, SourceAgent, SourcePatient:
		return true
	}
	return false
}

// Clinician is read-only to this package; administration happens elsewhere.
type Clinician struct {
	ID          string
	Name        string
	Timezone    string
	SlotMinutes int
	MaxPerDay   int
	Active      bool
	AutoBooking bool
}

// Location resolves the clinician's IANA timezone, falling back to UTC.
func (c *Clinician) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlotDuration is the length of one bookable slot.
func (c *Clinician) SlotDuration() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// AvailabilityWindow is one recurring block of working hours. Start and End
// are time-of-day text such as "9:00 AM" or "17:00".
type AvailabilityWindow struct {
	ID          string
	ClinicianID string
	Weekday     time.Weekday
	Start       string
	End         string
	Active      bool
}

type Patient struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}

// Appointment is a booked interval. ScheduledStart/End are UTC; Day is the
// clinician-local calendar date stored as midnight UTC.
type Appointment struct {
	ID              string        `json:"id"`
	ClinicianID     string        `json:"clinician_id"`
	PatientID       string        `json:"patient_id"`
	Day             time.Time     `json:"-"`
	ScheduledStart  time.Time     `json:"scheduled_start"`
	ScheduledEnd    time.Time     `json:"scheduled_end"`
	ExpectedMinutes int           `json:"expected_minutes"`
	QueueNumber     int           `json:"queue_number"`
	Status          Status        `json:"status"`
	BookedBy        BookingSource `json:"booked_by"`
	Reason          string        `json:"reason,omitempty"`
	ActualStart     *time.Time    `json:"actual_start,omitempty"`
	ActualEnd       *time.Time    `json:"actual_end,omitempty"`
	ActualMinutes   *int          `json:"actual_minutes,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	Deleted         bool          `json:"deleted"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Blocks reports whether the appointment occupies its interval.
func (a *Appointment) Blocks() bool {
	return a.Status != StatusCancelled && !a.Deleted
}

// Overlaps reports whether [start, end) intersects the scheduled interval.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return start.Before(a.ScheduledEnd) && a.ScheduledStart.Before(end)
}

// ExpectedDuration falls back to the scheduled span for rows missing it.
func (a *Appointment) ExpectedDuration() time.Duration {
	if a.ExpectedMinutes > 0 {
		return time.Duration(a.ExpectedMinutes) * time.Minute
	}
	return a.ScheduledEnd.Sub(a.ScheduledStart)
}

// Slot is a candidate interval in the clinician's local time.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LocalDay returns t's calendar date in loc as midnight UTC, the key used
// for daily limits and queue numbers.
func LocalDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayStart returns local midnight in loc for a LocalDay value.
func DayStart(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
