package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for local development and
// tests. It enforces the same uniqueness rules as the Postgres schema.
type MemoryRepository struct {
	mu           sync.RWMutex
	clinicians   map[string]Clinician
	availability map[string][]AvailabilityWindow
	patients     map[string]Patient // by phone
	appointments map[string]Appointment
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clinicians:   make(map[string]Clinician),
		availability: make(map[string][]AvailabilityWindow),
		patients:     make(map[string]Patient),
		appointments: make(map[string]Appointment),
	}
}

// PutClinician seeds or replaces a clinician with its weekly windows.
func (r *MemoryRepository) PutClinician(c Clinician, windows ...AvailabilityWindow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clinicians[c.ID] = c
	rows := make([]AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		w.ClinicianID = c.ID
		rows = append(rows, w)
	}
	r.availability[c.ID] = rows
}

// PutAppointment seeds an appointment without booking checks.
func (r *MemoryRepository) PutAppointment(a Appointment) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.appointments[a.ID] = a
	return a
}

func (r *MemoryRepository) GetClinician(_ context.Context, clinicianID string) (*Clinician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clinicians[clinicianID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) ListAvailability(_ context.Context, clinicianID string) ([]AvailabilityWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.availability[clinicianID]
	out := make([]AvailabilityWindow, len(rows))
	copy(out, rows)
	return out, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, clinicianID string, fromDay, toDay time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.ClinicianID != clinicianID || a.Deleted {
			continue
		}
		if a.Day.Before(fromDay) || a.Day.After(toDay) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].QueueNumber < out[j].QueueNumber
	})
	return out, nil
}

func (r *MemoryRepository) MaxQueueNumber(_ context.Context, clinicianID string, day time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	highest := 0
	for _, a := range r.appointments {
		if a.ClinicianID == clinicianID && !a.Deleted && a.Day.Equal(day) && a.QueueNumber > highest {
			highest = a.QueueNumber
		}
	}
	return highest, nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, appointmentID string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[appointmentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) NextAppointmentForPatient(_ context.Context, clinicianID, phone string, after time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patient, ok := r.patients[phone]
	if !ok {
		return nil, ErrNotFound
	}
	var next *Appointment
	for _, a := range r.appointments {
		if a.ClinicianID != clinicianID || a.PatientID != patient.ID || !a.Blocks() || a.Status == StatusCompleted {
			continue
		}
		if !a.ScheduledStart.After(after) {
			continue
		}
		if next == nil || a.ScheduledStart.Before(next.ScheduledStart) {
			a := a
			next = &a
		}
	}
	if next == nil {
		return nil, ErrNotFound
	}
	return next, nil
}

// Patient returns the stored patient for phone.
func (r *MemoryRepository) Patient(phone string) (Patient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[phone]
	return p, ok
}

func (r *MemoryRepository) InsertBooking(_ context.Context, booking NewBooking) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt := booking.Appointment
	if r.startTaken(appt.ClinicianID, appt.ScheduledStart) {
		return nil, ErrSlotTaken
	}
	for _, a := range r.appointments {
		if a.ClinicianID == appt.ClinicianID && !a.Deleted && a.Day.Equal(appt.Day) && a.QueueNumber == appt.QueueNumber {
			return nil, ErrQueueNumberTaken
		}
	}

	patient, ok := r.patients[booking.PatientPhone]
	if !ok {
		patient = Patient{
			ID:        uuid.NewString(),
			Name:      booking.PatientName,
			Phone:     booking.PatientPhone,
			CreatedAt: appt.CreatedAt,
		}
		r.patients[patient.Phone] = patient
	}

	appt.ID = uuid.NewString()
	appt.PatientID = patient.ID
	r.appointments[appt.ID] = appt
	return &appt, nil
}

func (r *MemoryRepository) CompleteAppointment(_ context.Context, completion Completion, shifts []Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[completion.AppointmentID]
	if !ok {
		return ErrNotFound
	}

	// Stage on a copy so a failed shift leaves nothing behind.
	staged := make(map[string]Appointment, len(r.appointments))
	for id, a := range r.appointments {
		staged[id] = a
	}
	start, end, minutes := completion.ActualStart, completion.ActualEnd, completion.ActualMinutes
	appt.Status = StatusCompleted
	appt.ActualStart = &start
	appt.ActualEnd = &end
	appt.ActualMinutes = &minutes
	staged[appt.ID] = appt

	for _, sh := range shifts {
		a, ok := staged[sh.AppointmentID]
		if !ok {
			return ErrNotFound
		}
		for id, other := range staged {
			if id != a.ID && other.ClinicianID == a.ClinicianID && other.Blocks() && other.ScheduledStart.Equal(sh.Start) {
				return ErrSlotTaken
			}
		}
		a.ScheduledStart = sh.Start
		a.ScheduledEnd = sh.End
		staged[a.ID] = a
	}
	r.appointments = staged
	return nil
}

func (r *MemoryRepository) MarkCancelled(_ context.Context, appointmentID string, at time.Time, deleted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[appointmentID]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusCancelled
	a.CancelledAt = &at
	if deleted {
		a.Deleted = true
	}
	r.appointments[appointmentID] = a
	return nil
}

func (r *MemoryRepository) startTaken(clinicianID string, start time.Time) bool {
	for _, a := range r.appointments {
		if a.ClinicianID == clinicianID && a.Blocks() && a.ScheduledStart.Equal(start) {
			return true
		}
	}
	return false
}
