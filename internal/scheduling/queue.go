package scheduling

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// PlanShift computes the queue reflow after completed finished at actualEnd:
// confirmed appointments later in the same day's queue are laid end to end
// from actualEnd, each keeping its expected duration. The returned shifts are
// ordered so that applying them one by one never puts two rows on the same
// start: rows moving earlier go first in ascending order, then rows moving
// later in descending order. Rows that do not move are omitted.
func PlanShift(day []Appointment, completed Appointment, actualEnd time.Time) []Shift {
	later := make([]Appointment, 0, len(day))
	for _, a := range day {
		if a.ID == completed.ID || a.Deleted || a.Status != StatusConfirmed {
			continue
		}
		if a.QueueNumber > completed.QueueNumber {
			later = append(later, a)
		}
	}
	sort.Slice(later, func(i, j int) bool { return later[i].QueueNumber < later[j].QueueNumber })

	var earlier, delayed []Shift
	cursor := actualEnd.UTC()
	for _, a := range later {
		shift := Shift{
			AppointmentID: a.ID,
			OldStart:      a.ScheduledStart,
			Start:         cursor,
			End:           cursor.Add(a.ExpectedDuration()),
		}
		cursor = shift.End
		switch {
		case shift.Start.Before(a.ScheduledStart):
			earlier = append(earlier, shift)
		case shift.Start.After(a.ScheduledStart):
			delayed = append(delayed, shift)
		}
	}
	for i, j := 0, len(delayed)-1; i < j; i, j = i+1, j-1 {
		delayed[i], delayed[j] = delayed[j], delayed[i]
	}
	return append(earlier, delayed...)
}

// Complete marks an appointment finished now and reflows the rest of the
// clinician's day in the same storage transaction.
func (s *Service) Complete(ctx context.Context, clinicianID, appointmentID string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.complete")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", appointmentID))

	appt, err := s.ownedAppointment(ctx, clinicianID, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appt.Blocks() || appt.Status == StatusCompleted {
		return nil, validationError(ReasonInvalidTransition, "appointment cannot be completed from status "+string(appt.Status))
	}

	actualEnd := s.clock().UTC()
	completion := Completion{
		AppointmentID: appt.ID,
		ActualStart:   appt.ScheduledStart,
		ActualEnd:     actualEnd,
		ActualMinutes: ceilMinutes(actualEnd.Sub(appt.ScheduledStart)),
	}

	day, err := s.repo.ListAppointments(ctx, appt.ClinicianID, appt.Day, appt.Day)
	if err != nil {
		span.RecordError(err)
		return nil, infraError("list appointments", err)
	}
	shifts := PlanShift(day, *appt, actualEnd)

	if err := s.repo.CompleteAppointment(ctx, completion, shifts); err != nil {
		span.RecordError(err)
		return nil, infraError("complete appointment", err)
	}
	s.metrics.ObserveCompletion(len(shifts))
	s.logger.Info("appointment completed",
		"appointment_id", appt.ID,
		"clinician_id", appt.ClinicianID,
		"actual_minutes", completion.ActualMinutes,
		"shifted", len(shifts),
	)

	appt.Status = StatusCompleted
	appt.ActualStart = &completion.ActualStart
	appt.ActualEnd = &completion.ActualEnd
	appt.ActualMinutes = &completion.ActualMinutes
	return appt, nil
}

// Cancel frees the appointment's slot and stamps the cancellation time.
func (s *Service) Cancel(ctx context.Context, clinicianID, appointmentID string) (*Appointment, error) {
	return s.cancel(ctx, clinicianID, appointmentID, false)
}

// Delete soft-deletes the appointment; the row is kept, flagged and cancelled.
func (s *Service) Delete(ctx context.Context, clinicianID, appointmentID string) (*Appointment, error) {
	return s.cancel(ctx, clinicianID, appointmentID, true)
}

func (s *Service) cancel(ctx context.Context, clinicianID, appointmentID string, deleted bool) (*Appointment, error) {
	appt, err := s.ownedAppointment(ctx, clinicianID, appointmentID)
	if err != nil {
		return nil, err
	}
	switch {
	case appt.Status == StatusCompleted:
		return nil, validationError(ReasonInvalidTransition, "completed appointments cannot be cancelled")
	case appt.Status == StatusCancelled && !deleted:
		return nil, validationError(ReasonInvalidTransition, "appointment is already cancelled")
	}

	at := s.clock().UTC()
	if err := s.repo.MarkCancelled(ctx, appt.ID, at, deleted); err != nil {
		return nil, infraError("cancel appointment", err)
	}
	s.metrics.ObserveCancel(deleted)
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "clinician_id", appt.ClinicianID, "deleted", deleted)

	appt.Status = StatusCancelled
	appt.CancelledAt = &at
	appt.Deleted = deleted
	return appt, nil
}

// NextForPatient finds the patient's next upcoming appointment with the clinician.
func (s *Service) NextForPatient(ctx context.Context, clinicianID, phone string) (*Appointment, error) {
	appt, err := s.repo.NextAppointmentForPatient(ctx, clinicianID, phone, s.clock().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(ReasonAppointmentNotFound, "no upcoming appointment")
		}
		return nil, infraError("next appointment", err)
	}
	return appt, nil
}

// Appointment returns one of the clinician's appointments. Deleted rows and
// rows owned by another clinician read as not found.
func (s *Service) Appointment(ctx context.Context, clinicianID, appointmentID string) (*Appointment, error) {
	return s.ownedAppointment(ctx, clinicianID, appointmentID)
}

func (s *Service) ownedAppointment(ctx context.Context, clinicianID, appointmentID string) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(ReasonAppointmentNotFound, "appointment not found")
		}
		return nil, infraError("load appointment", err)
	}
	if appt.ClinicianID != clinicianID || appt.Deleted {
		return nil, notFoundError(ReasonAppointmentNotFound, "appointment not found")
	}
	return appt, nil
}
