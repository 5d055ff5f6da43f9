package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxQueueAttempts = 3
	suggestionCount  = 3
)

// BookingRequest asks for an appointment starting at Start's wall clock,
// interpreted in the clinician's timezone whatever Start's own location is.
type BookingRequest struct {
	ClinicianID  string
	PatientName  string
	PatientPhone string
	Start        time.Time
	Reason       string
	Source       BookingSource
}

// Book validates and commits a new appointment. Checks run in a fixed order,
// are read-only, and the only write is one atomic patient upsert plus
// appointment insert. A race lost at the storage layer surfaces as a
// Conflict error carrying alternative slots.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(attribute.String("clinician_id", req.ClinicianID), attribute.String("source", string(req.Source)))

	appt, err := s.book(ctx, req)
	result := "booked"
	if err != nil {
		result = string(KindOf(err))
		if IsInfrastructure(err) {
			span.RecordError(err)
			s.logger.Error("booking failed", "error", err, "clinician_id", req.ClinicianID)
		} else {
			s.logger.Info("booking rejected", "reason", ReasonOf(err), "clinician_id", req.ClinicianID)
		}
	} else {
		s.logger.Info("appointment booked",
			"appointment_id", appt.ID,
			"clinician_id", appt.ClinicianID,
			"queue_number", appt.QueueNumber,
			"scheduled_start", appt.ScheduledStart,
		)
	}
	s.metrics.ObserveBooking(result, string(req.Source))
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)
	switch {
	case req.ClinicianID == "":
		return nil, validationError(ReasonInvalidInput, "clinician is required")
	case req.PatientName == "":
		return nil, validationError(ReasonInvalidInput, "patient name is required")
	case req.PatientPhone == "":
		return nil, validationError(ReasonInvalidInput, "patient phone is required")
	case req.Start.IsZero():
		return nil, validationError(ReasonInvalidInput, "start time is required")
	case !req.Source.Valid():
		return nil, validationError(ReasonInvalidInput, "unknown booking source")
	}

	// 1. clinician
	clinician, err := s.Clinician(ctx, req.ClinicianID)
	if err != nil {
		return nil, err
	}
	if !clinician.Active {
		return nil, unavailableError(ReasonClinicianInactive, "clinician is not taking appointments")
	}
	if req.Source == SourceAgent && !clinician.AutoBooking {
		return nil, unavailableError(ReasonAutoBookingDisabled, "clinician does not accept automated bookings")
	}

	// 2. local wall clock -> UTC -> local again, then compare with now
	loc := clinician.Location()
	y, mo, d := req.Start.Date()
	wall := time.Date(y, mo, d, req.Start.Hour(), req.Start.Minute(), 0, 0, loc)
	startUTC := wall.UTC()
	start := startUTC.In(loc)
	if !start.After(s.clock().In(loc)) {
		return nil, validationError(ReasonPastStart, "requested time is in the past")
	}

	// 3. daily limit
	day := LocalDay(start, loc)
	existing, err := s.repo.ListAppointments(ctx, clinician.ID, day, day)
	if err != nil {
		return nil, infraError("list appointments", err)
	}
	if clinician.MaxPerDay > 0 && countBlocking(existing) >= clinician.MaxPerDay {
		return nil, unavailableError(ReasonDailyLimit, "daily appointment limit reached")
	}

	// 4. weekday availability
	cal, err := s.Calendar(ctx, clinician.ID)
	if err != nil {
		return nil, err
	}
	if !cal.IsAvailable(start.Weekday()) {
		return nil, unavailableError(ReasonNoAvailability, "clinician does not work on that day")
	}

	// 5. containment and optimistic overlap check
	duration := clinician.SlotDuration()
	end := start.Add(duration)
	startMinute := MinuteOfDay(start)
	endMinute := startMinute + int(duration/time.Minute)
	if !cal.Fits(start.Weekday(), startMinute, endMinute) {
		return nil, unavailableError(ReasonOutsideHours, "requested time is outside working hours")
	}
	if overlapsAny(existing, startUTC, end.UTC()) {
		return nil, conflictError("requested time is already booked", suggestAfter(cal, day, loc, duration, existing, start, s.clock()))
	}

	// 6-8. queue number, patient upsert and insert
	for attempt := 1; attempt <= maxQueueAttempts; attempt++ {
		maxQueue, err := s.repo.MaxQueueNumber(ctx, clinician.ID, day)
		if err != nil {
			return nil, infraError("max queue number", err)
		}
		saved, err := s.repo.InsertBooking(ctx, NewBooking{
			PatientName:  req.PatientName,
			PatientPhone: req.PatientPhone,
			Appointment: Appointment{
				ClinicianID:     clinician.ID,
				Day:             day,
				ScheduledStart:  startUTC,
				ScheduledEnd:    end.UTC(),
				ExpectedMinutes: clinician.SlotMinutes,
				QueueNumber:     maxQueue + 1,
				Status:          StatusConfirmed,
				BookedBy:        req.Source,
				Reason:          strings.TrimSpace(req.Reason),
				CreatedAt:       s.clock().UTC(),
			},
		})
		switch {
		case err == nil:
			return saved, nil
		case errors.Is(err, ErrQueueNumberTaken):
			s.logger.Debug("queue number raced, retrying", "attempt", attempt, "clinician_id", clinician.ID)
			continue
		case errors.Is(err, ErrSlotTaken):
			return nil, conflictError("requested time was just booked", s.suggestions(ctx, clinician, cal, day, start))
		default:
			return nil, infraError("insert booking", err)
		}
	}
	return nil, infraError("insert booking", ErrQueueNumberTaken)
}

// suggestions reloads the day so the winner of a storage race is excluded.
func (s *Service) suggestions(ctx context.Context, clinician *Clinician, cal Calendar, day, after time.Time) []Slot {
	booked, err := s.repo.ListAppointments(ctx, clinician.ID, day, day)
	if err != nil {
		s.logger.Warn("could not load alternatives", "error", err, "clinician_id", clinician.ID)
		return nil
	}
	return suggestAfter(cal, day, clinician.Location(), clinician.SlotDuration(), booked, after, s.clock())
}

func suggestAfter(cal Calendar, day time.Time, loc *time.Location, duration time.Duration, booked []Appointment, after, now time.Time) []Slot {
	slots := FilterAfter(BuildSlots(cal, day, loc, duration, booked), now)
	out := make([]Slot, 0, suggestionCount)
	for _, slot := range slots {
		if slot.Start.After(after) {
			out = append(out, slot)
		}
		if len(out) == suggestionCount {
			break
		}
	}
	return out
}

func countBlocking(appts []Appointment) int {
	n := 0
	for i := range appts {
		if appts[i].Blocks() {
			n++
		}
	}
	return n
}
