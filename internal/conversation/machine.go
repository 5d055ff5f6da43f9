package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-booking/internal/datetime"
	"github.com/wolfman30/clinic-booking/internal/scheduling"
)

// turn carries one message through the state machine.
type turn struct {
	engine    *Engine
	clinician *scheduling.Clinician
	loc       *time.Location
	now       time.Time
	contact   string
	text      string
	norm      string
}

type result struct {
	draft       Draft
	state       State
	prompt      Prompt
	appointment *scheduling.Appointment
}

func stay(d Draft, p Prompt) result {
	return result{draft: d, state: d.State(), prompt: p}
}

func (t *turn) advance(ctx context.Context, draft Draft) (result, error) {
	switch d := draft.(type) {
	case DateStep:
		return t.onDate(ctx, d)
	case TimeStep:
		return t.onTime(ctx, d)
	case ConfirmStep:
		return t.onConfirm(ctx, d)
	case CancelStep:
		return t.onCancel(ctx, d)
	case NameStep:
		return t.onName(ctx, d)
	}
	return t.onName(ctx, NameStep{})
}

func (t *turn) onName(ctx context.Context, d NameStep) (result, error) {
	switch {
	case isCancelIntent(t.norm):
		return t.startCancel(ctx)
	case isInfoIntent(t.norm):
		cal, err := t.engine.scheduler.Calendar(ctx, t.clinician.ID)
		if err != nil {
			return result{}, err
		}
		return stay(NameStep{Prompted: true}, clinicSchedule(t.clinician.Name, cal.WeeklySummary())), nil
	case isGreeting(t.norm) || isBookingIntent(t.norm):
		return stay(NameStep{Prompted: true}, askName(t.clinician.Name, !d.Prompted)), nil
	case isThanks(t.norm) || isAffirmative(t.norm):
		return stay(NameStep{Prompted: d.Prompted}, acknowledgeThanks()), nil
	case datetime.HasSignal(t.text, t.now):
		return stay(NameStep{Prompted: true}, askNameFirst()), nil
	}

	name, ok := cleanName(t.text)
	if !ok {
		return stay(NameStep{Prompted: true}, askName(t.clinician.Name, false)), nil
	}
	return stay(DateStep{PatientName: name}, askDate(name)), nil
}

func (t *turn) onDate(ctx context.Context, d DateStep) (result, error) {
	if isNegative(t.norm) {
		return result{draft: NameStep{}, state: StateCancelled, prompt: bookingDeclined()}, nil
	}
	date, ok := datetime.ExtractDate(t.text, t.now)
	if !ok {
		return stay(d, askDateAgain()), nil
	}
	day := scheduling.LocalDay(date, t.loc)

	slots, err := t.engine.scheduler.RemainingSlots(ctx, t.clinician.ID, day)
	if err != nil {
		return t.dayRejected(ctx, d, day, err)
	}
	if len(slots) == 0 {
		return stay(d, fullyBooked(day)), nil
	}
	return stay(TimeStep{PatientName: d.PatientName, Date: day}, askTime(day, slots)), nil
}

// dayRejected explains why a date cannot be used and keeps asking for a date.
func (t *turn) dayRejected(ctx context.Context, d DateStep, day time.Time, err error) (result, error) {
	if !scheduling.IsUnavailable(err) {
		return result{}, err
	}
	switch scheduling.ReasonOf(err) {
	case scheduling.ReasonClinicianInactive:
		return stay(d, clinicianInactive(t.clinician.Name)), nil
	case scheduling.ReasonDailyLimit:
		return stay(d, dailyLimitReached(day)), nil
	}
	cal, calErr := t.engine.scheduler.Calendar(ctx, t.clinician.ID)
	if calErr != nil {
		return result{}, calErr
	}
	return stay(d, dayUnavailable(t.clinician.Name, day, cal.WeeklySummary())), nil
}

func (t *turn) onTime(ctx context.Context, d TimeStep) (result, error) {
	if isNegative(t.norm) {
		return result{draft: NameStep{}, state: StateCancelled, prompt: bookingDeclined()}, nil
	}
	dateStep := DateStep{PatientName: d.PatientName}

	slots, err := t.engine.scheduler.RemainingSlots(ctx, t.clinician.ID, d.Date)
	if err != nil {
		return t.dayRejected(ctx, dateStep, d.Date, err)
	}
	if len(slots) == 0 {
		return stay(dateStep, fullyBooked(d.Date)), nil
	}

	if len(d.Offered) > 0 && isAffirmative(t.norm) {
		chosen := slots[0]
		if d.Selected != nil {
			if s, ok := findSlot(slots, d.Selected.Start); ok {
				chosen = s
			}
		}
		return t.confirm(d.PatientName, d.Date, chosen), nil
	}

	match, ok := datetime.ExtractTime(t.text, t.now)
	if !ok {
		return t.offer(d, d.Date, slots, "", askTimeAgain(d.Date, slots)), nil
	}

	date := d.Date
	if match.ImpliedDate != nil {
		if implied := scheduling.LocalDay(*match.ImpliedDate, t.loc); !implied.Equal(date) {
			moved, err := t.engine.scheduler.RemainingSlots(ctx, t.clinician.ID, implied)
			if err != nil {
				return t.dayRejected(ctx, dateStep, implied, err)
			}
			if len(moved) == 0 {
				return stay(dateStep, fullyBooked(implied)), nil
			}
			date, slots = implied, moved
		}
	}

	dayStart := scheduling.DayStart(date, t.loc)
	if s, ok := findSlot(slots, match.On(dayStart)); ok {
		return t.confirm(d.PatientName, date, s), nil
	}
	if match.Inferred {
		if s, ok := findSlot(slots, match.Alternate().On(dayStart)); ok {
			return t.confirm(d.PatientName, date, s), nil
		}
	}
	requested := datetime.FormatClock(match.Hour, match.Minute)
	return t.offer(d, date, slots, requested, Prompt{}), nil
}

// offer presents the free slots with the earliest one selected. A zero
// prompt means the standard alternatives message.
func (t *turn) offer(d TimeStep, date time.Time, slots []scheduling.Slot, requested string, p Prompt) result {
	selected := slots[0]
	next := TimeStep{PatientName: d.PatientName, Date: date, Offered: slots, Selected: &selected}
	if p.Canned == "" {
		p = offerAlternatives(requested, date, slots, selected)
	}
	return stay(next, p)
}

func (t *turn) confirm(name string, date time.Time, s scheduling.Slot) result {
	start := s.Start.In(t.loc)
	return stay(ConfirmStep{PatientName: name, Date: date, Start: start}, askConfirmation(name, start))
}

func (t *turn) onConfirm(ctx context.Context, d ConfirmStep) (result, error) {
	switch {
	case isNegative(t.norm):
		return result{draft: NameStep{}, state: StateCancelled, prompt: bookingDeclined()}, nil
	case !isAffirmative(t.norm):
		return stay(d, askConfirmationAgain(d.PatientName, d.Start.In(t.loc))), nil
	}

	timeStep := TimeStep{PatientName: d.PatientName, Date: d.Date}
	if !d.Start.After(t.now) {
		return stay(timeStep, timePassed()), nil
	}

	appt, err := t.engine.scheduler.Book(ctx, scheduling.BookingRequest{
		ClinicianID:  t.clinician.ID,
		PatientName:  d.PatientName,
		PatientPhone: t.contact,
		Start:        d.Start.In(t.loc),
		Source:       scheduling.SourceAgent,
	})
	if err == nil {
		start := appt.ScheduledStart.In(t.loc)
		return result{
			draft:       NameStep{},
			state:       StateBooked,
			prompt:      booked(start, appt.QueueNumber),
			appointment: appt,
		}, nil
	}

	dateStep := DateStep{PatientName: d.PatientName}
	switch {
	case scheduling.IsConflict(err):
		slots, slotsErr := t.engine.scheduler.RemainingSlots(ctx, t.clinician.ID, d.Date)
		if slotsErr != nil {
			return t.dayRejected(ctx, dateStep, d.Date, slotsErr)
		}
		if len(slots) == 0 {
			return stay(dateStep, fullyBooked(d.Date)), nil
		}
		return stay(timeStep, slotTaken(d.Date, slots)), nil
	case scheduling.ReasonOf(err) == scheduling.ReasonPastStart:
		return stay(timeStep, timePassed()), nil
	case scheduling.ReasonOf(err) == scheduling.ReasonOutsideHours:
		return stay(timeStep, outsideHours()), nil
	case scheduling.ReasonOf(err) == scheduling.ReasonAutoBookingDisabled:
		return result{draft: NameStep{}, state: StateCancelled, prompt: autoBookingDisabled(t.clinician.Name)}, nil
	case scheduling.IsUnavailable(err):
		return t.dayRejected(ctx, dateStep, d.Date, err)
	}
	return result{}, err
}

func (t *turn) startCancel(ctx context.Context) (result, error) {
	appt, err := t.engine.scheduler.NextForPatient(ctx, t.clinician.ID, t.contact)
	if err != nil {
		if scheduling.IsNotFound(err) {
			return stay(NameStep{Prompted: true}, noUpcomingAppointment()), nil
		}
		return result{}, err
	}
	start := appt.ScheduledStart.In(t.loc)
	return stay(CancelStep{AppointmentID: appt.ID, Start: start}, askCancelConfirmation(start)), nil
}

func (t *turn) onCancel(ctx context.Context, d CancelStep) (result, error) {
	start := d.Start.In(t.loc)
	// "cancel" answers the cancel question with yes.
	confirmed := isAffirmative(t.norm) || t.norm == "cancel"
	switch {
	case !confirmed && isNegative(t.norm):
		return stay(NameStep{}, appointmentKept()), nil
	case !confirmed:
		return stay(d, askCancelConfirmationAgain(start)), nil
	}

	_, err := t.engine.scheduler.Cancel(ctx, t.clinician.ID, d.AppointmentID)
	switch {
	case err == nil:
		return result{draft: NameStep{}, state: StateCancelled, prompt: appointmentCancelled(start)}, nil
	case scheduling.IsNotFound(err) && scheduling.ReasonOf(err) == scheduling.ReasonAppointmentNotFound,
		scheduling.IsValidation(err):
		return stay(NameStep{}, appointmentGone()), nil
	}
	return result{}, err
}

func findSlot(slots []scheduling.Slot, start time.Time) (scheduling.Slot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return scheduling.Slot{}, false
}
