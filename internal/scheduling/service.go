package scheduling

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Service is the scheduling core: slot generation, booking, completion and
// cancellation over a Repository.
type Service struct {
	repo    Repository
	clock   Clock
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	tracer  trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires Prometheus counters.
func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a scheduling service.
func NewService(repo Repository, opts ...Option) *Service {
	if repo == nil {
		panic("scheduling: repository required")
	}
	s := &Service{
		repo:   repo,
		clock:  time.Now,
		logger: logging.Default(),
		tracer: otel.Tracer("clinicbook.internal.scheduling"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service's current instant.
func (s *Service) Now() time.Time {
	return s.clock()
}

// Clinician loads a clinician, mapping a missing row to a NotFound error.
func (s *Service) Clinician(ctx context.Context, clinicianID string) (*Clinician, error) {
	c, err := s.repo.GetClinician(ctx, clinicianID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(ReasonClinicianNotFound, "clinician not found")
		}
		return nil, infraError("load clinician", err)
	}
	return c, nil
}

// Calendar loads the clinician's weekly availability template.
func (s *Service) Calendar(ctx context.Context, clinicianID string) (Calendar, error) {
	rows, err := s.repo.ListAvailability(ctx, clinicianID)
	if err != nil {
		return Calendar{}, infraError("load availability", err)
	}
	return NewCalendar(rows), nil
}

// GenerateSlots returns every free slot on day (a calendar date in the
// clinician's timezone). A day without an active window yields an
// Unavailable error; a fully booked day yields an empty slice.
func (s *Service) GenerateSlots(ctx context.Context, clinicianID string, day time.Time) ([]Slot, error) {
	clinician, cal, err := s.loadDay(ctx, clinicianID, day)
	if err != nil {
		return nil, err
	}
	return s.freeSlots(ctx, clinician, cal, day)
}

// RemainingSlots is GenerateSlots without slots that have already started.
func (s *Service) RemainingSlots(ctx context.Context, clinicianID string, day time.Time) ([]Slot, error) {
	slots, err := s.GenerateSlots(ctx, clinicianID, day)
	if err != nil {
		return nil, err
	}
	return FilterAfter(slots, s.clock()), nil
}

// DayAppointments lists a clinician-local day's appointments by queue number.
func (s *Service) DayAppointments(ctx context.Context, clinicianID string, day time.Time) ([]Appointment, error) {
	return s.RangeAppointments(ctx, clinicianID, day, day)
}

// RangeAppointments lists appointments for the inclusive range of calendar days.
func (s *Service) RangeAppointments(ctx context.Context, clinicianID string, fromDay, toDay time.Time) ([]Appointment, error) {
	if _, err := s.Clinician(ctx, clinicianID); err != nil {
		return nil, err
	}
	if toDay.Before(fromDay) {
		return nil, validationError(ReasonInvalidInput, "range end is before its start")
	}
	appts, err := s.repo.ListAppointments(ctx, clinicianID, civilDay(fromDay), civilDay(toDay))
	if err != nil {
		return nil, infraError("list appointments", err)
	}
	return appts, nil
}

// View names a calendar page of appointments.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// ViewRange returns the inclusive first and last calendar days of the page
// containing day. Weeks run Sunday to Saturday.
func ViewRange(view View, day time.Time) (time.Time, time.Time, error) {
	day = civilDay(day)
	switch view {
	case ViewDay, "":
		return day, day, nil
	case ViewWeek:
		first := day.AddDate(0, 0, -int(day.Weekday()))
		return first, first.AddDate(0, 0, 6), nil
	case ViewMonth:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, -1), nil
	}
	return time.Time{}, time.Time{}, validationError(ReasonInvalidInput, "view must be day, week or month")
}

func (s *Service) loadDay(ctx context.Context, clinicianID string, day time.Time) (*Clinician, Calendar, error) {
	clinician, err := s.Clinician(ctx, clinicianID)
	if err != nil {
		return nil, Calendar{}, err
	}
	if !clinician.Active {
		return nil, Calendar{}, unavailableError(ReasonClinicianInactive, "clinician is not taking appointments")
	}
	cal, err := s.Calendar(ctx, clinicianID)
	if err != nil {
		return nil, Calendar{}, err
	}
	if !cal.IsAvailable(DayStart(day, clinician.Location()).Weekday()) {
		return nil, Calendar{}, unavailableError(ReasonNoAvailability, "clinician does not work on that day")
	}
	return clinician, cal, nil
}

func (s *Service) freeSlots(ctx context.Context, clinician *Clinician, cal Calendar, day time.Time) ([]Slot, error) {
	key := civilDay(day)
	booked, err := s.repo.ListAppointments(ctx, clinician.ID, key, key)
	if err != nil {
		return nil, infraError("list appointments", err)
	}
	return BuildSlots(cal, key, clinician.Location(), clinician.SlotDuration(), booked), nil
}

// civilDay keeps only the calendar date of t, as midnight UTC.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
