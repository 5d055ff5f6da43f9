package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/datetime"
	"github.com/wolfman30/clinic-booking/internal/scheduling"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const dateLayout = "2006-01-02"

// wallClockLayouts are accepted for appointment starts. They carry no offset:
// the wall clock is always read in the clinician's timezone.
var wallClockLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

var errOffsetStart = errors.New("start must not carry a UTC offset")

// SchedulingService is the part of *scheduling.Service the staff API uses.
type SchedulingService interface {
	Clinician(ctx context.Context, clinicianID string) (*scheduling.Clinician, error)
	RemainingSlots(ctx context.Context, clinicianID string, day time.Time) ([]scheduling.Slot, error)
	RangeAppointments(ctx context.Context, clinicianID string, fromDay, toDay time.Time) ([]scheduling.Appointment, error)
	Appointment(ctx context.Context, clinicianID, appointmentID string) (*scheduling.Appointment, error)
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
	Complete(ctx context.Context, clinicianID, appointmentID string) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, clinicianID, appointmentID string) (*scheduling.Appointment, error)
	Delete(ctx context.Context, clinicianID, appointmentID string) (*scheduling.Appointment, error)
}

// SchedulingHandler serves the staff endpoints under /clinicians/{clinicianID}.
type SchedulingHandler struct {
	svc    SchedulingService
	logger *logging.Logger
}

func NewSchedulingHandler(svc SchedulingService, logger *logging.Logger) *SchedulingHandler {
	if svc == nil {
		panic("handlers: scheduling service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulingHandler{svc: svc, logger: logger}
}

// SlotResponse is one free slot in the clinician's local time.
type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// SlotsResponse lists a day's remaining slots.
type SlotsResponse struct {
	ClinicianID string         `json:"clinician_id"`
	Date        string         `json:"date"`
	Slots       []SlotResponse `json:"slots"`
}

// AppointmentsResponse lists the appointments of a range of days, ordered by
// day then queue number.
type AppointmentsResponse struct {
	ClinicianID  string                   `json:"clinician_id"`
	From         string                   `json:"from"`
	To           string                   `json:"to"`
	Appointments []scheduling.Appointment `json:"appointments"`
}

// BookRequest is the body of POST /clinicians/{clinicianID}/appointments.
type BookRequest struct {
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	Start        string `json:"start"`
	Reason       string `json:"reason"`
	BookedBy     string `json:"booked_by"`
}

// ErrorResponse carries the error taxonomy to API clients.
type ErrorResponse struct {
	Error       string         `json:"error"`
	Kind        string         `json:"kind,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Suggestions []SlotResponse `json:"suggestions,omitempty"`
}

// Slots handles GET /clinicians/{clinicianID}/slots?date=YYYY-MM-DD.
func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	clinicianID := chi.URLParam(r, "clinicianID")
	day, ok := parseDay(w, r)
	if !ok {
		return
	}
	slots, err := h.svc.RemainingSlots(r.Context(), clinicianID, day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		ClinicianID: clinicianID,
		Date:        day.Format(dateLayout),
		Slots:       slotResponses(slots),
	})
}

// Appointments handles GET /clinicians/{clinicianID}/appointments. The range
// is either ?from=YYYY-MM-DD&to=YYYY-MM-DD or ?date=YYYY-MM-DD with an
// optional view of day, week or month.
func (h *SchedulingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	clinicianID := chi.URLParam(r, "clinicianID")
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	appts, err := h.svc.RangeAppointments(r.Context(), clinicianID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []scheduling.Appointment{}
	}
	writeJSON(w, http.StatusOK, AppointmentsResponse{
		ClinicianID:  clinicianID,
		From:         from.Format(dateLayout),
		To:           to.Format(dateLayout),
		Appointments: appts,
	})
}

// Appointment handles GET /clinicians/{clinicianID}/appointments/{appointmentID}.
func (h *SchedulingHandler) Appointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Appointment)
}

// Book handles POST /clinicians/{clinicianID}/appointments.
func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	clinicianID := chi.URLParam(r, "clinicianID")
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	start, err := parseWallClock(req.Start)
	if errors.Is(err, errOffsetStart) {
		jsonError(w, "start is a wall clock in the clinician's timezone and must not carry an offset", http.StatusBadRequest)
		return
	}
	if err != nil {
		jsonError(w, "start must be a date and time such as 2026-10-15T17:00", http.StatusBadRequest)
		return
	}
	source := scheduling.BookingSource(strings.ToLower(strings.TrimSpace(req.BookedBy)))
	if source == "" {
		source = scheduling.SourceStaff
	}

	appt, err := h.svc.Book(r.Context(), scheduling.BookingRequest{
		ClinicianID:  clinicianID,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		Start:        start,
		Reason:       req.Reason,
		Source:       source,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Complete handles POST /clinicians/{clinicianID}/appointments/{appointmentID}/complete.
func (h *SchedulingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

// Cancel handles POST /clinicians/{clinicianID}/appointments/{appointmentID}/cancel.
func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

// Delete handles DELETE /clinicians/{clinicianID}/appointments/{appointmentID}.
func (h *SchedulingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Delete)
}

// transition runs op against the appointment named in the path.
func (h *SchedulingHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, clinicianID, appointmentID string) (*scheduling.Appointment, error)) {
	appt, err := op(r.Context(), chi.URLParam(r, "clinicianID"), chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, err error) {
	serr, ok := scheduling.AsError(err)
	if !ok {
		h.logger.Error("scheduling request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch serr.Kind {
	case scheduling.KindValidation:
		status = http.StatusUnprocessableEntity
	case scheduling.KindConflict, scheduling.KindUnavailable:
		status = http.StatusConflict
	case scheduling.KindNotFound:
		status = http.StatusNotFound
	}

	resp := ErrorResponse{Error: serr.Message, Kind: string(serr.Kind), Reason: string(serr.Reason)}
	if status == http.StatusInternalServerError {
		h.logger.Error("scheduling request failed", "error", err)
		resp = ErrorResponse{Error: "internal error", Kind: string(serr.Kind)}
	} else {
		resp.Suggestions = slotResponses(serr.Suggestions)
	}
	writeJSON(w, status, resp)
}

func parseDay(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	day, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		jsonError(w, "date query parameter must be YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, false
	}
	return day, true
}

func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	if q.Has("from") || q.Has("to") {
		from, errFrom := time.Parse(dateLayout, q.Get("from"))
		to, errTo := time.Parse(dateLayout, q.Get("to"))
		if errFrom != nil || errTo != nil {
			jsonError(w, "from and to query parameters must be YYYY-MM-DD", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		return from, to, true
	}

	day, ok := parseDay(w, r)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	from, to, err := scheduling.ViewRange(scheduling.View(strings.ToLower(q.Get("view"))), day)
	if err != nil {
		jsonError(w, "view must be day, week or month", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseWallClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Time{}, errOffsetStart
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognised time")
}

func slotResponses(slots []scheduling.Slot) []SlotResponse {
	if slots == nil {
		return nil
	}
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End, Label: datetime.FormatSlot(s.Start, s.End)})
	}
	return out
}
