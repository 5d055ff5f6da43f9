package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/scheduling"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type schedulingFixture struct {
	router http.Handler
	svc    *scheduling.Service
	loc    *time.Location

	mu  sync.Mutex
	now time.Time
}

func newSchedulingFixture(t *testing.T) *schedulingFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	repo := scheduling.NewMemoryRepository()
	windows := make([]scheduling.AvailabilityWindow, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		windows = append(windows, scheduling.AvailabilityWindow{Weekday: d, Start: "9:00 AM", End: "5:00 PM", Active: true})
	}
	repo.PutClinician(scheduling.Clinician{
		ID: "dr-sana", Name: "Dr. Sana", Timezone: "Asia/Karachi", SlotMinutes: 30, MaxPerDay: 20, Active: true, AutoBooking: true,
	}, windows...)

	f := &schedulingFixture{loc: loc, now: time.Date(2026, 10, 14, 10, 30, 0, 0, loc)}
	f.svc = scheduling.NewService(repo, scheduling.WithClock(f.clock), scheduling.WithLogger(logging.Discard()))
	f.router = schedulingRouter(NewSchedulingHandler(f.svc, logging.Discard()))
	return f
}

func schedulingRouter(h *SchedulingHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/clinicians/{clinicianID}", func(r chi.Router) {
		r.Get("/slots", h.Slots)
		r.Get("/appointments", h.Appointments)
		r.Post("/appointments", h.Book)
		r.Get("/appointments/{appointmentID}", h.Appointment)
		r.Post("/appointments/{appointmentID}/complete", h.Complete)
		r.Post("/appointments/{appointmentID}/cancel", h.Cancel)
		r.Delete("/appointments/{appointmentID}", h.Delete)
	})
	return r
}

func (f *schedulingFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *schedulingFixture) setClock(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *schedulingFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *schedulingFixture) book(t *testing.T, start, phone string) scheduling.Appointment {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments",
		`{"patient_name":"Ayesha","patient_phone":"`+phone+`","start":"`+start+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[scheduling.Appointment](t, rec)
}

func TestSlotsEndpoint(t *testing.T) {
	f := newSchedulingFixture(t)

	rec := f.do(t, http.MethodGet, "/clinicians/dr-sana/slots?date=2026-10-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SlotsResponse](t, rec)
	assert.Equal(t, "2026-10-15", resp.Date)
	require.Len(t, resp.Slots, 16)
	assert.Equal(t, "9:00 AM - 9:30 AM", resp.Slots[0].Label)
	assert.True(t, resp.Slots[0].Start.Equal(time.Date(2026, 10, 15, 9, 0, 0, 0, f.loc)))

	rec = f.do(t, http.MethodGet, "/clinicians/dr-sana/slots?date=2026-10-14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 12, "slots starting by 10:30 are gone")
}

func TestSlotsEndpointErrors(t *testing.T) {
	f := newSchedulingFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/clinicians/dr-sana/slots", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/clinicians/dr-sana/slots?date=15-10-2026", "").Code)

	rec := f.do(t, http.MethodGet, "/clinicians/dr-nobody/slots?date=2026-10-15", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "clinician_not_found", decode[ErrorResponse](t, rec).Reason)
}

func TestBookEndpoint(t *testing.T) {
	f := newSchedulingFixture(t)

	appt := f.book(t, "2026-10-15T17:00", "+923001111111")
	assert.Equal(t, time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC), appt.ScheduledStart.UTC())
	assert.Equal(t, 1, appt.QueueNumber)
	assert.Equal(t, scheduling.SourceStaff, appt.BookedBy)
}

func TestBookEndpointConflictCarriesSuggestions(t *testing.T) {
	f := newSchedulingFixture(t)
	f.book(t, "2026-10-15T09:00", "+923001111111")

	rec := f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments",
		`{"patient_name":"Bilal","patient_phone":"+923002222222","start":"2026-10-15T09:00","booked_by":"agent"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "conflict", resp.Kind)
	assert.Equal(t, "slot_taken", resp.Reason)
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "9:30 AM - 10:00 AM", resp.Suggestions[0].Label)
}

func TestBookEndpointRejections(t *testing.T) {
	f := newSchedulingFixture(t)

	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
		{name: "bad start", body: `{"patient_name":"A","patient_phone":"+92300","start":"tomorrow"}`, status: http.StatusBadRequest},
		{name: "utc start", body: `{"patient_name":"A","patient_phone":"+92300","start":"2026-10-16T12:00:00Z"}`, status: http.StatusBadRequest},
		{name: "offset start", body: `{"patient_name":"A","patient_phone":"+92300","start":"2026-10-16T12:00:00+05:00"}`, status: http.StatusBadRequest},
		{name: "past", body: `{"patient_name":"A","patient_phone":"+92300","start":"2026-10-14T09:00"}`, status: http.StatusUnprocessableEntity, reason: "past_start"},
		{name: "no name", body: `{"patient_name":" ","patient_phone":"+92300","start":"2026-10-15T09:00"}`, status: http.StatusUnprocessableEntity, reason: "invalid_input"},
		{name: "unknown source", body: `{"patient_name":"A","patient_phone":"+92300","start":"2026-10-15T09:00","booked_by":"robot"}`, status: http.StatusUnprocessableEntity, reason: "invalid_input"},
		{name: "after hours", body: `{"patient_name":"A","patient_phone":"+92300","start":"2026-10-15T17:30"}`, status: http.StatusConflict, reason: "outside_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.reason != "" {
				assert.Equal(t, tt.reason, decode[ErrorResponse](t, rec).Reason)
			}
		})
	}
}

func TestCompleteEndpointReflowsQueue(t *testing.T) {
	f := newSchedulingFixture(t)
	first := f.book(t, "2026-10-14T11:00", "+923001111111")
	second := f.book(t, "2026-10-14T11:30", "+923002222222")

	f.setClock(time.Date(2026, 10, 14, 11, 20, 0, 0, f.loc))
	rec := f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments/"+first.ID+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[scheduling.Appointment](t, rec)
	assert.Equal(t, scheduling.StatusCompleted, done.Status)
	require.NotNil(t, done.ActualMinutes)
	assert.Equal(t, 20, *done.ActualMinutes)

	rec = f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments?date=2026-10-14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[AppointmentsResponse](t, rec)
	require.Len(t, day.Appointments, 2)
	for _, a := range day.Appointments {
		if a.ID == second.ID {
			assert.True(t, a.ScheduledStart.Equal(time.Date(2026, 10, 14, 11, 20, 0, 0, f.loc)))
		}
	}

	rec = f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments/"+first.ID+"/complete", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCancelAndDeleteEndpoints(t *testing.T) {
	f := newSchedulingFixture(t)
	appt := f.book(t, "2026-10-15T10:00", "+923001111111")

	rec := f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments/"+appt.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, scheduling.StatusCancelled, decode[scheduling.Appointment](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments/"+appt.ID+"/cancel", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodDelete, "/clinicians/dr-sana/appointments/"+appt.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[scheduling.Appointment](t, rec).Deleted)

	rec = f.do(t, http.MethodDelete, "/clinicians/dr-sana/appointments/"+appt.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.book(t, "2026-10-15T10:00", "+923002222222")
}

func TestAppointmentsEndpointEmptyDay(t *testing.T) {
	f := newSchedulingFixture(t)

	rec := f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments?date=2026-10-20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"appointments":[]`)
}

func TestBookEndpointRejectsOffsetWithoutBooking(t *testing.T) {
	f := newSchedulingFixture(t)

	rec := f.do(t, http.MethodPost, "/clinicians/dr-sana/appointments",
		`{"patient_name":"A","patient_phone":"+92300","start":"2026-10-16T12:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "offset")

	rec = f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments?date=2026-10-16", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[AppointmentsResponse](t, rec).Appointments)
}

func TestAppointmentsEndpointRanges(t *testing.T) {
	f := newSchedulingFixture(t)
	thu := f.book(t, "2026-10-15T10:00", "+923001111111")
	sat := f.book(t, "2026-10-17T10:00", "+923002222222")
	nextWeek := f.book(t, "2026-10-19T10:00", "+923003333333")
	november := f.book(t, "2026-11-02T10:00", "+923004444444")

	ids := func(resp AppointmentsResponse) []string {
		out := make([]string, 0, len(resp.Appointments))
		for _, a := range resp.Appointments {
			out = append(out, a.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		query    string
		from, to string
		want     []string
	}{
		{"single day", "date=2026-10-17", "2026-10-17", "2026-10-17", []string{sat.ID}},
		{"explicit range", "from=2026-10-15&to=2026-10-19", "2026-10-15", "2026-10-19", []string{thu.ID, sat.ID, nextWeek.ID}},
		{"week runs sunday to saturday", "date=2026-10-15&view=week", "2026-10-11", "2026-10-17", []string{thu.ID, sat.ID}},
		{"month", "date=2026-10-15&view=month", "2026-10-01", "2026-10-31", []string{thu.ID, sat.ID, nextWeek.ID}},
		{"next month", "date=2026-11-20&view=MONTH", "2026-11-01", "2026-11-30", []string{november.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments?"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decode[AppointmentsResponse](t, rec)
			assert.Equal(t, tt.from, resp.From)
			assert.Equal(t, tt.to, resp.To)
			assert.Equal(t, tt.want, ids(resp))
		})
	}
}

func TestAppointmentsEndpointRangeErrors(t *testing.T) {
	f := newSchedulingFixture(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing date", "", http.StatusBadRequest},
		{"bad view", "date=2026-10-15&view=year", http.StatusBadRequest},
		{"half range", "from=2026-10-15", http.StatusBadRequest},
		{"malformed range", "from=2026-10-15&to=soon", http.StatusBadRequest},
		{"reversed range", "from=2026-10-20&to=2026-10-15", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments?"+tt.query, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAppointmentEndpoint(t *testing.T) {
	f := newSchedulingFixture(t)
	appt := f.book(t, "2026-10-15T10:00", "+923001111111")

	rec := f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments/"+appt.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[scheduling.Appointment](t, rec)
	assert.Equal(t, appt.ID, got.ID)
	assert.Equal(t, scheduling.StatusConfirmed, got.Status)
	assert.True(t, got.ScheduledStart.Equal(time.Date(2026, 10, 15, 10, 0, 0, 0, f.loc)))

	rec = f.do(t, http.MethodGet, "/clinicians/dr-other/appointments/"+appt.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decode[ErrorResponse](t, rec).Reason)

	rec = f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/clinicians/dr-sana/appointments/"+appt.ID, "").Code)
	rec = f.do(t, http.MethodGet, "/clinicians/dr-sana/appointments/"+appt.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type brokenService struct{ SchedulingService }

func (brokenService) RemainingSlots(context.Context, string, time.Time) ([]scheduling.Slot, error) {
	return nil, &scheduling.Error{Kind: scheduling.KindInfrastructure, Reason: scheduling.ReasonStorage, Message: "scheduling: list appointments", Err: errors.New("dial tcp: refused")}
}

func (brokenService) RangeAppointments(context.Context, string, time.Time, time.Time) ([]scheduling.Appointment, error) {
	return nil, errors.New("unexpected")
}

func TestInfrastructureErrorsHideDetails(t *testing.T) {
	router := schedulingRouter(NewSchedulingHandler(brokenService{}, logging.Discard()))

	for _, path := range []string{"/clinicians/dr-sana/slots?date=2026-10-15", "/clinicians/dr-sana/appointments?date=2026-10-15"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "refused")
		assert.Contains(t, rec.Body.String(), "internal error")
	}
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"error": "oops"}, decode[map[string]string](t, rec))
}
