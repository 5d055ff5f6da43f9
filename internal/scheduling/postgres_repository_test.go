package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

func TestPostgresGetClinician(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT id::text, name, timezone").WithArgs("dr-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "timezone", "slot_minutes", "max_per_day", "active", "auto_booking"}).
			AddRow("dr-1", "Dr. Sana", "Asia/Karachi", 30, 20, true, false))
	mock.ExpectQuery("SELECT id::text, name, timezone").WithArgs("dr-404").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id::text, name, timezone").WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	c, err := repo.GetClinician(context.Background(), "dr-1")
	if err != nil {
		t.Fatalf("get clinician: %v", err)
	}
	if c.Name != "Dr. Sana" || c.SlotMinutes != 30 || c.MaxPerDay != 20 || !c.Active || c.AutoBooking {
		t.Fatalf("unexpected clinician: %#v", c)
	}
	if _, err := repo.GetClinician(context.Background(), "dr-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetClinician(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresListAvailability(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("FROM availability_windows").WithArgs("dr-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "clinician_id", "weekday", "start_time", "end_time", "active"}).
			AddRow("w-1", "dr-1", int16(1), "9:00 AM", "1:00 PM", true).
			AddRow("w-2", "dr-1", int16(3), "14:00", "18:00", false))

	rows, err := repo.ListAvailability(context.Background(), "dr-1")
	if err != nil {
		t.Fatalf("list availability: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(rows))
	}
	if rows[0].Weekday != time.Monday || rows[0].Start != "9:00 AM" || !rows[0].Active {
		t.Fatalf("unexpected first window: %#v", rows[0])
	}
	if rows[1].Weekday != time.Wednesday || rows[1].Active {
		t.Fatalf("unexpected second window: %#v", rows[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresMaxQueueNumber(t *testing.T) {
	mock, repo := newMockRepo(t)
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("COALESCE\\(MAX\\(queue_number\\), 0\\)").WithArgs("dr-1", day).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(4))

	got, err := repo.MaxQueueNumber(context.Background(), "dr-1", day)
	if err != nil {
		t.Fatalf("max queue number: %v", err)
	}
	if got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func sampleBooking() NewBooking {
	start := time.Date(2026, 10, 19, 4, 0, 0, 0, time.UTC)
	return NewBooking{
		PatientName:  "Ayesha",
		PatientPhone: "+923001234567",
		Appointment: Appointment{
			ClinicianID:     "dr-1",
			Day:             time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			ScheduledStart:  start,
			ScheduledEnd:    start.Add(30 * time.Minute),
			ExpectedMinutes: 30,
			QueueNumber:     1,
			Status:          StatusConfirmed,
			BookedBy:        SourceAgent,
		},
	}
}

func expectPatientUpsert(mock pgxmock.PgxPoolIface, b NewBooking) {
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO patients").WithArgs(b.PatientName, b.PatientPhone).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("p-1"))
}

func appointmentInsertArgs(b NewBooking) []any {
	a := b.Appointment
	return []any{
		a.ClinicianID, "p-1", a.Day, a.ScheduledStart, a.ScheduledEnd,
		a.ExpectedMinutes, a.QueueNumber, string(a.Status), string(a.BookedBy), a.Reason,
	}
}

func TestPostgresInsertBooking(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := sampleBooking()
	created := time.Date(2026, 10, 18, 7, 0, 0, 0, time.UTC)

	expectPatientUpsert(mock, b)
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(appointmentInsertArgs(b)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("appt-1", created))
	mock.ExpectCommit()

	appt, err := repo.InsertBooking(context.Background(), b)
	if err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	if appt.ID != "appt-1" || appt.PatientID != "p-1" || !appt.CreatedAt.Equal(created) {
		t.Fatalf("unexpected appointment: %#v", appt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresInsertBookingMapsUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "slot", constraint: slotConstraint, want: ErrSlotTaken},
		{name: "queue number", constraint: queueNumberConstraint, want: ErrQueueNumberTaken},
		{name: "unnamed", constraint: "", want: ErrSlotTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			b := sampleBooking()

			expectPatientUpsert(mock, b)
			mock.ExpectQuery("INSERT INTO appointments").WithArgs(appointmentInsertArgs(b)...).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})
			mock.ExpectRollback()

			_, err := repo.InsertBooking(context.Background(), b)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPostgresInsertBookingOtherUniqueViolationIsWrapped(t *testing.T) {
	mock, repo := newMockRepo(t)
	b := sampleBooking()

	expectPatientUpsert(mock, b)
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(appointmentInsertArgs(b)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"})
	mock.ExpectRollback()

	_, err := repo.InsertBooking(context.Background(), b)
	if err == nil || errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrQueueNumberTaken) {
		t.Fatalf("expected a wrapped storage error, got %v", err)
	}
}

func TestPostgresCompleteAppointmentAppliesShiftsInOrder(t *testing.T) {
	mock, repo := newMockRepo(t)
	start := time.Date(2026, 10, 19, 4, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	completion := Completion{AppointmentID: "a", ActualStart: start, ActualEnd: end, ActualMinutes: 45}
	shifts := []Shift{
		{AppointmentID: "c", Start: start.Add(75 * time.Minute), End: start.Add(105 * time.Minute)},
		{AppointmentID: "b", Start: end, End: end.Add(30 * time.Minute)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("SET status = 'completed'").WithArgs("a", start, end, 45).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET scheduled_start").WithArgs("c", shifts[0].Start, shifts[0].End).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET scheduled_start").WithArgs("b", shifts[1].Start, shifts[1].End).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := repo.CompleteAppointment(context.Background(), completion, shifts); err != nil {
		t.Fatalf("complete appointment: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCompleteAppointmentRollsBackOnCollision(t *testing.T) {
	mock, repo := newMockRepo(t)
	start := time.Date(2026, 10, 19, 4, 0, 0, 0, time.UTC)
	completion := Completion{AppointmentID: "a", ActualStart: start, ActualEnd: start, ActualMinutes: 0}
	shift := Shift{AppointmentID: "b", Start: start, End: start.Add(30 * time.Minute)}

	mock.ExpectBegin()
	mock.ExpectExec("SET status = 'completed'").WithArgs("a", start, start, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET scheduled_start").WithArgs("b", shift.Start, shift.End).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: slotConstraint})
	mock.ExpectRollback()

	err := repo.CompleteAppointment(context.Background(), completion, []Shift{shift})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresMarkCancelled(t *testing.T) {
	mock, repo := newMockRepo(t)
	at := time.Date(2026, 10, 18, 7, 0, 0, 0, time.UTC)

	mock.ExpectExec("SET status = 'cancelled'").WithArgs("appt-1", at, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET status = 'cancelled'").WithArgs("missing", at, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkCancelled(context.Background(), "appt-1", at, true); err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	if err := repo.MarkCancelled(context.Background(), "missing", at, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresGetAppointmentNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("FROM appointments a WHERE a.id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetAppointment(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
