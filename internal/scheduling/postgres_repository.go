package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation       = "23505"
	invalidTextRepr       = "22P02"
	slotConstraint        = "appointments_clinician_start_key"
	queueNumberConstraint = "appointments_clinician_queue_key"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresRepository; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists the scheduling model in Postgres.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const appointmentColumns = `a.id::text, a.clinician_id::text, a.patient_id::text, a.appointment_date,
	a.scheduled_start, a.scheduled_end, a.expected_minutes, a.queue_number, a.status, a.booked_by,
	a.reason, a.actual_start, a.actual_end, a.actual_minutes, a.cancelled_at, a.is_deleted, a.created_at`

func (r *PostgresRepository) GetClinician(ctx context.Context, clinicianID string) (*Clinician, error) {
	var c Clinician
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, timezone, slot_minutes, max_per_day, active, auto_booking
		FROM clinicians
		WHERE id = $1
	`, clinicianID).Scan(&c.ID, &c.Name, &c.Timezone, &c.SlotMinutes, &c.MaxPerDay, &c.Active, &c.AutoBooking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduling: get clinician: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) ListAvailability(ctx context.Context, clinicianID string) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, clinician_id::text, weekday, start_time, end_time, active
		FROM availability_windows
		WHERE clinician_id = $1
		ORDER BY weekday, start_time
	`, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list availability: %w", err)
	}
	defer rows.Close()

	var out []AvailabilityWindow
	for rows.Next() {
		var (
			w       AvailabilityWindow
			weekday int16
		)
		if err := rows.Scan(&w.ID, &w.ClinicianID, &weekday, &w.Start, &w.End, &w.Active); err != nil {
			return nil, fmt.Errorf("scheduling: scan availability: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: list availability: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListAppointments(ctx context.Context, clinicianID string, fromDay, toDay time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.clinician_id = $1
		  AND a.appointment_date BETWEEN $2 AND $3
		  AND NOT a.is_deleted
		ORDER BY a.appointment_date, a.queue_number
	`, clinicianID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: list appointments: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MaxQueueNumber(ctx context.Context, clinicianID string, day time.Time) (int, error) {
	var highest int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM appointments
		WHERE clinician_id = $1 AND appointment_date = $2 AND NOT is_deleted
	`, clinicianID, day).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("scheduling: max queue number: %w", err)
	}
	return highest, nil
}

func (r *PostgresRepository) GetAppointment(ctx context.Context, appointmentID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, appointmentID)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) NextAppointmentForPatient(ctx context.Context, clinicianID, phone string, after time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.clinician_id = $1
		  AND p.phone = $2
		  AND a.scheduled_start > $3
		  AND a.status IN ('pending', 'confirmed')
		  AND NOT a.is_deleted
		ORDER BY a.scheduled_start
		LIMIT 1
	`, clinicianID, phone, after)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) InsertBooking(ctx context.Context, booking NewBooking) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The no-op update lets RETURNING yield the existing row without touching its name.
	var patientID string
	err = tx.QueryRow(ctx, `
		INSERT INTO patients (name, phone)
		VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING id::text
	`, booking.PatientName, booking.PatientPhone).Scan(&patientID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: upsert patient: %w", err)
	}

	appt := booking.Appointment
	appt.PatientID = patientID
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			clinician_id, patient_id, appointment_date, scheduled_start, scheduled_end,
			expected_minutes, queue_number, status, booked_by, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text, created_at
	`,
		appt.ClinicianID, appt.PatientID, appt.Day, appt.ScheduledStart, appt.ScheduledEnd,
		appt.ExpectedMinutes, appt.QueueNumber, string(appt.Status), string(appt.BookedBy), appt.Reason,
	).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("scheduling: insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit booking: %w", err)
	}
	return &appt, nil
}

func (r *PostgresRepository) CompleteAppointment(ctx context.Context, completion Completion, shifts []Shift) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: begin completion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed', actual_start = $2, actual_end = $3, actual_minutes = $4, updated_at = now()
		WHERE id = $1
	`, completion.AppointmentID, completion.ActualStart, completion.ActualEnd, completion.ActualMinutes)
	if err != nil {
		return fmt.Errorf("scheduling: mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, sh := range shifts {
		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET scheduled_start = $2, scheduled_end = $3, updated_at = now()
			WHERE id = $1
		`, sh.AppointmentID, sh.Start, sh.End); err != nil {
			if mapped := mapUniqueViolation(err); mapped != nil {
				return mapped
			}
			return fmt.Errorf("scheduling: shift appointment %s: %w", sh.AppointmentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: commit completion: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkCancelled(ctx context.Context, appointmentID string, at time.Time, deleted bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = $2, is_deleted = is_deleted OR $3, updated_at = now()
		WHERE id = $1
	`, appointmentID, at, deleted)
	if err != nil {
		return fmt.Errorf("scheduling: cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a        Appointment
		status   string
		bookedBy string
	)
	err := row.Scan(
		&a.ID, &a.ClinicianID, &a.PatientID, &a.Day,
		&a.ScheduledStart, &a.ScheduledEnd, &a.ExpectedMinutes, &a.QueueNumber, &status, &bookedBy,
		&a.Reason, &a.ActualStart, &a.ActualEnd, &a.ActualMinutes, &a.CancelledAt, &a.Deleted, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
	}
	a.Status = Status(status)
	a.BookedBy = BookingSource(bookedBy)
	return &a, nil
}

// mapUniqueViolation translates the two uniqueness guards into sentinels and
// returns nil for anything else.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case queueNumberConstraint:
		return ErrQueueNumberTaken
	case slotConstraint, "":
		return ErrSlotTaken
	}
	return nil
}

func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepr
}
