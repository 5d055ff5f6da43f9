package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const testClinician = "dr-1"

func karachi(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)
	return loc
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

// newFixture seeds a clinician working Mondays 9:00 AM - 5:00 PM in 30 minute
// slots, with "now" on the Sunday before.
func newFixture(t *testing.T, mutate ...func(*Clinician)) (*Service, *MemoryRepository, *time.Location) {
	t.Helper()
	loc := karachi(t)
	clinician := Clinician{
		ID:          testClinician,
		Name:        "Dr. Sana",
		Timezone:    "Asia/Karachi",
		SlotMinutes: 30,
		MaxPerDay:   20,
		Active:      true,
		AutoBooking: true,
	}
	for _, m := range mutate {
		m(&clinician)
	}
	repo := NewMemoryRepository()
	repo.PutClinician(clinician, AvailabilityWindow{
		Weekday: time.Monday,
		Start:   "9:00 AM",
		End:     "5:00 PM",
		Active:  true,
	})
	svc := NewService(repo,
		WithClock(fixedClock(time.Date(2026, 10, 18, 12, 0, 0, 0, loc))),
		WithLogger(logging.Discard()),
	)
	return svc, repo, loc
}

func monday(loc *time.Location, hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, loc)
}

func bookingAt(start time.Time, phone string) BookingRequest {
	return BookingRequest{
		ClinicianID:  testClinician,
		PatientName:  "Patient " + phone,
		PatientPhone: phone,
		Start:        start,
		Source:       SourceAgent,
	}
}

// newYorkFixture seeds a clinician on America/New_York working Sundays
// 1:00 AM - 5:00 AM, the hours daylight saving time moves.
func newYorkFixture(t *testing.T, now time.Time) (*Service, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	repo := NewMemoryRepository()
	repo.PutClinician(Clinician{
		ID:          testClinician,
		Name:        "Dr. Reyes",
		Timezone:    "America/New_York",
		SlotMinutes: 30,
		MaxPerDay:   20,
		Active:      true,
		AutoBooking: true,
	}, AvailabilityWindow{
		Weekday: time.Sunday,
		Start:   "1:00 AM",
		End:     "5:00 AM",
		Active:  true,
	})
	svc := NewService(repo,
		WithClock(fixedClock(now.In(loc))),
		WithLogger(logging.Discard()),
	)
	return svc, loc
}
