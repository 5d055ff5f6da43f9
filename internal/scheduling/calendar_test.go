package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalendarDropsUnusableWindows(t *testing.T) {
	cal := NewCalendar([]AvailabilityWindow{
		{Weekday: time.Monday, Start: "2:00 PM", End: "5:00 PM", Active: true},
		{Weekday: time.Monday, Start: "9:00 AM", End: "1:00 PM", Active: true},
		{Weekday: time.Tuesday, Start: "9:00 AM", End: "5:00 PM", Active: false},
		{Weekday: time.Wednesday, Start: "5:00 PM", End: "9:00 AM", Active: true},
		{Weekday: time.Thursday, Start: "whenever", End: "5:00 PM", Active: true},
		{Weekday: time.Saturday, Start: "10:00", End: "14:00", Active: true},
	})

	monday := cal.Windows(time.Monday)
	require.Len(t, monday, 2)
	assert.Equal(t, 9*60, monday[0].StartMinute, "windows are sorted")
	assert.Equal(t, 14*60, monday[1].StartMinute)

	assert.True(t, cal.IsAvailable(time.Monday))
	assert.False(t, cal.IsAvailable(time.Tuesday), "inactive window counts as unavailable")
	assert.False(t, cal.IsAvailable(time.Wednesday), "start after end is ignored")
	assert.False(t, cal.IsAvailable(time.Thursday))
	assert.False(t, cal.IsAvailable(time.Sunday))

	assert.Equal(t, []string{
		"Monday: 9:00 AM to 1:00 PM, 2:00 PM to 5:00 PM",
		"Saturday: 10:00 AM to 2:00 PM",
	}, cal.WeeklySummary())
}

func TestCalendarFits(t *testing.T) {
	cal := NewCalendar([]AvailabilityWindow{
		{Weekday: time.Monday, Start: "9:00 AM", End: "1:00 PM", Active: true},
		{Weekday: time.Monday, Start: "2:00 PM", End: "5:00 PM", Active: true},
	})
	assert.True(t, cal.Fits(time.Monday, 9*60, 9*60+30))
	assert.True(t, cal.Fits(time.Monday, 12*60+30, 13*60), "may end exactly at the window end")
	assert.False(t, cal.Fits(time.Monday, 12*60+45, 13*60+15))
	assert.False(t, cal.Fits(time.Monday, 13*60+30, 14*60+30), "must sit inside a single window")
	assert.False(t, cal.Fits(time.Tuesday, 9*60, 9*60+30))
}
