package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/pkg/config"
)

type fakeScheduleRepo struct {
	entries []models.WeeklySchedule
	err     error
}

func (f *fakeScheduleRepo) ListByInstructor(context.Context, string) ([]models.WeeklySchedule, error) {
	return f.entries, f.err
}

type fakeExceptionRepo struct {
	exceptions []models.AvailabilityException
	err        error
}

func (f *fakeExceptionRepo) ListByInstructor(context.Context, string, time.Time, time.Time) ([]models.AvailabilityException, error) {
	return f.exceptions, f.err
}

type fakeBookingRepo struct {
	bookings []models.Booking
	err      error
}

func (f *fakeBookingRepo) ListOverlapping(context.Context, string, time.Time, time.Time) ([]models.Booking, error) {
	return f.bookings, f.err
}

func newAvailabilityService(schedules *fakeScheduleRepo, exceptions *fakeExceptionRepo, bookings *fakeBookingRepo, cfg config.AvailabilityConfig) *AvailabilityService {
	return NewAvailabilityService(schedules, exceptions, bookings, nil, cfg, zap.NewNop())
}

func TestResolveFiltersBookedSlots(t *testing.T) {
	monday := day(t, "2026-09-07")
	schedules := &fakeScheduleRepo{entries: []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(9, 0), EndMinute: minutes(12, 0), IsActive: true},
	}}
	bookings := &fakeBookingRepo{bookings: []models.Booking{
		{StartAt: monday.Add(10 * time.Hour), EndAt: monday.Add(11 * time.Hour), Status: models.BookingConfirmed},
	}}

	svc := newAvailabilityService(schedules, &fakeExceptionRepo{}, bookings, config.AvailabilityConfig{MaxRangeDays: 31})
	svc.now = func() time.Time { return monday }

	days, _, err := svc.Resolve(context.Background(), "inst-1", monday, monday, 60)
	require.NoError(t, err)
	require.Len(t, days, 1)

	for _, slot := range days[0].Slots {
		assert.False(t, slot.Overlaps(monday.Add(10*time.Hour), monday.Add(11*time.Hour)),
			"slot %s should not overlap the booking", slot.StartAt)
	}
	// 9:00-12:00 yields 9 hourly starts; 10:00 booking removes starts
	// 09:15 through 10:45.
	assert.Len(t, days[0].Slots, 2)
	assert.Equal(t, monday.Add(9*time.Hour), days[0].Slots[0].StartAt)
	assert.Equal(t, monday.Add(11*time.Hour), days[0].Slots[1].StartAt)
}

func TestResolveAppliesLeadTime(t *testing.T) {
	monday := day(t, "2026-09-07")
	schedules := &fakeScheduleRepo{entries: []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(9, 0), EndMinute: minutes(11, 0), IsActive: true},
	}}

	svc := newAvailabilityService(schedules, &fakeExceptionRepo{}, &fakeBookingRepo{}, config.AvailabilityConfig{
		MaxRangeDays: 31,
		MinLeadTime:  2 * time.Hour,
	})
	svc.now = func() time.Time { return monday.Add(8 * time.Hour) }

	days, _, err := svc.Resolve(context.Background(), "inst-1", monday, monday, 60)
	require.NoError(t, err)
	require.Len(t, days, 1)
	for _, slot := range days[0].Slots {
		assert.False(t, slot.StartAt.Before(monday.Add(10*time.Hour)))
	}
}

func TestResolveIncludesEmptyDates(t *testing.T) {
	monday := day(t, "2026-09-07")
	wednesday := day(t, "2026-09-09")
	schedules := &fakeScheduleRepo{entries: []models.WeeklySchedule{
		{DayOfWeek: int(time.Tuesday), StartMinute: minutes(9, 0), EndMinute: minutes(11, 0), IsActive: true},
	}}

	svc := newAvailabilityService(schedules, &fakeExceptionRepo{}, &fakeBookingRepo{}, config.AvailabilityConfig{MaxRangeDays: 31})
	svc.now = func() time.Time { return monday }

	days, _, err := svc.Resolve(context.Background(), "inst-1", monday, wednesday, 60)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Empty(t, days[0].Slots)
	assert.NotEmpty(t, days[1].Slots)
	assert.Empty(t, days[2].Slots)
	assert.Equal(t, "2026-09-07", days[0].Date)
	assert.Equal(t, "2026-09-09", days[2].Date)
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	monday := day(t, "2026-09-07")
	svc := newAvailabilityService(&fakeScheduleRepo{}, &fakeExceptionRepo{}, &fakeBookingRepo{}, config.AvailabilityConfig{MaxRangeDays: 7})

	_, _, err := svc.Resolve(context.Background(), "inst-1", monday, monday.AddDate(0, 0, -1), 60)
	assert.Error(t, err)

	_, _, err = svc.Resolve(context.Background(), "inst-1", monday, monday.AddDate(0, 0, 14), 60)
	assert.Error(t, err)

	_, _, err = svc.Resolve(context.Background(), "inst-1", monday, monday, 45)
	assert.Error(t, err)
}

func TestIsSlotFree(t *testing.T) {
	monday := day(t, "2026-09-07")
	bookings := &fakeBookingRepo{bookings: []models.Booking{
		{StartAt: monday.Add(10 * time.Hour), EndAt: monday.Add(11 * time.Hour)},
	}}
	svc := newAvailabilityService(&fakeScheduleRepo{}, &fakeExceptionRepo{}, bookings, config.AvailabilityConfig{})

	free, err := svc.IsSlotFree(context.Background(), "inst-1", monday.Add(10*time.Hour), monday.Add(11*time.Hour))
	require.NoError(t, err)
	assert.False(t, free)

	bookings.bookings = nil
	free, err = svc.IsSlotFree(context.Background(), "inst-1", monday.Add(10*time.Hour), monday.Add(11*time.Hour))
	require.NoError(t, err)
	assert.True(t, free)
}

func TestFilterFreeSlotsBackToBackAllowed(t *testing.T) {
	monday := day(t, "2026-09-07")
	slots := []models.Slot{
		{StartAt: monday.Add(9 * time.Hour), EndAt: monday.Add(10 * time.Hour)},
		{StartAt: monday.Add(10 * time.Hour), EndAt: monday.Add(11 * time.Hour)},
	}
	booked := []models.Booking{
		{StartAt: monday.Add(10 * time.Hour), EndAt: monday.Add(11 * time.Hour)},
	}

	free := FilterFreeSlots(slots, booked, time.Time{})
	// Half-open intervals: a lesson ending 10:00 does not collide with a
	// booking starting 10:00.
	require.Len(t, free, 1)
	assert.Equal(t, monday.Add(9*time.Hour), free[0].StartAt)
}
