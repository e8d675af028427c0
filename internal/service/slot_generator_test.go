package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

func minutes(h, m int) int { return h*60 + m }

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

func TestGenerateSlotsSingleDay(t *testing.T) {
	// Monday 08:00-17:00, 60 minute lessons on a 15 minute grid: first
	// start 08:00, last start 16:00.
	monday := day(t, "2026-09-07")
	require.Equal(t, time.Monday, monday.Weekday())

	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(8, 0), EndMinute: minutes(17, 0), IsActive: true},
	}

	slots := GenerateSlots("inst-1", schedule, nil, monday, monday, time.Hour)
	require.Len(t, slots, 33)

	assert.Equal(t, monday.Add(8*time.Hour), slots[0].StartAt)
	assert.Equal(t, monday.Add(9*time.Hour), slots[0].EndAt)
	assert.Equal(t, monday.Add(16*time.Hour), slots[len(slots)-1].StartAt)
	assert.Equal(t, monday.Add(17*time.Hour), slots[len(slots)-1].EndAt)

	for _, slot := range slots {
		assert.Equal(t, "inst-1", slot.InstructorID)
		assert.Equal(t, time.Hour, slot.EndAt.Sub(slot.StartAt))
	}
}

func TestGenerateSlotsWindowTooShort(t *testing.T) {
	monday := day(t, "2026-09-07")
	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(8, 0), EndMinute: minutes(8, 45), IsActive: true},
	}

	slots := GenerateSlots("inst-1", schedule, nil, monday, monday, time.Hour)
	assert.Empty(t, slots)

	slots = GenerateSlots("inst-1", schedule, nil, monday, monday, 30*time.Minute)
	require.Len(t, slots, 2)
	assert.Equal(t, monday.Add(8*time.Hour), slots[0].StartAt)
	assert.Equal(t, monday.Add(8*time.Hour+15*time.Minute), slots[1].StartAt)
}

func TestGenerateSlotsInactiveAndMissingDays(t *testing.T) {
	monday := day(t, "2026-09-07")
	sunday := day(t, "2026-09-06")
	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(8, 0), EndMinute: minutes(12, 0), IsActive: false},
	}

	assert.Empty(t, GenerateSlots("inst-1", schedule, nil, monday, monday, time.Hour))
	assert.Empty(t, GenerateSlots("inst-1", schedule, nil, sunday, sunday, time.Hour))
}

func TestGenerateSlotsTimeOffRemovesRange(t *testing.T) {
	monday := day(t, "2026-09-07")
	wednesday := day(t, "2026-09-09")
	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(9, 0), EndMinute: minutes(11, 0), IsActive: true},
		{DayOfWeek: int(time.Tuesday), StartMinute: minutes(9, 0), EndMinute: minutes(11, 0), IsActive: true},
		{DayOfWeek: int(time.Wednesday), StartMinute: minutes(9, 0), EndMinute: minutes(11, 0), IsActive: true},
	}
	exceptions := []models.AvailabilityException{
		{Type: models.ExceptionTimeOff, StartDate: monday, EndDate: day(t, "2026-09-08")},
	}

	slots := GenerateSlots("inst-1", schedule, exceptions, monday, wednesday, time.Hour)
	require.NotEmpty(t, slots)
	for _, slot := range slots {
		assert.Equal(t, wednesday.Format("2006-01-02"), slot.StartAt.Format("2006-01-02"))
	}
}

func TestGenerateSlotsCustomOverridesWeekly(t *testing.T) {
	monday := day(t, "2026-09-07")
	start := minutes(14, 0)
	end := minutes(16, 0)
	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(8, 0), EndMinute: minutes(17, 0), IsActive: true},
	}
	exceptions := []models.AvailabilityException{
		{Type: models.ExceptionCustom, StartDate: monday, EndDate: monday, StartMinute: &start, EndMinute: &end},
	}

	slots := GenerateSlots("inst-1", schedule, exceptions, monday, monday, time.Hour)
	require.Len(t, slots, 5)
	assert.Equal(t, monday.Add(14*time.Hour), slots[0].StartAt)
	assert.Equal(t, monday.Add(15*time.Hour), slots[len(slots)-1].StartAt)
}

func TestGenerateSlotsTimeOffBeatsCustom(t *testing.T) {
	monday := day(t, "2026-09-07")
	start := minutes(14, 0)
	end := minutes(16, 0)
	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(8, 0), EndMinute: minutes(17, 0), IsActive: true},
	}
	exceptions := []models.AvailabilityException{
		{Type: models.ExceptionCustom, StartDate: monday, EndDate: monday, StartMinute: &start, EndMinute: &end},
		{Type: models.ExceptionTimeOff, StartDate: monday, EndDate: monday},
	}

	assert.Empty(t, GenerateSlots("inst-1", schedule, exceptions, monday, monday, time.Hour))
}

func TestGenerateSlotsSortedAcrossDays(t *testing.T) {
	monday := day(t, "2026-09-07")
	friday := day(t, "2026-09-11")
	schedule := []models.WeeklySchedule{
		{DayOfWeek: int(time.Monday), StartMinute: minutes(8, 0), EndMinute: minutes(10, 0), IsActive: true},
		{DayOfWeek: int(time.Friday), StartMinute: minutes(8, 0), EndMinute: minutes(10, 0), IsActive: true},
	}

	slots := GenerateSlots("inst-1", schedule, nil, monday, friday, time.Hour)
	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].StartAt.Before(slots[i].StartAt))
	}
}
