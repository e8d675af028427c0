package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

func TestParseClock(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"08:00": 480,
		"09:30": 570,
		"23:59": 1439,
	}
	for input, want := range cases {
		got, err := ParseClock(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "8am", "24:00", "12:60", "noon"} {
		_, err := ParseClock(input)
		assert.Error(t, err, input)
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, minutes := range []int{0, 480, 570, 735, 1439} {
		formatted := FormatClock(minutes)
		parsed, err := ParseClock(formatted)
		require.NoError(t, err)
		assert.Equal(t, minutes, parsed)
	}
}

func TestWeeklyScheduleDays(t *testing.T) {
	days := WeeklyScheduleDays([]models.WeeklySchedule{
		{DayOfWeek: 1, StartMinute: 480, EndMinute: 1020, IsActive: true},
	})
	require.Len(t, days, 1)
	assert.Equal(t, "08:00", days[0].StartTime)
	assert.Equal(t, "17:00", days[0].EndTime)
	assert.True(t, days[0].IsActive)
}
