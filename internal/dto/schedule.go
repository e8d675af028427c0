// Package dto holds the wire shapes exchanged with API clients and the
// payment gateway, plus the clock-string conversions used at that edge.
package dto

import (
	"fmt"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

// WeeklyScheduleDay is the client-facing weekly schedule entry. Times are
// "HH:MM" strings; storage uses minutes from midnight.
type WeeklyScheduleDay struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	IsActive  bool   `json:"is_active"`
}

// WeeklyScheduleDays converts storage entries to their wire shape.
func WeeklyScheduleDays(entries []models.WeeklySchedule) []WeeklyScheduleDay {
	days := make([]WeeklyScheduleDay, 0, len(entries))
	for _, entry := range entries {
		days = append(days, WeeklyScheduleDay{
			DayOfWeek: entry.DayOfWeek,
			StartTime: FormatClock(entry.StartMinute),
			EndTime:   FormatClock(entry.EndMinute),
			IsActive:  entry.IsActive,
		})
	}
	return days
}

// ParseClock converts "HH:MM" to minutes from midnight.
func ParseClock(value string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(value, "%2d:%2d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock %q out of range", value)
	}
	return hours*60 + minutes, nil
}

// FormatClock converts minutes from midnight to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
