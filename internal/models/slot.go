package models

import "time"

// Slot is a candidate lesson start/end pair. Slots are derived from the
// weekly schedule and never persisted on their own.
type Slot struct {
	InstructorID string    `json:"instructor_id"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
}

// Overlaps reports whether two half-open intervals [StartAt, EndAt) intersect.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.StartAt.Before(end) && start.Before(s.EndAt)
}

// DayAvailability groups the free slots of one calendar date.
type DayAvailability struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}
