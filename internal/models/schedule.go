package models

import "time"

// WeeklySchedule holds one instructor's working window for a single weekday.
// Times are minutes from midnight in the instructor's local timezone;
// day_of_week follows time.Weekday (0 = Sunday).
type WeeklySchedule struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	StartMinute  int       `db:"start_minute" json:"start_minute"`
	EndMinute    int       `db:"end_minute" json:"end_minute"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ExceptionType discriminates availability exceptions.
type ExceptionType string

const (
	// ExceptionTimeOff removes every working window in its date range.
	ExceptionTimeOff ExceptionType = "TIME_OFF"
	// ExceptionCustom replaces the weekly window for a single date.
	ExceptionCustom ExceptionType = "CUSTOM"
)

// AvailabilityException is a date-scoped override of the weekly schedule.
// TIME_OFF spans [StartDate, EndDate] inclusive; CUSTOM applies to
// StartDate only and carries an explicit working window.
type AvailabilityException struct {
	ID           string        `db:"id" json:"id"`
	InstructorID string        `db:"instructor_id" json:"instructor_id"`
	Type         ExceptionType `db:"exception_type" json:"type"`
	StartDate    time.Time     `db:"start_date" json:"start_date"`
	EndDate      time.Time     `db:"end_date" json:"end_date"`
	StartMinute  *int          `db:"start_minute" json:"start_minute,omitempty"`
	EndMinute    *int          `db:"end_minute" json:"end_minute,omitempty"`
	Reason       string        `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}
