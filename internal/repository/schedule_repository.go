package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

// ScheduleRepository provides persistence for instructor weekly schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListByInstructor returns the instructor's weekly schedule ordered by weekday.
func (r *ScheduleRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.WeeklySchedule, error) {
	const query = `SELECT id, instructor_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at FROM weekly_schedules WHERE instructor_id = $1 ORDER BY day_of_week ASC`
	var entries []models.WeeklySchedule
	if err := r.db.SelectContext(ctx, &entries, query, instructorID); err != nil {
		return nil, fmt.Errorf("list weekly schedule: %w", err)
	}
	return entries, nil
}

// ReplaceWeek swaps the instructor's entire weekly schedule in one
// transaction. Wholesale replacement avoids stale-day ambiguity that a
// partial patch would leave behind.
func (r *ScheduleRepository) ReplaceWeek(ctx context.Context, instructorID string, entries []models.WeeklySchedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace weekly schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM weekly_schedules WHERE instructor_id = $1`, instructorID); err != nil {
		return fmt.Errorf("clear weekly schedule: %w", err)
	}

	now := time.Now().UTC()
	for i := range entries {
		payload := entries[i]
		payload.InstructorID = instructorID
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		payload.CreatedAt = now
		payload.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, `INSERT INTO weekly_schedules (id, instructor_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at) VALUES (:id, :instructor_id, :day_of_week, :start_minute, :end_minute, :is_active, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("insert weekly schedule day: %w", err)
		}
		entries[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace weekly schedule: %w", err)
	}
	return nil
}
