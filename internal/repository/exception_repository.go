package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

// ExceptionRepository persists date-scoped availability overrides.
type ExceptionRepository struct {
	db *sqlx.DB
}

// NewExceptionRepository creates a new exception repository.
func NewExceptionRepository(db *sqlx.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// ListByInstructor returns exceptions whose date range intersects [from, to].
func (r *ExceptionRepository) ListByInstructor(ctx context.Context, instructorID string, from, to time.Time) ([]models.AvailabilityException, error) {
	const query = `SELECT id, instructor_id, exception_type, start_date, end_date, start_minute, end_minute, reason, created_at FROM availability_exceptions WHERE instructor_id = $1 AND start_date <= $3 AND end_date >= $2 ORDER BY start_date ASC, created_at ASC`
	var exceptions []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &exceptions, query, instructorID, from, to); err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	return exceptions, nil
}

// FindByID loads a single exception.
func (r *ExceptionRepository) FindByID(ctx context.Context, id string) (*models.AvailabilityException, error) {
	const query = `SELECT id, instructor_id, exception_type, start_date, end_date, start_minute, end_minute, reason, created_at FROM availability_exceptions WHERE id = $1`
	var exception models.AvailabilityException
	if err := r.db.GetContext(ctx, &exception, query, id); err != nil {
		return nil, err
	}
	return &exception, nil
}

// Create stores a new exception record.
func (r *ExceptionRepository) Create(ctx context.Context, exception *models.AvailabilityException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO availability_exceptions (id, instructor_id, exception_type, start_date, end_date, start_minute, end_minute, reason, created_at) VALUES (:id, :instructor_id, :exception_type, :start_date, :end_date, :start_minute, :end_minute, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		return fmt.Errorf("create availability exception: %w", err)
	}
	return nil
}

// Delete removes an exception by id.
func (r *ExceptionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_exceptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete availability exception: %w", err)
	}
	return nil
}
