package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

// ErrSessionNotPending is returned when a settlement commit finds the
// session already moved out of pending by a concurrent writer.
var ErrSessionNotPending = errors.New("payment session is not pending")

// BookingRepository is the booking ledger: the single writer-of-record
// for committed reservations.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, student_id, instructor_id, start_at, end_at, status, amount, payment_status, payment_session_id, pickup_address, notes, created_at, updated_at`

// ListOverlapping returns active bookings for the instructor whose
// [start_at, end_at) interval intersects [from, to).
func (r *BookingRepository) ListOverlapping(ctx context.Context, instructorID string, from, to time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE instructor_id = $1 AND status = ANY($2) AND start_at < $4 AND end_at > $3 ORDER BY start_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, instructorID, activeStatusArray(), from, to); err != nil {
		return nil, fmt.Errorf("list overlapping bookings: %w", err)
	}
	return bookings, nil
}

// List returns bookings matching the filter ordered by start time.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var args []interface{}

	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		base += fmt.Sprintf(" AND instructor_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		base += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		base += fmt.Sprintf(" AND end_at > $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		base += fmt.Sprintf(" AND start_at < $%d", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_at ASC LIMIT %d OFFSET %d", bookingColumns, base, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListBySession returns the bookings created by one settlement commit.
func (r *BookingRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE payment_session_id = $1 ORDER BY start_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, sessionID); err != nil {
		return nil, fmt.Errorf("list bookings by session: %w", err)
	}
	return bookings, nil
}

// Cancel marks a booking cancelled, freeing its slot immediately. The
// partial unique index only covers active statuses, so no further
// bookkeeping is needed for the slot to become bookable again.
func (r *BookingRepository) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status IN ('pending_payment', 'confirmed')`, id, models.BookingCancelled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel booking rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CommitSession atomically re-validates the session's slots against the
// current ledger and inserts one confirmed booking per slot, completing
// the session in the same transaction. Concurrent settlements for the
// same instructor are serialized by an advisory lock; the partial unique
// index on (instructor_id, start_at) backstops the overlap check across
// processes.
//
// Returns *models.BookingConflictError when any slot is no longer free
// and ErrSessionNotPending when the session was settled concurrently.
func (r *BookingRepository) CommitSession(ctx context.Context, session *models.PaymentSession, bookings []models.Booking) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, session.InstructorID); err != nil {
		return fmt.Errorf("acquire settlement lock: %w", err)
	}

	for i := range bookings {
		var conflicts []models.Booking
		query := fmt.Sprintf(`SELECT %s FROM bookings WHERE instructor_id = $1 AND status = ANY($2) AND start_at < $4 AND end_at > $3`, bookingColumns)
		if err = tx.SelectContext(ctx, &conflicts, query, session.InstructorID, activeStatusArray(), bookings[i].StartAt, bookings[i].EndAt); err != nil {
			return fmt.Errorf("revalidate slot: %w", err)
		}
		if len(conflicts) > 0 {
			err = conflictError(conflicts)
			return err
		}
	}

	now := time.Now().UTC()
	for i := range bookings {
		payload := bookings[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		payload.CreatedAt = now
		payload.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, `INSERT INTO bookings (id, student_id, instructor_id, start_at, end_at, status, amount, payment_status, payment_session_id, pickup_address, notes, created_at, updated_at) VALUES (:id, :student_id, :instructor_id, :start_at, :end_at, :status, :amount, :payment_status, :payment_session_id, :pickup_address, :notes, :created_at, :updated_at)`, &payload); err != nil {
			if isUniqueViolation(err) {
				err = conflictError([]models.Booking{{StartAt: payload.StartAt, EndAt: payload.EndAt}})
			} else {
				err = fmt.Errorf("insert booking: %w", err)
			}
			return err
		}
		bookings[i] = payload
	}

	res, err := tx.ExecContext(ctx, `UPDATE payment_sessions SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`, session.ID, models.SessionCompleted, now, models.SessionPending)
	if err != nil {
		return fmt.Errorf("complete payment session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete payment session rows: %w", err)
	}
	if affected == 0 {
		err = ErrSessionNotPending
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

func activeStatusArray() pq.StringArray {
	statuses := make(pq.StringArray, len(models.ActiveBookingStatuses))
	for i, status := range models.ActiveBookingStatuses {
		statuses[i] = string(status)
	}
	return statuses
}

func conflictError(conflicts []models.Booking) *models.BookingConflictError {
	slots := make([]models.SlotConflict, len(conflicts))
	for i, booking := range conflicts {
		slots[i] = models.SlotConflict{BookingID: booking.ID, StartAt: booking.StartAt, EndAt: booking.EndAt}
	}
	return &models.BookingConflictError{Message: "slot already booked", Conflicts: slots}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
