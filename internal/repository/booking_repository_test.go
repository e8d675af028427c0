package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestBookingRepositoryListOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	rows := sqlmock.NewRows([]string{"id", "student_id", "instructor_id", "start_at", "end_at", "status", "amount", "payment_status", "payment_session_id", "pickup_address", "notes", "created_at", "updated_at"}).
		AddRow("bk-1", "student-1", "inst-1", from.Add(10*time.Hour), from.Add(11*time.Hour), "confirmed", int64(35000), "paid", nil, "", "", from, from)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, student_id, instructor_id, start_at, end_at, status, amount, payment_status, payment_session_id, pickup_address, notes, created_at, updated_at FROM bookings WHERE instructor_id = $1 AND status = ANY($2) AND start_at < $4 AND end_at > $3 ORDER BY start_at ASC`)).
		WithArgs("inst-1", sqlmock.AnyArg(), from, to).
		WillReturnRows(rows)

	bookings, err := repo.ListOverlapping(context.Background(), "inst-1", from, to)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "bk-1", bookings[0].ID)
	assert.Equal(t, models.BookingConfirmed, bookings[0].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancelGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status IN ('pending_payment', 'confirmed')`)).
		WithArgs("bk-1", models.BookingCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), "bk-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status IN ('pending_payment', 'confirmed')`)).
		WithArgs("bk-1", models.BookingCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Cancel(context.Background(), "bk-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentSessionRepositoryMarkStatusGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payment_sessions SET status = $2, failure_reason = $3, updated_at = $4 WHERE id = $1 AND status = $5`)).
		WithArgs("sess-1", models.SessionCancelled, sqlmock.AnyArg(), sqlmock.AnyArg(), models.SessionPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.MarkStatus(context.Background(), "sess-1", models.SessionCancelled, "payment failed")
	require.NoError(t, err)
	assert.False(t, moved)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentSessionRepositoryExpireBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payment_sessions SET status = $1, updated_at = $2 WHERE status = $3 AND expires_at <= $2`)).
		WithArgs(models.SessionExpired, sqlmock.AnyArg(), models.SessionPending).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.ExpireBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, mock.ExpectationsWereMet())
}
