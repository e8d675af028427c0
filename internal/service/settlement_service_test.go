package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/dto"
	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/internal/repository"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
)

type fakeSessionStore struct {
	session    *models.PaymentSession
	findErr    error
	markErr    error
	marked     models.SessionStatus
	markReason string
	markMoved  bool
}

func (f *fakeSessionStore) FindByID(context.Context, string) (*models.PaymentSession, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.session, nil
}

func (f *fakeSessionStore) MarkStatus(_ context.Context, _ string, status models.SessionStatus, reason string) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	f.marked = status
	f.markReason = reason
	return f.markMoved, nil
}

type fakeLedger struct {
	err       error
	committed []models.Booking
}

func (f *fakeLedger) CommitSession(_ context.Context, _ *models.PaymentSession, bookings []models.Booking) error {
	if f.err != nil {
		return f.err
	}
	for i := range bookings {
		bookings[i].ID = "bk-" + bookings[i].StartAt.Format("150405")
	}
	f.committed = bookings
	return nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context, string) { f.calls++ }

type fakeNotifier struct {
	bookings []models.Booking
}

func (f *fakeNotifier) BookingsConfirmed(_ *models.PaymentSession, bookings []models.Booking) {
	f.bookings = append(f.bookings, bookings...)
}

func pendingSession(t *testing.T, expiresAt time.Time) *models.PaymentSession {
	t.Helper()
	monday := day(t, "2026-09-07")
	session := &models.PaymentSession{
		ID:           "sess-1",
		UserID:       "student-1",
		InstructorID: "inst-1",
		BookingFee:   500,
		LessonAmount: 11667,
		TotalAmount:  12167,
		Status:       models.SessionPending,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, session.SetSlots([]models.RequestedSlot{
		{StartAt: monday.Add(9 * time.Hour), EndAt: monday.Add(10 * time.Hour), LessonAmount: 5834},
		{StartAt: monday.Add(11 * time.Hour), EndAt: monday.Add(12 * time.Hour), LessonAmount: 5833},
	}))
	return session
}

func newSettlement(store *fakeSessionStore, ledger *fakeLedger, invalidator *fakeInvalidator, notifier *fakeNotifier) *SettlementService {
	var n bookingNotifier
	if notifier != nil {
		n = notifier
	}
	return NewSettlementService(store, ledger, invalidator, n, nil, nil, zap.NewNop())
}

func TestSettleCommits(t *testing.T) {
	store := &fakeSessionStore{session: pendingSession(t, time.Now().Add(time.Hour))}
	ledger := &fakeLedger{}
	invalidator := &fakeInvalidator{}
	notifier := &fakeNotifier{}
	svc := newSettlement(store, ledger, invalidator, notifier)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
		Amount:           12167,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCommitted, result.Outcome)
	assert.Len(t, result.BookingIDs, 2)
	assert.Len(t, ledger.committed, 2)
	assert.Equal(t, 1, invalidator.calls)
	assert.Len(t, notifier.bookings, 2)

	for _, booking := range ledger.committed {
		assert.Equal(t, models.BookingConfirmed, booking.Status)
		assert.Equal(t, models.PaymentPaid, booking.PaymentStatus)
		assert.Equal(t, "student-1", booking.StudentID)
	}
}

func TestSettleReplaysNonPendingSession(t *testing.T) {
	session := pendingSession(t, time.Now().Add(time.Hour))
	session.Status = models.SessionCompleted
	store := &fakeSessionStore{session: session}
	ledger := &fakeLedger{}
	svc := newSettlement(store, ledger, &fakeInvalidator{}, nil)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementReplayed, result.Outcome)
	assert.Empty(t, ledger.committed)
}

func TestSettleRejectsFailedPayment(t *testing.T) {
	store := &fakeSessionStore{session: pendingSession(t, time.Now().Add(time.Hour)), markMoved: true}
	svc := newSettlement(store, &fakeLedger{}, &fakeInvalidator{}, nil)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "failed",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementRejected, result.Outcome)
	assert.Equal(t, models.SessionCancelled, store.marked)
	assert.Equal(t, "payment failed", store.markReason)
}

func TestSettleRejectsExpiredSession(t *testing.T) {
	store := &fakeSessionStore{session: pendingSession(t, time.Now().Add(-time.Minute)), markMoved: true}
	ledger := &fakeLedger{}
	svc := newSettlement(store, ledger, &fakeInvalidator{}, nil)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
		Amount:           12167,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementRejected, result.Outcome)
	assert.Equal(t, models.SessionExpired, store.marked)
	assert.Empty(t, ledger.committed)
}

func TestSettleRejectsSlotConflict(t *testing.T) {
	store := &fakeSessionStore{session: pendingSession(t, time.Now().Add(time.Hour)), markMoved: true}
	ledger := &fakeLedger{err: &models.BookingConflictError{Message: "slot already booked"}}
	svc := newSettlement(store, ledger, &fakeInvalidator{}, nil)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
		Amount:           12167,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementRejected, result.Outcome)
	assert.Equal(t, models.SessionCancelled, store.marked)
	assert.Contains(t, result.Reason, "slot already booked")
}

func TestSettleReplaysConcurrentCommit(t *testing.T) {
	store := &fakeSessionStore{session: pendingSession(t, time.Now().Add(time.Hour))}
	ledger := &fakeLedger{err: repository.ErrSessionNotPending}
	svc := newSettlement(store, ledger, &fakeInvalidator{}, nil)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementReplayed, result.Outcome)
}

func TestSettleTransientFailureIsRetryable(t *testing.T) {
	store := &fakeSessionStore{session: pendingSession(t, time.Now().Add(time.Hour))}
	ledger := &fakeLedger{err: errors.New("connection reset")}
	svc := newSettlement(store, ledger, &fakeInvalidator{}, nil)

	_, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnavailable.Status, appErr.Status)
}

func TestSettleRejectsAmountMismatch(t *testing.T) {
	session := pendingSession(t, time.Now().Add(time.Hour))
	session.TotalAmount = 99999
	store := &fakeSessionStore{session: session, markMoved: true}
	ledger := &fakeLedger{}
	svc := newSettlement(store, ledger, &fakeInvalidator{}, nil)

	result, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "sess-1",
		Status:           "paid",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementRejected, result.Outcome)
	assert.Equal(t, "amount verification failed", result.Reason)
	assert.Empty(t, ledger.committed)
}

func TestSettleUnknownSession(t *testing.T) {
	store := &fakeSessionStore{findErr: sql.ErrNoRows}
	svc := newSettlement(store, &fakeLedger{}, &fakeInvalidator{}, nil)

	_, err := svc.Settle(context.Background(), dto.GatewayNotification{
		PaymentSessionID: "missing",
		Status:           "paid",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErr.Status)
}
