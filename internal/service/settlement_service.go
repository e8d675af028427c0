package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/dto"
	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/internal/repository"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
)

type settlementSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.PaymentSession, error)
	MarkStatus(ctx context.Context, id string, status models.SessionStatus, reason string) (bool, error)
}

type settlementLedger interface {
	CommitSession(ctx context.Context, session *models.PaymentSession, bookings []models.Booking) error
}

type bookingNotifier interface {
	BookingsConfirmed(session *models.PaymentSession, bookings []models.Booking)
}

// SettlementService turns gateway webhook notifications into ledger
// writes. Every outcome is deterministic and idempotent: replayed
// notifications observe the session's terminal state and change nothing.
type SettlementService struct {
	sessions     settlementSessionRepository
	ledger       settlementLedger
	availability availabilityInvalidator
	notifier     bookingNotifier
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewSettlementService constructs a SettlementService.
func NewSettlementService(sessions settlementSessionRepository, ledger settlementLedger, availability availabilityInvalidator, notifier bookingNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SettlementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		sessions:     sessions,
		ledger:       ledger,
		availability: availability,
		notifier:     notifier,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Settle processes one gateway notification. A nil error means the
// outcome is final and the webhook must be acknowledged; a non-nil error
// means a transient failure the gateway should redeliver.
func (s *SettlementService) Settle(ctx context.Context, notification dto.GatewayNotification) (*models.SettlementResult, error) {
	if err := s.validator.Struct(notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settlement notification")
	}

	session, err := s.sessions.FindByID(ctx, notification.PaymentSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load payment session")
	}

	if session.Status != models.SessionPending {
		s.metrics.RecordSettlementReplay()
		return &models.SettlementResult{
			Outcome: models.SettlementReplayed,
			Reason:  fmt.Sprintf("session already %s", session.Status),
		}, nil
	}

	if notification.Status != "paid" {
		return s.reject(ctx, session, models.SessionCancelled, fmt.Sprintf("payment %s", notification.Status))
	}

	if s.now().After(session.ExpiresAt) {
		return s.reject(ctx, session, models.SessionExpired, "payment session expired")
	}

	slots, err := session.Slots()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode staged slots")
	}

	var lessonTotal int64
	for _, slot := range slots {
		lessonTotal += slot.LessonAmount
	}
	expected := lessonTotal + session.BookingFee
	if expected != session.TotalAmount {
		return s.reject(ctx, session, models.SessionCancelled, "amount verification failed")
	}
	if notification.Amount != 0 && notification.Amount != session.TotalAmount {
		return s.reject(ctx, session, models.SessionCancelled, "paid amount does not match session total")
	}

	bookings := make([]models.Booking, len(slots))
	for i, slot := range slots {
		bookings[i] = models.Booking{
			StudentID:        session.UserID,
			InstructorID:     session.InstructorID,
			StartAt:          slot.StartAt,
			EndAt:            slot.EndAt,
			Status:           models.BookingConfirmed,
			Amount:           slot.LessonAmount,
			PaymentStatus:    models.PaymentPaid,
			PaymentSessionID: &session.ID,
			PickupAddress:    slot.PickupAddress,
			Notes:            slot.Notes,
		}
	}

	if err := s.ledger.CommitSession(ctx, session, bookings); err != nil {
		var conflict *models.BookingConflictError
		switch {
		case errors.As(err, &conflict):
			s.metrics.RecordSettlementConflict()
			return s.reject(ctx, session, models.SessionCancelled, conflict.Error())
		case errors.Is(err, repository.ErrSessionNotPending):
			s.metrics.RecordSettlementReplay()
			return &models.SettlementResult{
				Outcome: models.SettlementReplayed,
				Reason:  "session settled concurrently",
			}, nil
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "settlement commit failed")
		}
	}

	s.metrics.RecordBookingsCommitted(len(bookings))
	s.availability.Invalidate(ctx, session.InstructorID)
	if s.notifier != nil {
		s.notifier.BookingsConfirmed(session, bookings)
	}

	ids := make([]string, len(bookings))
	for i, booking := range bookings {
		ids[i] = booking.ID
	}

	s.logger.Info("settlement committed",
		zap.String("session_id", session.ID),
		zap.String("instructor_id", session.InstructorID),
		zap.Int("bookings", len(ids)))

	return &models.SettlementResult{Outcome: models.SettlementCommitted, BookingIDs: ids}, nil
}

// reject moves the session to a terminal failure state. If a concurrent
// writer got there first the notification is a replay, not a rejection.
func (s *SettlementService) reject(ctx context.Context, session *models.PaymentSession, status models.SessionStatus, reason string) (*models.SettlementResult, error) {
	moved, err := s.sessions.MarkStatus(ctx, session.ID, status, reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update payment session")
	}
	if !moved {
		s.metrics.RecordSettlementReplay()
		return &models.SettlementResult{Outcome: models.SettlementReplayed, Reason: "session settled concurrently"}, nil
	}

	s.logger.Info("settlement rejected",
		zap.String("session_id", session.ID),
		zap.String("reason", reason))

	return &models.SettlementResult{Outcome: models.SettlementRejected, Reason: reason}, nil
}
