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
	"github.com/mvdeventer/drive-alive-api/pkg/config"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.PaymentSession) error
	FindByID(ctx context.Context, id string) (*models.PaymentSession, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionBookingRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error)
}

type slotChecker interface {
	IsSlotFree(ctx context.Context, instructorID string, startAt, endAt time.Time) (bool, error)
}

type checkoutGateway interface {
	CheckoutURL(session *models.PaymentSession) string
}

// CreateSessionRequest stages one checkout for one or more lesson slots
// with a single instructor.
type CreateSessionRequest struct {
	InstructorID string               `json:"instructor_id" validate:"required"`
	Slots        []SessionSlotRequest `json:"slots" validate:"required,min=1,max=10,dive"`
}

// SessionSlotRequest is one selected lesson slot.
type SessionSlotRequest struct {
	StartAt       time.Time `json:"start_at" validate:"required"`
	EndAt         time.Time `json:"end_at" validate:"required"`
	PickupAddress string    `json:"pickup_address"`
	Notes         string    `json:"notes"`
}

// PaymentSessionService stages booking intents for checkout. Staging
// never touches the booking ledger; the slots a session references stay
// visible as free until settlement commits them.
type PaymentSessionService struct {
	sessions     sessionRepository
	bookings     sessionBookingRepository
	availability slotChecker
	gateway      checkoutGateway
	metrics      *MetricsService
	booking      config.BookingConfig
	payment      config.PaymentConfig
	lead         time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewPaymentSessionService constructs a PaymentSessionService.
func NewPaymentSessionService(sessions sessionRepository, bookings sessionBookingRepository, availability slotChecker, gw checkoutGateway, metrics *MetricsService, booking config.BookingConfig, payment config.PaymentConfig, lead time.Duration, validate *validator.Validate, logger *zap.Logger) *PaymentSessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentSessionService{
		sessions:     sessions,
		bookings:     bookings,
		availability: availability,
		gateway:      gw,
		metrics:      metrics,
		booking:      booking,
		payment:      payment,
		lead:         lead,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Create validates the requested slots, prices them, and stages a
// pending session. The free-slot check here is best effort; the
// authoritative re-check happens inside the settlement transaction.
func (s *PaymentSessionService) Create(ctx context.Context, userID string, req CreateSessionRequest) (*dto.CheckoutSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkout payload")
	}

	now := s.now()
	earliest := now.Add(s.lead)

	staged := make([]models.RequestedSlot, 0, len(req.Slots))
	var lessonTotal int64
	for i, slot := range req.Slots {
		if !slot.EndAt.After(slot.StartAt) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slot end_at must be after start_at")
		}
		durationMinutes := int(slot.EndAt.Sub(slot.StartAt) / time.Minute)
		if err := ValidateDuration(durationMinutes, s.booking.AllowedDurations); err != nil {
			return nil, err
		}
		if slot.StartAt.Before(earliest) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slot starts too soon to book")
		}
		for j := 0; j < i; j++ {
			if slot.StartAt.Before(req.Slots[j].EndAt) && req.Slots[j].StartAt.Before(slot.EndAt) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "requested slots overlap each other")
			}
		}

		free, err := s.availability.IsSlotFree(ctx, req.InstructorID, slot.StartAt, slot.EndAt)
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, appErrors.Clone(appErrors.ErrSlotTaken, fmt.Sprintf("slot %s is no longer available", slot.StartAt.Format(time.RFC3339)))
		}

		amount := lessonAmount(s.booking.HourlyRate, durationMinutes)
		lessonTotal += amount
		staged = append(staged, models.RequestedSlot{
			StartAt:       slot.StartAt,
			EndAt:         slot.EndAt,
			LessonAmount:  amount,
			PickupAddress: slot.PickupAddress,
			Notes:         slot.Notes,
		})
	}

	session := models.PaymentSession{
		UserID:       userID,
		InstructorID: req.InstructorID,
		BookingFee:   s.booking.BookingFee,
		LessonAmount: lessonTotal,
		TotalAmount:  lessonTotal + s.booking.BookingFee,
		Status:       models.SessionPending,
		ExpiresAt:    now.Add(s.payment.SessionTTL).UTC(),
	}
	if err := session.SetSlots(staged); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage slots")
	}

	if err := s.sessions.Create(ctx, &session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment session")
	}

	s.logger.Info("payment session staged",
		zap.String("session_id", session.ID),
		zap.String("instructor_id", session.InstructorID),
		zap.Int("slots", len(staged)),
		zap.Int64("total_amount", session.TotalAmount))

	return &dto.CheckoutSessionResponse{
		PaymentSessionID: session.ID,
		Status:           string(session.Status),
		BookingFee:       session.BookingFee,
		LessonAmount:     session.LessonAmount,
		TotalAmount:      session.TotalAmount,
		ExpiresAt:        session.ExpiresAt,
		RedirectURL:      s.gateway.CheckoutURL(&session),
	}, nil
}

// Status returns the session lifecycle for client polling, including
// the booking ids once settlement has committed.
func (s *PaymentSessionService) Status(ctx context.Context, sessionID, requesterID string, isAdmin bool) (*dto.SessionStatusResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment session")
	}
	if !isAdmin && session.UserID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment session not found")
	}

	resp := &dto.SessionStatusResponse{
		PaymentSessionID: session.ID,
		Status:           string(session.Status),
		TotalAmount:      session.TotalAmount,
		ExpiresAt:        session.ExpiresAt,
	}
	if session.FailureReason != nil {
		resp.FailureReason = *session.FailureReason
	}

	if session.Status == models.SessionCompleted {
		bookings, err := s.bookings.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session bookings")
		}
		ids := make([]string, len(bookings))
		for i, booking := range bookings {
			ids[i] = booking.ID
		}
		resp.BookingIDs = ids
		completedAt := session.UpdatedAt
		resp.CompletedAt = &completedAt
	}

	return resp, nil
}

// Sweep expires pending sessions past their deadline. Expired sessions
// never held slots, so no availability needs to be released.
func (s *PaymentSessionService) Sweep(ctx context.Context) (int64, error) {
	count, err := s.sessions.ExpireBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep payment sessions: %w", err)
	}
	if count > 0 {
		s.metrics.RecordSessionsExpired(count)
		s.logger.Info("expired stale payment sessions", zap.Int64("count", count))
	}
	return count, nil
}

// RunSweeper runs the expiry sweep on an interval until ctx is done.
func (s *PaymentSessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("payment session sweep failed", zap.Error(err))
			}
		}
	}
}

// lessonAmount prices a lesson in cents from the hourly rate.
func lessonAmount(hourlyRate int64, durationMinutes int) int64 {
	return hourlyRate * int64(durationMinutes) / 60
}
