package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/pkg/config"
	"github.com/mvdeventer/drive-alive-api/pkg/jobs"
)

// Notifier delivers booking notifications to students and instructors.
// Implementations live at the platform edge (email, WhatsApp).
type Notifier interface {
	BookingConfirmed(ctx context.Context, booking models.Booking) error
}

// LogNotifier is the default sink: it only logs. Real channels are
// swapped in through the Notifier interface.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// BookingConfirmed logs the confirmation.
func (n *LogNotifier) BookingConfirmed(_ context.Context, booking models.Booking) error {
	n.logger.Info("booking confirmed notification",
		zap.String("booking_id", booking.ID),
		zap.String("student_id", booking.StudentID),
		zap.String("instructor_id", booking.InstructorID),
		zap.Time("start_at", booking.StartAt))
	return nil
}

const jobBookingConfirmed = "booking_confirmed"

// NotificationService fans settlement outcomes out to notification
// channels through a retrying background queue. Delivery is post-commit
// and best effort; a failed notification never unwinds a booking.
type NotificationService struct {
	queue    *jobs.Queue
	notifier Notifier
	enabled  bool
	logger   *zap.Logger
}

// NewNotificationService constructs the dispatcher and its queue.
func NewNotificationService(notifier Notifier, cfg config.NotifyConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{notifier: notifier, enabled: cfg.Enabled, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins queue consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// BookingsConfirmed enqueues one notification per committed booking.
func (s *NotificationService) BookingsConfirmed(session *models.PaymentSession, bookings []models.Booking) {
	if !s.enabled {
		return
	}
	for _, booking := range bookings {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    jobBookingConfirmed,
			Payload: booking,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue booking notification",
				zap.String("booking_id", booking.ID),
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobBookingConfirmed:
		booking, ok := job.Payload.(models.Booking)
		if !ok {
			return fmt.Errorf("unexpected payload for %s job", job.Type)
		}
		return s.notifier.BookingConfirmed(ctx, booking)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
