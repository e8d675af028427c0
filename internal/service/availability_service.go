package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/pkg/config"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
)

type availabilityScheduleRepo interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]models.WeeklySchedule, error)
}

type availabilityExceptionRepo interface {
	ListByInstructor(ctx context.Context, instructorID string, from, to time.Time) ([]models.AvailabilityException, error)
}

type availabilityBookingRepo interface {
	ListOverlapping(ctx context.Context, instructorID string, from, to time.Time) ([]models.Booking, error)
}

// AvailabilityService is the read path: it composes generated slots with
// the booking ledger to answer "which slots are free". Responses are
// snapshots, not reservations; the authoritative re-check happens at
// settlement time.
type AvailabilityService struct {
	schedules  availabilityScheduleRepo
	exceptions availabilityExceptionRepo
	bookings   availabilityBookingRepo
	cache      *CacheService
	cfg        config.AvailabilityConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(schedules availabilityScheduleRepo, exceptions availabilityExceptionRepo, bookings availabilityBookingRepo, cache *CacheService, cfg config.AvailabilityConfig, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		schedules:  schedules,
		exceptions: exceptions,
		bookings:   bookings,
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Resolve returns the free slots for an instructor over [from, to]
// grouped by date, plus whether the answer came from cache. Every date
// in the range appears in the result, empty dates included, so clients
// can render a calendar directly.
func (s *AvailabilityService) Resolve(ctx context.Context, instructorID string, from, to time.Time, durationMinutes int) ([]models.DayAvailability, bool, error) {
	if err := s.validateRange(from, to); err != nil {
		return nil, false, err
	}
	if err := ValidateDuration(durationMinutes, nil); err != nil {
		return nil, false, err
	}

	cacheKey := fmt.Sprintf("availability:%s:%s:%s:%d", instructorID, from.Format(dateLayout), to.Format(dateLayout), durationMinutes)
	if s.cache.Enabled() {
		var cached []models.DayAvailability
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	days, err := s.resolve(ctx, instructorID, from, to, durationMinutes)
	if err != nil {
		return nil, false, err
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, days, s.cfg.CacheTTL)
	}
	return days, false, nil
}

func (s *AvailabilityService) resolve(ctx context.Context, instructorID string, from, to time.Time, durationMinutes int) ([]models.DayAvailability, error) {
	schedule, err := s.schedules.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly schedule")
	}

	exceptions, err := s.exceptions.ListByInstructor(ctx, instructorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability exceptions")
	}

	duration := time.Duration(durationMinutes) * time.Minute
	slots := GenerateSlots(instructorID, schedule, exceptions, from, to, duration)

	rangeEnd := dateOf(to).AddDate(0, 0, 1)
	booked, err := s.bookings.ListOverlapping(ctx, instructorID, dateOf(from), rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}

	earliest := s.now().Add(s.cfg.MinLeadTime)
	free := FilterFreeSlots(slots, booked, earliest)

	return groupByDate(free, from, to), nil
}

// IsSlotFree re-runs the overlap filter for a single candidate slot.
// Best-effort pre-check only: a positive answer can go stale before
// settlement.
func (s *AvailabilityService) IsSlotFree(ctx context.Context, instructorID string, startAt, endAt time.Time) (bool, error) {
	booked, err := s.bookings.ListOverlapping(ctx, instructorID, startAt, endAt)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	return len(booked) == 0, nil
}

// Invalidate drops cached availability for an instructor after a write.
func (s *AvailabilityService) Invalidate(ctx context.Context, instructorID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("availability:%s:*", instructorID)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}

func (s *AvailabilityService) validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	if to.Before(from) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}
	if s.cfg.MaxRangeDays > 0 {
		if dateOf(to).Sub(dateOf(from)) > time.Duration(s.cfg.MaxRangeDays)*24*time.Hour {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
		}
	}
	return nil
}

// FilterFreeSlots drops slots that overlap an active booking or start
// before earliest. Overlap uses the half-open interval test.
func FilterFreeSlots(slots []models.Slot, booked []models.Booking, earliest time.Time) []models.Slot {
	free := make([]models.Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.StartAt.Before(earliest) {
			continue
		}
		conflict := false
		for _, booking := range booked {
			if slot.Overlaps(booking.StartAt, booking.EndAt) {
				conflict = true
				break
			}
		}
		if !conflict {
			free = append(free, slot)
		}
	}
	return free
}

// ValidateDuration checks the lesson length against the allowed set.
// A nil allowed list falls back to the standard lesson lengths.
func ValidateDuration(durationMinutes int, allowed []int) error {
	if len(allowed) == 0 {
		allowed = []int{30, 60, 90, 120}
	}
	for _, candidate := range allowed {
		if durationMinutes == candidate {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported lesson duration: %d minutes", durationMinutes))
}

func groupByDate(slots []models.Slot, from, to time.Time) []models.DayAvailability {
	byDate := make(map[string][]models.Slot)
	for _, slot := range slots {
		key := slot.StartAt.Format(dateLayout)
		byDate[key] = append(byDate[key], slot)
	}

	var days []models.DayAvailability
	for day := dateOf(from); !day.After(dateOf(to)); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		daySlots := byDate[key]
		if daySlots == nil {
			daySlots = []models.Slot{}
		}
		days = append(days, models.DayAvailability{Date: key, Slots: daySlots})
	}
	return days
}
