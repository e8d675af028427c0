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
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
)

type scheduleRepository interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]models.WeeklySchedule, error)
	ReplaceWeek(ctx context.Context, instructorID string, entries []models.WeeklySchedule) error
}

type exceptionRepository interface {
	ListByInstructor(ctx context.Context, instructorID string, from, to time.Time) ([]models.AvailabilityException, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilityException, error)
	Create(ctx context.Context, exception *models.AvailabilityException) error
	Delete(ctx context.Context, id string) error
}

type availabilityInvalidator interface {
	Invalidate(ctx context.Context, instructorID string)
}

// ReplaceWeeklyScheduleRequest carries the full 7-day replacement payload.
type ReplaceWeeklyScheduleRequest struct {
	Days []dto.WeeklyScheduleDay `json:"days" validate:"required,min=1,max=7,dive"`
}

// CreateExceptionRequest creates a time-off range or a custom one-off window.
type CreateExceptionRequest struct {
	Type      string `json:"type" validate:"required,oneof=TIME_OFF CUSTOM"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// ScheduleService manages instructor working hours and exceptions.
type ScheduleService struct {
	schedules    scheduleRepository
	exceptions   exceptionRepository
	availability availabilityInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(schedules scheduleRepository, exceptions exceptionRepository, availability availabilityInvalidator, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{schedules: schedules, exceptions: exceptions, availability: availability, validator: validate, logger: logger}
}

// GetWeek returns the instructor's weekly schedule.
func (s *ScheduleService) GetWeek(ctx context.Context, instructorID string) ([]dto.WeeklyScheduleDay, error) {
	entries, err := s.schedules.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly schedule")
	}
	return dto.WeeklyScheduleDays(entries), nil
}

// ReplaceWeek swaps the instructor's weekly schedule wholesale after
// validating every day entry.
func (s *ScheduleService) ReplaceWeek(ctx context.Context, instructorID string, req ReplaceWeeklyScheduleRequest) ([]dto.WeeklyScheduleDay, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekly schedule payload")
	}

	seen := make(map[int]bool, len(req.Days))
	entries := make([]models.WeeklySchedule, 0, len(req.Days))
	for _, day := range req.Days {
		if day.DayOfWeek < 0 || day.DayOfWeek > 6 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid day_of_week %d", day.DayOfWeek))
		}
		if seen[day.DayOfWeek] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate day_of_week %d", day.DayOfWeek))
		}
		seen[day.DayOfWeek] = true

		start, err := dto.ParseClock(day.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start_time %q", day.StartTime))
		}
		end, err := dto.ParseClock(day.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end_time %q", day.EndTime))
		}
		if end <= start {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
		}

		entries = append(entries, models.WeeklySchedule{
			DayOfWeek:   day.DayOfWeek,
			StartMinute: start,
			EndMinute:   end,
			IsActive:    day.IsActive,
		})
	}

	if err := s.schedules.ReplaceWeek(ctx, instructorID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace weekly schedule")
	}

	s.availability.Invalidate(ctx, instructorID)
	return dto.WeeklyScheduleDays(entries), nil
}

// ListExceptions returns exceptions intersecting [from, to].
func (s *ScheduleService) ListExceptions(ctx context.Context, instructorID string, from, to time.Time) ([]models.AvailabilityException, error) {
	exceptions, err := s.exceptions.ListByInstructor(ctx, instructorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exceptions")
	}
	return exceptions, nil
}

// CreateException stores a time-off range or custom one-off window.
func (s *ScheduleService) CreateException(ctx context.Context, instructorID string, req CreateExceptionRequest) (*models.AvailabilityException, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exception payload")
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start_date %q", req.StartDate))
	}

	exception := models.AvailabilityException{
		InstructorID: instructorID,
		Type:         models.ExceptionType(req.Type),
		StartDate:    startDate,
		EndDate:      startDate,
		Reason:       req.Reason,
	}

	switch exception.Type {
	case models.ExceptionTimeOff:
		if req.EndDate != "" {
			endDate, err := time.Parse(dateLayout, req.EndDate)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end_date %q", req.EndDate))
			}
			if endDate.Before(startDate) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
			}
			exception.EndDate = endDate
		}
	case models.ExceptionCustom:
		start, err := dto.ParseClock(req.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "custom availability requires a valid start_time")
		}
		end, err := dto.ParseClock(req.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "custom availability requires a valid end_time")
		}
		if end <= start {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
		}
		exception.StartMinute = &start
		exception.EndMinute = &end
	}

	if err := s.exceptions.Create(ctx, &exception); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exception")
	}

	s.availability.Invalidate(ctx, instructorID)
	return &exception, nil
}

// DeleteException removes an exception after an ownership check.
func (s *ScheduleService) DeleteException(ctx context.Context, instructorID, exceptionID string) error {
	exception, err := s.exceptions.FindByID(ctx, exceptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exception")
	}
	if exception.InstructorID != instructorID {
		return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
	}

	if err := s.exceptions.Delete(ctx, exceptionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exception")
	}

	s.availability.Invalidate(ctx, instructorID)
	return nil
}
