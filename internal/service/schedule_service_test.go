package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/dto"
	"github.com/mvdeventer/drive-alive-api/internal/models"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
)

type fakeScheduleWriter struct {
	entries  []models.WeeklySchedule
	replaced []models.WeeklySchedule
}

func (f *fakeScheduleWriter) ListByInstructor(context.Context, string) ([]models.WeeklySchedule, error) {
	return f.entries, nil
}

func (f *fakeScheduleWriter) ReplaceWeek(_ context.Context, _ string, entries []models.WeeklySchedule) error {
	f.replaced = entries
	return nil
}

type fakeExceptionWriter struct {
	created   *models.AvailabilityException
	found     *models.AvailabilityException
	findErr   error
	deletedID string
}

func (f *fakeExceptionWriter) ListByInstructor(context.Context, string, time.Time, time.Time) ([]models.AvailabilityException, error) {
	return nil, nil
}

func (f *fakeExceptionWriter) FindByID(context.Context, string) (*models.AvailabilityException, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.found, nil
}

func (f *fakeExceptionWriter) Create(_ context.Context, exception *models.AvailabilityException) error {
	exception.ID = "exc-1"
	f.created = exception
	return nil
}

func (f *fakeExceptionWriter) Delete(_ context.Context, id string) error {
	f.deletedID = id
	return nil
}

func newScheduleService(schedules *fakeScheduleWriter, exceptions *fakeExceptionWriter, invalidator *fakeInvalidator) *ScheduleService {
	return NewScheduleService(schedules, exceptions, invalidator, nil, zap.NewNop())
}

func TestReplaceWeekConvertsClockTimes(t *testing.T) {
	schedules := &fakeScheduleWriter{}
	invalidator := &fakeInvalidator{}
	svc := newScheduleService(schedules, &fakeExceptionWriter{}, invalidator)

	days, err := svc.ReplaceWeek(context.Background(), "inst-1", ReplaceWeeklyScheduleRequest{
		Days: []dto.WeeklyScheduleDay{
			{DayOfWeek: 1, StartTime: "08:00", EndTime: "17:00", IsActive: true},
			{DayOfWeek: 2, StartTime: "09:30", EndTime: "12:15", IsActive: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, schedules.replaced, 2)
	assert.Equal(t, 480, schedules.replaced[0].StartMinute)
	assert.Equal(t, 1020, schedules.replaced[0].EndMinute)
	assert.Equal(t, 570, schedules.replaced[1].StartMinute)
	assert.Equal(t, 735, schedules.replaced[1].EndMinute)
	assert.Equal(t, 1, invalidator.calls)

	require.Len(t, days, 2)
	assert.Equal(t, "08:00", days[0].StartTime)
	assert.Equal(t, "12:15", days[1].EndTime)
}

func TestReplaceWeekRejectsDuplicateDay(t *testing.T) {
	svc := newScheduleService(&fakeScheduleWriter{}, &fakeExceptionWriter{}, &fakeInvalidator{})

	_, err := svc.ReplaceWeek(context.Background(), "inst-1", ReplaceWeeklyScheduleRequest{
		Days: []dto.WeeklyScheduleDay{
			{DayOfWeek: 1, StartTime: "08:00", EndTime: "12:00", IsActive: true},
			{DayOfWeek: 1, StartTime: "13:00", EndTime: "17:00", IsActive: true},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestReplaceWeekRejectsInvertedWindow(t *testing.T) {
	svc := newScheduleService(&fakeScheduleWriter{}, &fakeExceptionWriter{}, &fakeInvalidator{})

	_, err := svc.ReplaceWeek(context.Background(), "inst-1", ReplaceWeeklyScheduleRequest{
		Days: []dto.WeeklyScheduleDay{
			{DayOfWeek: 1, StartTime: "17:00", EndTime: "08:00", IsActive: true},
		},
	})
	require.Error(t, err)

	_, err = svc.ReplaceWeek(context.Background(), "inst-1", ReplaceWeeklyScheduleRequest{
		Days: []dto.WeeklyScheduleDay{
			{DayOfWeek: 1, StartTime: "8am", EndTime: "5pm", IsActive: true},
		},
	})
	require.Error(t, err)
}

func TestCreateTimeOffException(t *testing.T) {
	exceptions := &fakeExceptionWriter{}
	invalidator := &fakeInvalidator{}
	svc := newScheduleService(&fakeScheduleWriter{}, exceptions, invalidator)

	exception, err := svc.CreateException(context.Background(), "inst-1", CreateExceptionRequest{
		Type:      "TIME_OFF",
		StartDate: "2026-09-07",
		EndDate:   "2026-09-11",
		Reason:    "vacation",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExceptionTimeOff, exception.Type)
	assert.Equal(t, "2026-09-11", exception.EndDate.Format("2006-01-02"))
	assert.Nil(t, exception.StartMinute)
	assert.Equal(t, 1, invalidator.calls)
}

func TestCreateCustomExceptionRequiresWindow(t *testing.T) {
	svc := newScheduleService(&fakeScheduleWriter{}, &fakeExceptionWriter{}, &fakeInvalidator{})

	_, err := svc.CreateException(context.Background(), "inst-1", CreateExceptionRequest{
		Type:      "CUSTOM",
		StartDate: "2026-09-07",
	})
	require.Error(t, err)

	exception, err := svc.CreateException(context.Background(), "inst-1", CreateExceptionRequest{
		Type:      "CUSTOM",
		StartDate: "2026-09-07",
		StartTime: "14:00",
		EndTime:   "16:00",
	})
	require.NoError(t, err)
	require.NotNil(t, exception.StartMinute)
	assert.Equal(t, 840, *exception.StartMinute)
	assert.Equal(t, 960, *exception.EndMinute)
}

func TestDeleteExceptionChecksOwnership(t *testing.T) {
	exceptions := &fakeExceptionWriter{found: &models.AvailabilityException{ID: "exc-1", InstructorID: "someone-else"}}
	svc := newScheduleService(&fakeScheduleWriter{}, exceptions, &fakeInvalidator{})

	err := svc.DeleteException(context.Background(), "inst-1", "exc-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
	assert.Empty(t, exceptions.deletedID)

	exceptions.found.InstructorID = "inst-1"
	require.NoError(t, svc.DeleteException(context.Background(), "inst-1", "exc-1"))
	assert.Equal(t, "exc-1", exceptions.deletedID)
}

func TestDeleteExceptionNotFound(t *testing.T) {
	exceptions := &fakeExceptionWriter{findErr: sql.ErrNoRows}
	svc := newScheduleService(&fakeScheduleWriter{}, exceptions, &fakeInvalidator{})

	err := svc.DeleteException(context.Background(), "inst-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}
