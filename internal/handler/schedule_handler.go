package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvdeventer/drive-alive-api/internal/service"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
	"github.com/mvdeventer/drive-alive-api/pkg/response"
)

// ScheduleHandler manages instructor working hours and exceptions.
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// GetWeek godoc
// @Summary Get weekly schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/schedule [get]
func (h *ScheduleHandler) GetWeek(c *gin.Context) {
	days, err := h.service.GetWeek(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// ReplaceWeek godoc
// @Summary Replace weekly schedule
// @Description Replaces the instructor's working hours wholesale.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Instructor ID"
// @Param payload body service.ReplaceWeeklyScheduleRequest true "Weekly schedule"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors/{id}/schedule [put]
func (h *ScheduleHandler) ReplaceWeek(c *gin.Context) {
	var req service.ReplaceWeeklyScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	days, err := h.service.ReplaceWeek(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// ListExceptions godoc
// @Summary List availability exceptions
// @Tags Schedules
// @Produce json
// @Param id path string true "Instructor ID"
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/exceptions [get]
func (h *ScheduleHandler) ListExceptions(c *gin.Context) {
	from, to := exceptionRange(c)
	exceptions, err := h.service.ListExceptions(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exceptions, nil)
}

// CreateException godoc
// @Summary Create availability exception
// @Description Adds a time-off range or a custom one-off working window.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Instructor ID"
// @Param payload body service.CreateExceptionRequest true "Exception payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors/{id}/exceptions [post]
func (h *ScheduleHandler) CreateException(c *gin.Context) {
	var req service.CreateExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	exception, err := h.service.CreateException(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exception)
}

// DeleteException godoc
// @Summary Delete availability exception
// @Tags Schedules
// @Produce json
// @Param id path string true "Instructor ID"
// @Param exceptionId path string true "Exception ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructors/{id}/exceptions/{exceptionId} [delete]
func (h *ScheduleHandler) DeleteException(c *gin.Context) {
	if err := h.service.DeleteException(c.Request.Context(), c.Param("id"), c.Param("exceptionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// exceptionRange defaults to the next 31 days when the query is absent.
func exceptionRange(c *gin.Context) (time.Time, time.Time) {
	now := time.Now()
	from := now.AddDate(0, 0, -1)
	to := now.AddDate(0, 0, 31)
	if parsed, err := time.Parse("2006-01-02", c.Query("start_date")); err == nil {
		from = parsed
	}
	if parsed, err := time.Parse("2006-01-02", c.Query("end_date")); err == nil {
		to = parsed
	}
	return from, to
}
