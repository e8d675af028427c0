package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvdeventer/drive-alive-api/internal/middleware"
	"github.com/mvdeventer/drive-alive-api/internal/service"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
	"github.com/mvdeventer/drive-alive-api/pkg/response"
)

// AvailabilityHandler serves the free-slot read path.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Resolve godoc
// @Summary Resolve instructor availability
// @Description Returns free lesson slots per day for a date range. Slots are a snapshot, not a reservation.
// @Tags Availability
// @Produce json
// @Param id path string true "Instructor ID"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Param duration query int false "Lesson duration in minutes" default(60)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors/{id}/availability [get]
func (h *AvailabilityHandler) Resolve(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD"))
		return
	}
	duration, err := strconv.Atoi(c.DefaultQuery("duration", "60"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "duration must be an integer"))
		return
	}

	days, hit, err := h.service.Resolve(c.Request.Context(), c.Param("id"), from, to, duration)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, days, nil, middleware.ExtractMeta(c))
}
