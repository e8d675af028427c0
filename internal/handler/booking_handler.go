package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/internal/service"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
	"github.com/mvdeventer/drive-alive-api/pkg/response"
)

// BookingHandler serves checkout staging, session polling and the
// booking ledger read paths.
type BookingHandler struct {
	sessions *service.PaymentSessionService
	bookings *service.BookingService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(sessions *service.PaymentSessionService, bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{sessions: sessions, bookings: bookings}
}

// CreateSession godoc
// @Summary Stage a checkout session
// @Description Validates and prices the requested slots, then returns a gateway redirect URL. No booking exists until the payment settles.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Checkout payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/sessions [post]
func (h *BookingHandler) CreateSession(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	res, err := h.sessions.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// SessionStatus godoc
// @Summary Poll a checkout session
// @Description Returns session lifecycle state; booking ids appear once settlement commits.
// @Tags Bookings
// @Produce json
// @Param id path string true "Payment session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/sessions/{id} [get]
func (h *BookingHandler) SessionStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.sessions.Status(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ListByInstructor godoc
// @Summary List instructor bookings
// @Tags Bookings
// @Produce json
// @Param id path string true "Instructor ID"
// @Param status query string false "Filter by status"
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/bookings [get]
func (h *BookingHandler) ListByInstructor(c *gin.Context) {
	filter := bookingFilter(c)
	filter.InstructorID = c.Param("id")

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// ListMine godoc
// @Summary List own bookings
// @Tags Bookings
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := bookingFilter(c)
	if claims.Role == models.RoleInstructor {
		filter.InstructorID = claims.UserID
	} else {
		filter.StudentID = claims.UserID
	}

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Export godoc
// @Summary Export instructor bookings
// @Description Renders the instructor's bookings as a downloadable CSV or PDF day sheet.
// @Tags Bookings
// @Produce octet-stream
// @Param id path string true "Instructor ID"
// @Param format query string false "csv or pdf" default(csv)
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /instructors/{id}/bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	filter := bookingFilter(c)
	filter.InstructorID = c.Param("id")
	filter.PageSize = 100

	result, err := h.bookings.Export(c.Request.Context(), filter, service.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// ExportLink godoc
// @Summary Create a shareable export download link
// @Description Archives the rendered export and returns a signed, expiring download token.
// @Tags Bookings
// @Produce json
// @Param id path string true "Instructor ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors/{id}/bookings/export-link [post]
func (h *BookingHandler) ExportLink(c *gin.Context) {
	filter := bookingFilter(c)
	filter.InstructorID = c.Param("id")
	filter.PageSize = 100

	link, err := h.bookings.ExportLink(c.Request.Context(), filter, service.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Download an archived export
// @Tags Bookings
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *BookingHandler) Download(c *gin.Context) {
	result, err := h.bookings.OpenExport(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Cancels a pending or confirmed booking, freeing its slot immediately.
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), claims, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

func bookingFilter(c *gin.Context) models.BookingFilter {
	var filter models.BookingFilter
	filter.Status = c.Query("status")
	if parsed, err := time.Parse("2006-01-02", c.Query("start_date")); err == nil {
		filter.From = parsed
	}
	if parsed, err := time.Parse("2006-01-02", c.Query("end_date")); err == nil {
		filter.To = parsed.AddDate(0, 0, 1)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	return filter
}
