package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
	"github.com/mvdeventer/drive-alive-api/pkg/export"
	"github.com/mvdeventer/drive-alive-api/pkg/storage"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Cancel(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ExportFormat enumerates supported booking export formats.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult bundles rendered export bytes with response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportLink is a shareable, expiring download link for an archived
// export.
type ExportLink struct {
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BookingService reads and manages committed bookings. Creation is not
// here: bookings only come into existence through settlement.
type BookingService struct {
	bookings     bookingRepository
	audits       auditWriter
	availability availabilityInvalidator
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
}

// NewBookingService constructs a BookingService. Store and signer are
// optional; without them archived exports and download links are off.
func NewBookingService(bookings bookingRepository, audits auditWriter, availability availabilityInvalidator, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:     bookings,
		audits:       audits,
		availability: availability,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		store:        store,
		signer:       signer,
		logger:       logger,
	}
}

// List returns bookings matching the filter with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Cancel voids a booking. Students may cancel their own bookings,
// instructors theirs; cancellation frees the slot immediately.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, claims *models.JWTClaims, ip, userAgent string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	if claims.Role != models.RoleAdmin && booking.StudentID != claims.UserID && booking.InstructorID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot cancel another user's booking")
	}

	if err := s.bookings.Cancel(ctx, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("booking is already %s", booking.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}

	booking.Status = models.BookingCancelled
	s.availability.Invalidate(ctx, booking.InstructorID)

	audit := models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionBookingCancel,
		Resource:   "booking",
		ResourceID: &booking.ID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.audits.CreateAuditLog(ctx, &audit); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("booking_id", booking.ID), zap.Error(err))
	}

	return booking, nil
}

// Export renders an instructor's bookings as a downloadable day sheet.
func (s *BookingService) Export(ctx context.Context, filter models.BookingFilter, format ExportFormat) (*ExportResult, error) {
	bookings, _, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	dataset := bookingDataset(bookings)
	stamp := time.Now().Format("20060102")

	switch format {
	case ExportCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("bookings-%s.csv", stamp)}, nil
	case ExportPDF:
		content, err := s.pdf.Render(dataset, "Lesson Bookings")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("bookings-%s.pdf", stamp)}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// ExportLink renders the export, archives it on disk and returns a
// signed expiring download token.
func (s *BookingService) ExportLink(ctx context.Context, filter models.BookingFilter, format ExportFormat) (*ExportLink, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "export links are disabled")
	}

	result, err := s.Export(ctx, filter, format)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s/%s", filter.InstructorID, result.Filename)
	if _, err := s.store.Save(filename, result.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive export")
	}

	token, expiresAt, err := s.signer.Generate(filter.InstructorID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	return &ExportLink{Token: token, Filename: result.Filename, ExpiresAt: expiresAt}, nil
}

// OpenExport validates a download token and returns the archived bytes.
func (s *BookingService) OpenExport(token string) (*ExportResult, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}

	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export link is invalid or expired")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	defer file.Close() //nolint:errcheck

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export")
	}

	contentType := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		contentType = "application/pdf"
	}
	return &ExportResult{Content: content, ContentType: contentType, Filename: filepath.Base(relPath)}, nil
}

func bookingDataset(bookings []models.Booking) export.Dataset {
	headers := []string{"Date", "Start", "End", "Status", "Student", "Pickup Address", "Amount"}
	rows := make([]map[string]string, 0, len(bookings))
	for _, booking := range bookings {
		rows = append(rows, map[string]string{
			"Date":           booking.StartAt.Format(dateLayout),
			"Start":          booking.StartAt.Format("15:04"),
			"End":            booking.EndAt.Format("15:04"),
			"Status":         string(booking.Status),
			"Student":        booking.StudentID,
			"Pickup Address": booking.PickupAddress,
			"Amount":         formatCents(booking.Amount),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatCents(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
