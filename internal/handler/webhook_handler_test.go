package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/internal/service"
)

type stubSessionStore struct {
	session *models.PaymentSession
}

func (s *stubSessionStore) FindByID(context.Context, string) (*models.PaymentSession, error) {
	return s.session, nil
}

func (s *stubSessionStore) MarkStatus(context.Context, string, models.SessionStatus, string) (bool, error) {
	return true, nil
}

type stubLedger struct {
	err error
}

func (s *stubLedger) CommitSession(_ context.Context, _ *models.PaymentSession, bookings []models.Booking) error {
	if s.err != nil {
		return s.err
	}
	for i := range bookings {
		bookings[i].ID = "bk-1"
	}
	return nil
}

type stubInvalidator struct{}

func (s *stubInvalidator) Invalidate(context.Context, string) {}

func webhookSession(t *testing.T) *models.PaymentSession {
	t.Helper()
	session := &models.PaymentSession{
		ID:           "sess-1",
		UserID:       "student-1",
		InstructorID: "inst-1",
		BookingFee:   500,
		LessonAmount: 35000,
		TotalAmount:  35500,
		Status:       models.SessionPending,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, session.SetSlots([]models.RequestedSlot{
		{StartAt: time.Now().Add(24 * time.Hour), EndAt: time.Now().Add(25 * time.Hour), LessonAmount: 35000},
	}))
	return session
}

func newWebhookTest(t *testing.T, ledger *stubLedger) *WebhookHandler {
	t.Helper()
	settlements := service.NewSettlementService(
		&stubSessionStore{session: webhookSession(t)},
		ledger,
		&stubInvalidator{},
		nil,
		nil,
		nil,
		zap.NewNop(),
	)
	return NewWebhookHandler(settlements, "topsecret")
}

func postNotification(t *testing.T, handler *WebhookHandler, secret string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments/notify", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if secret != "" {
		c.Request.Header.Set("X-Webhook-Secret", secret)
	}

	handler.Notify(c)
	return rec
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	handler := newWebhookTest(t, &stubLedger{})

	rec := postNotification(t, handler, "wrong", map[string]interface{}{
		"payment_session_id": "sess-1",
		"status":             "paid",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postNotification(t, handler, "", map[string]interface{}{
		"payment_session_id": "sess-1",
		"status":             "paid",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookCommitsPaidSession(t *testing.T) {
	handler := newWebhookTest(t, &stubLedger{})

	rec := postNotification(t, handler, "topsecret", map[string]interface{}{
		"payment_session_id": "sess-1",
		"status":             "paid",
		"amount":             35500,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Outcome    string   `json:"outcome"`
			BookingIDs []string `json:"booking_ids"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "COMMITTED", envelope.Data.Outcome)
	assert.Equal(t, []string{"bk-1"}, envelope.Data.BookingIDs)
}

func TestWebhookAcknowledgesRejection(t *testing.T) {
	handler := newWebhookTest(t, &stubLedger{})

	rec := postNotification(t, handler, "topsecret", map[string]interface{}{
		"payment_session_id": "sess-1",
		"status":             "failed",
	})
	// Final outcomes always return 200 so the gateway stops redelivering.
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Outcome string `json:"outcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "REJECTED", envelope.Data.Outcome)
}

func TestWebhookTransientFailureReturns503(t *testing.T) {
	handler := newWebhookTest(t, &stubLedger{err: errors.New("connection reset")})

	rec := postNotification(t, handler, "topsecret", map[string]interface{}{
		"payment_session_id": "sess-1",
		"status":             "paid",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
