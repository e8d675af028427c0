package dto

import "time"

// CheckoutSessionResponse is returned when a payment session is staged.
type CheckoutSessionResponse struct {
	PaymentSessionID string    `json:"payment_session_id"`
	Status           string    `json:"status"`
	BookingFee       int64     `json:"booking_fee"`
	LessonAmount     int64     `json:"lesson_amount"`
	TotalAmount      int64     `json:"total_amount"`
	ExpiresAt        time.Time `json:"expires_at"`
	RedirectURL      string    `json:"redirect_url"`
}

// SessionStatusResponse reports the session lifecycle for client polling.
// BookingIDs is populated once settlement has committed.
type SessionStatusResponse struct {
	PaymentSessionID string     `json:"payment_session_id"`
	Status           string     `json:"status"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	TotalAmount      int64      `json:"total_amount"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	BookingIDs       []string   `json:"booking_ids,omitempty"`
}

// GatewayNotification is the payment provider webhook payload.
type GatewayNotification struct {
	PaymentSessionID string `json:"payment_session_id" validate:"required"`
	Status           string `json:"status" validate:"required,oneof=paid failed cancelled expired"`
	Amount           int64  `json:"amount"`
	Reference        string `json:"reference"`
}

// SettlementResponse acknowledges a processed gateway notification.
type SettlementResponse struct {
	Outcome    string   `json:"outcome"`
	Reason     string   `json:"reason,omitempty"`
	BookingIDs []string `json:"booking_ids,omitempty"`
}
