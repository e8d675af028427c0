package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SessionStatus enumerates payment session lifecycle states.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionExpired   SessionStatus = "expired"
)

// RequestedSlot is one lesson selection staged inside a payment session.
type RequestedSlot struct {
	StartAt       time.Time `json:"start_at" validate:"required"`
	EndAt         time.Time `json:"end_at" validate:"required"`
	LessonAmount  int64     `json:"lesson_amount"`
	PickupAddress string    `json:"pickup_address,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// PaymentSession stages a booking intent until the gateway settles it.
// It has no effect on availability while pending; the ledger is only
// touched when settlement commits.
type PaymentSession struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	InstructorID   string         `db:"instructor_id" json:"instructor_id"`
	RequestedSlots types.JSONText `db:"requested_slots" json:"requested_slots"`
	BookingFee     int64          `db:"booking_fee" json:"booking_fee"`
	LessonAmount   int64          `db:"lesson_amount" json:"lesson_amount"`
	TotalAmount    int64          `db:"total_amount" json:"total_amount"`
	Status         SessionStatus  `db:"status" json:"status"`
	FailureReason  *string        `db:"failure_reason" json:"failure_reason,omitempty"`
	ExpiresAt      time.Time      `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Slots decodes the staged slot selections.
func (p *PaymentSession) Slots() ([]RequestedSlot, error) {
	var slots []RequestedSlot
	if len(p.RequestedSlots) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(p.RequestedSlots, &slots); err != nil {
		return nil, fmt.Errorf("decode requested slots: %w", err)
	}
	return slots, nil
}

// SetSlots encodes the staged slot selections.
func (p *PaymentSession) SetSlots(slots []RequestedSlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode requested slots: %w", err)
	}
	p.RequestedSlots = types.JSONText(raw)
	return nil
}

// SettlementOutcome is the result of processing a settlement notification.
type SettlementOutcome string

const (
	SettlementCommitted SettlementOutcome = "COMMITTED"
	SettlementRejected  SettlementOutcome = "REJECTED"
	SettlementReplayed  SettlementOutcome = "REPLAYED"
)

// SettlementResult reports what a settlement attempt did.
type SettlementResult struct {
	Outcome    SettlementOutcome `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	BookingIDs []string          `json:"booking_ids,omitempty"`
}
