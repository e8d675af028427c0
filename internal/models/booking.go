package models

import "time"

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCompleted      BookingStatus = "completed"
	BookingCancelled      BookingStatus = "cancelled"
)

// PaymentStatus enumerates booking payment states.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// ActiveBookingStatuses are the statuses that occupy an instructor's time.
// The no-overlap invariant is evaluated over these only.
var ActiveBookingStatuses = []BookingStatus{
	BookingPendingPayment,
	BookingConfirmed,
	BookingCompleted,
}

// Booking is a committed reservation in the ledger.
type Booking struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	InstructorID     string        `db:"instructor_id" json:"instructor_id"`
	StartAt          time.Time     `db:"start_at" json:"start_at"`
	EndAt            time.Time     `db:"end_at" json:"end_at"`
	Status           BookingStatus `db:"status" json:"status"`
	Amount           int64         `db:"amount" json:"amount"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentSessionID *string       `db:"payment_session_id" json:"payment_session_id,omitempty"`
	PickupAddress    string        `db:"pickup_address" json:"pickup_address,omitempty"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter captures criteria for listing bookings.
type BookingFilter struct {
	InstructorID string
	StudentID    string
	Status       string
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}

// SlotConflict describes an existing booking that blocks a requested slot.
type SlotConflict struct {
	BookingID string    `json:"booking_id,omitempty"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

// BookingConflictError is returned when a requested slot collides with an
// active booking in the ledger.
type BookingConflictError struct {
	Message   string         `json:"message"`
	Conflicts []SlotConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
