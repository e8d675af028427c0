package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mvdeventer/drive-alive-api/internal/models"
)

// PaymentSessionRepository persists staged booking intents.
type PaymentSessionRepository struct {
	db *sqlx.DB
}

// NewPaymentSessionRepository creates a new payment session repository.
func NewPaymentSessionRepository(db *sqlx.DB) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

const sessionColumns = `id, user_id, instructor_id, requested_slots, booking_fee, lesson_amount, total_amount, status, failure_reason, expires_at, created_at, updated_at`

// Create stores a new pending session. The id doubles as the opaque
// token handed to the payment gateway.
func (r *PaymentSessionRepository) Create(ctx context.Context, session *models.PaymentSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `INSERT INTO payment_sessions (id, user_id, instructor_id, requested_slots, booking_fee, lesson_amount, total_amount, status, failure_reason, expires_at, created_at, updated_at) VALUES (:id, :user_id, :instructor_id, :requested_slots, :booking_fee, :lesson_amount, :total_amount, :status, :failure_reason, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create payment session: %w", err)
	}
	return nil
}

// FindByID loads a session by its token.
func (r *PaymentSessionRepository) FindByID(ctx context.Context, id string) (*models.PaymentSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_sessions WHERE id = $1`, sessionColumns)
	var session models.PaymentSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkStatus transitions a pending session to the given terminal status.
// The pending guard makes replayed webhooks and the expiry sweep no-ops
// once any transition has landed; it reports whether the row moved.
func (r *PaymentSessionRepository) MarkStatus(ctx context.Context, id string, status models.SessionStatus, reason string) (bool, error) {
	var failureReason *string
	if reason != "" {
		failureReason = &reason
	}
	res, err := r.db.ExecContext(ctx, `UPDATE payment_sessions SET status = $2, failure_reason = $3, updated_at = $4 WHERE id = $1 AND status = $5`, id, status, failureReason, time.Now().UTC(), models.SessionPending)
	if err != nil {
		return false, fmt.Errorf("mark payment session %s: %w", status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment session rows: %w", err)
	}
	return affected > 0, nil
}

// ExpireBefore sweeps pending sessions whose expiry passed, returning
// how many were expired.
func (r *PaymentSessionRepository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_sessions SET status = $1, updated_at = $2 WHERE status = $3 AND expires_at <= $2`, models.SessionExpired, cutoff.UTC(), models.SessionPending)
	if err != nil {
		return 0, fmt.Errorf("expire payment sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire payment sessions rows: %w", err)
	}
	return affected, nil
}
