package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

func (r *Repository) SavePaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_attempts (id, booking_id, phone, amount, transaction_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.BookingID, a.Phone, a.Amount, a.TransactionID, a.State, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *Repository) UpdatePaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE payment_attempts SET transaction_id = $2, state = $3, updated_at = $4 WHERE id = $1
	`, a.ID, a.TransactionID, a.State, a.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindInFlightPayment returns the non-terminal attempt for a booking, or nil.
// At most one can exist; the initiator refuses to create a second.
func (r *Repository) FindInFlightPayment(ctx context.Context, bookingID uuid.UUID) (*domain.PaymentAttempt, error) {
	a, err := r.scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, booking_id, phone, amount, transaction_id, state, created_at, updated_at
		FROM payment_attempts
		WHERE booking_id = $1 AND state NOT IN ('Confirmed', 'Failed', 'TimedOut')
		LIMIT 1
	`, bookingID))
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return a, err
}

func (r *Repository) GetPaymentByTransaction(ctx context.Context, transactionID string) (*domain.PaymentAttempt, error) {
	return r.scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, booking_id, phone, amount, transaction_id, state, created_at, updated_at
		FROM payment_attempts WHERE transaction_id = $1
	`, transactionID))
}

func (r *Repository) GetPaymentByAttemptID(ctx context.Context, attemptID uuid.UUID) (*domain.PaymentAttempt, error) {
	return r.scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, booking_id, phone, amount, transaction_id, state, created_at, updated_at
		FROM payment_attempts WHERE id = $1
	`, attemptID))
}

func (r *Repository) scanPayment(row attemptRow) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	err := row.Scan(&a.ID, &a.BookingID, &a.Phone, &a.Amount, &a.TransactionID, &a.State, &a.CreatedAt, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
