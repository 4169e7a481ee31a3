// Package postgres is the orchestrator's own journal: reservation attempt
// snapshots, payment attempts and the transactional outbox. The external
// stores remain the source of truth for spaces and bookings; the journal is
// what reconciliation and the duplicate-payment guard read.
package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

const (
	SerializationFailureCode = "40001"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) SaveAttempt(ctx context.Context, a *domain.ReservationAttempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reservation_attempts
			(id, space_id, user_id, phone, start_time, end_time, rate_unit, duration, amount,
			 booking_id, payment_id, state, reason, warning, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, a.ID, a.SpaceID, a.UserID, a.Phone, a.Start, a.End, a.RateUnit, a.Duration, a.Amount,
		a.BookingID, a.PaymentID, a.State, a.Reason, a.Warning, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *Repository) UpdateAttempt(ctx context.Context, a *domain.ReservationAttempt) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE reservation_attempts
		SET booking_id = $2, payment_id = $3, amount = $4, state = $5, reason = $6,
		    warning = $7, updated_at = $8
		WHERE id = $1
	`, a.ID, a.BookingID, a.PaymentID, a.Amount, a.State, a.Reason, a.Warning, a.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) GetAttempt(ctx context.Context, id uuid.UUID) (*domain.ReservationAttempt, error) {
	a, err := r.scanAttempt(r.pool.QueryRow(ctx, `
		SELECT id, space_id, user_id, phone, start_time, end_time, rate_unit, duration, amount,
		       booking_id, payment_id, state, reason, warning, created_at, updated_at
		FROM reservation_attempts WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FinishAttempt writes the terminal snapshot and its outbox event in one
// transaction, so the event cannot outrun or trail the state it describes.
func (r *Repository) FinishAttempt(ctx context.Context, a *domain.ReservationAttempt, eventType string) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE reservation_attempts
			SET booking_id = $2, payment_id = $3, amount = $4, state = $5, reason = $6,
			    warning = $7, updated_at = $8
			WHERE id = $1
		`, a.ID, a.BookingID, a.PaymentID, a.Amount, a.State, a.Reason, a.Warning, a.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// attempts rejected before booking creation were never saved
			if err := insertAttemptTx(ctx, tx, a); err != nil {
				return err
			}
		}
		return insertOutboxTx(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "reservation",
			AggregateID:   a.ID,
			EventType:     eventType,
			Payload:       attemptPayload(a),
			DedupeKey:     a.ID.String() + ":" + eventType,
		})
	})
}

// ListStuckAttempts returns non-terminal attempts whose last update is older
// than the cutoff, e.g. orphaned by a crashed process mid-settlement.
func (r *Repository) ListStuckAttempts(ctx context.Context, cutoff time.Time) ([]domain.ReservationAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, space_id, user_id, phone, start_time, end_time, rate_unit, duration, amount,
		       booking_id, payment_id, state, reason, warning, created_at, updated_at
		FROM reservation_attempts
		WHERE state NOT IN ('Confirmed', 'Failed', 'Cancelled') AND updated_at <= $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListPartialCommits returns confirmed attempts still carrying the
// partial-commit warning.
func (r *Repository) ListPartialCommits(ctx context.Context) ([]domain.ReservationAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, space_id, user_id, phone, start_time, end_time, rate_unit, duration, amount,
		       booking_id, payment_id, state, reason, warning, created_at, updated_at
		FROM reservation_attempts
		WHERE state = 'Confirmed' AND warning = 'PartialCommitWarning'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ClearWarning drops the partial-commit flag after reconciliation repairs the
// availability write.
func (r *Repository) ClearWarning(ctx context.Context, attemptID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reservation_attempts SET warning = '', updated_at = $2 WHERE id = $1
	`, attemptID, time.Now().UTC())
	return err
}

func insertAttemptTx(ctx context.Context, tx pgx.Tx, a *domain.ReservationAttempt) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO reservation_attempts
			(id, space_id, user_id, phone, start_time, end_time, rate_unit, duration, amount,
			 booking_id, payment_id, state, reason, warning, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, a.ID, a.SpaceID, a.UserID, a.Phone, a.Start, a.End, a.RateUnit, a.Duration, a.Amount,
		a.BookingID, a.PaymentID, a.State, a.Reason, a.Warning, a.CreatedAt, a.UpdatedAt)
	return err
}

type attemptRow interface {
	Scan(dest ...any) error
}

func (r *Repository) scanAttempt(row attemptRow) (*domain.ReservationAttempt, error) {
	var a domain.ReservationAttempt
	err := row.Scan(&a.ID, &a.SpaceID, &a.UserID, &a.Phone, &a.Start, &a.End, &a.RateUnit,
		&a.Duration, &a.Amount, &a.BookingID, &a.PaymentID, &a.State, &a.Reason, &a.Warning,
		&a.CreatedAt, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAttempts(rows pgx.Rows) ([]domain.ReservationAttempt, error) {
	var out []domain.ReservationAttempt
	for rows.Next() {
		var a domain.ReservationAttempt
		if err := rows.Scan(&a.ID, &a.SpaceID, &a.UserID, &a.Phone, &a.Start, &a.End, &a.RateUnit,
			&a.Duration, &a.Amount, &a.BookingID, &a.PaymentID, &a.State, &a.Reason, &a.Warning,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
