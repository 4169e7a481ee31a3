// Package payment owns push-payment initiation and settlement polling on top
// of the STK gateway and the attempt journal.
package payment

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
)

// Gateway is the provider-side contract: a push and a side-effect-free status
// lookup.
type Gateway interface {
	Push(ctx context.Context, phone string, amount float64, orderRef uuid.UUID) (string, error)
	Status(ctx context.Context, transactionID string) (domain.PaymentState, error)
}

// AttemptStore persists payment attempts; the postgres journal implements it.
type AttemptStore interface {
	SavePaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error
	UpdatePaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error
	FindInFlightPayment(ctx context.Context, bookingID uuid.UUID) (*domain.PaymentAttempt, error)
	GetPaymentByTransaction(ctx context.Context, transactionID string) (*domain.PaymentAttempt, error)
	GetPaymentByAttemptID(ctx context.Context, attemptID uuid.UUID) (*domain.PaymentAttempt, error)
}

// Kenyan MSISDNs in international form: 2547XXXXXXXX or 2541XXXXXXXX.
var msisdnRe = regexp.MustCompile(`^254(7|1)\d{8}$`)

// NormalizeChannel canonicalizes a payment channel identifier to international
// form, accepting local 07.../01... input, or fails with ErrInvalidChannel.
func NormalizeChannel(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") && len(p) == 10 {
		p = "254" + p[1:]
	}
	if !msisdnRe.MatchString(p) {
		return "", errors.Wrap(domain.ErrInvalidChannel, phone)
	}
	return p, nil
}

type Initiator struct {
	gateway Gateway
	store   AttemptStore
	logger  observability.Logger
}

func NewInitiator(gateway Gateway, store AttemptStore, logger observability.Logger) *Initiator {
	return &Initiator{gateway: gateway, store: store, logger: logger}
}

// Initiate validates the channel, enforces the single-in-flight guard per
// correlation id, issues the push and records the attempt as Processing.
func (i *Initiator) Initiate(ctx context.Context, channel string, amount float64, correlationID uuid.UUID) (*domain.PaymentAttempt, error) {
	phone, err := NormalizeChannel(channel)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "non-positive amount")
	}

	existing, err := i.store.FindInFlightPayment(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrapf(domain.ErrDuplicateInFlight, "booking %s", correlationID)
	}

	now := time.Now().UTC()
	attempt := &domain.PaymentAttempt{
		ID:        uuid.New(),
		BookingID: correlationID,
		Phone:     phone,
		Amount:    amount,
		State:     domain.PaymentInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := i.store.SavePaymentAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	txn, err := i.gateway.Push(ctx, phone, amount, correlationID)
	if err != nil {
		attempt.State = domain.PaymentFailed
		attempt.UpdatedAt = time.Now().UTC()
		if uerr := i.store.UpdatePaymentAttempt(ctx, attempt); uerr != nil {
			i.logger.WithError(uerr).Error("failed to record push failure")
		}
		return nil, err
	}

	attempt.TransactionID = txn
	attempt.State = domain.PaymentProcessing
	attempt.UpdatedAt = time.Now().UTC()
	if err := i.store.UpdatePaymentAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	i.logger.WithField("booking_id", correlationID).WithField("transaction_id", txn).Info("stk push sent")
	return attempt, nil
}

// Poll returns the current payment state. A journal-terminal attempt answers
// from the journal so repeated polls after settlement stay stable even if the
// provider record is gone.
func (i *Initiator) Poll(ctx context.Context, transactionID string) (domain.PaymentState, error) {
	attempt, err := i.store.GetPaymentByTransaction(ctx, transactionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if attempt != nil && attempt.State.Terminal() {
		return attempt.State, nil
	}

	observability.PaymentPollsTotal.Inc()
	return i.gateway.Status(ctx, transactionID)
}

// MarkTerminal freezes an attempt in a terminal state. Already-terminal
// attempts are left untouched.
func (i *Initiator) MarkTerminal(ctx context.Context, attemptID uuid.UUID, state domain.PaymentState) error {
	if !state.Terminal() {
		return errors.Wrapf(domain.ErrInvalidInput, "%s is not terminal", state)
	}
	attempt, err := i.store.GetPaymentByAttemptID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.State.Terminal() {
		return nil
	}
	attempt.State = state
	attempt.UpdatedAt = time.Now().UTC()
	return i.store.UpdatePaymentAttempt(ctx, attempt)
}
