package orchestrator

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
)

// settle owns one attempt from PaymentPolling to a terminal state. Each
// attempt runs on its own goroutine; a stalled poll never delays others.
func (o *Orchestrator) settle(run *attemptRun) {
	ctx := context.Background()
	a := run.attempt
	log := o.logger.WithField("attempt_id", a.ID).WithField("booking_id", a.BookingID)

	defer func() {
		o.mu.Lock()
		delete(o.running, a.ID)
		o.mu.Unlock()
	}()

	started := time.Now()
	deadline := started.Add(o.cfg.PaymentTimeout)

	for poll := 0; ; poll++ {
		if poll >= o.cfg.PollMax || time.Now().After(deadline) {
			log.Warn("payment settlement timed out")
			o.markPaymentTerminal(ctx, run, domain.PaymentTimedOut)
			o.rollback(ctx, run, domain.ReasonPaymentTimeout)
			return
		}

		select {
		case <-run.cancelCh:
			log.Info("attempt cancelled by user")
			o.markPaymentTerminal(ctx, run, domain.PaymentFailed)
			o.rollback(ctx, run, domain.ReasonUserCancelled)
			return
		case <-time.After(pollBackoff(o.cfg.PollInterval, poll)):
		}

		state, err := o.payments.Poll(ctx, run.pay.TransactionID)
		if err != nil {
			log.WithError(err).Warn("payment poll failed")
			continue
		}

		switch state {
		case domain.PaymentConfirmed:
			observability.PaymentSettleDuration.Observe(time.Since(started).Seconds())
			o.markPaymentTerminal(ctx, run, domain.PaymentConfirmed)
			o.commit(ctx, run)
			return
		case domain.PaymentFailed:
			observability.PaymentSettleDuration.Observe(time.Since(started).Seconds())
			o.markPaymentTerminal(ctx, run, domain.PaymentFailed)
			o.rollback(ctx, run, domain.ReasonPaymentRejected)
			return
		}
		// still Processing, keep polling
	}
}

// pollBackoff doubles the base interval per poll, capped at 4x.
func pollBackoff(base time.Duration, poll int) time.Duration {
	d := base
	for i := 0; i < poll && d < 4*base; i++ {
		d *= 2
	}
	if d > 4*base {
		d = 4 * base
	}
	return d
}

// commit confirms the booking first, then flips the space flag. The user has
// paid, so a failed availability write is never compensated by reversing the
// booking; it becomes a PartialCommitWarning healed by reconciliation.
func (o *Orchestrator) commit(ctx context.Context, run *attemptRun) {
	a := run.attempt
	log := o.logger.WithField("attempt_id", a.ID).WithField("booking_id", a.BookingID)

	// Re-verify under the space lock: two confirmed payments for one space
	// must yield exactly one confirmed booking.
	avail, err := o.catalog.GetAvailability(ctx, a.SpaceID)
	if err == nil && !avail {
		log.Error("space taken by a concurrent confirmed payment; flagging for refund")
		if o.audit != nil {
			_ = o.audit.LogAttempt(ctx, a, "refund required: payment confirmed for occupied space")
		}
		o.rollback(ctx, run, domain.ReasonSpaceUnavailable)
		return
	}

	_ = a.Transition(domain.StateCommitting)
	if err := o.journal.UpdateAttempt(ctx, a); err != nil {
		log.WithError(err).Warn("journal update failed")
	}

	if err := o.withRetry(ctx, "confirm booking", func() error {
		return o.ledger.SetStatus(ctx, a.BookingID, domain.BookingConfirmed)
	}); err != nil {
		log.WithError(err).Error("booking confirm write failed; deferring to reconciliation")
		a.Warning = domain.ReasonPartialCommit
	}

	if err := o.setAvailabilityWithBackoff(ctx, a); err != nil {
		log.WithError(err).Error("availability write failed; deferring to reconciliation")
		a.Warning = domain.ReasonPartialCommit
		observability.PartialCommitsTotal.Inc()
	}

	_ = a.Transition(domain.StateConfirmed)
	o.finishConfirmed(ctx, a)
	log.Info("reservation confirmed")
}

func (o *Orchestrator) setAvailabilityWithBackoff(ctx context.Context, a *domain.ReservationAttempt) error {
	var err error
	for i := 0; i < o.cfg.CommitRetryMax; i++ {
		if err = o.catalog.SetAvailability(ctx, a.SpaceID, false); err == nil {
			return nil
		}
		observability.CommitRetriesTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * o.cfg.RetryBase):
		}
	}
	return errors.Wrapf(err, "exhausted %d attempts", o.cfg.CommitRetryMax)
}

// rollback fails the attempt. The availability flag was never flipped, so the
// only compensation is the booking status write.
func (o *Orchestrator) rollback(ctx context.Context, run *attemptRun, reason domain.FailReason) {
	a := run.attempt
	status := domain.BookingFailed
	if reason == domain.ReasonUserCancelled {
		status = domain.BookingCancelled
	}
	o.failBooking(ctx, a, status)
	o.finish(ctx, a, reason)
}

func (o *Orchestrator) failBooking(ctx context.Context, a *domain.ReservationAttempt, status domain.BookingStatus) {
	if a.BookingID == uuid.Nil {
		return
	}
	if err := o.withRetry(ctx, "fail booking", func() error {
		return o.ledger.SetStatus(ctx, a.BookingID, status)
	}); err != nil {
		// reconciliation will force the booking terminal later
		o.logger.WithError(err).WithField("booking_id", a.BookingID).Error("booking status write failed")
	}
}

// finish releases the space lock and journals the terminal snapshot.
func (o *Orchestrator) finish(ctx context.Context, a *domain.ReservationAttempt, reason domain.FailReason) {
	a.Fail(reason)
	o.releaseLock(a)
	if err := o.journal.FinishAttempt(ctx, a, eventFor(a)); err != nil {
		o.logger.WithError(err).Error("failed to journal attempt")
	}
	o.observeTerminal(ctx, a)
}

func (o *Orchestrator) finishConfirmed(ctx context.Context, a *domain.ReservationAttempt) {
	o.releaseLock(a)
	if err := o.journal.FinishAttempt(ctx, a, eventFor(a)); err != nil {
		o.logger.WithError(err).Error("failed to journal attempt")
	}
	o.observeTerminal(ctx, a)
}

func (o *Orchestrator) markPaymentTerminal(ctx context.Context, run *attemptRun, state domain.PaymentState) {
	if err := o.payments.MarkTerminal(ctx, run.pay.ID, state); err != nil {
		o.logger.WithError(err).WithField("payment_id", run.pay.ID).Warn("failed to mark payment terminal")
	}
}

func (o *Orchestrator) observeTerminal(ctx context.Context, a *domain.ReservationAttempt) {
	observability.ReservationsTotal.WithLabelValues(string(a.State), string(a.Reason)).Inc()
	if o.audit != nil {
		if err := o.audit.LogAttempt(ctx, a, "terminal"); err != nil {
			o.logger.WithError(err).Warn("audit write failed")
		}
	}
}

func eventFor(a *domain.ReservationAttempt) string {
	switch a.State {
	case domain.StateConfirmed:
		if a.Warning == domain.ReasonPartialCommit {
			return "reservation.partial_commit"
		}
		return "reservation.confirmed"
	case domain.StateCancelled:
		return "reservation.cancelled"
	default:
		return "reservation.failed"
	}
}

// withRetry retries transient failures with exponential backoff. Validation
// and conflict errors are surfaced immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < o.cfg.RetryMax; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * o.cfg.RetryBase):
		}
	}
	return errors.Wrapf(err, "%s: exhausted %d attempts", op, o.cfg.RetryMax)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidChannel),
		errors.Is(err, domain.ErrDuplicateInFlight),
		errors.Is(err, domain.ErrSpaceUnavailable):
		return false
	}
	return true
}
