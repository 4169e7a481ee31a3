// Package reconcile is the periodic sweep that repairs availability/status
// drift left behind by partial failures and abandoned sessions.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
)

type Catalog interface {
	List(ctx context.Context) ([]domain.Space, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

type Ledger interface {
	ListActiveForSpace(ctx context.Context, spaceID uuid.UUID) ([]domain.Booking, error)
	SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) error
}

type Journal interface {
	ListStuckAttempts(ctx context.Context, cutoff time.Time) ([]domain.ReservationAttempt, error)
	ListPartialCommits(ctx context.Context) ([]domain.ReservationAttempt, error)
	FinishAttempt(ctx context.Context, a *domain.ReservationAttempt, eventType string) error
	ClearWarning(ctx context.Context, attemptID uuid.UUID) error
}

type Payments interface {
	MarkTerminal(ctx context.Context, attemptID uuid.UUID, state domain.PaymentState) error
}

type Reconciler struct {
	catalog  Catalog
	ledger   Ledger
	journal  Journal
	payments Payments
	logger   observability.Logger
	// attempts older than this are considered orphaned
	stuckAfter time.Duration
}

func New(catalog Catalog, ledger Ledger, journal Journal, payments Payments, logger observability.Logger, stuckAfter time.Duration) *Reconciler {
	return &Reconciler{
		catalog:    catalog,
		ledger:     ledger,
		journal:    journal,
		payments:   payments,
		logger:     logger,
		stuckAfter: stuckAfter,
	}
}

func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Partial commits are healed before the
// availability repair so a just-confirmed booking is never misread as "no
// active booking" mid-heal.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.healPartialCommits(ctx)
	r.repairAvailability(ctx)
	r.failStuckAttempts(ctx)
}

// healPartialCommits re-applies both commit writes for confirmed attempts
// whose availability (or booking confirm) write never landed. Both writes are
// idempotent.
func (r *Reconciler) healPartialCommits(ctx context.Context) {
	attempts, err := r.journal.ListPartialCommits(ctx)
	if err != nil {
		r.logger.WithError(err).Error("failed to list partial commits")
		return
	}
	for _, a := range attempts {
		log := r.logger.WithField("attempt_id", a.ID).WithField("space_id", a.SpaceID)
		if err := r.ledger.SetStatus(ctx, a.BookingID, domain.BookingConfirmed); err != nil {
			log.WithError(err).Error("partial-commit heal: booking confirm failed")
			continue
		}
		if err := r.catalog.SetAvailability(ctx, a.SpaceID, false); err != nil {
			log.WithError(err).Error("partial-commit heal: availability write failed")
			continue
		}
		if err := r.journal.ClearWarning(ctx, a.ID); err != nil {
			log.WithError(err).Error("partial-commit heal: clear warning failed")
			continue
		}
		observability.ReconcileRepairsTotal.WithLabelValues("partial_commit_healed").Inc()
		log.Info("partial commit healed")
	}
}

// repairAvailability flips a space back to available when no confirmed
// booking with a future end time occupies it. Spaces are checked concurrently;
// per-space errors are logged and skipped so one bad space never stalls the
// sweep.
func (r *Reconciler) repairAvailability(ctx context.Context) {
	spaces, err := r.catalog.List(ctx)
	if err != nil {
		r.logger.WithError(err).Error("failed to list spaces")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, s := range spaces {
		if s.Available {
			continue
		}
		s := s
		g.Go(func() error {
			active, err := r.ledger.ListActiveForSpace(gctx, s.ID)
			if err != nil {
				r.logger.WithError(err).WithField("space_id", s.ID).Error("failed to list active bookings")
				return nil
			}
			if len(active) > 0 {
				return nil
			}
			if err := r.catalog.SetAvailability(gctx, s.ID, true); err != nil {
				r.logger.WithError(err).WithField("space_id", s.ID).Error("availability release failed")
				return nil
			}
			observability.ReconcileRepairsTotal.WithLabelValues("availability_released").Inc()
			r.logger.WithField("space_id", s.ID).Info("space released")
			return nil
		})
	}
	g.Wait()
}

// failStuckAttempts force-terminates attempts orphaned mid-settlement, e.g.
// by a crashed process, so bookings never sit in AwaitingPayment forever.
func (r *Reconciler) failStuckAttempts(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.stuckAfter)
	attempts, err := r.journal.ListStuckAttempts(ctx, cutoff)
	if err != nil {
		r.logger.WithError(err).Error("failed to list stuck attempts")
		return
	}
	for i := range attempts {
		a := &attempts[i]
		log := r.logger.WithField("attempt_id", a.ID)

		if a.PaymentID != uuid.Nil {
			if err := r.payments.MarkTerminal(ctx, a.PaymentID, domain.PaymentTimedOut); err != nil {
				log.WithError(err).Warn("failed to time out payment attempt")
			}
		}
		if a.BookingID != uuid.Nil {
			if err := r.ledger.SetStatus(ctx, a.BookingID, domain.BookingFailed); err != nil {
				log.WithError(err).Warn("failed to fail stuck booking")
			}
		}
		a.Fail(domain.ReasonPaymentTimeout)
		if err := r.journal.FinishAttempt(ctx, a, "reservation.failed"); err != nil {
			log.WithError(err).Error("failed to journal stuck attempt")
			continue
		}
		observability.ReconcileRepairsTotal.WithLabelValues("stuck_attempt_failed").Inc()
		log.Info("stuck attempt failed by reconciliation")
	}
}
