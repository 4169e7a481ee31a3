// Package orchestrator drives a reservation attempt through its state
// machine: booking creation, STK push, settlement polling, then commit or
// rollback. It is the sole writer of cross-entity consistency between the
// space catalog, the booking ledger and the payment journal.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
	"github.com/CharlesNJoroge8822/space-bookings/internal/payment"
)

type SpaceCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Space, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (bool, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

type BookingLedger interface {
	Create(ctx context.Context, spaceID, userID uuid.UUID, start, end time.Time, amount float64) (*domain.Booking, error)
	SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) error
}

type Payments interface {
	Initiate(ctx context.Context, channel string, amount float64, correlationID uuid.UUID) (*domain.PaymentAttempt, error)
	Poll(ctx context.Context, transactionID string) (domain.PaymentState, error)
	MarkTerminal(ctx context.Context, attemptID uuid.UUID, state domain.PaymentState) error
}

// SpaceLocker serializes attempts per space. The lock is held from request
// until the attempt reaches a terminal state.
type SpaceLocker interface {
	Acquire(ctx context.Context, spaceID, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, spaceID, owner string) error
}

// Journal persists attempt snapshots. FinishAttempt writes the terminal
// snapshot and its outbox event in one transaction.
type Journal interface {
	SaveAttempt(ctx context.Context, a *domain.ReservationAttempt) error
	UpdateAttempt(ctx context.Context, a *domain.ReservationAttempt) error
	GetAttempt(ctx context.Context, id uuid.UUID) (*domain.ReservationAttempt, error)
	FinishAttempt(ctx context.Context, a *domain.ReservationAttempt, eventType string) error
}

// Auditor records attempt milestones; best-effort, a nil auditor is allowed.
type Auditor interface {
	LogAttempt(ctx context.Context, a *domain.ReservationAttempt, note string) error
}

type Config struct {
	PollInterval   time.Duration
	PollMax        int
	PaymentTimeout time.Duration
	RetryBase      time.Duration
	RetryMax       int
	CommitRetryMax int
	// LockTTL must exceed PaymentTimeout plus the retry budget, otherwise a
	// competing attempt could slip in mid-settlement.
	LockTTL time.Duration
}

type ReserveRequest struct {
	SpaceID  uuid.UUID
	UserID   uuid.UUID
	Phone    string
	Start    time.Time
	Duration int
	Unit     domain.RateUnit
}

type Orchestrator struct {
	catalog  SpaceCatalog
	ledger   BookingLedger
	payments Payments
	locker   SpaceLocker
	journal  Journal
	audit    Auditor
	logger   observability.Logger
	cfg      Config

	mu      sync.Mutex
	running map[uuid.UUID]*attemptRun
	wg      sync.WaitGroup
}

// attemptRun is the in-memory side of one live attempt: its payment handle
// and the cancellation signal.
type attemptRun struct {
	attempt  *domain.ReservationAttempt
	pay      *domain.PaymentAttempt
	cancelCh chan struct{}
	once     sync.Once
}

func (r *attemptRun) cancel() {
	r.once.Do(func() { close(r.cancelCh) })
}

func New(catalog SpaceCatalog, ledger BookingLedger, payments Payments, locker SpaceLocker, journal Journal, audit Auditor, logger observability.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		ledger:   ledger,
		payments: payments,
		locker:   locker,
		journal:  journal,
		audit:    audit,
		logger:   logger,
		cfg:      cfg,
		running:  map[uuid.UUID]*attemptRun{},
	}
}

// Reserve runs the flow synchronously through payment initiation, so
// validation and conflict errors surface to the caller directly; settlement
// polling continues in the background. The returned snapshot is in
// PaymentPolling state on success.
func (o *Orchestrator) Reserve(ctx context.Context, req ReserveRequest) (*domain.ReservationAttempt, error) {
	if req.Duration <= 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "non-positive duration")
	}
	if req.Unit != domain.RateHourly && req.Unit != domain.RateDaily {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "unknown rate unit %q", req.Unit)
	}
	phone, err := payment.NormalizeChannel(req.Phone)
	if err != nil {
		return nil, err
	}
	start := req.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}

	attempt := domain.NewReservationAttempt(req.SpaceID, req.UserID, phone, start, req.Unit, req.Duration)
	log := o.logger.WithField("attempt_id", attempt.ID).WithField("space_id", req.SpaceID)

	if err := attempt.Transition(domain.StateReservationRequested); err != nil {
		return nil, err
	}

	// Mutual exclusion per space: a second attempt fails here before any
	// booking record exists for it.
	ok, err := o.locker.Acquire(ctx, req.SpaceID.String(), attempt.ID.String(), o.cfg.LockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "space lock")
	}
	if !ok {
		o.finishEarly(ctx, attempt, domain.ReasonSpaceUnavailable)
		return attempt, domain.ErrSpaceUnavailable
	}

	var space *domain.Space
	err = o.withRetry(ctx, "get space", func() error {
		var gerr error
		space, gerr = o.catalog.Get(ctx, req.SpaceID)
		return gerr
	})
	if err != nil {
		o.releaseLock(attempt)
		o.finishEarly(ctx, attempt, domain.ReasonSpaceUnavailable)
		return attempt, errors.Wrap(domain.ErrSpaceUnavailable, err.Error())
	}
	if !space.Available {
		o.releaseLock(attempt)
		o.finishEarly(ctx, attempt, domain.ReasonSpaceUnavailable)
		return attempt, domain.ErrSpaceUnavailable
	}

	attempt.Amount = domain.TotalAmount(*space, req.Unit, req.Duration)
	if err := o.journal.SaveAttempt(ctx, attempt); err != nil {
		o.releaseLock(attempt)
		return nil, err
	}

	var booking *domain.Booking
	err = o.withRetry(ctx, "create booking", func() error {
		var cerr error
		booking, cerr = o.ledger.Create(ctx, req.SpaceID, req.UserID, attempt.Start, attempt.End, attempt.Amount)
		return cerr
	})
	if err != nil {
		log.WithError(err).Error("booking creation failed")
		o.finish(ctx, attempt, domain.ReasonBookingCreationError)
		return attempt, errors.Wrapf(err, "booking creation")
	}
	attempt.BookingID = booking.ID
	_ = attempt.Transition(domain.StateBookingCreated)
	if err := o.journal.UpdateAttempt(ctx, attempt); err != nil {
		log.WithError(err).Warn("journal update failed")
	}

	pay, err := o.payments.Initiate(ctx, phone, attempt.Amount, booking.ID)
	if err != nil {
		log.WithError(err).Error("payment initiation failed")
		reason := domain.ReasonPaymentRejected
		switch {
		case errors.Is(err, domain.ErrInvalidChannel):
			reason = domain.ReasonInvalidChannel
		case errors.Is(err, domain.ErrDuplicateInFlight):
			reason = domain.ReasonDuplicateInFlight
		}
		o.failBooking(ctx, attempt, domain.BookingFailed)
		o.finish(ctx, attempt, reason)
		return attempt, err
	}
	attempt.PaymentID = pay.ID
	_ = attempt.Transition(domain.StatePaymentInitiated)
	_ = attempt.Transition(domain.StatePaymentPolling)
	if err := o.journal.UpdateAttempt(ctx, attempt); err != nil {
		log.WithError(err).Warn("journal update failed")
	}

	run := &attemptRun{attempt: attempt, pay: pay, cancelCh: make(chan struct{})}
	o.mu.Lock()
	o.running[attempt.ID] = run
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.settle(run)
	}()

	snapshot := *attempt
	return &snapshot, nil
}

// Cancel aborts a live attempt before its payment commits. Attempts already
// past Committing are not cancellable.
func (o *Orchestrator) Cancel(ctx context.Context, attemptID uuid.UUID) error {
	o.mu.Lock()
	run, ok := o.running[attemptID]
	o.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	run.cancel()
	return nil
}

// Get returns the journal snapshot of an attempt.
func (o *Orchestrator) Get(ctx context.Context, attemptID uuid.UUID) (*domain.ReservationAttempt, error) {
	return o.journal.GetAttempt(ctx, attemptID)
}

// Wait blocks until all in-flight settlements finish. Used on shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// finishEarly terminates an attempt that never created a booking; no
// compensation is needed.
func (o *Orchestrator) finishEarly(ctx context.Context, a *domain.ReservationAttempt, reason domain.FailReason) {
	a.Fail(reason)
	if err := o.journal.FinishAttempt(ctx, a, eventFor(a)); err != nil {
		o.logger.WithError(err).Error("failed to journal attempt")
	}
	o.observeTerminal(ctx, a)
}

func (o *Orchestrator) releaseLock(a *domain.ReservationAttempt) {
	if err := o.locker.Release(context.Background(), a.SpaceID.String(), a.ID.String()); err != nil {
		o.logger.WithError(err).WithField("space_id", a.SpaceID).Warn("space lock release failed")
	}
}
