package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// AttemptState is one state of the reservation state machine. A reservation
// attempt is driven strictly forward through the transition table below; the
// orchestrator is the only writer.
type AttemptState string

const (
	StateIdle                 AttemptState = "Idle"
	StateReservationRequested AttemptState = "ReservationRequested"
	StateBookingCreated       AttemptState = "BookingCreated"
	StatePaymentInitiated     AttemptState = "PaymentInitiated"
	StatePaymentPolling       AttemptState = "PaymentPolling"
	StateCommitting           AttemptState = "Committing"
	StateRollingBack          AttemptState = "RollingBack"
	StateConfirmed            AttemptState = "Confirmed"
	StateFailed               AttemptState = "Failed"
	StateCancelled            AttemptState = "Cancelled"
)

func (s AttemptState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateCancelled
}

// FailReason is the machine-readable code attached to a terminal attempt so
// callers never have to string-match error text.
type FailReason string

const (
	ReasonNone                 FailReason = ""
	ReasonSpaceUnavailable     FailReason = "SpaceUnavailable"
	ReasonBookingCreationError FailReason = "BookingCreationError"
	ReasonInvalidChannel       FailReason = "InvalidChannel"
	ReasonDuplicateInFlight    FailReason = "DuplicateInFlight"
	ReasonPaymentRejected      FailReason = "PaymentRejected"
	ReasonPaymentTimeout       FailReason = "PaymentTimeout"
	ReasonPartialCommit        FailReason = "PartialCommitWarning"
	ReasonUserCancelled        FailReason = "UserCancelled"
)

var transitions = map[AttemptState][]AttemptState{
	StateIdle:                 {StateReservationRequested},
	StateReservationRequested: {StateBookingCreated, StateFailed},
	StateBookingCreated:       {StatePaymentInitiated, StateRollingBack},
	StatePaymentInitiated:     {StatePaymentPolling, StateRollingBack},
	StatePaymentPolling:       {StateCommitting, StateRollingBack},
	StateCommitting:           {StateConfirmed},
	StateRollingBack:          {StateFailed, StateCancelled},
}

// ReservationAttempt is one end-to-end flow from space selection through
// payment settlement.
type ReservationAttempt struct {
	ID        uuid.UUID
	SpaceID   uuid.UUID
	UserID    uuid.UUID
	Phone     string
	Start     time.Time
	End       time.Time
	RateUnit  RateUnit
	Duration  int
	Amount    float64
	BookingID uuid.UUID
	PaymentID uuid.UUID
	State     AttemptState
	Reason    FailReason
	// Warning carries ReasonPartialCommit on a Confirmed attempt whose
	// availability write did not land; reconciliation heals the flag.
	Warning   FailReason
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewReservationAttempt(spaceID, userID uuid.UUID, phone string, start time.Time, unit RateUnit, duration int) *ReservationAttempt {
	end := start
	if unit == RateDaily {
		end = start.Add(time.Duration(duration) * 24 * time.Hour)
	} else {
		end = start.Add(time.Duration(duration) * time.Hour)
	}
	now := time.Now().UTC()
	return &ReservationAttempt{
		ID:        uuid.New(),
		SpaceID:   spaceID,
		UserID:    userID,
		Phone:     phone,
		Start:     start,
		End:       end,
		RateUnit:  unit,
		Duration:  duration,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition advances the attempt or returns ErrInvalidTransition. Terminal
// states never transition again.
func (a *ReservationAttempt) Transition(to AttemptState) error {
	for _, next := range transitions[a.State] {
		if next == to {
			a.State = to
			a.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", a.State, to)
}

// Fail records the reason and moves the attempt to its failed terminal.
// ReservationRequested fails directly; any later state passes through
// RollingBack first.
func (a *ReservationAttempt) Fail(reason FailReason) {
	if a.State.Terminal() {
		return
	}
	a.Reason = reason
	terminal := StateFailed
	if reason == ReasonUserCancelled {
		terminal = StateCancelled
	}
	if a.State != StateReservationRequested && a.State != StateRollingBack {
		_ = a.Transition(StateRollingBack)
	}
	a.State = terminal
	a.UpdatedAt = time.Now().UTC()
}
