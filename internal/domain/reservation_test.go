package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

func TestAttemptTransitions(t *testing.T) {
	a := domain.NewReservationAttempt(uuid.New(), uuid.New(), "254712345678", time.Now(), domain.RateHourly, 2)

	require.NoError(t, a.Transition(domain.StateReservationRequested))
	require.NoError(t, a.Transition(domain.StateBookingCreated))
	require.NoError(t, a.Transition(domain.StatePaymentInitiated))
	require.NoError(t, a.Transition(domain.StatePaymentPolling))
	require.NoError(t, a.Transition(domain.StateCommitting))
	require.NoError(t, a.Transition(domain.StateConfirmed))
	assert.True(t, a.State.Terminal())
}

func TestAttemptIllegalTransitions(t *testing.T) {
	a := domain.NewReservationAttempt(uuid.New(), uuid.New(), "254712345678", time.Now(), domain.RateHourly, 1)

	err := a.Transition(domain.StateCommitting)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, a.Transition(domain.StateReservationRequested))
	err = a.Transition(domain.StateConfirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestFailFromPolling(t *testing.T) {
	a := domain.NewReservationAttempt(uuid.New(), uuid.New(), "254712345678", time.Now(), domain.RateHourly, 1)
	require.NoError(t, a.Transition(domain.StateReservationRequested))
	require.NoError(t, a.Transition(domain.StateBookingCreated))
	require.NoError(t, a.Transition(domain.StatePaymentInitiated))
	require.NoError(t, a.Transition(domain.StatePaymentPolling))

	a.Fail(domain.ReasonPaymentTimeout)
	assert.Equal(t, domain.StateFailed, a.State)
	assert.Equal(t, domain.ReasonPaymentTimeout, a.Reason)

	// terminal attempts stay put
	a.Fail(domain.ReasonPaymentRejected)
	assert.Equal(t, domain.ReasonPaymentTimeout, a.Reason)
}

func TestFailUserCancelled(t *testing.T) {
	a := domain.NewReservationAttempt(uuid.New(), uuid.New(), "254712345678", time.Now(), domain.RateHourly, 1)
	require.NoError(t, a.Transition(domain.StateReservationRequested))
	require.NoError(t, a.Transition(domain.StateBookingCreated))

	a.Fail(domain.ReasonUserCancelled)
	assert.Equal(t, domain.StateCancelled, a.State)
}

func TestTotalAmount(t *testing.T) {
	s := domain.Space{PricePerHour: 10, PricePerDay: 150}
	assert.Equal(t, 20.0, domain.TotalAmount(s, domain.RateHourly, 2))
	assert.Equal(t, 450.0, domain.TotalAmount(s, domain.RateDaily, 3))
}

func TestAttemptWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	a := domain.NewReservationAttempt(uuid.New(), uuid.New(), "254712345678", start, domain.RateDaily, 2)
	assert.Equal(t, start.Add(48*time.Hour), a.End)
}

func TestBookingActive(t *testing.T) {
	now := time.Now()
	b := domain.Booking{Status: domain.BookingConfirmed, End: now.Add(time.Hour)}
	assert.True(t, b.Active(now))

	b.End = now.Add(-time.Hour)
	assert.False(t, b.Active(now))

	b.End = now.Add(time.Hour)
	b.Status = domain.BookingFailed
	assert.False(t, b.Active(now))
}
