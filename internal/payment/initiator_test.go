package payment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
	"github.com/CharlesNJoroge8822/space-bookings/internal/payment"
)

type fakeGateway struct {
	mu       sync.Mutex
	pushErr  error
	status   domain.PaymentState
	pushes   int
	statuses int
}

func (g *fakeGateway) Push(ctx context.Context, phone string, amount float64, orderRef uuid.UUID) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes++
	if g.pushErr != nil {
		return "", g.pushErr
	}
	return "ws_CO_" + orderRef.String()[:8], nil
}

func (g *fakeGateway) Status(ctx context.Context, transactionID string) (domain.PaymentState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses++
	return g.status, nil
}

type fakeStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*domain.PaymentAttempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{attempts: map[uuid.UUID]*domain.PaymentAttempt{}}
}

func (s *fakeStore) SavePaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *fakeStore) UpdatePaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	return s.SavePaymentAttempt(ctx, a)
}

func (s *fakeStore) FindInFlightPayment(ctx context.Context, bookingID uuid.UUID) (*domain.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.BookingID == bookingID && !a.State.Terminal() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetPaymentByTransaction(ctx context.Context, txn string) (*domain.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.TransactionID == txn {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetPaymentByAttemptID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func TestNormalizeChannel(t *testing.T) {
	cases := map[string]string{
		"254712345678":  "254712345678",
		"+254712345678": "254712345678",
		"0712345678":    "254712345678",
		"0112345678":    "254112345678",
	}
	for in, want := range cases {
		got, err := payment.NormalizeChannel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "12345", "254812345678", "07123", "word"} {
		_, err := payment.NormalizeChannel(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidChannel, bad)
	}
}

func TestInitiate(t *testing.T) {
	gw := &fakeGateway{status: domain.PaymentProcessing}
	store := newFakeStore()
	ini := payment.NewInitiator(gw, store, observability.NewLogger())

	bookingID := uuid.New()
	attempt, err := ini.Initiate(context.Background(), "0712345678", 20, bookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentProcessing, attempt.State)
	assert.Equal(t, "254712345678", attempt.Phone)
	assert.NotEmpty(t, attempt.TransactionID)
	assert.Equal(t, 1, gw.pushes)
}

func TestInitiateRejectsDuplicateInFlight(t *testing.T) {
	gw := &fakeGateway{status: domain.PaymentProcessing}
	store := newFakeStore()
	ini := payment.NewInitiator(gw, store, observability.NewLogger())

	bookingID := uuid.New()
	_, err := ini.Initiate(context.Background(), "254712345678", 20, bookingID)
	require.NoError(t, err)

	_, err = ini.Initiate(context.Background(), "254712345678", 20, bookingID)
	assert.ErrorIs(t, err, domain.ErrDuplicateInFlight)
	assert.Equal(t, 1, gw.pushes, "no duplicate push issued")
}

func TestInitiateInvalidChannelHasNoSideEffects(t *testing.T) {
	gw := &fakeGateway{}
	store := newFakeStore()
	ini := payment.NewInitiator(gw, store, observability.NewLogger())

	_, err := ini.Initiate(context.Background(), "nope", 20, uuid.New())
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
	assert.Zero(t, gw.pushes)
	assert.Empty(t, store.attempts)
}

func TestInitiateRecordsPushFailure(t *testing.T) {
	gw := &fakeGateway{pushErr: errors.New("gateway down")}
	store := newFakeStore()
	ini := payment.NewInitiator(gw, store, observability.NewLogger())

	bookingID := uuid.New()
	_, err := ini.Initiate(context.Background(), "254712345678", 20, bookingID)
	require.Error(t, err)

	// failed attempt is terminal, so a retry may push again
	inflight, err := store.FindInFlightPayment(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Nil(t, inflight)
}

func TestPollTerminalIsIdempotent(t *testing.T) {
	gw := &fakeGateway{status: domain.PaymentProcessing}
	store := newFakeStore()
	ini := payment.NewInitiator(gw, store, observability.NewLogger())

	attempt, err := ini.Initiate(context.Background(), "254712345678", 20, uuid.New())
	require.NoError(t, err)

	require.NoError(t, ini.MarkTerminal(context.Background(), attempt.ID, domain.PaymentConfirmed))

	// once terminal in the journal, polls answer from it without touching the
	// gateway, and always with the same state
	before := gw.statuses
	for n := 0; n < 5; n++ {
		state, err := ini.Poll(context.Background(), attempt.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentConfirmed, state)
	}
	assert.Equal(t, before, gw.statuses)
}

func TestMarkTerminalImmutable(t *testing.T) {
	gw := &fakeGateway{status: domain.PaymentProcessing}
	store := newFakeStore()
	ini := payment.NewInitiator(gw, store, observability.NewLogger())

	attempt, err := ini.Initiate(context.Background(), "254712345678", 20, uuid.New())
	require.NoError(t, err)

	require.NoError(t, ini.MarkTerminal(context.Background(), attempt.ID, domain.PaymentFailed))
	require.NoError(t, ini.MarkTerminal(context.Background(), attempt.ID, domain.PaymentConfirmed))

	got, err := store.GetPaymentByAttemptID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, got.State)
}
