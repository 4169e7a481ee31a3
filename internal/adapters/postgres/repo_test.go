package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/CharlesNJoroge8822/space-bookings/internal/adapters/postgres"
	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS reservation_attempts (
	id UUID PRIMARY KEY,
	space_id UUID,
	user_id UUID,
	phone TEXT,
	start_time TIMESTAMPTZ,
	end_time TIMESTAMPTZ,
	rate_unit TEXT,
	duration INT,
	amount NUMERIC,
	booking_id UUID,
	payment_id UUID,
	state TEXT,
	reason TEXT,
	warning TEXT,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS payment_attempts (
	id UUID PRIMARY KEY,
	booking_id UUID,
	phone TEXT,
	amount NUMERIC,
	transaction_id TEXT,
	state TEXT,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT,
	aggregate_id UUID,
	event_type TEXT,
	payload_json BYTEA,
	created_at TIMESTAMPTZ DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT,
	dedupe_key TEXT UNIQUE
);
`

func setupRepo(t *testing.T) *postgres.Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "test", "POSTGRES_DB": "sb"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, "postgres://postgres:test@"+host+":"+port.Port()+"/sb?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}

	return postgres.NewRepository(pool)
}

func newAttempt() *domain.ReservationAttempt {
	a := domain.NewReservationAttempt(uuid.New(), uuid.New(), "254712345678", time.Now().UTC(), domain.RateHourly, 2)
	a.Amount = 20
	_ = a.Transition(domain.StateReservationRequested)
	return a
}

func TestAttemptRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	a := newAttempt()
	require.NoError(t, repo.SaveAttempt(ctx, a))

	a.BookingID = uuid.New()
	require.NoError(t, a.Transition(domain.StateBookingCreated))
	require.NoError(t, repo.UpdateAttempt(ctx, a))

	got, err := repo.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateBookingCreated, got.State)
	assert.Equal(t, a.BookingID, got.BookingID)
	assert.Equal(t, "254712345678", got.Phone)

	_, err = repo.GetAttempt(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinishAttemptWritesOutbox(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	a := newAttempt()
	require.NoError(t, repo.SaveAttempt(ctx, a))

	a.Fail(domain.ReasonPaymentTimeout)
	require.NoError(t, repo.FinishAttempt(ctx, a, "reservation.failed"))

	got, err := repo.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.Equal(t, domain.ReasonPaymentTimeout, got.Reason)

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "reservation.failed", records[0].EventType)

	// finishing again must not duplicate the event
	require.NoError(t, repo.FinishAttempt(ctx, a, "reservation.failed"))
	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, repo.MarkPublished(ctx, records[0].ID, time.Now()))
	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFinishAttemptInsertsUnsavedAttempt(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	// attempts rejected before booking creation reach the journal only at finish
	a := newAttempt()
	a.Fail(domain.ReasonSpaceUnavailable)
	require.NoError(t, repo.FinishAttempt(ctx, a, "reservation.failed"))

	got, err := repo.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
}

func TestStuckAttempts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	stuck := newAttempt()
	stuck.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.SaveAttempt(ctx, stuck))

	fresh := newAttempt()
	require.NoError(t, repo.SaveAttempt(ctx, fresh))

	got, err := repo.ListStuckAttempts(ctx, time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stuck.ID, got[0].ID)
}

func TestPaymentAttemptGuard(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	bookingID := uuid.New()
	now := time.Now().UTC()
	pa := &domain.PaymentAttempt{
		ID:        uuid.New(),
		BookingID: bookingID,
		Phone:     "254712345678",
		Amount:    20,
		State:     domain.PaymentInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.SavePaymentAttempt(ctx, pa))

	inflight, err := repo.FindInFlightPayment(ctx, bookingID)
	require.NoError(t, err)
	require.NotNil(t, inflight)
	assert.Equal(t, pa.ID, inflight.ID)

	pa.TransactionID = "ws_CO_1"
	pa.State = domain.PaymentConfirmed
	pa.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.UpdatePaymentAttempt(ctx, pa))

	inflight, err = repo.FindInFlightPayment(ctx, bookingID)
	require.NoError(t, err)
	assert.Nil(t, inflight, "terminal attempts do not block new pushes")

	byTxn, err := repo.GetPaymentByTransaction(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, byTxn.State)
}
