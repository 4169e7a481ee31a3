package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentState string

const (
	PaymentInitiated  PaymentState = "Initiated"
	PaymentProcessing PaymentState = "Processing"
	PaymentConfirmed  PaymentState = "Confirmed"
	PaymentFailed     PaymentState = "Failed"
	PaymentTimedOut   PaymentState = "TimedOut"
)

func (s PaymentState) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentFailed || s == PaymentTimedOut
}

// PaymentAttempt is one push-payment request correlated to a booking. The
// booking id doubles as the correlation id sent to the provider. An attempt is
// immutable once its state is terminal.
type PaymentAttempt struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Phone         string
	Amount        float64
	TransactionID string
	State         PaymentState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
