package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending         BookingStatus = "Pending"
	BookingAwaitingPayment BookingStatus = "AwaitingPayment"
	BookingConfirmed       BookingStatus = "Confirmed"
	BookingFailed          BookingStatus = "Failed"
	BookingCancelled       BookingStatus = "Cancelled"
)

// Terminal reports whether no further automatic transition applies.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingFailed || s == BookingCancelled
}

type Booking struct {
	ID      uuid.UUID
	SpaceID uuid.UUID
	UserID  uuid.UUID
	Start   time.Time
	End     time.Time
	Amount  float64
	Status  BookingStatus
}

// Active reports whether the booking still occupies its space: confirmed and
// not yet ended. Used by the reconciliation pass when recomputing availability.
func (b Booking) Active(now time.Time) bool {
	return b.Status == BookingConfirmed && b.End.After(now)
}

// TotalAmount computes duration × applicable rate for a reservation.
func TotalAmount(s Space, unit RateUnit, duration int) float64 {
	return s.Rate(unit) * float64(duration)
}
