package domain

import "github.com/google/uuid"

// Space is a rentable unit from the external space catalog. Availability is a
// projection of "no active confirmed booking occupies this space" and is only
// written by the orchestrator's commit step and the reconciliation pass.
type Space struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Location     string
	PricePerHour float64
	PricePerDay  float64
	Available    bool
	ImageURL     string
}

type RateUnit string

const (
	RateHourly RateUnit = "hour"
	RateDaily  RateUnit = "day"
)

// Rate returns the price for one unit of the given granularity.
func (s Space) Rate(unit RateUnit) float64 {
	if unit == RateDaily {
		return s.PricePerDay
	}
	return s.PricePerHour
}
