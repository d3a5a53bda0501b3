package booking

import (
	"math"
	"time"

	"github.com/iliyamo/parkease/internal/model"
)

// Policy holds the fee and timing parameters.
type Policy struct {
	FreeWindow            time.Duration
	HardCutoff            time.Duration
	BillingUnit           time.Duration
	ReservationRateFactor float64
	NoShowFee             bool
}

// DefaultPolicy is a 10 minute free window, a 30 minute cutoff and 15
// minute billing.
var DefaultPolicy = Policy{
	FreeWindow:            10 * time.Minute,
	HardCutoff:            30 * time.Minute,
	BillingUnit:           15 * time.Minute,
	ReservationRateFactor: 1,
	NoShowFee:             true,
}

// Billed rounds d up to whole billing units, with a minimum of one unit.
func (p Policy) Billed(d time.Duration) time.Duration {
	unit := p.BillingUnit
	if unit <= 0 {
		unit = time.Minute
	}
	if d <= 0 {
		return unit
	}
	n := (d + unit - 1) / unit
	return n * unit
}

func charge(rate model.Money, factor float64, d time.Duration) model.Money {
	return model.Money(math.Round(float64(rate) * factor * d.Hours()))
}

// ParkingFee is the hourly rate applied to the billed parking duration.
func (p Policy) ParkingFee(rate model.Money, parked time.Duration) model.Money {
	return charge(rate, 1, p.Billed(parked))
}

// ReservationFee is zero when the driver arrived inside the free window and
// otherwise the rate times the factor over the whole billed reserved time.
func (p Policy) ReservationFee(rate model.Money, reserved time.Duration) model.Money {
	if reserved <= p.FreeWindow {
		return 0
	}
	return charge(rate, p.ReservationRateFactor, p.Billed(reserved))
}

// NoShowCharge is what an expired reservation costs, zero when the no-show
// fee is disabled.
func (p Policy) NoShowCharge(rate model.Money) model.Money {
	if !p.NoShowFee {
		return 0
	}
	return p.ReservationFee(rate, p.HardCutoff)
}

// Expired reports whether a reservation made at reservedAt is past the
// cutoff at now.
func (p Policy) Expired(reservedAt, now time.Time) bool {
	return now.Sub(reservedAt) > p.HardCutoff
}
