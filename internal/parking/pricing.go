package parking

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultTwoWheelerRate   = 10.0
	DefaultFourWheelerRate  = 20.0
	DefaultHeavyVehicleRate = 40.0
	DefaultMinimumCharge    = 5.0

	minimumChargeWindow = 30 * time.Minute
)

// PricingStrategy turns a stay into a fee.
type PricingStrategy interface {
	Price(class VehicleClass, elapsed time.Duration) (float64, error)
}

// DefaultPricing bills each started hour at the class's hourly rate, with a
// flat minimum charge for stays shorter than half an hour.
type DefaultPricing struct {
	Rates         map[VehicleClass]float64
	MinimumCharge float64
}

func NewDefaultPricing() *DefaultPricing {
	return &DefaultPricing{
		Rates: map[VehicleClass]float64{
			TwoWheeler:   DefaultTwoWheelerRate,
			FourWheeler:  DefaultFourWheelerRate,
			HeavyVehicle: DefaultHeavyVehicleRate,
		},
		MinimumCharge: DefaultMinimumCharge,
	}
}

func (p *DefaultPricing) Price(class VehicleClass, elapsed time.Duration) (float64, error) {
	if elapsed < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, elapsed)
	}

	rate, ok := p.Rates[class]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVehicleClass, class)
	}

	// Billing works on whole elapsed minutes.
	minutes := elapsed.Truncate(time.Minute)
	if minutes < minimumChargeWindow {
		return roundCents(p.MinimumCharge), nil
	}

	hours := math.Ceil(minutes.Minutes() / 60.0)
	return roundCents(rate * hours), nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
