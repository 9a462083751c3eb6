// README: Pricing service computes service cost estimates from travel distance and time.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"roadside/internal/types"
)

var ErrUnknownServiceType = errors.New("unknown service type in pricing table")

type Service struct {
	table    Table
	currency string
}

func NewService(table Table, currency string) *Service {
	return &Service{table: table, currency: currency}
}

// Estimate returns max(base + km*perKm + min*perMinute, minimumCharge).
// It is pure: no I/O and no clock.
func (s *Service) Estimate(serviceType types.ServiceType, distanceKm, durationMin float64) (types.Money, error) {
	rate, ok := s.table[serviceType]
	if !ok {
		return types.Money{}, fmt.Errorf("%w: %q", ErrUnknownServiceType, serviceType)
	}
	raw := rate.BasePrice + distanceKm*rate.PricePerKm + durationMin*rate.PricePerMinute
	return types.MoneyFromMajor(math.Max(raw, rate.MinimumCharge), s.currency), nil
}

// KmFromMeters converts meters to kilometres rounded to two decimals.
func KmFromMeters(m float64) float64 {
	return math.Round(m/1000*100) / 100
}

// MinutesFromSeconds converts seconds to fractional minutes.
func MinutesFromSeconds(s float64) float64 {
	return s / 60
}
