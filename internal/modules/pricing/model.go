// README: Pricing rate definition for each service type.
package pricing

import "roadside/internal/types"

type Rate struct {
	BasePrice      float64
	PricePerKm     float64
	PricePerMinute float64
	MinimumCharge  float64
}

// Table maps each service type to its rate. Lookups of unknown types are programmer errors.
type Table map[types.ServiceType]Rate

// DefaultTable returns the built-in rate card (major currency units).
func DefaultTable() Table {
	return Table{
		types.ServiceTow:              {BasePrice: 50, PricePerKm: 2.5, PricePerMinute: 0.7, MinimumCharge: 70},
		types.ServiceLockout:          {BasePrice: 30, PricePerKm: 1.0, PricePerMinute: 0.5, MinimumCharge: 40},
		types.ServiceBatteryJump:      {BasePrice: 25, PricePerKm: 1.0, PricePerMinute: 0.5, MinimumCharge: 35},
		types.ServiceFuelDelivery:     {BasePrice: 25, PricePerKm: 1.2, PricePerMinute: 0.5, MinimumCharge: 35},
		types.ServiceTireChange:       {BasePrice: 20, PricePerKm: 1.5, PricePerMinute: 0.5, MinimumCharge: 35},
		types.ServiceJumpStart:        {BasePrice: 25, PricePerKm: 1.0, PricePerMinute: 0.5, MinimumCharge: 35},
		types.ServiceElectricCharging: {BasePrice: 40, PricePerKm: 1.5, PricePerMinute: 0.6, MinimumCharge: 55},
		types.ServiceCarRepair:        {BasePrice: 45, PricePerKm: 2.0, PricePerMinute: 0.8, MinimumCharge: 60},
		types.ServiceCustom:           {BasePrice: 35, PricePerKm: 1.5, PricePerMinute: 0.6, MinimumCharge: 45},
	}
}

// Merge returns a copy of t with entries from overrides replacing matching keys.
func (t Table) Merge(overrides Table) Table {
	out := make(Table, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
