// README: Common money value object used across modules.
package types

import "math"

// Money is an amount in minor currency units (paise, cents).
type Money struct {
	Amount   int64
	Currency string
}

// MoneyFromMajor rounds a major-unit amount to the nearest minor unit.
func MoneyFromMajor(v float64, currency string) Money {
	return Money{Amount: int64(math.Round(v * 100)), Currency: currency}
}

// Major returns the amount in major units.
func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}
