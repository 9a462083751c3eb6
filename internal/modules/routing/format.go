package routing

import (
	"fmt"
	"math"
)

// FormatDistance renders meters as "850 m" below one kilometre, otherwise "12.3 km".
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int64(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds as whole minutes rounded up.
func FormatDuration(seconds float64) string {
	mins := int64(math.Ceil(seconds / 60))
	if mins < 1 {
		mins = 1
	}
	if mins < 60 {
		return plural(mins, "min")
	}
	hrs, rem := mins/60, mins%60
	if rem == 0 {
		return plural(hrs, "hr")
	}
	return plural(hrs, "hr") + " " + plural(rem, "min")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
