package domain

import (
	"fmt"
	"math"
)

// Prices move through the engine as int64 cents. Instrument tick sizes
// and price bounds are cents as well, so every comparison in matching,
// stop triggering, and P&L is exact integer arithmetic. Floats exist
// only at the API edge, where these two conversions live.

// DollarsToCents converts a dollar price from a request into engine
// cents. Sub-cent precision is rejected: no instrument tick can
// represent it. The value is scaled to tenths of a cent first so a
// third decimal place shows up as a non-zero remainder, with math.Round
// absorbing float representation artifacts (1.10 arrives as 1.0999...).
func DollarsToCents(dollars float64) (int64, error) {
	tenthsOfCent := math.Round(dollars * 1000)
	if math.Mod(tenthsOfCent, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return int64(math.Round(dollars * 100)), nil
}

// CentsToDollars converts an engine price back to dollars for
// responses.
func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
