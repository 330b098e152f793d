// Package donate implements the contribution flow: amount selection, then
// payment confirmation through the gateway.
package donate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PresetAmountsUSD are the one-click donation choices, in dollars.
var PresetAmountsUSD = []int64{5, 10, 20}

// ErrInvalidAmount is returned for empty, non-numeric, or non-positive
// amounts. It is raised locally, before any network call.
var ErrInvalidAmount = errors.New("invalid donation amount")

// ParseAmountCents converts a user-entered dollar amount into whole cents.
// Currency decoration is tolerated ("$25.50", "1,000"), at most two decimal
// places are accepted, and the result must be positive.
func ParseAmountCents(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	if dot := strings.Index(cleaned, "."); dot != -1 && len(cleaned)-dot-1 > 2 {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, raw)
	}
	dollars, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if dollars <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return int64(math.Round(dollars * 100)), nil
}

// FormatUSD renders cents as a dollar string, e.g. 2550 → "$25.50".
func FormatUSD(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
