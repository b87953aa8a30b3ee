// Package units holds the case/bottle arithmetic and the date and amount parsing shared by
// the stock ledger, the sell-report engine and finance settlement.
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// MaxQuantity bounds any single case or bottle count. It matches the INTEGER
// columns of the stock and report tables.
const MaxQuantity = math.MaxInt32

var reportDateLayouts = []string{DateLayout, "02-Jan-2006", "02-Jan-06"}

var ErrInvalidDate = errors.New("invalid date")

// ToTotalBottles converts a case/loose-bottle pair into bottle equivalents.
func ToTotalBottles(cases, looseBottles, packSize int) int {
	return cases*packSize + looseBottles
}

// InRange reports whether every count lies in [0, MaxQuantity].
func InRange(counts ...int) bool {
	for _, n := range counts {
		if n < 0 || n > MaxQuantity {
			return false
		}
	}
	return true
}

// SplitBottles is the inverse of ToTotalBottles. A non-positive pack size keeps every bottle
// loose.
func SplitBottles(totalBottles, packSize int) (cases int, looseBottles int) {
	if packSize <= 0 {
		return 0, totalBottles
	}
	return totalBottles / packSize, totalBottles % packSize
}

// ParseReportDate accepts 2025-01-31, 31-Jan-2025 and 31-Jan-25.
func ParseReportDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range reportDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, value)
}

// NormalizeDate parses raw with ParseReportDate and returns the canonical form.
func NormalizeDate(raw string) (string, error) {
	parsed, err := ParseReportDate(raw)
	if err != nil {
		return "", err
	}
	return FormatDate(parsed), nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseAmount parses a money amount, tolerating thousands separators. Blank input is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
