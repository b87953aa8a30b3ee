package units

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTotalBottles(t *testing.T) {
	assert.Equal(t, 63, ToTotalBottles(5, 3, 12))
	assert.Equal(t, 0, ToTotalBottles(0, 0, 12))
	assert.Equal(t, 7, ToTotalBottles(4, 7, 0))
}

func TestSplitBottlesDegeneratePack(t *testing.T) {
	cases, loose := SplitBottles(10, 0)
	assert.Equal(t, 0, cases)
	assert.Equal(t, 10, loose)

	cases, loose = SplitBottles(10, -4)
	assert.Equal(t, 0, cases)
	assert.Equal(t, 10, loose)
}

func TestSplitBottlesInvertsToTotalBottles(t *testing.T) {
	for _, pack := range []int{1, 6, 12, 24, 48} {
		for cases := 0; cases < 20; cases++ {
			for loose := 0; loose < pack; loose++ {
				gotCases, gotLoose := SplitBottles(ToTotalBottles(cases, loose, pack), pack)
				require.Equal(t, [2]int{cases, loose}, [2]int{gotCases, gotLoose}, "pack=%d", pack)
			}
		}
	}
}

func TestInRange(t *testing.T) {
	assert.True(t, InRange())
	assert.True(t, InRange(0, 11, MaxQuantity))
	assert.False(t, InRange(1, -1))
	assert.False(t, InRange(MaxQuantity+1))
}

func TestParseReportDateFormats(t *testing.T) {
	for _, raw := range []string{"2025-01-31", " 31-Jan-2025 ", "31-Jan-25"} {
		parsed, err := ParseReportDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "2025-01-31", FormatDate(parsed), raw)
	}
}

func TestParseReportDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "31/01/2025", "2025-13-01", "yesterday"} {
		_, err := ParseReportDate(raw)
		assert.ErrorIs(t, err, ErrInvalidDate, raw)
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("1,250.50")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("1250.50")))

	amount, err = ParseAmount("  ")
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	_, err = ParseAmount("12abc")
	assert.Error(t, err)
}
