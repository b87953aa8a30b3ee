package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/backend/internal/domain"
)

var t0 = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func delivery(cases, bottles int) domain.InvoiceLine {
	return domain.InvoiceLine{
		BrandNumber:        "5016",
		BrandName:          "Royal Stag",
		PackType:           "G",
		PackSizeCase:       12,
		PackSizeQuantityML: 750,
		CasesDelivered:     cases,
		BottlesDelivered:   bottles,
	}
}

func TestNewLineFromDeliveryValuesAtMRP(t *testing.T) {
	line := NewLineFromDelivery(delivery(5, 3), decimal.NewNullDecimal(decimal.NewFromInt(100)), "2025-01-01", t0)

	assert.Equal(t, 5, line.TotalCases)
	assert.Equal(t, 3, line.TotalBottles)
	assert.True(t, line.UnitRatePerBottle.Decimal.Equal(decimal.NewFromInt(100)))
	assert.True(t, line.RatePerCase.Decimal.Equal(decimal.NewFromInt(1200)))
	assert.True(t, line.TotalAmount.Equal(decimal.NewFromInt(6300)))
	assert.Equal(t, "Royal Stag 750ml/12", line.LastUpdatedItemName)
	assert.Equal(t, "2025-01-01", line.LastInvoiceDate)
}

func TestApplyDeliveryAccumulatesRawBottles(t *testing.T) {
	line := NewLineFromDelivery(delivery(1, 10), decimal.NullDecimal{}, "2025-01-01", t0)
	assert.False(t, line.UnitRatePerBottle.Valid)
	assert.True(t, line.TotalAmount.IsZero())

	ApplyDelivery(&line, delivery(2, 5), decimal.NewNullDecimal(decimal.NewFromInt(10)), "2025-01-03", t0.Add(time.Hour))
	assert.Equal(t, 3, line.TotalCases)
	assert.Equal(t, 15, line.TotalBottles, "loose bottles are not normalized on delivery")
	assert.True(t, line.TotalAmount.Equal(decimal.NewFromInt(290)))
	assert.Equal(t, "2025-01-03", line.LastInvoiceDate)

	// A later delivery without a known MRP keeps the previous rates.
	ApplyDelivery(&line, delivery(1, 0), decimal.NullDecimal{}, "2025-01-04", t0.Add(2*time.Hour))
	assert.True(t, line.UnitRatePerBottle.Decimal.Equal(decimal.NewFromInt(10)))
	assert.True(t, line.TotalAmount.Equal(decimal.NewFromInt(290)))
}

func TestApplyClosingNormalizesLooseBottles(t *testing.T) {
	line := NewLineFromDelivery(delivery(5, 3), decimal.NewNullDecimal(decimal.NewFromInt(100)), "2025-01-01", t0)

	ApplyClosing(&line, 2, 27, line.UnitRatePerBottle, t0.Add(time.Hour))
	assert.Equal(t, 4, line.TotalCases)
	assert.Equal(t, 3, line.TotalBottles)
	assert.True(t, line.TotalAmount.Equal(decimal.NewFromInt(5100)))
}

func TestApplyClosingFallsBackToCaseRate(t *testing.T) {
	line := domain.StockLine{PackSizeCase: 12, RatePerCase: decimal.NewNullDecimal(decimal.NewFromInt(1200))}
	ApplyClosing(&line, 3, 4, decimal.NullDecimal{}, t0)
	assert.True(t, line.TotalAmount.Equal(decimal.NewFromInt(3600)))

	unpriced := domain.StockLine{PackSizeCase: 12, TotalAmount: decimal.NewFromInt(77)}
	ApplyClosing(&unpriced, 1, 0, decimal.NullDecimal{}, t0)
	assert.True(t, unpriced.TotalAmount.Equal(decimal.NewFromInt(77)), "amount is kept when no rate is known")
}

func TestApplyClosingDegeneratePack(t *testing.T) {
	line := domain.StockLine{PackSizeCase: 0}
	ApplyClosing(&line, 3, 4, decimal.NullDecimal{}, t0)
	assert.Equal(t, 0, line.TotalCases)
	assert.Equal(t, 4, line.TotalBottles)
}

func TestApplyManualCount(t *testing.T) {
	line := NewLineFromDelivery(delivery(5, 3), decimal.NewNullDecimal(decimal.NewFromInt(100)), "2025-01-01", t0)
	ApplyManualCount(&line, 2, t0.Add(time.Minute))
	assert.Equal(t, 2, line.TotalCases)
	assert.Equal(t, 0, line.TotalBottles)
	assert.True(t, line.TotalAmount.Equal(decimal.NewFromInt(2400)))
}

func TestComputeSummaryIsPureAndPicksLastTouched(t *testing.T) {
	lines := []domain.StockLine{
		{TotalCases: 4, TotalAmount: decimal.NewFromInt(100), LastUpdatedItemName: "B", UpdatedAt: t0.Add(time.Hour)},
		{TotalCases: 1, TotalAmount: decimal.NewFromInt(50), LastUpdatedItemName: "A", UpdatedAt: t0},
		{TotalCases: 2, TotalAmount: decimal.NewFromInt(25)},
	}
	first := ComputeSummary(lines, t0)
	second := ComputeSummary(lines, t0)
	require.Equal(t, first, second)

	assert.Equal(t, 7, first.TotalCasesAllItems)
	assert.True(t, first.TotalPriceAllItems.Equal(decimal.NewFromInt(175)))
	assert.Equal(t, "B", first.LastUpdatedItemName)

	empty := ComputeSummary(nil, t0)
	assert.Equal(t, 0, empty.TotalCasesAllItems)
	assert.Equal(t, "", empty.LastUpdatedItemName)
}
