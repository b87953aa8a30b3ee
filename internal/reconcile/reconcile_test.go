package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/units"
)

func line12(rate decimal.NullDecimal) domain.StockLine {
	return domain.StockLine{
		ID:                 1,
		BrandNumber:        "5016",
		BrandName:          "Royal Stag",
		PackSizeCase:       12,
		PackSizeQuantityML: 750,
		UnitRatePerBottle:  rate,
	}
}

func TestComputeFirstReportCountsAllDeliveries(t *testing.T) {
	res, err := Compute(Input{
		Line:           line12(decimal.NewNullDecimal(decimal.NewFromInt(100))),
		Added:          domain.Additions{Cases: 5, Bottles: 3},
		ClosingCases:   4,
		ClosingBottles: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.OpeningCases)
	assert.Equal(t, 0, res.OpeningBottles)
	assert.Equal(t, 5, res.TotalCases)
	assert.Equal(t, 63, res.TotalBottles)
	assert.Equal(t, 53, res.ClosingTotalBottles)
	assert.Equal(t, 10, res.SoldTotalBottles)
	assert.Equal(t, 0, res.SoldCases)
	assert.Equal(t, 10, res.SoldBottles)
	require.True(t, res.SellAmount.Valid)
	assert.True(t, res.SellAmount.Decimal.Equal(decimal.NewFromInt(1000)))
}

func TestComputeNoSaleIsPricedAtZero(t *testing.T) {
	res, err := Compute(Input{
		Line:           line12(decimal.NewNullDecimal(decimal.NewFromInt(100))),
		Added:          domain.Additions{Cases: 5, Bottles: 3},
		ClosingCases:   5,
		ClosingBottles: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SoldTotalBottles)
	assert.Equal(t, 0, res.SoldCases)
	assert.Equal(t, 0, res.SoldBottles)
	require.True(t, res.SellAmount.Valid)
	assert.True(t, res.SellAmount.Decimal.IsZero())
}

func TestComputeClosingFiveCasesSellsLooseBottles(t *testing.T) {
	res, err := Compute(Input{
		Line:         line12(decimal.NullDecimal{}),
		Added:        domain.Additions{Cases: 5, Bottles: 3},
		ClosingCases: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SoldTotalBottles)
	assert.False(t, res.SellAmount.Valid, "no rate known must leave the amount unpriced")
}

func TestComputeRejectsClosingAboveAvailable(t *testing.T) {
	_, err := Compute(Input{
		Line:         line12(decimal.NullDecimal{}),
		Added:        domain.Additions{Cases: 5, Bottles: 3},
		ClosingCases: 6,
	})
	var consistency *ConsistencyError
	require.True(t, errors.As(err, &consistency))

	breakdown := consistency.Breakdown()
	assert.Equal(t, int64(1), breakdown["stock_id"])
	assert.Equal(t, 0, breakdown["opening_cases"])
	assert.Equal(t, 5, breakdown["invoice_added_cases"])
	assert.Equal(t, 3, breakdown["invoice_added_bottles"])
	assert.Equal(t, 5, breakdown["total_cases"])
	assert.Equal(t, 63, breakdown["total_bottles"])
	assert.Equal(t, 6, breakdown["closing_cases"])
	assert.Equal(t, 12, breakdown["pack_size_case"])
	assert.Contains(t, err.Error(), "stock_id 1")
}

func TestComputeOpensFromPreviousClosing(t *testing.T) {
	prevAt := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)
	prev := &domain.SellReport{ReportDate: "2025-01-01", ClosingCases: 2, ClosingBottles: 14, CreatedAt: prevAt}

	w := OpeningWindow(prev)
	require.NotNil(t, w.Since)
	assert.Equal(t, prevAt, *w.Since)
	assert.Equal(t, "2025-01-01", w.LastReportDate)

	res, err := Compute(Input{
		Line:         line12(decimal.NullDecimal{}),
		Previous:     prev,
		Added:        domain.Additions{Cases: 1},
		ClosingCases: 3,
	})
	require.NoError(t, err)
	// total_cases is the raw case sum; total_bottles counts the 14 loose bottles.
	assert.Equal(t, 3, res.TotalCases)
	assert.Equal(t, 2*12+14+12, res.TotalBottles)
	assert.Equal(t, 14, res.SoldTotalBottles)
	assert.Equal(t, 1, res.SoldCases)
	assert.Equal(t, 2, res.SoldBottles)
}

func TestComputeRejectsNegativeClosing(t *testing.T) {
	_, err := Compute(Input{Line: line12(decimal.NullDecimal{}), ClosingCases: -1})
	require.Error(t, err)
	var consistency *ConsistencyError
	assert.False(t, errors.As(err, &consistency))
}

func TestComputeRejectsClosingAboveQuantityBound(t *testing.T) {
	for _, in := range []Input{
		{Line: line12(decimal.NullDecimal{}), ClosingCases: 1537228672809129300},
		{Line: line12(decimal.NullDecimal{}), ClosingCases: 1, ClosingBottles: units.MaxQuantity + 1},
	} {
		_, err := Compute(in)
		require.Error(t, err)
		var consistency *ConsistencyError
		assert.False(t, errors.As(err, &consistency), "overflowing closings must not reach the stock comparison")
	}

	_, err := Compute(Input{Line: line12(decimal.NullDecimal{}), ClosingCases: units.MaxQuantity})
	var consistency *ConsistencyError
	assert.True(t, errors.As(err, &consistency), "the largest count is compared against available stock")
}

func TestUnitRateFallsBackToCaseRate(t *testing.T) {
	l := line12(decimal.NullDecimal{})
	l.RatePerCase = decimal.NewNullDecimal(decimal.NewFromInt(1200))
	rate := UnitRate(l)
	require.True(t, rate.Valid)
	assert.True(t, rate.Decimal.Equal(decimal.NewFromInt(100)))

	l.PackSizeCase = 0
	assert.False(t, UnitRate(l).Valid)

	l.PackSizeCase = 12
	l.RatePerCase = decimal.NewNullDecimal(decimal.Zero)
	assert.False(t, UnitRate(l).Valid)
}

func TestFillAndNewReport(t *testing.T) {
	l := line12(decimal.NewNullDecimal(decimal.NewFromInt(50)))
	res, err := Compute(Input{Line: l, Added: domain.Additions{Cases: 2}, ClosingCases: 1, ClosingBottles: 6})
	require.NoError(t, err)

	at := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	row := NewReport(l, res, "2025-01-02", "supervisor", at)
	assert.Equal(t, l.ID, row.StockID)
	assert.Equal(t, "5016", row.BrandNumber)
	assert.Equal(t, 2, row.InvoiceAddedCases)
	assert.Equal(t, 6, row.SoldBottles)
	assert.Equal(t, 0, row.EditCount)
	assert.True(t, row.SellAmount.Decimal.Equal(decimal.NewFromInt(300)))
}

func TestGroupState(t *testing.T) {
	group := []domain.SellReport{{ReportDate: "2025-01-02"}, {ReportDate: "2025-01-02"}}
	assert.Equal(t, domain.ReportOpen, GroupState(group, "2025-01-02"))
	assert.Equal(t, domain.ReportSealed, GroupState(group, "2025-01-03"))
	assert.Equal(t, domain.ReportSealed, GroupState(nil, "2025-01-02"))

	group[1].EditCount = 1
	assert.Equal(t, domain.ReportSealed, GroupState(group, "2025-01-02"))
}

func TestSettleCarriesBalanceForward(t *testing.T) {
	day1 := Settle(SettleInput{
		ReportDate:      "2025-01-01",
		TotalSellAmount: decimal.NewFromInt(1000),
		PhonePay:        []domain.MoneyEntry{{Date: "2025-01-01", Amount: decimal.NewFromInt(700)}},
		Cash:            []domain.MoneyEntry{{Date: "2025-01-01", Amount: decimal.NewFromInt(500)}},
		Expenses:        []domain.Expense{{Name: "ice", Amount: decimal.NewFromInt(50)}},
	})
	assert.True(t, day1.TotalAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, day1.TotalBalance.Equal(decimal.NewFromInt(200)))
	assert.True(t, day1.TotalExpenses.Equal(decimal.NewFromInt(50)))
	assert.True(t, day1.FinalBalance.Equal(decimal.NewFromInt(150)))

	day2 := Settle(SettleInput{
		ReportDate:      "2025-01-02",
		TotalSellAmount: decimal.NewFromInt(400),
		LastBalance:     day1.FinalBalance,
	})
	assert.True(t, day2.LastBalanceAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, day2.TotalAmount.Equal(decimal.NewFromInt(550)))
	assert.True(t, day2.TotalBalance.Equal(decimal.NewFromInt(-550)))
	assert.NotNil(t, day2.PhonePayEntries)
	assert.NotNil(t, day2.Expenses)
}

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := units.ParseReportDate(raw)
	require.NoError(t, err)
	return d
}

func TestNormalizeEntriesValidatesWindow(t *testing.T) {
	bounds := EntryWindow(mustDate(t, "2025-01-05"), "2025-01-03")
	assert.Equal(t, "previous sell report date", bounds.FromLabel)

	entries, total, err := NormalizeEntries("phonepay", []domain.FinanceEntryInput{
		{Date: "03-Jan-2025", Amount: domain.NewFlexValue("1,200.50")},
		{},
		{TxnDate: "2025-01-05", Amount: domain.NewFlexValue("100")},
	}, bounds)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2025-01-03", entries[0].Date)
	assert.True(t, total.Equal(decimal.RequireFromString("1300.50")))

	_, _, err = NormalizeEntries("phonepay", []domain.FinanceEntryInput{
		{Date: "2025-01-04", Amount: domain.NewFlexValue("1")},
		{Amount: domain.NewFlexValue("5")},
	}, bounds)
	assert.EqualError(t, err, "VALIDATION_ERROR: phonepay entry #2 date is required")

	_, _, err = NormalizeEntries("cash", []domain.FinanceEntryInput{{Date: "yesterday", Amount: domain.NewFlexValue("5")}}, bounds)
	assert.EqualError(t, err, "VALIDATION_ERROR: invalid cash date format in entry #1: yesterday")

	_, _, err = NormalizeEntries("phonepay", []domain.FinanceEntryInput{{Date: "2025-01-01", Amount: domain.NewFlexValue("5")}}, bounds)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDateRange))
	assert.Contains(t, err.Error(), "phonepay date must be on or after previous sell report date: 2025-01-03")

	_, _, err = NormalizeEntries("cash", []domain.FinanceEntryInput{{Date: "2025-01-06", Amount: domain.NewFlexValue("5")}}, bounds)
	assert.Contains(t, err.Error(), "cash date must be on or before selected sell report date: 2025-01-05")

	_, _, err = NormalizeEntries("cash", []domain.FinanceEntryInput{{Date: "2025-01-05", Amount: domain.NewFlexValue("lots")}}, bounds)
	assert.EqualError(t, err, "VALIDATION_ERROR: cash entry #1 amount must be a number")
}

func TestEntryWindowWithoutPreviousReport(t *testing.T) {
	bounds := EntryWindow(mustDate(t, "2025-01-05"), "")
	assert.Equal(t, "selected sell report date", bounds.FromLabel)
	assert.Equal(t, bounds.To, bounds.From)
}

func TestLegacyEntries(t *testing.T) {
	got := LegacyEntries(nil, domain.NewFlexValue("250"), "2025-01-05")
	require.Len(t, got, 1)
	assert.Equal(t, "2025-01-05", got[0].Date)

	assert.Empty(t, LegacyEntries(nil, domain.NewFlexValue("0.0"), "2025-01-05"))
	assert.Empty(t, LegacyEntries(nil, domain.FlexValue{}, "2025-01-05"))

	explicit := []domain.FinanceEntryInput{{Date: "2025-01-04", Amount: domain.NewFlexValue("1")}}
	assert.Equal(t, explicit, LegacyEntries(explicit, domain.NewFlexValue("250"), "2025-01-05"))
}

func TestNormalizeExpenses(t *testing.T) {
	expenses, total, err := NormalizeExpenses([]domain.ExpenseInput{
		{Name: " ice ", Amount: domain.NewFlexValue("40")},
		{Name: "", Amount: domain.NewFlexValue("999")},
		{Name: "tea", Amount: domain.FlexValue{}},
	})
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "ice", expenses[0].Name)
	assert.True(t, total.Equal(decimal.NewFromInt(40)))

	_, _, err = NormalizeExpenses([]domain.ExpenseInput{{Name: "ice", Amount: domain.NewFlexValue("x")}})
	assert.EqualError(t, err, "VALIDATION_ERROR: expense amount must be a number")
}

func TestSurfaceLegacy(t *testing.T) {
	f := domain.Finance{ReportDate: "2025-01-05", UPIPhonePay: decimal.NewFromInt(10)}
	SurfaceLegacy(&f)
	require.Len(t, f.PhonePayEntries, 1)
	assert.Equal(t, "2025-01-05", f.PhonePayEntries[0].Date)
	assert.Empty(t, f.CashEntries)
	assert.NotNil(t, f.CashEntries)
}
