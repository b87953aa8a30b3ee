// Package ledger applies deliveries and counted closings to stock lines and
// derives the stock summary from them.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/units"
)

func DisplayName(brandName string, volumeML int, packSizeCase int) string {
	return fmt.Sprintf("%s %dml/%d", brandName, volumeML, packSizeCase)
}

// Valuation prices a delivered line at MRP. Without an MRP the rates are
// unknown and the delivery adds no value.
type Valuation struct {
	UnitRate    decimal.NullDecimal
	RatePerCase decimal.NullDecimal
	Amount      decimal.Decimal
}

func Value(item domain.InvoiceLine, mrp decimal.NullDecimal) Valuation {
	if !mrp.Valid {
		return Valuation{Amount: decimal.Zero}
	}
	v := Valuation{UnitRate: mrp}
	if item.PackSizeCase != 0 {
		v.RatePerCase = decimal.NewNullDecimal(mrp.Decimal.Mul(decimal.NewFromInt(int64(item.PackSizeCase))))
	}
	bottles := units.ToTotalBottles(item.CasesDelivered, item.BottlesDelivered, item.PackSizeCase)
	v.Amount = mrp.Decimal.Mul(decimal.NewFromInt(int64(bottles)))
	return v
}

func NewLineFromDelivery(item domain.InvoiceLine, mrp decimal.NullDecimal, invoiceDate string, at time.Time) domain.StockLine {
	v := Value(item, mrp)
	return domain.StockLine{
		BrandNumber:         item.BrandNumber,
		BrandName:           item.BrandName,
		ProductType:         item.ProductType,
		PackType:            item.PackType,
		PackSizeCase:        item.PackSizeCase,
		PackSizeQuantityML:  item.PackSizeQuantityML,
		TotalCases:          item.CasesDelivered,
		TotalBottles:        item.BottlesDelivered,
		RatePerCase:         v.RatePerCase,
		UnitRatePerBottle:   v.UnitRate,
		TotalAmount:         v.Amount,
		LastInvoiceDate:     invoiceDate,
		LastUpdatedItemName: DisplayName(item.BrandName, item.PackSizeQuantityML, item.PackSizeCase),
		UpdatedAt:           at,
	}
}

// ApplyDelivery adds a delivered invoice line to an existing stock line.
// Delivered loose bottles are accumulated as is; the next closing count
// normalizes them.
func ApplyDelivery(line *domain.StockLine, item domain.InvoiceLine, mrp decimal.NullDecimal, invoiceDate string, at time.Time) {
	v := Value(item, mrp)
	line.TotalCases += item.CasesDelivered
	line.TotalBottles += item.BottlesDelivered
	line.TotalAmount = line.TotalAmount.Add(v.Amount)
	if v.UnitRate.Valid {
		line.UnitRatePerBottle = v.UnitRate
	}
	if v.RatePerCase.Valid {
		line.RatePerCase = v.RatePerCase
	}
	line.LastInvoiceDate = invoiceDate
	line.LastUpdatedItemName = DisplayName(item.BrandName, item.PackSizeQuantityML, item.PackSizeCase)
	line.UpdatedAt = at
}

// ApplyClosing replaces the holding of a line with a counted closing,
// normalized so that loose bottles stay below one case.
func ApplyClosing(line *domain.StockLine, closingCases int, closingBottles int, unitRate decimal.NullDecimal, at time.Time) {
	pack := line.PackSizeCase
	closingTotal := units.ToTotalBottles(closingCases, closingBottles, pack)
	line.TotalCases, line.TotalBottles = units.SplitBottles(closingTotal, pack)
	switch {
	case unitRate.Valid:
		line.TotalAmount = unitRate.Decimal.Mul(decimal.NewFromInt(int64(closingTotal)))
	case line.RatePerCase.Valid:
		line.TotalAmount = line.RatePerCase.Decimal.Mul(decimal.NewFromInt(int64(line.TotalCases)))
	}
	line.LastUpdatedItemName = DisplayName(line.BrandName, line.PackSizeQuantityML, pack)
	line.UpdatedAt = at
}

// ApplyManualCount sets a line to a whole number of counted cases.
func ApplyManualCount(line *domain.StockLine, availableCases int, at time.Time) {
	ApplyClosing(line, availableCases, 0, line.UnitRatePerBottle, at)
}

// ComputeSummary aggregates every stock line. The last touched line is the
// most recently updated one.
func ComputeSummary(lines []domain.StockLine, at time.Time) domain.StockSummary {
	summary := domain.StockSummary{TotalPriceAllItems: decimal.Zero, UpdatedAt: at}
	var last *domain.StockLine
	for i := range lines {
		l := &lines[i]
		summary.TotalCasesAllItems += l.TotalCases
		summary.TotalPriceAllItems = summary.TotalPriceAllItems.Add(l.TotalAmount)
		if l.LastUpdatedItemName == "" {
			continue
		}
		if last == nil || !l.UpdatedAt.Before(last.UpdatedAt) {
			last = l
		}
	}
	if last != nil {
		summary.LastUpdatedItemName = last.LastUpdatedItemName
	}
	return summary
}
