// Package reconcile derives sell-report rows from a stock line's history and
// settles the cash for a report date. It performs no I/O.
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/units"
)

// Window is the opening balance of a stock line and the cutoff after which
// invoice deliveries count as additions. Since is nil for a line that was
// never reported.
type Window struct {
	OpeningCases   int
	OpeningBottles int
	Since          *time.Time
	LastReportDate string
}

func OpeningWindow(previous *domain.SellReport) Window {
	if previous == nil {
		return Window{}
	}
	since := previous.CreatedAt
	return Window{
		OpeningCases:   previous.ClosingCases,
		OpeningBottles: previous.ClosingBottles,
		Since:          &since,
		LastReportDate: previous.ReportDate,
	}
}

// Totals is the stock available before the closing count.
type Totals struct {
	OpeningCases   int
	OpeningBottles int
	AddedCases     int
	AddedBottles   int
	// TotalCases is the raw sum of opening and added cases.
	TotalCases int
	// TotalBottles is the bottle equivalent of opening plus added.
	TotalBottles int
}

func Available(w Window, added domain.Additions, pack int) Totals {
	return Totals{
		OpeningCases:   w.OpeningCases,
		OpeningBottles: w.OpeningBottles,
		AddedCases:     added.Cases,
		AddedBottles:   added.Bottles,
		TotalCases:     w.OpeningCases + added.Cases,
		TotalBottles: units.ToTotalBottles(w.OpeningCases, w.OpeningBottles, pack) +
			units.ToTotalBottles(added.Cases, added.Bottles, pack),
	}
}

type Input struct {
	Line           domain.StockLine
	Previous       *domain.SellReport
	Added          domain.Additions
	ClosingCases   int
	ClosingBottles int
}

type Result struct {
	Totals
	ClosingCases        int
	ClosingBottles      int
	ClosingTotalBottles int
	SoldTotalBottles    int
	SoldCases           int
	SoldBottles         int
	UnitRate            decimal.NullDecimal
	SellAmount          decimal.NullDecimal
}

// ConsistencyError is returned when the closing count exceeds the stock that
// was available.
type ConsistencyError struct {
	StockID        int64
	Totals         Totals
	ClosingCases   int
	ClosingBottles int
	PackSizeCase   int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("closing stock exceeds total stock for stock_id %d", e.StockID)
}

// Breakdown is the full computation, enough to redo it by hand.
func (e *ConsistencyError) Breakdown() map[string]any {
	return map[string]any{
		"stock_id":              e.StockID,
		"opening_cases":         e.Totals.OpeningCases,
		"opening_bottles":       e.Totals.OpeningBottles,
		"invoice_added_cases":   e.Totals.AddedCases,
		"invoice_added_bottles": e.Totals.AddedBottles,
		"total_cases":           e.Totals.TotalCases,
		"total_bottles":         e.Totals.TotalBottles,
		"closing_cases":         e.ClosingCases,
		"closing_bottles":       e.ClosingBottles,
		"pack_size_case":        e.PackSizeCase,
	}
}

// UnitRate is the per-bottle rate of a line, derived from the case rate when
// only that is known.
func UnitRate(line domain.StockLine) decimal.NullDecimal {
	if line.UnitRatePerBottle.Valid {
		return line.UnitRatePerBottle
	}
	if line.RatePerCase.Valid && !line.RatePerCase.Decimal.IsZero() && line.PackSizeCase > 0 {
		return decimal.NewNullDecimal(line.RatePerCase.Decimal.Div(decimal.NewFromInt(int64(line.PackSizeCase))))
	}
	return decimal.NullDecimal{}
}

func Compute(in Input) (Result, error) {
	if in.ClosingCases < 0 || in.ClosingBottles < 0 {
		return Result{}, fmt.Errorf("closing values cannot be negative")
	}
	if !units.InRange(in.ClosingCases, in.ClosingBottles) {
		return Result{}, fmt.Errorf("closing values cannot exceed %d", units.MaxQuantity)
	}
	pack := in.Line.PackSizeCase
	totals := Available(OpeningWindow(in.Previous), in.Added, pack)

	closingTotal := units.ToTotalBottles(in.ClosingCases, in.ClosingBottles, pack)
	sold := totals.TotalBottles - closingTotal
	if sold < 0 {
		return Result{}, &ConsistencyError{
			StockID:        in.Line.ID,
			Totals:         totals,
			ClosingCases:   in.ClosingCases,
			ClosingBottles: in.ClosingBottles,
			PackSizeCase:   pack,
		}
	}

	soldCases, soldBottles := units.SplitBottles(sold, pack)
	rate := UnitRate(in.Line)
	var amount decimal.NullDecimal
	if rate.Valid {
		amount = decimal.NewNullDecimal(rate.Decimal.Mul(decimal.NewFromInt(int64(sold))))
	}

	return Result{
		Totals:              totals,
		ClosingCases:        in.ClosingCases,
		ClosingBottles:      in.ClosingBottles,
		ClosingTotalBottles: closingTotal,
		SoldTotalBottles:    sold,
		SoldCases:           soldCases,
		SoldBottles:         soldBottles,
		UnitRate:            rate,
		SellAmount:          amount,
	}, nil
}

// Fill copies the computed quantities and amounts onto a report row.
func (r Result) Fill(row *domain.SellReport) {
	row.OpeningCases = r.OpeningCases
	row.OpeningBottles = r.OpeningBottles
	row.InvoiceAddedCases = r.AddedCases
	row.InvoiceAddedBottles = r.AddedBottles
	row.TotalCases = r.TotalCases
	row.TotalBottles = r.TotalBottles
	row.ClosingCases = r.ClosingCases
	row.ClosingBottles = r.ClosingBottles
	row.SoldCases = r.SoldCases
	row.SoldBottles = r.SoldBottles
	row.UnitRatePerBottle = r.UnitRate
	row.SellAmount = r.SellAmount
}

func NewReport(line domain.StockLine, r Result, reportDate string, createdBy string, at time.Time) domain.SellReport {
	row := domain.SellReport{
		StockID:            line.ID,
		BrandNumber:        line.BrandNumber,
		BrandName:          line.BrandName,
		PackSizeCase:       line.PackSizeCase,
		PackSizeQuantityML: line.PackSizeQuantityML,
		ReportDate:         reportDate,
		CreatedBy:          createdBy,
		CreatedAt:          at,
	}
	r.Fill(&row)
	return row
}
