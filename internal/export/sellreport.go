// Package export renders stored records as spreadsheets for download.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/service"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sellReportSheet = "Sell Report"
	itemsHeaderRow  = 4
)

var itemHeadings = []string{
	"Stock ID", "Brand Number", "Brand Name", "Pack Size", "Volume (ml)",
	"Opening Cases", "Opening Bottles", "Added Cases", "Added Bottles",
	"Total Cases", "Total Bottles", "Closing Cases", "Closing Bottles",
	"Sold Cases", "Sold Bottles", "Unit Rate", "Sell Amount",
}

func SellReportFileName(reportDate string) string {
	return fmt.Sprintf("sell_report_%s.xlsx", reportDate)
}

// FormatAmount renders an amount with thousands separators and two decimals.
func FormatAmount(d decimal.Decimal) string {
	return message.NewPrinter(language.English).Sprintf("%.2f", d.InexactFloat64())
}

// WriteSellReport writes the rows and settlement of one report date as an
// xlsx workbook.
func WriteSellReport(w io.Writer, sheet service.SellReportSheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sellReportSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, row := range sheet.Rows {
		if row.SellAmount.Valid {
			total = total.Add(row.SellAmount.Decimal)
		}
	}

	if err := setRow(f, 1, "Sell Report", sheet.ReportDate); err != nil {
		return err
	}
	if err := setRow(f, 2, "Total Sales", FormatAmount(total)); err != nil {
		return err
	}
	if err := setRow(f, itemsHeaderRow, toAny(itemHeadings)...); err != nil {
		return err
	}
	if err := styleRow(f, bold, itemsHeaderRow, len(itemHeadings)); err != nil {
		return err
	}

	rowNo := itemsHeaderRow + 1
	for _, row := range sheet.Rows {
		if err := setRow(f, rowNo,
			row.StockID, row.BrandNumber, row.BrandName, row.PackSizeCase, row.PackSizeQuantityML,
			row.OpeningCases, row.OpeningBottles, row.InvoiceAddedCases, row.InvoiceAddedBottles,
			row.TotalCases, row.TotalBottles, row.ClosingCases, row.ClosingBottles,
			row.SoldCases, row.SoldBottles, nullAmount(row.UnitRatePerBottle), nullAmount(row.SellAmount),
		); err != nil {
			return err
		}
		rowNo++
	}
	totalCell, err := excelize.CoordinatesToCellName(len(itemHeadings), rowNo)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sellReportSheet, fmt.Sprintf("A%d", rowNo), "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(sellReportSheet, totalCell, total.InexactFloat64()); err != nil {
		return err
	}
	if err := styleRow(f, bold, rowNo, len(itemHeadings)); err != nil {
		return err
	}

	if sheet.Finance != nil {
		if err := writeFinance(f, bold, rowNo+2, sheet.Finance); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeFinance(f *excelize.File, bold int, rowNo int, fin *domain.Finance) error {
	if err := setRow(f, rowNo, "Finance"); err != nil {
		return err
	}
	if err := styleRow(f, bold, rowNo, 1); err != nil {
		return err
	}
	rowNo++
	summary := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Total Sell Amount", fin.TotalSellAmount},
		{"Last Balance", fin.LastBalanceAmount},
		{"Total Amount", fin.TotalAmount},
		{"UPI / PhonePe", fin.UPIPhonePay},
		{"Cash", fin.Cash},
		{"Total Balance", fin.TotalBalance},
		{"Total Expenses", fin.TotalExpenses},
		{"Final Balance", fin.FinalBalance},
	}
	for _, line := range summary {
		if err := setRow(f, rowNo, line.label, line.amount.InexactFloat64()); err != nil {
			return err
		}
		rowNo++
	}

	rowNo++
	if err := setRow(f, rowNo, "Channel", "Date", "Amount"); err != nil {
		return err
	}
	if err := styleRow(f, bold, rowNo, 3); err != nil {
		return err
	}
	rowNo++
	for _, channel := range []struct {
		name    string
		entries []domain.MoneyEntry
	}{{"PhonePe", fin.PhonePayEntries}, {"Cash", fin.CashEntries}} {
		for _, entry := range channel.entries {
			if err := setRow(f, rowNo, channel.name, entry.Date, entry.Amount.InexactFloat64()); err != nil {
				return err
			}
			rowNo++
		}
	}

	if len(fin.Expenses) == 0 {
		return nil
	}
	rowNo++
	if err := setRow(f, rowNo, "Expense", "Amount"); err != nil {
		return err
	}
	if err := styleRow(f, bold, rowNo, 2); err != nil {
		return err
	}
	rowNo++
	for _, exp := range fin.Expenses {
		if err := setRow(f, rowNo, exp.Name, exp.Amount.InexactFloat64()); err != nil {
			return err
		}
		rowNo++
	}
	return nil
}

func setRow(f *excelize.File, rowNo int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sellReportSheet, cell, &values)
}

func styleRow(f *excelize.File, style int, rowNo int, columns int) error {
	first, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(columns, rowNo)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sellReportSheet, first, last, style)
}

func nullAmount(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
