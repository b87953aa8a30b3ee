package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/units"
)

// EntryBounds is the inclusive date window for payment entries of a report date.
type EntryBounds struct {
	From      time.Time
	FromLabel string
	To        time.Time
	ToLabel   string
}

// EntryWindow opens at the previous sell-report date, or at the report date
// itself when there is none, and closes at the report date.
func EntryWindow(reportDate time.Time, previousReportDate string) EntryBounds {
	b := EntryBounds{
		From:      reportDate,
		FromLabel: "selected sell report date",
		To:        reportDate,
		ToLabel:   "selected sell report date",
	}
	if previousReportDate == "" {
		return b
	}
	if prev, err := units.ParseReportDate(previousReportDate); err == nil {
		b.From = prev
		b.FromLabel = "previous sell report date"
	}
	return b
}

// LegacyEntries turns the single-amount form of a payment channel into one
// entry dated on the report date when no entries were given.
func LegacyEntries(entries []domain.FinanceEntryInput, scalar domain.FlexValue, reportDate string) []domain.FinanceEntryInput {
	if len(entries) > 0 || scalar.IsBlank() {
		return entries
	}
	if amount, err := units.ParseAmount(scalar.String()); err == nil && amount.IsZero() {
		return entries
	}
	return []domain.FinanceEntryInput{{Date: reportDate, Amount: scalar}}
}

// NormalizeEntries validates dated payment entries of one channel and returns
// them with canonical dates and their sum. Entries with neither date nor
// amount are dropped.
func NormalizeEntries(kind string, entries []domain.FinanceEntryInput, b EntryBounds) ([]domain.MoneyEntry, decimal.Decimal, error) {
	cleaned := make([]domain.MoneyEntry, 0, len(entries))
	total := decimal.Zero
	for i, entry := range entries {
		idx := i + 1
		rawDate := strings.TrimSpace(entry.Date)
		if rawDate == "" {
			rawDate = strings.TrimSpace(entry.TxnDate)
		}
		if rawDate == "" && entry.Amount.IsBlank() {
			continue
		}
		if rawDate == "" {
			return nil, decimal.Zero, apperror.NewValidationf("%s entry #%d date is required", kind, idx)
		}
		txnDate, err := units.ParseReportDate(rawDate)
		if err != nil {
			return nil, decimal.Zero, apperror.NewValidationf("invalid %s date format in entry #%d: %s", kind, idx, rawDate)
		}
		if txnDate.Before(b.From) {
			bound := units.FormatDate(b.From)
			return nil, decimal.Zero, apperror.NewDateRange(
				kind+" date must be on or after "+b.FromLabel+": "+bound, bound)
		}
		if txnDate.After(b.To) {
			bound := units.FormatDate(b.To)
			return nil, decimal.Zero, apperror.NewDateRange(
				kind+" date must be on or before "+b.ToLabel+": "+bound, bound)
		}
		amount, err := units.ParseAmount(entry.Amount.String())
		if err != nil {
			return nil, decimal.Zero, apperror.NewValidationf("%s entry #%d amount must be a number", kind, idx)
		}
		total = total.Add(amount)
		cleaned = append(cleaned, domain.MoneyEntry{Date: units.FormatDate(txnDate), Amount: amount})
	}
	return cleaned, total, nil
}

// NormalizeExpenses drops unnamed expenses and sums the rest.
func NormalizeExpenses(expenses []domain.ExpenseInput) ([]domain.Expense, decimal.Decimal, error) {
	cleaned := make([]domain.Expense, 0, len(expenses))
	total := decimal.Zero
	for _, exp := range expenses {
		name := strings.TrimSpace(exp.Name)
		if name == "" {
			continue
		}
		amount, err := units.ParseAmount(exp.Amount.String())
		if err != nil {
			return nil, decimal.Zero, apperror.NewValidation("expense amount must be a number")
		}
		total = total.Add(amount)
		cleaned = append(cleaned, domain.Expense{Name: name, Amount: amount})
	}
	return cleaned, total, nil
}

type SettleInput struct {
	ReportDate      string
	TotalSellAmount decimal.Decimal
	LastBalance     decimal.Decimal
	PhonePay        []domain.MoneyEntry
	Cash            []domain.MoneyEntry
	Expenses        []domain.Expense
}

// Settle computes the balances of a finance record:
//
//	total_amount  = sell + carried balance
//	total_balance = phonepay + cash - total_amount
//	final_balance = total_balance - expenses
func Settle(in SettleInput) domain.Finance {
	phonepay := sumEntries(in.PhonePay)
	cash := sumEntries(in.Cash)
	expenses := decimal.Zero
	for _, exp := range in.Expenses {
		expenses = expenses.Add(exp.Amount)
	}

	totalAmount := in.TotalSellAmount.Add(in.LastBalance)
	totalBalance := phonepay.Add(cash).Sub(totalAmount)

	return domain.Finance{
		ReportDate:        in.ReportDate,
		TotalSellAmount:   in.TotalSellAmount,
		LastBalanceAmount: in.LastBalance,
		TotalAmount:       totalAmount,
		UPIPhonePay:       phonepay,
		Cash:              cash,
		TotalBalance:      totalBalance,
		TotalExpenses:     expenses,
		FinalBalance:      totalBalance.Sub(expenses),
		PhonePayEntries:   nonNilEntries(in.PhonePay),
		CashEntries:       nonNilEntries(in.Cash),
		Expenses:          nonNilExpenses(in.Expenses),
	}
}

// SurfaceLegacy presents records stored before dated entries existed: a
// non-zero scalar with no entries becomes one entry on the report date.
func SurfaceLegacy(f *domain.Finance) {
	if len(f.PhonePayEntries) == 0 && !f.UPIPhonePay.IsZero() {
		f.PhonePayEntries = []domain.MoneyEntry{{Date: f.ReportDate, Amount: f.UPIPhonePay}}
	}
	if len(f.CashEntries) == 0 && !f.Cash.IsZero() {
		f.CashEntries = []domain.MoneyEntry{{Date: f.ReportDate, Amount: f.Cash}}
	}
	f.PhonePayEntries = nonNilEntries(f.PhonePayEntries)
	f.CashEntries = nonNilEntries(f.CashEntries)
	f.Expenses = nonNilExpenses(f.Expenses)
}

func sumEntries(entries []domain.MoneyEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

func nonNilEntries(entries []domain.MoneyEntry) []domain.MoneyEntry {
	if entries == nil {
		return []domain.MoneyEntry{}
	}
	return entries
}

func nonNilExpenses(expenses []domain.Expense) []domain.Expense {
	if expenses == nil {
		return []domain.Expense{}
	}
	return expenses
}
