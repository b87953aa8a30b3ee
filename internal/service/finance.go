package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/reconcile"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/units"
)

func requireSellReport(ctx context.Context, r store.Reader, reportDate string) error {
	rows, err := r.SellReportsByDate(ctx, reportDate)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperror.NewNotFound("sell report not found for this date")
	}
	return nil
}

// PrepareSellFinance returns what a settlement form for reportDate starts
// from: the day's sales, the carried balance and any entries already saved.
func (s *Service) PrepareSellFinance(ctx context.Context, reportDate string) (domain.SellFinancePrepare, error) {
	if strings.TrimSpace(reportDate) == "" {
		return domain.SellFinancePrepare{}, apperror.NewValidation("report_date is required")
	}
	date, err := units.NormalizeDate(reportDate)
	if err != nil {
		return domain.SellFinancePrepare{}, apperror.NewValidation("invalid report_date format")
	}

	prep := domain.SellFinancePrepare{
		ReportDate:         date,
		UPIPhonePay:        decimal.Zero,
		Cash:               decimal.Zero,
		TotalBalance:       decimal.Zero,
		TotalExpenses:      decimal.Zero,
		FinalBalance:       decimal.Zero,
		PhonePayEntries:    []domain.MoneyEntry{},
		CashEntries:        []domain.MoneyEntry{},
		Expenses:           []domain.Expense{},
		AllowedEntryDateTo: date,
	}
	err = s.repo.View(ctx, func(r store.Reader) error {
		if latest, err := r.LatestInvoice(ctx); err == nil {
			prep.LatestInvoiceDate = latest.InvoiceDate
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := requireSellReport(ctx, r, date); err != nil {
			return err
		}
		previous, err := r.PreviousReportDate(ctx, date)
		if err != nil {
			return err
		}
		prep.AllowedEntryDateFrom = date
		if previous != "" {
			prep.AllowedEntryDateFrom = previous
		}

		fin, err := r.GetFinance(ctx, date)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			reconcile.SurfaceLegacy(fin)
			prep.ExistingFinance = true
			prep.UPIPhonePay = fin.UPIPhonePay
			prep.Cash = fin.Cash
			prep.TotalBalance = fin.TotalBalance
			prep.TotalExpenses = fin.TotalExpenses
			prep.FinalBalance = fin.FinalBalance
			prep.PhonePayEntries = fin.PhonePayEntries
			prep.CashEntries = fin.CashEntries
			prep.Expenses = fin.Expenses
		}

		if prep.LastBalanceAmount, err = r.LastFinanceBalance(ctx, date); err != nil {
			return err
		}
		if prep.TotalSellAmount, err = r.TotalSellAmount(ctx, date); err != nil {
			return err
		}
		prep.TotalAmount = prep.TotalSellAmount.Add(prep.LastBalanceAmount)
		return nil
	})
	if err != nil {
		return domain.SellFinancePrepare{}, err
	}
	return prep, nil
}

// CreateSellFinance settles the cash of a report date. Saving again replaces
// the record and all of its entries.
func (s *Service) CreateSellFinance(ctx context.Context, req domain.SellFinanceRequest) (domain.SellFinanceResponse, error) {
	if strings.TrimSpace(req.ReportDate) == "" {
		return domain.SellFinanceResponse{}, apperror.NewValidation("report_date is required")
	}
	reportDay, err := units.ParseReportDate(req.ReportDate)
	if err != nil {
		return domain.SellFinanceResponse{}, apperror.NewValidation("invalid report_date format")
	}
	date := units.FormatDate(reportDay)
	expenses, _, err := reconcile.NormalizeExpenses(req.Expenses)
	if err != nil {
		return domain.SellFinanceResponse{}, err
	}

	actor := actorOrSystem(ctx)
	var saved *domain.Finance
	err = s.withLock(ctx, financeLockKey, func() error {
		return s.repo.Update(ctx, func(tx store.Tx) error {
			if err := checkAfterLatestInvoice(ctx, tx, date, "invalid report_date format"); err != nil {
				return err
			}
			if err := requireSellReport(ctx, tx, date); err != nil {
				return err
			}
			previous, err := tx.PreviousReportDate(ctx, date)
			if err != nil {
				return err
			}
			bounds := reconcile.EntryWindow(reportDay, previous)
			phonepay, _, err := reconcile.NormalizeEntries("phonepay", reconcile.LegacyEntries(req.PhonePayEntries, req.UPIPhonePay, date), bounds)
			if err != nil {
				return err
			}
			cash, _, err := reconcile.NormalizeEntries("cash", reconcile.LegacyEntries(req.CashEntries, req.Cash, date), bounds)
			if err != nil {
				return err
			}

			lastBalance, err := tx.LastFinanceBalance(ctx, date)
			if err != nil {
				return err
			}
			totalSell, err := tx.TotalSellAmount(ctx, date)
			if err != nil {
				return err
			}
			fin := reconcile.Settle(reconcile.SettleInput{
				ReportDate:      date,
				TotalSellAmount: totalSell,
				LastBalance:     lastBalance,
				PhonePay:        phonepay,
				Cash:            cash,
				Expenses:        expenses,
			})
			now := s.now()
			fin.CreatedBy = actor.Username
			fin.UpdatedBy = actor.Username
			fin.CreatedAt = now
			fin.UpdatedAt = now

			saved, err = tx.UpsertFinance(ctx, fin)
			if err != nil {
				return fmt.Errorf("save finance %s: %w", date, err)
			}
			return s.audit(ctx, tx, "create_sell_finance", "sell_finance", date, "final_balance="+saved.FinalBalance.StringFixed(2))
		})
	})
	if err != nil {
		return domain.SellFinanceResponse{}, err
	}
	reconcile.SurfaceLegacy(saved)
	return domain.SellFinanceResponse{Status: "ok", Finance: *saved}, nil
}

// DeleteSellFinance removes the finance record of a report date.
func (s *Service) DeleteSellFinance(ctx context.Context, reportDate string) (domain.DeleteResult, error) {
	date := strings.TrimSpace(reportDate)
	if normalized, err := units.NormalizeDate(date); err == nil {
		date = normalized
	}
	err := s.repo.Update(ctx, func(tx store.Tx) error {
		if err := tx.DeleteFinance(ctx, date); err != nil {
			return notFound(err, "sell finance not found")
		}
		return s.audit(ctx, tx, "delete_sell_finance", "sell_finance", date, "")
	})
	if err != nil {
		return domain.DeleteResult{}, err
	}
	return domain.DeleteResult{Status: "ok", Deleted: 1}, nil
}

// FinanceOverview aggregates invoice totals, sales and settlements.
func (s *Service) FinanceOverview(ctx context.Context) (domain.FinanceOverview, error) {
	overview := domain.FinanceOverview{
		Totals: domain.FinanceOverviewTotals{
			AllInvoicesTotalInvoiceValue: decimal.Zero,
			AllInvoicesNetInvoiceValue:   decimal.Zero,
			AllInvoicesSpecialExciseCess: decimal.Zero,
			AllInvoicesTCS:               decimal.Zero,
			AllSellAmount:                decimal.Zero,
		},
		Invoices:    []domain.InvoiceOverview{},
		SellReports: []domain.SellReportDateTotal{},
		Finance:     []domain.Finance{},
	}
	err := s.repo.View(ctx, func(r store.Reader) error {
		invoices, err := r.ListInvoices(ctx)
		if err != nil {
			return err
		}
		for i, inv := range invoices {
			item := invoiceOverview(inv)
			if i == 0 {
				overview.LatestInvoice = item
			}
			overview.Invoices = append(overview.Invoices, item)
			t := inv.Totals
			overview.Totals.AllInvoicesTotalInvoiceValue = overview.Totals.AllInvoicesTotalInvoiceValue.Add(t.TotalInvoiceValue)
			overview.Totals.AllInvoicesNetInvoiceValue = overview.Totals.AllInvoicesNetInvoiceValue.Add(t.NetInvoiceValue)
			overview.Totals.AllInvoicesSpecialExciseCess = overview.Totals.AllInvoicesSpecialExciseCess.Add(t.SpecialExciseCess)
			overview.Totals.AllInvoicesTCS = overview.Totals.AllInvoicesTCS.Add(t.TCS)
		}

		totals, err := r.SellReportTotals(ctx)
		if err != nil {
			return err
		}
		for _, total := range totals {
			overview.Totals.AllSellAmount = overview.Totals.AllSellAmount.Add(total.TotalSellAmount)
		}
		if totals != nil {
			overview.SellReports = totals
		}

		overview.LatestSellReport = domain.LatestSellReportOverview{SellAmount: decimal.Zero, LatestReportSellAmount: decimal.Zero}
		latest, err := r.LatestSellReport(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			createdAt := latest.CreatedAt
			amount, err := r.TotalSellAmount(ctx, latest.ReportDate)
			if err != nil {
				return err
			}
			overview.LatestSellReport = domain.LatestSellReportOverview{
				ReportDate:             latest.ReportDate,
				CreatedBy:              latest.CreatedBy,
				CreatedAt:              &createdAt,
				SellAmount:             overview.Totals.AllSellAmount,
				LatestReportSellAmount: amount,
			}
		}

		finances, err := r.ListFinances(ctx)
		if err != nil {
			return err
		}
		for i := range finances {
			reconcile.SurfaceLegacy(&finances[i])
		}
		if finances != nil {
			overview.Finance = finances
		}
		return nil
	})
	if err != nil {
		return domain.FinanceOverview{}, err
	}
	return overview, nil
}

func invoiceOverview(inv domain.Invoice) domain.InvoiceOverview {
	uploadedAt := inv.CreatedAt
	return domain.InvoiceOverview{
		InvoiceNumber:         inv.InvoiceNumber,
		InvoiceDate:           inv.InvoiceDate,
		UploadedBy:            inv.UploadedBy,
		UploadedAt:            &uploadedAt,
		NetInvoiceValue:       inv.Totals.NetInvoiceValue,
		SpecialExciseCess:     inv.Totals.SpecialExciseCess,
		TCS:                   inv.Totals.TCS,
		TotalInvoiceValue:     inv.Totals.TotalInvoiceValue,
		RetailerCreditBalance: inv.Totals.RetailerCreditBalance,
	}
}
