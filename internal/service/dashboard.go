package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/units"
)

// DashboardSummary gathers the headline figures shown after login.
func (s *Service) DashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	summary := domain.DashboardSummary{
		LastUnclearedAmount:              decimal.Zero,
		LastInvoiceValue:                 decimal.Zero,
		LastInvoiceRetailerCreditBalance: decimal.Zero,
		TotalPresentStockMRPValue:        decimal.Zero,
		LastSellReportValue:              decimal.Zero,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mrps, err := s.mrpMap(gctx)
		if err != nil {
			return err
		}
		var lines []domain.StockLine
		err = s.repo.View(gctx, func(r store.Reader) error {
			var err error
			lines, err = r.ListStockLines(gctx)
			return err
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			summary.TotalPresentStock += line.TotalCases
			mrp := mrps.Lookup(line.BrandNumber, line.PackSizeQuantityML)
			if !mrp.Valid {
				continue
			}
			bottles := units.ToTotalBottles(line.TotalCases, line.TotalBottles, line.PackSizeCase)
			summary.TotalPresentStockMRPValue = summary.TotalPresentStockMRPValue.Add(mrp.Decimal.Mul(decimal.NewFromInt(int64(bottles))))
		}
		return nil
	})
	g.Go(func() error {
		return s.repo.View(gctx, func(r store.Reader) error {
			balance, err := r.LastFinanceBalance(gctx, "")
			if err != nil {
				return err
			}
			summary.LastUnclearedAmount = balance

			latest, err := r.LatestInvoice(gctx)
			switch {
			case errors.Is(err, store.ErrNotFound):
				return nil
			case err != nil:
				return err
			}
			summary.LastInvoiceDate = latest.InvoiceDate
			summary.LastInvoiceNumber = latest.InvoiceNumber
			summary.LastInvoiceValue = latest.Totals.NetInvoiceValue
			summary.LastInvoiceRetailerCreditBalance = latest.Totals.RetailerCreditBalance
			return nil
		})
	})
	g.Go(func() error {
		return s.repo.View(gctx, func(r store.Reader) error {
			latest, err := r.LatestSellReport(gctx)
			switch {
			case errors.Is(err, store.ErrNotFound):
				return nil
			case err != nil:
				return err
			}
			summary.LastSellReportDate = latest.ReportDate
			summary.LastSellReportValue, err = r.TotalSellAmount(gctx, latest.ReportDate)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}
	return summary, nil
}
