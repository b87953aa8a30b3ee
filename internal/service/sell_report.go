package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/ledger"
	"liquorstock/backend/internal/pricing"
	"liquorstock/backend/internal/reconcile"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/units"
)

// closingInput is a validated item of a sell-report submission.
type closingInput struct {
	stockID int64
	cases   int
	bottles int
}

// parseClosings validates submitted items. Items without a closing case
// count are left out.
func parseClosings(items []domain.SellReportItemInput) ([]closingInput, error) {
	closings := make([]closingInput, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.StockID == 0 {
			return nil, apperror.NewValidation("stock_id is required")
		}
		if item.ClosingCases.IsBlank() {
			continue
		}
		if seen[item.StockID] {
			return nil, apperror.NewValidationf("duplicate stock_id in items: %d", item.StockID)
		}
		seen[item.StockID] = true
		cases, err := item.ClosingCases.Int()
		if err != nil {
			return nil, apperror.NewValidation("closing_cases and closing_bottles must be integers")
		}
		bottles, err := item.ClosingBottles.Int()
		if err != nil {
			return nil, apperror.NewValidation("closing_cases and closing_bottles must be integers")
		}
		if cases < 0 || bottles < 0 {
			return nil, apperror.NewValidation("closing values cannot be negative")
		}
		if !units.InRange(cases, bottles) {
			return nil, apperror.NewValidationf("closing values cannot exceed %d", units.MaxQuantity)
		}
		closings = append(closings, closingInput{stockID: item.StockID, cases: cases, bottles: bottles})
	}
	return closings, nil
}

// checkAfterLatestInvoice rejects report dates before the newest invoice.
func checkAfterLatestInvoice(ctx context.Context, r store.Reader, reportDate string, formatError string) error {
	latest, err := r.LatestInvoice(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewValidation("no invoices found")
		}
		return err
	}
	reportDay, err := units.ParseReportDate(reportDate)
	if err != nil {
		return apperror.NewValidation(formatError)
	}
	invoiceDay, err := units.ParseReportDate(latest.InvoiceDate)
	if err != nil {
		return apperror.NewValidation(formatError)
	}
	if reportDay.Before(invoiceDay) {
		return apperror.NewDateRange("report_date must be on or after last invoice date", units.FormatDate(invoiceDay))
	}
	return nil
}

// reconcileLine computes one row against the report that preceded it.
func reconcileLine(ctx context.Context, r store.Reader, line domain.StockLine, previous *domain.SellReport, c closingInput) (reconcile.Result, error) {
	window := reconcile.OpeningWindow(previous)
	added, err := r.InvoiceAdditions(ctx, line.Key(), window.Since)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("invoice additions for stock %d: %w", line.ID, err)
	}
	result, err := reconcile.Compute(reconcile.Input{
		Line:           line,
		Previous:       previous,
		Added:          added,
		ClosingCases:   c.cases,
		ClosingBottles: c.bottles,
	})
	var inconsistent *reconcile.ConsistencyError
	if errors.As(err, &inconsistent) {
		return reconcile.Result{}, apperror.NewConsistency(inconsistent.Error(), inconsistent.Breakdown())
	}
	if err != nil {
		return reconcile.Result{}, apperror.NewValidation(err.Error())
	}
	return result, nil
}

// PrepareSellReport lists every stock line with what is available for the
// next report.
func (s *Service) PrepareSellReport(ctx context.Context) (domain.SellReportPrepareResponse, error) {
	mrps, err := s.mrpMap(ctx)
	if err != nil {
		return domain.SellReportPrepareResponse{}, err
	}
	resp := domain.SellReportPrepareResponse{Items: []domain.SellReportPrepareItem{}}
	err = s.repo.View(ctx, func(r store.Reader) error {
		lines, err := r.ListStockLines(ctx)
		if err != nil {
			return err
		}
		last, err := r.LastReportsByStock(ctx)
		if err != nil {
			return err
		}
		for _, line := range lines {
			var previous *domain.SellReport
			if row, ok := last[line.ID]; ok {
				previous = &row
			}
			window := reconcile.OpeningWindow(previous)
			added, err := r.InvoiceAdditions(ctx, line.Key(), window.Since)
			if err != nil {
				return fmt.Errorf("invoice additions for stock %d: %w", line.ID, err)
			}
			totals := reconcile.Available(window, added, line.PackSizeCase)
			resp.Items = append(resp.Items, domain.SellReportPrepareItem{
				StockID:             line.ID,
				BrandNumber:         line.BrandNumber,
				BrandName:           line.BrandName,
				PackSizeCase:        line.PackSizeCase,
				PackSizeQuantityML:  line.PackSizeQuantityML,
				OpeningCases:        totals.OpeningCases,
				OpeningBottles:      totals.OpeningBottles,
				InvoiceAddedCases:   totals.AddedCases,
				InvoiceAddedBottles: totals.AddedBottles,
				TotalCases:          totals.TotalCases,
				TotalBottles:        totals.TotalBottles,
				MRP:                 mrps.Lookup(line.BrandNumber, line.PackSizeQuantityML),
				LastReportDate:      window.LastReportDate,
				LastReportAt:        window.Since,
			})
		}

		if latest, err := r.LatestInvoice(ctx); err == nil {
			resp.LatestInvoiceDate = latest.InvoiceDate
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if latest, err := r.LatestSellReport(ctx); err == nil {
			resp.LastSellReportDate = latest.ReportDate
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		resp.LastBalanceAmount, err = r.LastFinanceBalance(ctx, "")
		return err
	})
	if err != nil {
		return domain.SellReportPrepareResponse{}, err
	}
	return resp, nil
}

// CreateSellReport records the closing counts of a report date, derives what
// was sold since each line's previous report and sets the ledger to the
// counted closing. The whole batch is written or nothing is.
func (s *Service) CreateSellReport(ctx context.Context, req domain.SellReportCreateRequest) (domain.SellReportResponse, error) {
	if strings.TrimSpace(req.ReportDate) == "" {
		return domain.SellReportResponse{}, apperror.NewValidation("report_date is required")
	}
	if len(req.Items) == 0 {
		return domain.SellReportResponse{Status: "ok", ReportDate: strings.TrimSpace(req.ReportDate), Items: []domain.SellReportItemResult{}}, nil
	}
	closings, err := parseClosings(req.Items)
	if err != nil {
		return domain.SellReportResponse{}, err
	}
	reportDate, err := units.NormalizeDate(req.ReportDate)
	if err != nil {
		return domain.SellReportResponse{}, apperror.NewValidation("invalid report_date or invoice_date format")
	}
	if len(closings) == 0 {
		return domain.SellReportResponse{Status: "ok", ReportDate: reportDate, Items: []domain.SellReportItemResult{}}, nil
	}
	mrps, err := s.mrpMap(ctx)
	if err != nil {
		return domain.SellReportResponse{}, err
	}

	actor := actorOrSystem(ctx)
	results := make([]domain.SellReportItemResult, 0, len(closings))
	err = s.withLock(ctx, sellReportLockKey, func() error {
		return s.repo.Update(ctx, func(tx store.Tx) error {
			results = results[:0]
			if err := checkAfterLatestInvoice(ctx, tx, reportDate, "invalid report_date or invoice_date format"); err != nil {
				return err
			}
			existing, err := tx.SellReportsByDate(ctx, reportDate)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return apperror.NewConflict("Sell report already created for this date")
			}
			last, err := tx.LastReportsByStock(ctx)
			if err != nil {
				return err
			}

			for _, c := range closings {
				line, err := tx.GetStockLine(ctx, c.stockID)
				if err != nil {
					return notFound(err, fmt.Sprintf("stock item not found: %d", c.stockID))
				}
				var previous *domain.SellReport
				if row, ok := last[line.ID]; ok {
					previous = &row
				}
				result, err := reconcileLine(ctx, tx, *line, previous, c)
				if err != nil {
					return err
				}
				at := s.now()
				row := reconcile.NewReport(*line, result, reportDate, actor.Username, at)
				if _, err := tx.InsertSellReport(ctx, row); err != nil {
					return fmt.Errorf("insert sell report for stock %d: %w", line.ID, err)
				}
				ledger.ApplyClosing(line, c.cases, c.bottles, result.UnitRate, at)
				if err := tx.UpdateStockLine(ctx, *line); err != nil {
					return fmt.Errorf("update stock line %d: %w", line.ID, err)
				}
				results = append(results, itemResult(*line, result, mrps))
			}

			if _, err := s.refreshSummary(ctx, tx); err != nil {
				return err
			}
			return s.audit(ctx, tx, "create_sell_report", "sell_report", reportDate, fmt.Sprintf("items=%d", len(results)))
		})
	})
	if err != nil {
		return domain.SellReportResponse{}, err
	}

	finance, err := s.PrepareSellFinance(ctx, reportDate)
	if err != nil {
		return domain.SellReportResponse{}, err
	}
	return domain.SellReportResponse{
		Status:     "ok",
		ReportDate: reportDate,
		Items:      results,
		Finance:    &finance,
	}, nil
}

func itemResult(line domain.StockLine, r reconcile.Result, mrps pricing.MRPMap) domain.SellReportItemResult {
	return domain.SellReportItemResult{
		StockID:     line.ID,
		SoldCases:   r.SoldCases,
		SoldBottles: r.SoldBottles,
		SellAmount:  r.SellAmount,
		MRP:         mrps.Lookup(line.BrandNumber, line.PackSizeQuantityML),
	}
}

// EditLastSellReport corrects the closing counts of the newest report date.
// A report date accepts a single correction.
func (s *Service) EditLastSellReport(ctx context.Context, req domain.SellReportEditRequest) (domain.SellReportResponse, error) {
	if len(req.Items) == 0 {
		return domain.SellReportResponse{}, apperror.NewValidation("items list is required")
	}
	closings, err := parseClosings(req.Items)
	if err != nil {
		return domain.SellReportResponse{}, err
	}
	mrps, err := s.mrpMap(ctx)
	if err != nil {
		return domain.SellReportResponse{}, err
	}

	actor := actorOrSystem(ctx)
	var reportDate string
	results := make([]domain.SellReportItemResult, 0, len(closings))
	err = s.withLock(ctx, sellReportLockKey, func() error {
		return s.repo.Update(ctx, func(tx store.Tx) error {
			results = results[:0]
			latest, err := tx.LatestSellReport(ctx)
			if err != nil {
				return notFound(err, "no sell report found")
			}
			reportDate = latest.ReportDate
			group, err := tx.SellReportsByDate(ctx, reportDate)
			if err != nil {
				return err
			}
			if reconcile.GroupState(group, reportDate) == domain.ReportSealed {
				return apperror.NewConflict("sell report already edited once")
			}
			if len(closings) == 0 {
				return nil
			}
			rowsByStock := make(map[int64]domain.SellReport, len(group))
			for _, row := range group {
				rowsByStock[row.StockID] = row
			}

			for _, c := range closings {
				row, ok := rowsByStock[c.stockID]
				if !ok {
					return apperror.NewNotFound(fmt.Sprintf("sell report item not found: %d", c.stockID))
				}
				line, err := tx.GetStockLine(ctx, c.stockID)
				if err != nil {
					return notFound(err, fmt.Sprintf("stock item not found: %d", c.stockID))
				}
				previous, err := tx.PreviousReport(ctx, c.stockID, row.CreatedAt)
				switch {
				case errors.Is(err, store.ErrNotFound):
					previous = nil
				case err != nil:
					return err
				}
				result, err := reconcileLine(ctx, tx, *line, previous, c)
				if err != nil {
					return err
				}
				at := s.now()
				result.Fill(&row)
				row.EditedBy = actor.Username
				row.EditedAt = &at
				row.EditCount = 1
				if err := tx.UpdateSellReport(ctx, row); err != nil {
					return fmt.Errorf("update sell report %d: %w", row.ID, err)
				}
				rowsByStock[c.stockID] = row

				ledger.ApplyClosing(line, c.cases, c.bottles, result.UnitRate, at)
				if err := tx.UpdateStockLine(ctx, *line); err != nil {
					return fmt.Errorf("update stock line %d: %w", line.ID, err)
				}
				results = append(results, itemResult(*line, result, mrps))
			}

			if _, err := s.refreshSummary(ctx, tx); err != nil {
				return err
			}
			return s.audit(ctx, tx, "edit_sell_report", "sell_report", reportDate, fmt.Sprintf("items=%d", len(results)))
		})
	})
	if err != nil {
		return domain.SellReportResponse{}, err
	}
	return domain.SellReportResponse{Status: "ok", ReportDate: reportDate, Items: results}, nil
}

// ListSellReportGroups summarizes every report date, newest first, with its
// correction state and settled finance.
func (s *Service) ListSellReportGroups(ctx context.Context) (domain.ListResponse[domain.SellReportGroup], error) {
	var (
		rows     []domain.SellReport
		finances []domain.Finance
	)
	err := s.repo.View(ctx, func(r store.Reader) error {
		var err error
		if rows, err = r.ListSellReports(ctx); err != nil {
			return err
		}
		finances, err = r.ListFinances(ctx)
		return err
	})
	if err != nil {
		return domain.ListResponse[domain.SellReportGroup]{}, err
	}

	financeByDate := make(map[string]*domain.Finance, len(finances))
	for i := range finances {
		reconcile.SurfaceLegacy(&finances[i])
		if _, ok := financeByDate[finances[i].ReportDate]; !ok {
			financeByDate[finances[i].ReportDate] = &finances[i]
		}
	}

	newestDate := ""
	if len(rows) > 0 {
		newestDate = rows[0].ReportDate
	}
	byDate := make(map[string][]domain.SellReport)
	var order []string
	for _, row := range rows {
		if _, ok := byDate[row.ReportDate]; !ok {
			order = append(order, row.ReportDate)
		}
		byDate[row.ReportDate] = append(byDate[row.ReportDate], row)
	}

	groups := make([]domain.SellReportGroup, 0, len(order))
	for _, date := range order {
		group := byDate[date]
		first := group[0]
		g := domain.SellReportGroup{
			ReportDate:      date,
			CreatedAt:       first.CreatedAt,
			CreatedBy:       first.CreatedBy,
			TotalItems:      len(group),
			TotalSellAmount: decimal.Zero,
			State:           reconcile.GroupState(group, newestDate),
			Finance:         financeByDate[date],
		}
		for _, row := range group {
			if row.SellAmount.Valid {
				g.TotalSellAmount = g.TotalSellAmount.Add(row.SellAmount.Decimal)
			}
			if row.EditCount > 0 && g.EditedBy == "" {
				g.EditedBy = row.EditedBy
				g.EditedAt = row.EditedAt
				g.EditCount = row.EditCount
			}
		}
		groups = append(groups, g)
	}
	return domain.NewListResponse(groups), nil
}

// SellReportSheet is everything recorded for one report date.
type SellReportSheet struct {
	ReportDate string
	Rows       []domain.SellReport
	Finance    *domain.Finance
}

// SellReportSheet loads the rows of a report date ordered by stock id,
// together with its finance record when one was settled.
func (s *Service) SellReportSheet(ctx context.Context, reportDate string) (SellReportSheet, error) {
	date, err := units.NormalizeDate(reportDate)
	if err != nil {
		return SellReportSheet{}, apperror.NewValidation("invalid report_date format")
	}
	sheet := SellReportSheet{ReportDate: date}
	err = s.repo.View(ctx, func(r store.Reader) error {
		rows, err := r.SellReportsByDate(ctx, date)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperror.NewNotFound("sell report not found")
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].StockID < rows[j].StockID })
		sheet.Rows = rows
		fin, err := r.GetFinance(ctx, date)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		reconcile.SurfaceLegacy(fin)
		sheet.Finance = fin
		return nil
	})
	if err != nil {
		return SellReportSheet{}, err
	}
	return sheet, nil
}

// DeleteSellReport removes every row of a report date. The ledger is left
// as it is.
func (s *Service) DeleteSellReport(ctx context.Context, reportDate string) (domain.DeleteResult, error) {
	date := strings.TrimSpace(reportDate)
	if normalized, err := units.NormalizeDate(date); err == nil {
		date = normalized
	}
	var deleted int
	err := s.repo.Update(ctx, func(tx store.Tx) error {
		var err error
		deleted, err = tx.DeleteSellReports(ctx, date)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return apperror.NewNotFound("sell report not found")
		}
		return s.audit(ctx, tx, "delete_sell_report", "sell_report", date, strconv.Itoa(deleted)+" rows")
	})
	if err != nil {
		return domain.DeleteResult{}, err
	}
	return domain.DeleteResult{Status: "ok", Deleted: deleted}, nil
}
