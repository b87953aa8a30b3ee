package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/ledger"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/units"
)

func (s *Service) ListStock(ctx context.Context) (domain.StockView, error) {
	view := domain.StockView{Stock: []domain.StockLine{}}
	err := s.repo.View(ctx, func(r store.Reader) error {
		lines, err := r.ListStockLines(ctx)
		if err != nil {
			return err
		}
		if lines != nil {
			view.Stock = lines
		}
		summary, err := r.GetStockSummary(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		view.Summary = summary
		return nil
	})
	return view, err
}

// UpdateStock records a manual count of whole cases for one stock line.
func (s *Service) UpdateStock(ctx context.Context, req domain.StockUpdateRequest) (domain.StockUpdateResponse, error) {
	if req.AvailableCases.IsBlank() {
		return domain.StockUpdateResponse{}, apperror.NewValidation("available_cases is required")
	}
	cases, err := req.AvailableCases.Int()
	if err != nil {
		return domain.StockUpdateResponse{}, apperror.NewValidation("available_cases must be an integer")
	}
	if cases < 0 {
		return domain.StockUpdateResponse{}, apperror.NewValidation("available_cases cannot be negative")
	}
	if cases > units.MaxQuantity {
		return domain.StockUpdateResponse{}, apperror.NewValidationf("available_cases cannot exceed %d", units.MaxQuantity)
	}
	brand := strings.TrimSpace(req.BrandNumber)
	if req.StockID == 0 && (brand == "" || req.PackSizeCase == 0 || req.PackSizeQuantityML == 0) {
		return domain.StockUpdateResponse{}, apperror.NewValidation("Provide stock_id or brand_number + pack_size_case + pack_size_quantity_ml")
	}

	var line *domain.StockLine
	err = s.repo.Update(ctx, func(tx store.Tx) error {
		var err error
		if req.StockID != 0 {
			line, err = tx.GetStockLine(ctx, req.StockID)
		} else {
			line, err = tx.FindStockLine(ctx, domain.StockKey{
				BrandNumber:        brand,
				PackSizeCase:       req.PackSizeCase,
				PackSizeQuantityML: req.PackSizeQuantityML,
			})
		}
		if err != nil {
			return notFound(err, "stock item not found")
		}
		ledger.ApplyManualCount(line, cases, s.now())
		if err := tx.UpdateStockLine(ctx, *line); err != nil {
			return fmt.Errorf("update stock line %d: %w", line.ID, err)
		}
		if _, err := s.refreshSummary(ctx, tx); err != nil {
			return err
		}
		return s.audit(ctx, tx, "update_stock", "stock", strconv.FormatInt(line.ID, 10), fmt.Sprintf("available_cases=%d", cases))
	})
	if err != nil {
		return domain.StockUpdateResponse{}, err
	}
	return domain.StockUpdateResponse{
		Status:             "ok",
		StockID:            line.ID,
		BrandNumber:        line.BrandNumber,
		BrandName:          line.BrandName,
		PackSizeCase:       line.PackSizeCase,
		PackSizeQuantityML: line.PackSizeQuantityML,
		TotalCases:         line.TotalCases,
		TotalBottles:       line.TotalBottles,
		TotalAmount:        line.TotalAmount,
	}, nil
}

// PatchStock overwrites the given fields of a stock line as is.
func (s *Service) PatchStock(ctx context.Context, stockID int64, req domain.StockPatchRequest) (domain.StockLine, error) {
	for _, n := range []*int{req.TotalCases, req.TotalBottles} {
		if n != nil && (*n > units.MaxQuantity || *n < -units.MaxQuantity) {
			return domain.StockLine{}, apperror.NewValidationf("stock counts cannot exceed %d", units.MaxQuantity)
		}
	}
	var patched domain.StockLine
	err := s.repo.Update(ctx, func(tx store.Tx) error {
		line, err := tx.GetStockLine(ctx, stockID)
		if err != nil {
			return notFound(err, "stock not found")
		}
		var changed []string
		if req.TotalCases != nil {
			line.TotalCases = *req.TotalCases
			changed = append(changed, fmt.Sprintf("total_cases=%d", *req.TotalCases))
		}
		if req.TotalBottles != nil {
			line.TotalBottles = *req.TotalBottles
			changed = append(changed, fmt.Sprintf("total_bottles=%d", *req.TotalBottles))
		}
		if req.RatePerCase != nil {
			line.RatePerCase.Decimal, line.RatePerCase.Valid = *req.RatePerCase, true
			changed = append(changed, "rate_per_case="+req.RatePerCase.String())
		}
		if req.UnitRatePerBottle != nil {
			line.UnitRatePerBottle.Decimal, line.UnitRatePerBottle.Valid = *req.UnitRatePerBottle, true
			changed = append(changed, "unit_rate_per_bottle="+req.UnitRatePerBottle.String())
		}
		if req.TotalAmount != nil {
			line.TotalAmount = *req.TotalAmount
			changed = append(changed, "total_amount="+req.TotalAmount.String())
		}
		line.UpdatedAt = s.now()
		if err := tx.UpdateStockLine(ctx, *line); err != nil {
			return fmt.Errorf("update stock line %d: %w", line.ID, err)
		}
		if _, err := s.refreshSummary(ctx, tx); err != nil {
			return err
		}
		patched = *line
		return s.audit(ctx, tx, "edit_stock", "stock", strconv.FormatInt(stockID, 10), strings.Join(changed, ", "))
	})
	return patched, err
}
