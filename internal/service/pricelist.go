package service

import (
	"context"
	"fmt"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/pricing"
	"liquorstock/backend/internal/store"
)

// ImportPriceList upserts parsed price-list rows and drops the cached MRP map.
func (s *Service) ImportPriceList(ctx context.Context, items []domain.PriceListItem) (domain.PriceListImportResult, error) {
	result := domain.PriceListImportResult{Parsed: len(items)}
	unique := pricing.Dedupe(items)
	result.Unique = len(unique)
	if len(unique) == 0 {
		return result, apperror.NewValidation("price list has no usable rows")
	}

	err := s.repo.Update(ctx, func(tx store.Tx) error {
		var err error
		result.Inserted, result.Updated, err = tx.UpsertPriceListItems(ctx, unique)
		if err != nil {
			return fmt.Errorf("upsert price list: %w", err)
		}
		return s.audit(ctx, tx, "import_price_list", "price_list", "",
			fmt.Sprintf("inserted=%d updated=%d", result.Inserted, result.Updated))
	})
	if err != nil {
		return domain.PriceListImportResult{}, err
	}
	s.prices.Invalidate(ctx)
	return result, nil
}

func (s *Service) ListPriceList(ctx context.Context) (domain.ListResponse[domain.PriceListItem], error) {
	var items []domain.PriceListItem
	err := s.repo.View(ctx, func(r store.Reader) error {
		var err error
		items, err = r.ListPriceList(ctx)
		return err
	})
	if err != nil {
		return domain.ListResponse[domain.PriceListItem]{}, err
	}
	return domain.NewListResponse(items), nil
}
