package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/ledger"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/units"
)

func (s *Service) checkRetailer(doc domain.InvoiceDocument) error {
	if strings.TrimSpace(doc.Retailer.Code) != s.retailerCode {
		return apperror.NewValidationf("Retailer code mismatch. Expected %s.", s.retailerCode)
	}
	return nil
}

// PreviewInvoice checks an extracted invoice without storing it.
func (s *Service) PreviewInvoice(ctx context.Context, doc domain.InvoiceDocument) (domain.InvoicePreviewResponse, error) {
	if err := s.checkRetailer(doc); err != nil {
		return domain.InvoicePreviewResponse{}, err
	}
	number := strings.TrimSpace(doc.InvoiceMeta.InvoiceNumber)
	if number != "" {
		var exists bool
		err := s.repo.View(ctx, func(r store.Reader) error {
			var err error
			exists, err = r.InvoiceExists(ctx, number)
			return err
		})
		if err != nil {
			return domain.InvoicePreviewResponse{}, err
		}
		if exists {
			return domain.InvoicePreviewResponse{}, apperror.NewConflict("Invoice already exists: " + number)
		}
	}
	return domain.InvoicePreviewResponse{Preview: doc}, nil
}

// IngestInvoice stores an extracted invoice and adds its deliveries to the
// stock ledger, valued at MRP.
func (s *Service) IngestInvoice(ctx context.Context, doc domain.InvoiceDocument) (domain.InvoiceIngestResponse, error) {
	if err := s.checkRetailer(doc); err != nil {
		return domain.InvoiceIngestResponse{}, err
	}
	number := strings.TrimSpace(doc.InvoiceMeta.InvoiceNumber)
	if number == "" {
		return domain.InvoiceIngestResponse{}, apperror.NewValidation("invoice_number is required")
	}
	invoiceDate, err := units.NormalizeDate(doc.InvoiceMeta.InvoiceDate)
	if err != nil {
		return domain.InvoiceIngestResponse{}, apperror.NewValidation("invalid invoice_date format")
	}
	mrps, err := s.mrpMap(ctx)
	if err != nil {
		return domain.InvoiceIngestResponse{}, err
	}

	actor := actorOrSystem(ctx)
	invoice := domain.Invoice{
		InvoiceNumber: number,
		InvoiceDate:   invoiceDate,
		RetailerName:  doc.Retailer.Name,
		RetailerCode:  strings.TrimSpace(doc.Retailer.Code),
		LicenseePAN:   doc.Licensee.PAN,
		UploadedBy:    actor.Username,
		Totals:        doc.Totals,
		Lines:         make([]domain.InvoiceLine, 0, len(doc.Items)),
	}
	for i, item := range doc.Items {
		if !units.InRange(item.CasesDelivered, item.BottlesDelivered) {
			return domain.InvoiceIngestResponse{}, apperror.NewValidationf("item #%d delivered quantities must be between 0 and %d", i+1, units.MaxQuantity)
		}
		invoice.Lines = append(invoice.Lines, domain.InvoiceLine{
			SlNo:               item.SlNo,
			BrandNumber:        strings.TrimSpace(item.BrandNumber),
			BrandName:          item.BrandName,
			ProductType:        item.ProductType,
			PackType:           item.PackType,
			PackSizeCase:       item.PackSizeCase,
			PackSizeQuantityML: item.PackSizeQuantityML,
			CasesDelivered:     item.CasesDelivered,
			BottlesDelivered:   item.BottlesDelivered,
			RatePerCase:        item.RatePerCase,
			UnitRatePerBottle:  item.UnitRatePerBottle,
			TotalAmount:        item.TotalAmount,
		})
	}

	// Sell reports cut stock off at the invoices they have seen, so ingestion
	// serializes with them.
	var created *domain.Invoice
	err = s.withLock(ctx, sellReportLockKey, func() error {
		return s.repo.Update(ctx, func(tx store.Tx) error {
			invoice.CreatedAt = s.now()
			var err error
			created, err = tx.CreateInvoice(ctx, invoice)
			if err != nil {
				if errors.Is(err, store.ErrConflict) {
					return apperror.NewConflict("Invoice already exists: " + number)
				}
				return fmt.Errorf("create invoice: %w", err)
			}
			for _, item := range created.Lines {
				mrp := mrps.LookupPack(item.BrandNumber, item.PackSizeQuantityML, item.PackType)
				if err := s.receive(ctx, tx, item, mrp, invoiceDate); err != nil {
					return err
				}
			}
			if _, err := s.refreshSummary(ctx, tx); err != nil {
				return err
			}
			return s.audit(ctx, tx, "upload_invoice", "invoice", number, "")
		})
	})
	if err != nil {
		return domain.InvoiceIngestResponse{}, err
	}
	return domain.InvoiceIngestResponse{InvoiceID: created.ID, Invoice: doc}, nil
}

// receive adds one delivered line to its stock line, creating the line on
// first delivery.
func (s *Service) receive(ctx context.Context, tx store.Tx, item domain.InvoiceLine, mrp decimal.NullDecimal, invoiceDate string) error {
	at := s.now()
	line, err := tx.FindStockLine(ctx, item.Key())
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := tx.CreateStockLine(ctx, ledger.NewLineFromDelivery(item, mrp, invoiceDate, at)); err != nil {
			return fmt.Errorf("create stock line %s: %w", item.BrandNumber, err)
		}
		return nil
	case err != nil:
		return err
	}
	ledger.ApplyDelivery(line, item, mrp, invoiceDate, at)
	if err := tx.UpdateStockLine(ctx, *line); err != nil {
		return fmt.Errorf("update stock line %d: %w", line.ID, err)
	}
	return nil
}

// ListInvoices lists uploaded invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context) (domain.ListResponse[domain.InvoiceListItem], error) {
	var invoices []domain.Invoice
	err := s.repo.View(ctx, func(r store.Reader) error {
		var err error
		invoices, err = r.ListInvoices(ctx)
		return err
	})
	if err != nil {
		return domain.ListResponse[domain.InvoiceListItem]{}, err
	}
	items := make([]domain.InvoiceListItem, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, domain.InvoiceListItem{
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   inv.InvoiceDate,
			RetailerCode:  inv.RetailerCode,
			UploadedBy:    inv.UploadedBy,
			UploadedAt:    inv.CreatedAt,
		})
	}
	return domain.NewListResponse(items), nil
}
