package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("LIQUORSTOCK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set LIQUORSTOCK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func TestInvoiceAdditionsRespectCutoff(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	brand := fmt.Sprintf("IT-%d", stamp)
	first := fmt.Sprintf("INV-IT-%d-A", stamp)
	second := fmt.Sprintf("INV-IT-%d-B", stamp)
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM invoices WHERE invoice_number IN ($1, $2)`, first, second)
	})

	line := domain.InvoiceLine{
		BrandNumber:        brand,
		BrandName:          "Integration Brand",
		PackSizeCase:       12,
		PackSizeQuantityML: 750,
		CasesDelivered:     2,
		BottlesDelivered:   1,
		TotalAmount:        decimal.NewFromInt(100),
	}
	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: first, InvoiceDate: "2025-01-01", CreatedAt: base, Lines: []domain.InvoiceLine{line}}); err != nil {
			return err
		}
		_, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: second, InvoiceDate: "2025-01-02", CreatedAt: base.Add(time.Hour), Lines: []domain.InvoiceLine{line}})
		return err
	})
	if err != nil {
		t.Fatalf("create invoices: %v", err)
	}

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: first, InvoiceDate: "2025-01-01"})
		return err
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate invoice number, got %v", err)
	}

	err = s.View(ctx, func(r store.Reader) error {
		key := domain.StockKey{BrandNumber: brand, PackSizeCase: 12, PackSizeQuantityML: 750}
		all, err := r.InvoiceAdditions(ctx, key, nil)
		if err != nil {
			return err
		}
		if all.Cases != 4 || all.Bottles != 2 {
			t.Fatalf("expected 4 cases 2 bottles, got %+v", all)
		}
		after, err := r.InvoiceAdditions(ctx, key, &base)
		if err != nil {
			return err
		}
		if after.Cases != 2 || after.Bottles != 1 {
			t.Fatalf("expected only the later invoice, got %+v", after)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpsertFinanceReplacesEntries(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	reportDate := fmt.Sprintf("2999-%02d-%02d", time.Now().Nanosecond()%12+1, time.Now().Nanosecond()%28+1)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM sell_finance WHERE report_date = $1`, reportDate)
	})

	save := func(by string, entries []domain.MoneyEntry) {
		t.Helper()
		err := s.Update(ctx, func(tx store.Tx) error {
			_, err := tx.UpsertFinance(ctx, domain.Finance{
				ReportDate:      reportDate,
				FinalBalance:    decimal.NewFromInt(-25),
				CreatedBy:       by,
				UpdatedBy:       by,
				PhonePayEntries: entries,
			})
			return err
		})
		if err != nil {
			t.Fatalf("upsert finance: %v", err)
		}
	}
	save("owner", []domain.MoneyEntry{{Date: reportDate, Amount: decimal.NewFromInt(10)}, {Date: reportDate, Amount: decimal.NewFromInt(5)}})
	save("supervisor", []domain.MoneyEntry{{Date: reportDate, Amount: decimal.NewFromInt(7)}})

	err := s.View(ctx, func(r store.Reader) error {
		fin, err := r.GetFinance(ctx, reportDate)
		if err != nil {
			return err
		}
		if fin.CreatedBy != "owner" || fin.UpdatedBy != "supervisor" {
			t.Fatalf("unexpected metadata %+v", fin)
		}
		if len(fin.PhonePayEntries) != 1 || !fin.PhonePayEntries[0].Amount.Equal(decimal.NewFromInt(7)) {
			t.Fatalf("expected entries replaced, got %+v", fin.PhonePayEntries)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
