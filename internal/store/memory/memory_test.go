package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/store"
)

var base = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func royalStag() domain.InvoiceLine {
	return domain.InvoiceLine{
		BrandNumber:        "5016",
		BrandName:          "Royal Stag",
		PackSizeCase:       12,
		PackSizeQuantityML: 750,
		CasesDelivered:     5,
		BottlesDelivered:   3,
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: "INV-1", CreatedAt: base}); err != nil {
			return err
		}
		if _, err := tx.CreateStockLine(ctx, domain.StockLine{BrandNumber: "5016", PackSizeCase: 12, PackSizeQuantityML: 750}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	_ = s.View(ctx, func(r store.Reader) error {
		counts, _ := r.Counts(ctx)
		if counts.InvoiceCount != 0 || counts.StockCount != 0 {
			t.Fatalf("expected nothing persisted, got %+v", counts)
		}
		return nil
	})
}

func TestCreateInvoiceRejectsDuplicateNumber(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: "INV-1", Lines: []domain.InvoiceLine{royalStag()}})
		return err
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: "INV-1"})
		return err
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestInvoiceAdditionsCountOnlyAfterCutoff(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := royalStag().Key()

	err := s.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: "A", CreatedAt: base, Lines: []domain.InvoiceLine{royalStag()}}); err != nil {
			return err
		}
		other := royalStag()
		other.PackSizeQuantityML = 375
		_, err := tx.CreateInvoice(ctx, domain.Invoice{InvoiceNumber: "B", CreatedAt: base.Add(2 * time.Hour), Lines: []domain.InvoiceLine{royalStag(), other}})
		return err
	})
	if err != nil {
		t.Fatalf("seed invoices: %v", err)
	}

	_ = s.View(ctx, func(r store.Reader) error {
		all, _ := r.InvoiceAdditions(ctx, key, nil)
		if all.Cases != 10 || all.Bottles != 6 {
			t.Fatalf("expected 10 cases 6 bottles, got %+v", all)
		}
		cutoff := base
		after, _ := r.InvoiceAdditions(ctx, key, &cutoff)
		if after.Cases != 5 || after.Bottles != 3 {
			t.Fatalf("invoice created at the cutoff must not count, got %+v", after)
		}
		late := base.Add(3 * time.Hour)
		none, _ := r.InvoiceAdditions(ctx, key, &late)
		if none != (domain.Additions{}) {
			t.Fatalf("expected no additions, got %+v", none)
		}
		return nil
	})
}

func TestPreviousReportIsStrictlyBefore(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		for i, date := range []string{"2025-01-01", "2025-01-02"} {
			if _, err := tx.InsertSellReport(ctx, domain.SellReport{
				StockID:      1,
				ReportDate:   date,
				ClosingCases: i + 1,
				CreatedAt:    base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed reports: %v", err)
	}

	_ = s.View(ctx, func(r store.Reader) error {
		prev, err := r.PreviousReport(ctx, 1, base.Add(time.Hour))
		if err != nil || prev.ReportDate != "2025-01-01" {
			t.Fatalf("expected 2025-01-01, got %+v %v", prev, err)
		}
		if _, err := r.PreviousReport(ctx, 1, base); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		date, _ := r.PreviousReportDate(ctx, "2025-01-02")
		if date != "2025-01-01" {
			t.Fatalf("expected previous date 2025-01-01, got %q", date)
		}
		last, _ := r.LastReportsByStock(ctx)
		if last[1].ReportDate != "2025-01-02" {
			t.Fatalf("expected latest row 2025-01-02, got %+v", last[1])
		}
		return nil
	})
}

func TestUpsertFinanceKeepsCreationAndExcludesOwnBalance(t *testing.T) {
	s := New()
	ctx := context.Background()

	save := func(date string, final int64, by string, at time.Time) {
		t.Helper()
		err := s.Update(ctx, func(tx store.Tx) error {
			_, err := tx.UpsertFinance(ctx, domain.Finance{
				ReportDate:   date,
				FinalBalance: decimal.NewFromInt(final),
				CreatedBy:    by,
				UpdatedBy:    by,
				CreatedAt:    at,
				UpdatedAt:    at,
				Expenses:     []domain.Expense{{Name: "ice", Amount: decimal.NewFromInt(10)}},
			})
			return err
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", date, err)
		}
	}
	save("2025-01-01", -50, "owner", base)
	save("2025-01-02", 20, "owner", base.Add(time.Hour))
	save("2025-01-01", -40, "supervisor", base.Add(2*time.Hour))

	_ = s.View(ctx, func(r store.Reader) error {
		fin, err := r.GetFinance(ctx, "2025-01-01")
		if err != nil {
			t.Fatalf("get finance: %v", err)
		}
		if fin.CreatedBy != "owner" || !fin.CreatedAt.Equal(base) || fin.UpdatedBy != "supervisor" {
			t.Fatalf("creation metadata not kept: %+v", fin)
		}
		if len(fin.Expenses) != 1 {
			t.Fatalf("expected children replaced, got %d expenses", len(fin.Expenses))
		}
		balance, _ := r.LastFinanceBalance(ctx, "2025-01-02")
		if !balance.Equal(decimal.NewFromInt(-40)) {
			t.Fatalf("expected -40, got %s", balance)
		}
		balance, _ = r.LastFinanceBalance(ctx, "2025-01-03")
		if !balance.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected most recently created record, got %s", balance)
		}
		return nil
	})
}

func TestUpsertPriceListItemsByCompositeKey(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	var inserted, updated int
	err := s.Update(ctx, func(tx store.Tx) error {
		var err error
		inserted, updated, err = tx.UpsertPriceListItems(ctx, []domain.PriceListItem{
			{BrandNumber: "5016", SizeCode: "QQ", PackType: "G", VolumeML: 750, MRP: decimal.NewFromInt(1150)},
			{BrandNumber: "9999", SizeCode: "QQ", PackType: "G", VolumeML: 750, MRP: decimal.NewFromInt(400)},
		})
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if inserted != 1 || updated != 1 {
		t.Fatalf("expected 1 inserted 1 updated, got %d %d", inserted, updated)
	}
}

func TestUsersAreCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserAccount{Username: " Owner ", Password: "hash", Role: domain.RoleOwner}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{Username: "owner", Password: "hash"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	user, err := s.GetUser(ctx, "OWNER")
	if err != nil || user.Role != domain.RoleOwner || !user.Active {
		t.Fatalf("unexpected user %+v %v", user, err)
	}
	if err := s.UpdateUserPassword(ctx, "ghost", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
