package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid record")
)

// Reader is the read side of the store. Every method sees the state of the
// transaction it was handed in.
type Reader interface {
	ListStockLines(ctx context.Context) ([]domain.StockLine, error)
	GetStockLine(ctx context.Context, id int64) (*domain.StockLine, error)
	FindStockLine(ctx context.Context, key domain.StockKey) (*domain.StockLine, error)
	GetStockSummary(ctx context.Context) (*domain.StockSummary, error)

	// InvoiceAdditions sums the deliveries of invoices created strictly after
	// since. A nil since counts every invoice.
	InvoiceAdditions(ctx context.Context, key domain.StockKey, since *time.Time) (domain.Additions, error)
	LatestInvoice(ctx context.Context) (*domain.Invoice, error)
	InvoiceExists(ctx context.Context, invoiceNumber string) (bool, error)
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)

	LastReportsByStock(ctx context.Context) (map[int64]domain.SellReport, error)
	PreviousReport(ctx context.Context, stockID int64, before time.Time) (*domain.SellReport, error)
	SellReportsByDate(ctx context.Context, reportDate string) ([]domain.SellReport, error)
	LatestSellReport(ctx context.Context) (*domain.SellReport, error)
	PreviousReportDate(ctx context.Context, before string) (string, error)
	ListSellReports(ctx context.Context) ([]domain.SellReport, error)
	SellReportTotals(ctx context.Context) ([]domain.SellReportDateTotal, error)
	TotalSellAmount(ctx context.Context, reportDate string) (decimal.Decimal, error)

	GetFinance(ctx context.Context, reportDate string) (*domain.Finance, error)
	// LastFinanceBalance is the final balance of the most recently created
	// finance record other than the one for excludeDate.
	LastFinanceBalance(ctx context.Context, excludeDate string) (decimal.Decimal, error)
	ListFinances(ctx context.Context) ([]domain.Finance, error)

	ListPriceList(ctx context.Context) ([]domain.PriceListItem, error)
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
	ListUserLogins(ctx context.Context) ([]domain.UserLogin, error)
	Counts(ctx context.Context) (domain.StoreCounts, error)
}

type Writer interface {
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	DeleteInvoice(ctx context.Context, invoiceNumber string) error

	CreateStockLine(ctx context.Context, line domain.StockLine) (*domain.StockLine, error)
	UpdateStockLine(ctx context.Context, line domain.StockLine) error
	SaveStockSummary(ctx context.Context, summary domain.StockSummary) error

	InsertSellReport(ctx context.Context, row domain.SellReport) (*domain.SellReport, error)
	UpdateSellReport(ctx context.Context, row domain.SellReport) error
	DeleteSellReports(ctx context.Context, reportDate string) (int, error)

	// UpsertFinance replaces the record of a report date together with its
	// entries. The creation metadata of an existing record is kept.
	UpsertFinance(ctx context.Context, finance domain.Finance) (*domain.Finance, error)
	DeleteFinance(ctx context.Context, reportDate string) error

	UpsertPriceListItems(ctx context.Context, items []domain.PriceListItem) (inserted int, updated int, err error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	RecordUserLogin(ctx context.Context, login domain.UserLogin) error
}

type Tx interface {
	Reader
	Writer
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Repository runs reads and all-or-nothing writes. An error returned from
// the Update callback discards every write made inside it.
type Repository interface {
	UserStore
	View(ctx context.Context, fn func(r Reader) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
