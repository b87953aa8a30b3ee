package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

const maxSerializableAttempts = 3

var (
	stockColumns = []string{
		"id", "brand_number", "brand_name", "product_type", "pack_type", "pack_size_case",
		"pack_size_quantity_ml", "total_cases", "total_bottles", "rate_per_case",
		"unit_rate_per_bottle", "total_amount", "last_invoice_date", "last_updated_item_name", "updated_at",
	}
	invoiceColumns = []string{
		"i.id", "i.invoice_number", "i.invoice_date", "i.retailer_name", "i.retailer_code",
		"i.licensee_pan", "i.uploaded_by", "i.created_at",
	}
	totalsColumns = []string{
		"t.e_challan_amount", "t.previous_credit", "t.sub_total", "t.special_excise_cess", "t.tcs",
		"t.less_this_invoice_value", "t.retailer_credit_balance", "t.invoice_value", "t.mrp_round_off",
		"t.net_invoice_value", "t.total_invoice_value",
	}
	reportColumns = []string{
		"id", "stock_id", "brand_number", "brand_name", "pack_size_case", "pack_size_quantity_ml",
		"opening_cases", "opening_bottles", "invoice_added_cases", "invoice_added_bottles",
		"total_cases", "total_bottles", "closing_cases", "closing_bottles", "sold_cases", "sold_bottles",
		"unit_rate_per_bottle", "sell_amount", "report_date", "created_by", "created_at",
		"edited_by", "edited_at", "edit_count",
	}
	financeColumns = []string{
		"id", "report_date", "total_sell_amount", "last_balance_amount", "total_amount", "upi_phonepay",
		"cash", "total_balance", "total_expenses", "final_balance", "created_by", "updated_by",
		"created_at", "updated_at",
	}
	priceColumns = []string{
		"id", "brand_number", "size_code", "pack_type", "product_name", "mrp", "volume_ml", "description",
	}
	auditColumns = []string{
		"id", "username", "role", "action", "entity_type", "entity_id", "details", "created_at",
	}
)

type Store struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 30
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET application_name = 'liquorstock'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// EnsureSchema creates every table the store reads. It runs once at startup
// so that no query has to tolerate a missing table later.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) View(ctx context.Context, fn func(r store.Reader) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer s.rollback(ctx, pgTx)
	return fn(&tx{q: pgTx, builder: s.builder})
}

// Update runs fn in a serializable transaction, retrying when postgres
// aborts it with a serialization failure.
func (s *Store) Update(ctx context.Context, fn func(t store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxSerializableAttempts; attempt++ {
		err = s.updateOnce(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
		logger.Warn(ctx, "serializable transaction retried", "attempt", attempt)
	}
	return err
}

func (s *Store) updateOnce(ctx context.Context, fn func(t store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer s.rollback(ctx, pgTx)

	if err := fn(&tx{q: pgTx, builder: s.builder}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, pgTx pgx.Tx) {
	if err := pgTx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error(ctx, "rollback failed", "error", err)
	}
}

type tx struct {
	q       pgx.Tx
	builder squirrel.StatementBuilderType
}

func (t *tx) selectAll(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, t.q, dst, query, args...)
}

func (t *tx) getOne(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, t.q, dst, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (t *tx) exec(ctx context.Context, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build statement: %w", err)
	}
	return t.q.Exec(ctx, query, args...)
}

func (t *tx) insertReturningID(ctx context.Context, q squirrel.InsertBuilder) (int64, error) {
	query, args, err := q.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	var id int64
	if err := t.q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *tx) ListStockLines(ctx context.Context) ([]domain.StockLine, error) {
	lines := make([]domain.StockLine, 0, 64)
	if err := t.selectAll(ctx, &lines, t.builder.Select(stockColumns...).From("present_stock").OrderBy("id")); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return lines, nil
}

func (t *tx) GetStockLine(ctx context.Context, id int64) (*domain.StockLine, error) {
	var line domain.StockLine
	q := t.builder.Select(stockColumns...).From("present_stock").Where(squirrel.Eq{"id": id})
	if err := t.getOne(ctx, &line, q); err != nil {
		return nil, err
	}
	return &line, nil
}

func (t *tx) FindStockLine(ctx context.Context, key domain.StockKey) (*domain.StockLine, error) {
	var line domain.StockLine
	q := t.builder.Select(stockColumns...).From("present_stock").Where(stockKeyFilter("", key))
	if err := t.getOne(ctx, &line, q); err != nil {
		return nil, err
	}
	return &line, nil
}

func (t *tx) GetStockSummary(ctx context.Context) (*domain.StockSummary, error) {
	var summary domain.StockSummary
	q := t.builder.
		Select("total_cases_all_items", "total_price_all_items", "last_updated_item_name", "updated_at").
		From("stock_summary").
		Where(squirrel.Eq{"id": 1})
	if err := t.getOne(ctx, &summary, q); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (t *tx) InvoiceAdditions(ctx context.Context, key domain.StockKey, since *time.Time) (domain.Additions, error) {
	q := t.builder.
		Select("COALESCE(SUM(l.cases_delivered), 0) AS cases", "COALESCE(SUM(l.bottles_delivered), 0) AS bottles").
		From("invoice_items l").
		Join("invoices i ON i.invoice_number = l.invoice_number").
		Where(stockKeyFilter("l.", key))
	if since != nil {
		q = q.Where(squirrel.Gt{"i.created_at": *since})
	}
	var added domain.Additions
	if err := t.getOne(ctx, &added, q); err != nil {
		return domain.Additions{}, fmt.Errorf("invoice additions: %w", err)
	}
	return added, nil
}

type invoiceRow struct {
	domain.Invoice
	domain.InvoiceTotals
}

func (r invoiceRow) toInvoice() domain.Invoice {
	inv := r.Invoice
	inv.Totals = r.InvoiceTotals
	return inv
}

func (t *tx) invoiceQuery() squirrel.SelectBuilder {
	return t.builder.
		Select(append(append([]string{}, invoiceColumns...), totalsColumns...)...).
		From("invoices i").
		Join("invoice_totals t ON t.invoice_number = i.invoice_number")
}

func (t *tx) LatestInvoice(ctx context.Context) (*domain.Invoice, error) {
	var row invoiceRow
	if err := t.getOne(ctx, &row, t.invoiceQuery().OrderBy("i.id DESC").Limit(1)); err != nil {
		return nil, err
	}
	inv := row.toInvoice()
	return &inv, nil
}

func (t *tx) InvoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_number = $1)`, invoiceNumber).Scan(&exists)
	return exists, err
}

func (t *tx) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	var rows []invoiceRow
	if err := t.selectAll(ctx, &rows, t.invoiceQuery().OrderBy("i.id DESC")); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	invoices := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, row.toInvoice())
	}
	return invoices, nil
}

func (t *tx) LastReportsByStock(ctx context.Context) (map[int64]domain.SellReport, error) {
	var rows []domain.SellReport
	q := t.builder.Select(reportColumns...).
		Options("DISTINCT ON (stock_id)").
		From("sell_reports").
		OrderBy("stock_id", "created_at DESC", "id DESC")
	if err := t.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("last reports by stock: %w", err)
	}
	last := make(map[int64]domain.SellReport, len(rows))
	for _, row := range rows {
		last[row.StockID] = row
	}
	return last, nil
}

func (t *tx) PreviousReport(ctx context.Context, stockID int64, before time.Time) (*domain.SellReport, error) {
	var row domain.SellReport
	q := t.builder.Select(reportColumns...).
		From("sell_reports").
		Where(squirrel.Eq{"stock_id": stockID}).
		Where(squirrel.Lt{"created_at": before}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1)
	if err := t.getOne(ctx, &row, q); err != nil {
		return nil, err
	}
	return &row, nil
}

func (t *tx) SellReportsByDate(ctx context.Context, reportDate string) ([]domain.SellReport, error) {
	rows := make([]domain.SellReport, 0, 32)
	q := t.builder.Select(reportColumns...).From("sell_reports").Where(squirrel.Eq{"report_date": reportDate}).OrderBy("id")
	if err := t.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("sell reports by date: %w", err)
	}
	return rows, nil
}

func (t *tx) LatestSellReport(ctx context.Context) (*domain.SellReport, error) {
	var row domain.SellReport
	q := t.builder.Select(reportColumns...).From("sell_reports").OrderBy("created_at DESC", "id DESC").Limit(1)
	if err := t.getOne(ctx, &row, q); err != nil {
		return nil, err
	}
	return &row, nil
}

func (t *tx) PreviousReportDate(ctx context.Context, before string) (string, error) {
	var date string
	err := t.q.QueryRow(ctx, `SELECT COALESCE(MAX(report_date), '') FROM sell_reports WHERE report_date < $1`, before).Scan(&date)
	return date, err
}

func (t *tx) ListSellReports(ctx context.Context) ([]domain.SellReport, error) {
	rows := make([]domain.SellReport, 0, 128)
	q := t.builder.Select(reportColumns...).From("sell_reports").OrderBy("created_at DESC", "id DESC")
	if err := t.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list sell reports: %w", err)
	}
	return rows, nil
}

func (t *tx) SellReportTotals(ctx context.Context) ([]domain.SellReportDateTotal, error) {
	totals := make([]domain.SellReportDateTotal, 0, 32)
	q := t.builder.
		Select(
			"report_date",
			"COUNT(*) AS total_items",
			"COALESCE(SUM(sell_amount), 0) AS total_sell_amount",
			"MAX(created_at) AS last_created_at",
		).
		From("sell_reports").
		GroupBy("report_date").
		OrderBy("report_date DESC")
	if err := t.selectAll(ctx, &totals, q); err != nil {
		return nil, fmt.Errorf("sell report totals: %w", err)
	}
	return totals, nil
}

func (t *tx) TotalSellAmount(ctx context.Context, reportDate string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.q.QueryRow(ctx, `SELECT COALESCE(SUM(sell_amount), 0) FROM sell_reports WHERE report_date = $1`, reportDate).Scan(&total)
	return total, err
}

func (t *tx) GetFinance(ctx context.Context, reportDate string) (*domain.Finance, error) {
	var fin domain.Finance
	q := t.builder.Select(financeColumns...).From("sell_finance").Where(squirrel.Eq{"report_date": reportDate})
	if err := t.getOne(ctx, &fin, q); err != nil {
		return nil, err
	}
	finances := []domain.Finance{fin}
	if err := t.loadFinanceChildren(ctx, finances); err != nil {
		return nil, err
	}
	return &finances[0], nil
}

func (t *tx) LastFinanceBalance(ctx context.Context, excludeDate string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query, args, err := t.builder.Select("final_balance").
		From("sell_finance").
		Where(squirrel.NotEq{"report_date": excludeDate}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build query: %w", err)
	}
	if err := t.q.QueryRow(ctx, query, args...).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (t *tx) ListFinances(ctx context.Context) ([]domain.Finance, error) {
	finances := make([]domain.Finance, 0, 32)
	q := t.builder.Select(financeColumns...).From("sell_finance").OrderBy("created_at DESC", "id DESC")
	if err := t.selectAll(ctx, &finances, q); err != nil {
		return nil, fmt.Errorf("list finances: %w", err)
	}
	if err := t.loadFinanceChildren(ctx, finances); err != nil {
		return nil, err
	}
	return finances, nil
}

type entryRow struct {
	FinanceID int64 `db:"finance_id"`
	domain.MoneyEntry
}

type expenseRow struct {
	FinanceID int64 `db:"finance_id"`
	domain.Expense
}

func (t *tx) loadFinanceChildren(ctx context.Context, finances []domain.Finance) error {
	if len(finances) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(finances))
	index := make(map[int64]int, len(finances))
	for i := range finances {
		ids = append(ids, finances[i].ID)
		index[finances[i].ID] = i
		finances[i].PhonePayEntries = []domain.MoneyEntry{}
		finances[i].CashEntries = []domain.MoneyEntry{}
		finances[i].Expenses = []domain.Expense{}
	}

	for _, table := range []string{"sell_finance_phonepay", "sell_finance_cash"} {
		var rows []entryRow
		q := t.builder.Select("finance_id", "txn_date", "amount").From(table).Where(squirrel.Eq{"finance_id": ids}).OrderBy("id")
		if err := t.selectAll(ctx, &rows, q); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		for _, row := range rows {
			fin := &finances[index[row.FinanceID]]
			if table == "sell_finance_phonepay" {
				fin.PhonePayEntries = append(fin.PhonePayEntries, row.MoneyEntry)
			} else {
				fin.CashEntries = append(fin.CashEntries, row.MoneyEntry)
			}
		}
	}

	var expenses []expenseRow
	q := t.builder.Select("finance_id", "name", "amount").From("sell_finance_expenses").Where(squirrel.Eq{"finance_id": ids}).OrderBy("id")
	if err := t.selectAll(ctx, &expenses, q); err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	for _, row := range expenses {
		fin := &finances[index[row.FinanceID]]
		fin.Expenses = append(fin.Expenses, row.Expense)
	}
	return nil
}

func (t *tx) ListPriceList(ctx context.Context) ([]domain.PriceListItem, error) {
	items := make([]domain.PriceListItem, 0, 256)
	if err := t.selectAll(ctx, &items, t.builder.Select(priceColumns...).From("price_list_items").OrderBy("id")); err != nil {
		return nil, fmt.Errorf("list price list: %w", err)
	}
	return items, nil
}

func (t *tx) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	logs := make([]domain.AuditLog, 0, 64)
	q := t.builder.Select(auditColumns...).From("audit_logs").OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if err := t.selectAll(ctx, &logs, q); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func (t *tx) ListUserLogins(ctx context.Context) ([]domain.UserLogin, error) {
	logins := make([]domain.UserLogin, 0, 8)
	q := t.builder.Select("username", "role", "last_login_at").From("user_logins").OrderBy("last_login_at DESC", "username")
	if err := t.selectAll(ctx, &logins, q); err != nil {
		return nil, fmt.Errorf("list user logins: %w", err)
	}
	return logins, nil
}

func (t *tx) Counts(ctx context.Context) (domain.StoreCounts, error) {
	var counts domain.StoreCounts
	err := pgxscan.Get(ctx, t.q, &counts, `
		SELECT
			(SELECT COUNT(*) FROM invoices) AS invoice_count,
			(SELECT COUNT(*) FROM invoice_items) AS item_count,
			(SELECT COUNT(*) FROM present_stock) AS stock_count
	`)
	return counts, err
}

func (t *tx) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	number := strings.TrimSpace(invoice.InvoiceNumber)
	if number == "" {
		return nil, store.ErrInvalid
	}
	invoice.InvoiceNumber = number
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}

	id, err := t.insertReturningID(ctx, t.builder.Insert("invoices").
		Columns("invoice_number", "invoice_date", "retailer_name", "retailer_code", "licensee_pan", "uploaded_by", "created_at").
		Values(number, invoice.InvoiceDate, invoice.RetailerName, invoice.RetailerCode, invoice.LicenseePAN, invoice.UploadedBy, invoice.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	invoice.ID = id

	tot := invoice.Totals
	if _, err := t.exec(ctx, t.builder.Insert("invoice_totals").
		Columns("invoice_number", "e_challan_amount", "previous_credit", "sub_total", "special_excise_cess", "tcs",
			"less_this_invoice_value", "retailer_credit_balance", "invoice_value", "mrp_round_off",
			"net_invoice_value", "total_invoice_value").
		Values(number, tot.EChallanAmount, tot.PreviousCredit, tot.SubTotal, tot.SpecialExciseCess, tot.TCS,
			tot.LessThisInvoiceValue, tot.RetailerCreditBalance, tot.InvoiceValue, tot.MRPRoundOff,
			tot.NetInvoiceValue, tot.TotalInvoiceValue)); err != nil {
		return nil, fmt.Errorf("insert invoice totals: %w", err)
	}

	for i := range invoice.Lines {
		line := &invoice.Lines[i]
		line.InvoiceNumber = number
		lineID, err := t.insertReturningID(ctx, t.builder.Insert("invoice_items").
			Columns("invoice_number", "sl_no", "brand_number", "brand_name", "product_type", "pack_type",
				"pack_size_case", "pack_size_quantity_ml", "cases_delivered", "bottles_delivered",
				"rate_per_case", "unit_rate_per_bottle", "total_amount").
			Values(number, line.SlNo, line.BrandNumber, line.BrandName, line.ProductType, line.PackType,
				line.PackSizeCase, line.PackSizeQuantityML, line.CasesDelivered, line.BottlesDelivered,
				line.RatePerCase, line.UnitRatePerBottle, line.TotalAmount))
		if err != nil {
			return nil, fmt.Errorf("insert invoice item %d: %w", line.SlNo, err)
		}
		line.ID = lineID
	}
	return &invoice, nil
}

func (t *tx) DeleteInvoice(ctx context.Context, invoiceNumber string) error {
	tag, err := t.exec(ctx, t.builder.Delete("invoices").Where(squirrel.Eq{"invoice_number": invoiceNumber}))
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) CreateStockLine(ctx context.Context, line domain.StockLine) (*domain.StockLine, error) {
	if line.UpdatedAt.IsZero() {
		line.UpdatedAt = time.Now().UTC()
	}
	id, err := t.insertReturningID(ctx, t.builder.Insert("present_stock").
		Columns(stockColumns[1:]...).
		Values(line.BrandNumber, line.BrandName, line.ProductType, line.PackType, line.PackSizeCase,
			line.PackSizeQuantityML, line.TotalCases, line.TotalBottles, line.RatePerCase,
			line.UnitRatePerBottle, line.TotalAmount, line.LastInvoiceDate, line.LastUpdatedItemName, line.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("insert stock line: %w", err)
	}
	line.ID = id
	return &line, nil
}

func (t *tx) UpdateStockLine(ctx context.Context, line domain.StockLine) error {
	tag, err := t.exec(ctx, t.builder.Update("present_stock").
		SetMap(map[string]any{
			"brand_name":             line.BrandName,
			"product_type":           line.ProductType,
			"pack_type":              line.PackType,
			"total_cases":            line.TotalCases,
			"total_bottles":          line.TotalBottles,
			"rate_per_case":          line.RatePerCase,
			"unit_rate_per_bottle":   line.UnitRatePerBottle,
			"total_amount":           line.TotalAmount,
			"last_invoice_date":      line.LastInvoiceDate,
			"last_updated_item_name": line.LastUpdatedItemName,
			"updated_at":             line.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": line.ID}))
	if err != nil {
		return fmt.Errorf("update stock line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) SaveStockSummary(ctx context.Context, summary domain.StockSummary) error {
	_, err := t.exec(ctx, t.builder.Insert("stock_summary").
		Columns("id", "total_cases_all_items", "total_price_all_items", "last_updated_item_name", "updated_at").
		Values(1, summary.TotalCasesAllItems, summary.TotalPriceAllItems, summary.LastUpdatedItemName, summary.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			total_cases_all_items = EXCLUDED.total_cases_all_items,
			total_price_all_items = EXCLUDED.total_price_all_items,
			last_updated_item_name = EXCLUDED.last_updated_item_name,
			updated_at = EXCLUDED.updated_at`))
	if err != nil {
		return fmt.Errorf("save stock summary: %w", err)
	}
	return nil
}

func (t *tx) InsertSellReport(ctx context.Context, row domain.SellReport) (*domain.SellReport, error) {
	if row.StockID == 0 || row.ReportDate == "" {
		return nil, store.ErrInvalid
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	id, err := t.insertReturningID(ctx, t.builder.Insert("sell_reports").
		Columns(reportColumns[1:]...).
		Values(row.StockID, row.BrandNumber, row.BrandName, row.PackSizeCase, row.PackSizeQuantityML,
			row.OpeningCases, row.OpeningBottles, row.InvoiceAddedCases, row.InvoiceAddedBottles,
			row.TotalCases, row.TotalBottles, row.ClosingCases, row.ClosingBottles, row.SoldCases, row.SoldBottles,
			row.UnitRatePerBottle, row.SellAmount, row.ReportDate, row.CreatedBy, row.CreatedAt,
			row.EditedBy, row.EditedAt, row.EditCount))
	if err != nil {
		return nil, fmt.Errorf("insert sell report: %w", err)
	}
	row.ID = id
	return &row, nil
}

func (t *tx) UpdateSellReport(ctx context.Context, row domain.SellReport) error {
	tag, err := t.exec(ctx, t.builder.Update("sell_reports").
		SetMap(map[string]any{
			"opening_cases":         row.OpeningCases,
			"opening_bottles":       row.OpeningBottles,
			"invoice_added_cases":   row.InvoiceAddedCases,
			"invoice_added_bottles": row.InvoiceAddedBottles,
			"total_cases":           row.TotalCases,
			"total_bottles":         row.TotalBottles,
			"closing_cases":         row.ClosingCases,
			"closing_bottles":       row.ClosingBottles,
			"sold_cases":            row.SoldCases,
			"sold_bottles":          row.SoldBottles,
			"unit_rate_per_bottle":  row.UnitRatePerBottle,
			"sell_amount":           row.SellAmount,
			"edited_by":             row.EditedBy,
			"edited_at":             row.EditedAt,
			"edit_count":            row.EditCount,
		}).
		Where(squirrel.Eq{"id": row.ID}))
	if err != nil {
		return fmt.Errorf("update sell report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) DeleteSellReports(ctx context.Context, reportDate string) (int, error) {
	tag, err := t.exec(ctx, t.builder.Delete("sell_reports").Where(squirrel.Eq{"report_date": reportDate}))
	if err != nil {
		return 0, fmt.Errorf("delete sell reports: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *tx) UpsertFinance(ctx context.Context, finance domain.Finance) (*domain.Finance, error) {
	if finance.ReportDate == "" {
		return nil, store.ErrInvalid
	}
	now := time.Now().UTC()
	if finance.CreatedAt.IsZero() {
		finance.CreatedAt = now
	}
	if finance.UpdatedAt.IsZero() {
		finance.UpdatedAt = now
	}

	query, args, err := t.builder.Insert("sell_finance").
		Columns(financeColumns[1:]...).
		Values(finance.ReportDate, finance.TotalSellAmount, finance.LastBalanceAmount, finance.TotalAmount,
			finance.UPIPhonePay, finance.Cash, finance.TotalBalance, finance.TotalExpenses, finance.FinalBalance,
			finance.CreatedBy, finance.UpdatedBy, finance.CreatedAt, finance.UpdatedAt).
		Suffix(`ON CONFLICT (report_date) DO UPDATE SET
			total_sell_amount = EXCLUDED.total_sell_amount,
			last_balance_amount = EXCLUDED.last_balance_amount,
			total_amount = EXCLUDED.total_amount,
			upi_phonepay = EXCLUDED.upi_phonepay,
			cash = EXCLUDED.cash,
			total_balance = EXCLUDED.total_balance,
			total_expenses = EXCLUDED.total_expenses,
			final_balance = EXCLUDED.final_balance,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
			RETURNING id, created_by, created_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build finance upsert: %w", err)
	}
	if err := t.q.QueryRow(ctx, query, args...).Scan(&finance.ID, &finance.CreatedBy, &finance.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert finance: %w", err)
	}

	for _, table := range []string{"sell_finance_phonepay", "sell_finance_cash", "sell_finance_expenses"} {
		if _, err := t.exec(ctx, t.builder.Delete(table).Where(squirrel.Eq{"finance_id": finance.ID})); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := t.insertEntries(ctx, "sell_finance_phonepay", finance.ID, finance.PhonePayEntries); err != nil {
		return nil, err
	}
	if err := t.insertEntries(ctx, "sell_finance_cash", finance.ID, finance.CashEntries); err != nil {
		return nil, err
	}
	if len(finance.Expenses) > 0 {
		q := t.builder.Insert("sell_finance_expenses").Columns("finance_id", "name", "amount")
		for _, exp := range finance.Expenses {
			q = q.Values(finance.ID, exp.Name, exp.Amount)
		}
		if _, err := t.exec(ctx, q); err != nil {
			return nil, fmt.Errorf("insert expenses: %w", err)
		}
	}
	return &finance, nil
}

func (t *tx) insertEntries(ctx context.Context, table string, financeID int64, entries []domain.MoneyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := t.builder.Insert(table).Columns("finance_id", "txn_date", "amount")
	for _, entry := range entries {
		q = q.Values(financeID, entry.Date, entry.Amount)
	}
	if _, err := t.exec(ctx, q); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (t *tx) DeleteFinance(ctx context.Context, reportDate string) error {
	tag, err := t.exec(ctx, t.builder.Delete("sell_finance").Where(squirrel.Eq{"report_date": reportDate}))
	if err != nil {
		return fmt.Errorf("delete finance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) UpsertPriceListItems(ctx context.Context, items []domain.PriceListItem) (int, int, error) {
	inserted, updated := 0, 0
	for _, item := range items {
		query, args, err := t.builder.Insert("price_list_items").
			Columns(priceColumns[1:]...).
			Values(strings.TrimSpace(item.BrandNumber), item.SizeCode, item.PackType, item.ProductName, item.MRP, item.VolumeML, item.Description).
			Suffix(`ON CONFLICT (brand_number, size_code, pack_type, volume_ml) DO UPDATE SET
				product_name = EXCLUDED.product_name,
				mrp = EXCLUDED.mrp,
				description = EXCLUDED.description
				RETURNING (xmax = 0) AS inserted`).
			ToSql()
		if err != nil {
			return 0, 0, fmt.Errorf("build price upsert: %w", err)
		}
		var wasInserted bool
		if err := t.q.QueryRow(ctx, query, args...).Scan(&wasInserted); err != nil {
			return 0, 0, fmt.Errorf("upsert price %s: %w", item.BrandNumber, err)
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

func (t *tx) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := t.exec(ctx, t.builder.Insert("audit_logs").
		Columns(auditColumns...).
		Values(entry.ID, entry.Username, entry.Role, entry.Action, entry.EntityType, entry.EntityID, entry.Details, entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (t *tx) RecordUserLogin(ctx context.Context, login domain.UserLogin) error {
	if strings.TrimSpace(login.Username) == "" {
		return store.ErrInvalid
	}
	if login.LastLoginAt.IsZero() {
		login.LastLoginAt = time.Now().UTC()
	}
	_, err := t.exec(ctx, t.builder.Insert("user_logins").
		Columns("username", "role", "last_login_at").
		Values(login.Username, login.Role, login.LastLoginAt).
		Suffix("ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role, last_login_at = EXCLUDED.last_login_at"))
	if err != nil {
		return fmt.Errorf("record user login: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query, args, err := s.builder.Insert("users").
		Columns("username", "password_hash", "role", "active", "created_at").
		Values(username, user.Password, user.Role, true, user.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	query, args, err := s.builder.Select("username", "password_hash", "role", "active", "created_at").
		From("users").
		Where(squirrel.Eq{"username": strings.ToLower(strings.TrimSpace(username))}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, s.pool, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 8)
	query, args, err := s.builder.Select("username", "password_hash", "role", "active", "created_at").
		From("users").
		OrderBy("username").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, s.pool, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE username = $1`, username, password)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func stockKeyFilter(prefix string, key domain.StockKey) squirrel.Eq {
	return squirrel.Eq{
		prefix + "brand_number":          key.BrandNumber,
		prefix + "pack_size_case":        key.PackSizeCase,
		prefix + "pack_size_quantity_ml": key.PackSizeQuantityML,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
