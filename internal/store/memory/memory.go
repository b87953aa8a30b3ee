package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/store"
	"liquorstock/backend/internal/xid"
)

// Store keeps everything in process. Update runs against a copy of the state
// that replaces the live one only when the callback succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state

	usersMu         sync.RWMutex
	usersByUsername map[string]domain.UserAccount
}

type state struct {
	stock       map[int64]domain.StockLine
	summary     *domain.StockSummary
	invoices    map[string]domain.Invoice
	reports     []domain.SellReport
	finances    map[string]domain.Finance
	priceList   []domain.PriceListItem
	auditLogs   []domain.AuditLog
	loginByUser map[string]domain.UserLogin

	nextStockID   int64
	nextInvoiceID int64
	nextLineID    int64
	nextReportID  int64
	nextFinanceID int64
	nextPriceID   int64
}

func New() *Store {
	return &Store{
		state: &state{
			stock:       make(map[int64]domain.StockLine),
			invoices:    make(map[string]domain.Invoice),
			reports:     make([]domain.SellReport, 0, 64),
			finances:    make(map[string]domain.Finance),
			priceList:   make([]domain.PriceListItem, 0, 64),
			auditLogs:   make([]domain.AuditLog, 0, 128),
			loginByUser: make(map[string]domain.UserLogin),
		},
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small price list for dev/demo
// mode. Stock only ever enters through invoices.
func NewSeeded() *Store {
	s := New()
	items := []domain.PriceListItem{
		{BrandNumber: "5016", SizeCode: "QQ", PackType: "G", ProductName: "Royal Stag Whisky", MRP: decimal.NewFromInt(1100), VolumeML: 750, Description: "type: whisky"},
		{BrandNumber: "5016", SizeCode: "PP", PackType: "G", ProductName: "Royal Stag Whisky", MRP: decimal.NewFromInt(560), VolumeML: 375, Description: "type: whisky"},
		{BrandNumber: "0110", SizeCode: "QQ", PackType: "G", ProductName: "Old Monk Rum", MRP: decimal.NewFromInt(620), VolumeML: 750, Description: "type: rum"},
		{BrandNumber: "7001", SizeCode: "BB", PackType: "C", ProductName: "Kingfisher Strong Beer", MRP: decimal.NewFromInt(180), VolumeML: 650, Description: "type: beer"},
	}
	for _, item := range items {
		s.state.nextPriceID++
		item.ID = s.state.nextPriceID
		s.state.priceList = append(s.state.priceList, item)
	}
	return s
}

func (s *Store) View(_ context.Context, fn func(r store.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.state})
}

func (s *Store) Update(_ context.Context, fn func(t store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() {}

func (st *state) clone() *state {
	c := *st
	c.stock = make(map[int64]domain.StockLine, len(st.stock))
	for id, line := range st.stock {
		c.stock[id] = line
	}
	if st.summary != nil {
		summary := *st.summary
		c.summary = &summary
	}
	c.invoices = make(map[string]domain.Invoice, len(st.invoices))
	for number, inv := range st.invoices {
		c.invoices[number] = cloneInvoice(inv)
	}
	c.reports = make([]domain.SellReport, len(st.reports))
	for i, row := range st.reports {
		c.reports[i] = cloneReport(row)
	}
	c.finances = make(map[string]domain.Finance, len(st.finances))
	for date, fin := range st.finances {
		c.finances[date] = cloneFinance(fin)
	}
	c.priceList = slices.Clone(st.priceList)
	c.auditLogs = slices.Clone(st.auditLogs)
	c.loginByUser = make(map[string]domain.UserLogin, len(st.loginByUser))
	for username, login := range st.loginByUser {
		c.loginByUser[username] = login
	}
	return &c
}

type tx struct {
	st *state
}

func (t *tx) ListStockLines(_ context.Context) ([]domain.StockLine, error) {
	lines := make([]domain.StockLine, 0, len(t.st.stock))
	for _, line := range t.st.stock {
		lines = append(lines, line)
	}
	slices.SortFunc(lines, func(a, b domain.StockLine) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return lines, nil
}

func (t *tx) GetStockLine(_ context.Context, id int64) (*domain.StockLine, error) {
	line, ok := t.st.stock[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &line, nil
}

func (t *tx) FindStockLine(_ context.Context, key domain.StockKey) (*domain.StockLine, error) {
	for _, line := range t.st.stock {
		if line.Key() == key {
			found := line
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) GetStockSummary(_ context.Context) (*domain.StockSummary, error) {
	if t.st.summary == nil {
		return nil, store.ErrNotFound
	}
	summary := *t.st.summary
	return &summary, nil
}

func (t *tx) InvoiceAdditions(_ context.Context, key domain.StockKey, since *time.Time) (domain.Additions, error) {
	var added domain.Additions
	for _, inv := range t.st.invoices {
		if since != nil && !inv.CreatedAt.After(*since) {
			continue
		}
		for _, line := range inv.Lines {
			if line.Key() != key {
				continue
			}
			added.Cases += line.CasesDelivered
			added.Bottles += line.BottlesDelivered
		}
	}
	return added, nil
}

func (t *tx) LatestInvoice(_ context.Context) (*domain.Invoice, error) {
	var latest *domain.Invoice
	for _, inv := range t.st.invoices {
		if latest == nil || inv.ID > latest.ID {
			found := cloneInvoice(inv)
			latest = &found
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (t *tx) InvoiceExists(_ context.Context, invoiceNumber string) (bool, error) {
	_, ok := t.st.invoices[invoiceNumber]
	return ok, nil
}

func (t *tx) ListInvoices(_ context.Context) ([]domain.Invoice, error) {
	invoices := make([]domain.Invoice, 0, len(t.st.invoices))
	for _, inv := range t.st.invoices {
		invoices = append(invoices, cloneInvoice(inv))
	}
	slices.SortFunc(invoices, func(a, b domain.Invoice) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return invoices, nil
}

func (t *tx) LastReportsByStock(_ context.Context) (map[int64]domain.SellReport, error) {
	last := make(map[int64]domain.SellReport)
	for _, row := range t.st.reports {
		current, ok := last[row.StockID]
		if !ok || newerReport(row, current) {
			last[row.StockID] = row
		}
	}
	return last, nil
}

func (t *tx) PreviousReport(_ context.Context, stockID int64, before time.Time) (*domain.SellReport, error) {
	var previous *domain.SellReport
	for i := range t.st.reports {
		row := t.st.reports[i]
		if row.StockID != stockID || !row.CreatedAt.Before(before) {
			continue
		}
		if previous == nil || newerReport(row, *previous) {
			found := row
			previous = &found
		}
	}
	if previous == nil {
		return nil, store.ErrNotFound
	}
	return previous, nil
}

func (t *tx) SellReportsByDate(_ context.Context, reportDate string) ([]domain.SellReport, error) {
	rows := make([]domain.SellReport, 0, 16)
	for _, row := range t.st.reports {
		if row.ReportDate == reportDate {
			rows = append(rows, cloneReport(row))
		}
	}
	slices.SortFunc(rows, func(a, b domain.SellReport) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return rows, nil
}

func (t *tx) LatestSellReport(_ context.Context) (*domain.SellReport, error) {
	var latest *domain.SellReport
	for _, row := range t.st.reports {
		if latest == nil || newerReport(row, *latest) {
			found := cloneReport(row)
			latest = &found
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (t *tx) PreviousReportDate(_ context.Context, before string) (string, error) {
	previous := ""
	for _, row := range t.st.reports {
		if row.ReportDate < before && row.ReportDate > previous {
			previous = row.ReportDate
		}
	}
	return previous, nil
}

func (t *tx) ListSellReports(_ context.Context) ([]domain.SellReport, error) {
	rows := make([]domain.SellReport, 0, len(t.st.reports))
	for _, row := range t.st.reports {
		rows = append(rows, cloneReport(row))
	}
	slices.SortFunc(rows, func(a, b domain.SellReport) int {
		if newerReport(a, b) {
			return -1
		}
		if newerReport(b, a) {
			return 1
		}
		return 0
	})
	return rows, nil
}

func (t *tx) SellReportTotals(_ context.Context) ([]domain.SellReportDateTotal, error) {
	byDate := make(map[string]*domain.SellReportDateTotal)
	for _, row := range t.st.reports {
		total, ok := byDate[row.ReportDate]
		if !ok {
			total = &domain.SellReportDateTotal{ReportDate: row.ReportDate, TotalSellAmount: decimal.Zero}
			byDate[row.ReportDate] = total
		}
		total.TotalItems++
		if row.SellAmount.Valid {
			total.TotalSellAmount = total.TotalSellAmount.Add(row.SellAmount.Decimal)
		}
		if row.CreatedAt.After(total.LastCreatedAt) {
			total.LastCreatedAt = row.CreatedAt
		}
	}
	totals := make([]domain.SellReportDateTotal, 0, len(byDate))
	for _, total := range byDate {
		totals = append(totals, *total)
	}
	slices.SortFunc(totals, func(a, b domain.SellReportDateTotal) int {
		return cmp.Compare(b.ReportDate, a.ReportDate)
	})
	return totals, nil
}

func (t *tx) TotalSellAmount(_ context.Context, reportDate string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, row := range t.st.reports {
		if row.ReportDate == reportDate && row.SellAmount.Valid {
			total = total.Add(row.SellAmount.Decimal)
		}
	}
	return total, nil
}

func (t *tx) GetFinance(_ context.Context, reportDate string) (*domain.Finance, error) {
	fin, ok := t.st.finances[reportDate]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneFinance(fin)
	return &found, nil
}

func (t *tx) LastFinanceBalance(_ context.Context, excludeDate string) (decimal.Decimal, error) {
	var last *domain.Finance
	for date, fin := range t.st.finances {
		if date == excludeDate {
			continue
		}
		if last == nil || fin.CreatedAt.After(last.CreatedAt) ||
			(fin.CreatedAt.Equal(last.CreatedAt) && fin.ID > last.ID) {
			found := fin
			last = &found
		}
	}
	if last == nil {
		return decimal.Zero, nil
	}
	return last.FinalBalance, nil
}

func (t *tx) ListFinances(_ context.Context) ([]domain.Finance, error) {
	finances := make([]domain.Finance, 0, len(t.st.finances))
	for _, fin := range t.st.finances {
		finances = append(finances, cloneFinance(fin))
	}
	slices.SortFunc(finances, func(a, b domain.Finance) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return finances, nil
}

func (t *tx) ListPriceList(_ context.Context) ([]domain.PriceListItem, error) {
	return slices.Clone(t.st.priceList), nil
}

func (t *tx) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	result := slices.Clone(t.st.auditLogs)
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmp.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (t *tx) ListUserLogins(_ context.Context) ([]domain.UserLogin, error) {
	logins := make([]domain.UserLogin, 0, len(t.st.loginByUser))
	for _, login := range t.st.loginByUser {
		logins = append(logins, login)
	}
	slices.SortFunc(logins, func(a, b domain.UserLogin) int {
		if c := b.LastLoginAt.Compare(a.LastLoginAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return logins, nil
}

func (t *tx) Counts(_ context.Context) (domain.StoreCounts, error) {
	counts := domain.StoreCounts{InvoiceCount: len(t.st.invoices), StockCount: len(t.st.stock)}
	for _, inv := range t.st.invoices {
		counts.ItemCount += len(inv.Lines)
	}
	return counts, nil
}

func (t *tx) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	number := strings.TrimSpace(invoice.InvoiceNumber)
	if number == "" {
		return nil, store.ErrInvalid
	}
	if _, exists := t.st.invoices[number]; exists {
		return nil, store.ErrConflict
	}
	t.st.nextInvoiceID++
	invoice.ID = t.st.nextInvoiceID
	invoice.InvoiceNumber = number
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	invoice = cloneInvoice(invoice)
	for i := range invoice.Lines {
		t.st.nextLineID++
		invoice.Lines[i].ID = t.st.nextLineID
		invoice.Lines[i].InvoiceNumber = number
	}
	t.st.invoices[number] = invoice
	created := cloneInvoice(invoice)
	return &created, nil
}

func (t *tx) DeleteInvoice(_ context.Context, invoiceNumber string) error {
	if _, exists := t.st.invoices[invoiceNumber]; !exists {
		return store.ErrNotFound
	}
	delete(t.st.invoices, invoiceNumber)
	return nil
}

func (t *tx) CreateStockLine(_ context.Context, line domain.StockLine) (*domain.StockLine, error) {
	for _, existing := range t.st.stock {
		if existing.Key() == line.Key() {
			return nil, store.ErrConflict
		}
	}
	t.st.nextStockID++
	line.ID = t.st.nextStockID
	if line.UpdatedAt.IsZero() {
		line.UpdatedAt = time.Now().UTC()
	}
	t.st.stock[line.ID] = line
	created := line
	return &created, nil
}

func (t *tx) UpdateStockLine(_ context.Context, line domain.StockLine) error {
	if _, exists := t.st.stock[line.ID]; !exists {
		return store.ErrNotFound
	}
	t.st.stock[line.ID] = line
	return nil
}

func (t *tx) SaveStockSummary(_ context.Context, summary domain.StockSummary) error {
	t.st.summary = &summary
	return nil
}

func (t *tx) InsertSellReport(_ context.Context, row domain.SellReport) (*domain.SellReport, error) {
	if row.StockID == 0 || row.ReportDate == "" {
		return nil, store.ErrInvalid
	}
	t.st.nextReportID++
	row.ID = t.st.nextReportID
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	t.st.reports = append(t.st.reports, cloneReport(row))
	return &row, nil
}

func (t *tx) UpdateSellReport(_ context.Context, row domain.SellReport) error {
	for i := range t.st.reports {
		if t.st.reports[i].ID == row.ID {
			t.st.reports[i] = cloneReport(row)
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *tx) DeleteSellReports(_ context.Context, reportDate string) (int, error) {
	kept := t.st.reports[:0]
	deleted := 0
	for _, row := range t.st.reports {
		if row.ReportDate == reportDate {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	t.st.reports = kept
	return deleted, nil
}

func (t *tx) UpsertFinance(_ context.Context, finance domain.Finance) (*domain.Finance, error) {
	if finance.ReportDate == "" {
		return nil, store.ErrInvalid
	}
	if existing, ok := t.st.finances[finance.ReportDate]; ok {
		finance.ID = existing.ID
		finance.CreatedBy = existing.CreatedBy
		finance.CreatedAt = existing.CreatedAt
	} else {
		t.st.nextFinanceID++
		finance.ID = t.st.nextFinanceID
		if finance.CreatedAt.IsZero() {
			finance.CreatedAt = time.Now().UTC()
		}
	}
	if finance.UpdatedAt.IsZero() {
		finance.UpdatedAt = time.Now().UTC()
	}
	t.st.finances[finance.ReportDate] = cloneFinance(finance)
	saved := cloneFinance(finance)
	return &saved, nil
}

func (t *tx) DeleteFinance(_ context.Context, reportDate string) error {
	if _, ok := t.st.finances[reportDate]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.finances, reportDate)
	return nil
}

func (t *tx) UpsertPriceListItems(_ context.Context, items []domain.PriceListItem) (int, int, error) {
	inserted, updated := 0, 0
	for _, item := range items {
		idx := slices.IndexFunc(t.st.priceList, func(existing domain.PriceListItem) bool {
			return samePriceKey(existing, item)
		})
		if idx >= 0 {
			item.ID = t.st.priceList[idx].ID
			t.st.priceList[idx] = item
			updated++
			continue
		}
		t.st.nextPriceID++
		item.ID = t.st.nextPriceID
		t.st.priceList = append(t.st.priceList, item)
		inserted++
	}
	return inserted, updated, nil
}

func (t *tx) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.st.auditLogs = append(t.st.auditLogs, entry)
	return nil
}

func (t *tx) RecordUserLogin(_ context.Context, login domain.UserLogin) error {
	if strings.TrimSpace(login.Username) == "" {
		return store.ErrInvalid
	}
	if login.LastLoginAt.IsZero() {
		login.LastLoginAt = time.Now().UTC()
	}
	t.st.loginByUser[login.Username] = login
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func newerReport(a domain.SellReport, b domain.SellReport) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func samePriceKey(a domain.PriceListItem, b domain.PriceListItem) bool {
	return strings.TrimSpace(a.BrandNumber) == strings.TrimSpace(b.BrandNumber) &&
		a.SizeCode == b.SizeCode &&
		a.PackType == b.PackType &&
		a.VolumeML == b.VolumeML
}

func cloneInvoice(src domain.Invoice) domain.Invoice {
	dst := src
	dst.Lines = slices.Clone(src.Lines)
	return dst
}

func cloneReport(src domain.SellReport) domain.SellReport {
	dst := src
	if src.EditedAt != nil {
		editedAt := *src.EditedAt
		dst.EditedAt = &editedAt
	}
	return dst
}

func cloneFinance(src domain.Finance) domain.Finance {
	dst := src
	dst.PhonePayEntries = slices.Clone(src.PhonePayEntries)
	dst.CashEntries = slices.Clone(src.CashEntries)
	dst.Expenses = slices.Clone(src.Expenses)
	return dst
}
