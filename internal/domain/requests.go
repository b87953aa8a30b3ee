package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexValue holds a JSON scalar that clients send either as a number or as a
// string. Null and absent values are blank.
type FlexValue struct {
	raw string
	set bool
}

func NewFlexValue(raw string) FlexValue {
	return FlexValue{raw: raw, set: true}
}

func (v *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = FlexValue{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FlexValue{raw: s, set: true}
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*v = FlexValue{raw: string(data), set: true}
	default:
		return fmt.Errorf("expected number or string, got %s", data)
	}
	return nil
}

func (v FlexValue) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

func (v FlexValue) String() string {
	return strings.TrimSpace(v.raw)
}

func (v FlexValue) IsBlank() bool {
	return !v.set || strings.TrimSpace(v.raw) == ""
}

// Int parses the value as a whole number. Blank values are zero. Decimal
// forms with a zero fraction ("4.0") are accepted, exponents are not.
func (v FlexValue) Int() (int, error) {
	if v.IsBlank() {
		return 0, nil
	}
	raw := v.String()
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) || strings.ContainsAny(raw, "eE") {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	d, derr := decimal.NewFromString(raw)
	if derr != nil || !d.IsInteger() || d.GreaterThan(maxInt) || d.LessThan(minInt) {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return int(d.IntPart()), nil
}

var (
	maxInt = decimal.NewFromInt(math.MaxInt)
	minInt = decimal.NewFromInt(math.MinInt)
)

type InvoiceMeta struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
}

type RetailerInfo struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type LicenseeInfo struct {
	PAN string `json:"pan"`
}

type InvoiceDocumentItem struct {
	SlNo               int                 `json:"sl_no"`
	BrandNumber        string              `json:"brand_number"`
	BrandName          string              `json:"brand_name"`
	ProductType        string              `json:"product_type"`
	PackType           string              `json:"pack_type"`
	PackSizeCase       int                 `json:"pack_size_case"`
	PackSizeQuantityML int                 `json:"pack_size_quantity_ml"`
	CasesDelivered     int                 `json:"cases_delivered"`
	BottlesDelivered   int                 `json:"bottles_delivered"`
	RatePerCase        decimal.NullDecimal `json:"rate_per_case"`
	UnitRatePerBottle  decimal.NullDecimal `json:"unit_rate_per_bottle"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
}

// InvoiceDocument is the structured output of the invoice extractor.
type InvoiceDocument struct {
	InvoiceMeta InvoiceMeta           `json:"invoice_meta"`
	Retailer    RetailerInfo          `json:"retailer"`
	Licensee    LicenseeInfo          `json:"licensee"`
	Items       []InvoiceDocumentItem `json:"items"`
	Totals      InvoiceTotals         `json:"totals"`
}

type InvoicePreviewResponse struct {
	Preview InvoiceDocument `json:"preview"`
}

type InvoiceIngestResponse struct {
	InvoiceID int64           `json:"invoice_id"`
	Invoice   InvoiceDocument `json:"invoice"`
}

type InvoiceListItem struct {
	InvoiceNumber string    `json:"invoice_number"`
	InvoiceDate   string    `json:"invoice_date"`
	RetailerCode  string    `json:"retailer_code"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

type StockView struct {
	Stock   []StockLine   `json:"stock"`
	Summary *StockSummary `json:"summary"`
}

// StockUpdateRequest sets the physically counted cases of one stock line,
// addressed either by id or by its identity key.
type StockUpdateRequest struct {
	StockID            int64     `json:"stock_id"`
	BrandNumber        string    `json:"brand_number"`
	PackSizeCase       int       `json:"pack_size_case"`
	PackSizeQuantityML int       `json:"pack_size_quantity_ml"`
	AvailableCases     FlexValue `json:"available_cases"`
}

type StockPatchRequest struct {
	TotalCases        *int             `json:"total_cases"`
	TotalBottles      *int             `json:"total_bottles"`
	RatePerCase       *decimal.Decimal `json:"rate_per_case"`
	UnitRatePerBottle *decimal.Decimal `json:"unit_rate_per_bottle"`
	TotalAmount       *decimal.Decimal `json:"total_amount"`
}

type SellReportItemInput struct {
	StockID        int64     `json:"stock_id" validate:"required"`
	ClosingCases   FlexValue `json:"closing_cases"`
	ClosingBottles FlexValue `json:"closing_bottles"`
}

type SellReportCreateRequest struct {
	ReportDate string                `json:"report_date" validate:"required"`
	Items      []SellReportItemInput `json:"items" validate:"dive"`
}

type SellReportEditRequest struct {
	Items []SellReportItemInput `json:"items" validate:"required,min=1,dive"`
}

type SellReportItemResult struct {
	StockID     int64               `json:"stock_id"`
	SoldCases   int                 `json:"sold_cases"`
	SoldBottles int                 `json:"sold_bottles"`
	SellAmount  decimal.NullDecimal `json:"sell_amount"`
	MRP         decimal.NullDecimal `json:"mrp"`
}

type SellReportResponse struct {
	Status     string                 `json:"status"`
	ReportDate string                 `json:"report_date,omitempty"`
	Items      []SellReportItemResult `json:"items"`
	Finance    *SellFinancePrepare    `json:"finance,omitempty"`
}

type SellReportPrepareItem struct {
	StockID             int64               `json:"stock_id"`
	BrandNumber         string              `json:"brand_number"`
	BrandName           string              `json:"brand_name"`
	PackSizeCase        int                 `json:"pack_size_case"`
	PackSizeQuantityML  int                 `json:"pack_size_quantity_ml"`
	OpeningCases        int                 `json:"opening_cases"`
	OpeningBottles      int                 `json:"opening_bottles"`
	InvoiceAddedCases   int                 `json:"invoice_added_cases"`
	InvoiceAddedBottles int                 `json:"invoice_added_bottles"`
	TotalCases          int                 `json:"total_cases"`
	TotalBottles        int                 `json:"total_bottles"`
	MRP                 decimal.NullDecimal `json:"mrp"`
	LastReportDate      string              `json:"last_report_date"`
	LastReportAt        *time.Time          `json:"last_report_at"`
}

type SellReportPrepareResponse struct {
	Items              []SellReportPrepareItem `json:"items"`
	LatestInvoiceDate  string                  `json:"latest_invoice_date"`
	LastSellReportDate string                  `json:"last_sell_report_date"`
	LastBalanceAmount  decimal.Decimal         `json:"last_balance_amount"`
}

// SellReportGroup is one report date as listed for owners and admins.
type SellReportGroup struct {
	ReportDate      string          `json:"report_date"`
	CreatedAt       time.Time       `json:"created_at"`
	CreatedBy       string          `json:"created_by"`
	TotalItems      int             `json:"total_items"`
	TotalSellAmount decimal.Decimal `json:"total_sell_amount"`
	EditedBy        string          `json:"edited_by"`
	EditedAt        *time.Time      `json:"edited_at"`
	EditCount       int             `json:"edit_count"`
	State           ReportState     `json:"state"`
	Finance         *Finance        `json:"finance"`
}

type FinanceEntryInput struct {
	Date    string    `json:"date"`
	TxnDate string    `json:"txn_date"`
	Amount  FlexValue `json:"amount"`
}

type ExpenseInput struct {
	Name   string    `json:"name"`
	Amount FlexValue `json:"amount"`
}

type SellFinanceRequest struct {
	ReportDate      string              `json:"report_date" validate:"required"`
	UPIPhonePay     FlexValue           `json:"upi_phonepay"`
	Cash            FlexValue           `json:"cash"`
	PhonePayEntries []FinanceEntryInput `json:"phonepay_entries"`
	CashEntries     []FinanceEntryInput `json:"cash_entries"`
	Expenses        []ExpenseInput      `json:"expenses"`
}

type SellFinanceResponse struct {
	Status string `json:"status"`
	Finance
}

type SellFinancePrepare struct {
	ReportDate           string          `json:"report_date"`
	TotalSellAmount      decimal.Decimal `json:"total_sell_amount"`
	LastBalanceAmount    decimal.Decimal `json:"last_balance_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	ExistingFinance      bool            `json:"existing_finance"`
	UPIPhonePay          decimal.Decimal `json:"upi_phonepay"`
	Cash                 decimal.Decimal `json:"cash"`
	TotalBalance         decimal.Decimal `json:"total_balance"`
	TotalExpenses        decimal.Decimal `json:"total_expenses"`
	FinalBalance         decimal.Decimal `json:"final_balance"`
	PhonePayEntries      []MoneyEntry    `json:"phonepay_entries"`
	CashEntries          []MoneyEntry    `json:"cash_entries"`
	Expenses             []Expense       `json:"expenses"`
	LatestInvoiceDate    string          `json:"latest_invoice_date"`
	AllowedEntryDateFrom string          `json:"allowed_entry_date_from"`
	AllowedEntryDateTo   string          `json:"allowed_entry_date_to"`
}

type SellReportDateTotal struct {
	ReportDate      string          `json:"report_date" db:"report_date"`
	TotalItems      int             `json:"total_items" db:"total_items"`
	TotalSellAmount decimal.Decimal `json:"total_sell_amount" db:"total_sell_amount"`
	LastCreatedAt   time.Time       `json:"last_created_at" db:"last_created_at"`
}

type FinanceOverviewTotals struct {
	AllInvoicesTotalInvoiceValue decimal.Decimal `json:"all_invoices_total_invoice_value"`
	AllInvoicesNetInvoiceValue   decimal.Decimal `json:"all_invoices_net_invoice_value"`
	AllInvoicesSpecialExciseCess decimal.Decimal `json:"all_invoices_special_excise_cess"`
	AllInvoicesTCS               decimal.Decimal `json:"all_invoices_tcs"`
	AllSellAmount                decimal.Decimal `json:"all_sell_amount"`
}

type InvoiceOverview struct {
	InvoiceNumber         string          `json:"invoice_number"`
	InvoiceDate           string          `json:"invoice_date"`
	UploadedBy            string          `json:"uploaded_by"`
	UploadedAt            *time.Time      `json:"uploaded_at"`
	NetInvoiceValue       decimal.Decimal `json:"net_invoice_value"`
	SpecialExciseCess     decimal.Decimal `json:"special_excise_cess"`
	TCS                   decimal.Decimal `json:"tcs"`
	TotalInvoiceValue     decimal.Decimal `json:"total_invoice_value"`
	RetailerCreditBalance decimal.Decimal `json:"retailer_credit_balance"`
}

type LatestSellReportOverview struct {
	ReportDate             string          `json:"report_date"`
	CreatedBy              string          `json:"created_by"`
	CreatedAt              *time.Time      `json:"created_at"`
	SellAmount             decimal.Decimal `json:"sell_amount"`
	LatestReportSellAmount decimal.Decimal `json:"latest_report_sell_amount"`
}

type FinanceOverview struct {
	Totals           FinanceOverviewTotals    `json:"totals"`
	LatestInvoice    InvoiceOverview          `json:"latest_invoice"`
	Invoices         []InvoiceOverview        `json:"invoices"`
	LatestSellReport LatestSellReportOverview `json:"latest_sell_report"`
	SellReports      []SellReportDateTotal    `json:"sell_reports"`
	Finance          []Finance                `json:"finance"`
}

type DashboardSummary struct {
	LastUnclearedAmount              decimal.Decimal `json:"last_uncleared_amount"`
	LastInvoiceDate                  string          `json:"last_invoice_date"`
	LastInvoiceNumber                string          `json:"last_invoice_number"`
	LastInvoiceValue                 decimal.Decimal `json:"last_invoice_value"`
	LastInvoiceRetailerCreditBalance decimal.Decimal `json:"last_invoice_retailer_credit_balance"`
	TotalPresentStock                int             `json:"total_present_stock"`
	TotalPresentStockMRPValue        decimal.Decimal `json:"total_present_stock_mrp_value"`
	LastSellReportDate               string          `json:"last_sell_report_date"`
	LastSellReportValue              decimal.Decimal `json:"last_sell_report_value"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	Username    string            `json:"username"`
	Role        string            `json:"role"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Summary     *DashboardSummary `json:"summary,omitempty"`
}

type AdminStatus struct {
	Status        string    `json:"status"`
	ServerTime    time.Time `json:"server_time"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	DBOK          bool      `json:"db_ok"`
	DBError       string    `json:"db_error,omitempty"`
}

type DBSummary struct {
	StoreCounts
	LatestInvoiceDate     string     `json:"latest_invoice_date"`
	LatestInvoiceNumber   string     `json:"latest_invoice_number"`
	StockSummaryUpdatedAt *time.Time `json:"stock_summary_updated_at"`
}

type DeleteResult struct {
	Status  string `json:"status"`
	Deleted int    `json:"deleted"`
}

type PriceListImportResult struct {
	Parsed   int `json:"parsed"`
	Unique   int `json:"unique"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type StockUpdateResponse struct {
	Status             string          `json:"status"`
	StockID            int64           `json:"stock_id"`
	BrandNumber        string          `json:"brand_number"`
	BrandName          string          `json:"brand_name"`
	PackSizeCase       int             `json:"pack_size_case"`
	PackSizeQuantityML int             `json:"pack_size_quantity_ml"`
	TotalCases         int             `json:"total_cases"`
	TotalBottles       int             `json:"total_bottles"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

type ListResponse[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Count: len(items), Items: items}
}
