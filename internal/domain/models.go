package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients read amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleAdmin      = "admin"
	RoleOwner      = "owner"
	RoleSupervisor = "supervisor"
	RoleSystem     = "system"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// StockKey identifies a stock line: one brand in one pack configuration.
type StockKey struct {
	BrandNumber        string
	PackSizeCase       int
	PackSizeQuantityML int
}

type StockLine struct {
	ID                  int64               `json:"id" db:"id"`
	BrandNumber         string              `json:"brand_number" db:"brand_number"`
	BrandName           string              `json:"brand_name" db:"brand_name"`
	ProductType         string              `json:"product_type" db:"product_type"`
	PackType            string              `json:"pack_type" db:"pack_type"`
	PackSizeCase        int                 `json:"pack_size_case" db:"pack_size_case"`
	PackSizeQuantityML  int                 `json:"pack_size_quantity_ml" db:"pack_size_quantity_ml"`
	TotalCases          int                 `json:"total_cases" db:"total_cases"`
	TotalBottles        int                 `json:"total_bottles" db:"total_bottles"`
	RatePerCase         decimal.NullDecimal `json:"rate_per_case" db:"rate_per_case"`
	UnitRatePerBottle   decimal.NullDecimal `json:"unit_rate_per_bottle" db:"unit_rate_per_bottle"`
	TotalAmount         decimal.Decimal     `json:"total_amount" db:"total_amount"`
	LastInvoiceDate     string              `json:"last_invoice_date" db:"last_invoice_date"`
	LastUpdatedItemName string              `json:"last_updated_item_name" db:"last_updated_item_name"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

func (l StockLine) Key() StockKey {
	return StockKey{
		BrandNumber:        l.BrandNumber,
		PackSizeCase:       l.PackSizeCase,
		PackSizeQuantityML: l.PackSizeQuantityML,
	}
}

type StockSummary struct {
	TotalCasesAllItems  int             `json:"total_cases_all_items" db:"total_cases_all_items"`
	TotalPriceAllItems  decimal.Decimal `json:"total_price_all_items" db:"total_price_all_items"`
	LastUpdatedItemName string          `json:"last_updated_item_name" db:"last_updated_item_name"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

type Invoice struct {
	ID            int64         `json:"id" db:"id"`
	InvoiceNumber string        `json:"invoice_number" db:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date" db:"invoice_date"`
	RetailerName  string        `json:"retailer_name" db:"retailer_name"`
	RetailerCode  string        `json:"retailer_code" db:"retailer_code"`
	LicenseePAN   string        `json:"licensee_pan" db:"licensee_pan"`
	UploadedBy    string        `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	Lines         []InvoiceLine `json:"items,omitempty" db:"-"`
	Totals        InvoiceTotals `json:"totals" db:"-"`
}

// InvoiceLine is immutable once its invoice is stored.
type InvoiceLine struct {
	ID                 int64               `json:"id" db:"id"`
	InvoiceNumber      string              `json:"invoice_number" db:"invoice_number"`
	SlNo               int                 `json:"sl_no" db:"sl_no"`
	BrandNumber        string              `json:"brand_number" db:"brand_number"`
	BrandName          string              `json:"brand_name" db:"brand_name"`
	ProductType        string              `json:"product_type" db:"product_type"`
	PackType           string              `json:"pack_type" db:"pack_type"`
	PackSizeCase       int                 `json:"pack_size_case" db:"pack_size_case"`
	PackSizeQuantityML int                 `json:"pack_size_quantity_ml" db:"pack_size_quantity_ml"`
	CasesDelivered     int                 `json:"cases_delivered" db:"cases_delivered"`
	BottlesDelivered   int                 `json:"bottles_delivered" db:"bottles_delivered"`
	RatePerCase        decimal.NullDecimal `json:"rate_per_case" db:"rate_per_case"`
	UnitRatePerBottle  decimal.NullDecimal `json:"unit_rate_per_bottle" db:"unit_rate_per_bottle"`
	TotalAmount        decimal.Decimal     `json:"total_amount" db:"total_amount"`
}

func (l InvoiceLine) Key() StockKey {
	return StockKey{
		BrandNumber:        l.BrandNumber,
		PackSizeCase:       l.PackSizeCase,
		PackSizeQuantityML: l.PackSizeQuantityML,
	}
}

type InvoiceTotals struct {
	EChallanAmount        decimal.Decimal `json:"e_challan_amount" db:"e_challan_amount"`
	PreviousCredit        decimal.Decimal `json:"previous_credit" db:"previous_credit"`
	SubTotal              decimal.Decimal `json:"sub_total" db:"sub_total"`
	SpecialExciseCess     decimal.Decimal `json:"special_excise_cess" db:"special_excise_cess"`
	TCS                   decimal.Decimal `json:"tcs" db:"tcs"`
	LessThisInvoiceValue  decimal.Decimal `json:"less_this_invoice_value" db:"less_this_invoice_value"`
	RetailerCreditBalance decimal.Decimal `json:"retailer_credit_balance" db:"retailer_credit_balance"`
	InvoiceValue          decimal.Decimal `json:"invoice_value" db:"invoice_value"`
	MRPRoundOff           decimal.Decimal `json:"mrp_round_off" db:"mrp_round_off"`
	NetInvoiceValue       decimal.Decimal `json:"net_invoice_value" db:"net_invoice_value"`
	TotalInvoiceValue     decimal.Decimal `json:"total_invoice_value" db:"total_invoice_value"`
}

// Additions is the quantity delivered to a stock line inside a reporting window.
type Additions struct {
	Cases   int `json:"cases" db:"cases"`
	Bottles int `json:"bottles" db:"bottles"`
}

type SellReport struct {
	ID                  int64               `json:"id" db:"id"`
	StockID             int64               `json:"stock_id" db:"stock_id"`
	BrandNumber         string              `json:"brand_number" db:"brand_number"`
	BrandName           string              `json:"brand_name" db:"brand_name"`
	PackSizeCase        int                 `json:"pack_size_case" db:"pack_size_case"`
	PackSizeQuantityML  int                 `json:"pack_size_quantity_ml" db:"pack_size_quantity_ml"`
	OpeningCases        int                 `json:"opening_cases" db:"opening_cases"`
	OpeningBottles      int                 `json:"opening_bottles" db:"opening_bottles"`
	InvoiceAddedCases   int                 `json:"invoice_added_cases" db:"invoice_added_cases"`
	InvoiceAddedBottles int                 `json:"invoice_added_bottles" db:"invoice_added_bottles"`
	TotalCases          int                 `json:"total_cases" db:"total_cases"`
	TotalBottles        int                 `json:"total_bottles" db:"total_bottles"`
	ClosingCases        int                 `json:"closing_cases" db:"closing_cases"`
	ClosingBottles      int                 `json:"closing_bottles" db:"closing_bottles"`
	SoldCases           int                 `json:"sold_cases" db:"sold_cases"`
	SoldBottles         int                 `json:"sold_bottles" db:"sold_bottles"`
	UnitRatePerBottle   decimal.NullDecimal `json:"unit_rate_per_bottle" db:"unit_rate_per_bottle"`
	SellAmount          decimal.NullDecimal `json:"sell_amount" db:"sell_amount"`
	ReportDate          string              `json:"report_date" db:"report_date"`
	CreatedBy           string              `json:"created_by" db:"created_by"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	EditedBy            string              `json:"edited_by" db:"edited_by"`
	EditedAt            *time.Time          `json:"edited_at" db:"edited_at"`
	EditCount           int                 `json:"edit_count" db:"edit_count"`
}

// ReportState tells whether a report date group still accepts its one correction.
type ReportState string

const (
	ReportOpen   ReportState = "open"
	ReportSealed ReportState = "sealed"
)

type MoneyEntry struct {
	Date   string          `json:"date" db:"txn_date"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

type Expense struct {
	Name   string          `json:"name" db:"name"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

type Finance struct {
	ID                int64           `json:"-" db:"id"`
	ReportDate        string          `json:"report_date" db:"report_date"`
	TotalSellAmount   decimal.Decimal `json:"total_sell_amount" db:"total_sell_amount"`
	LastBalanceAmount decimal.Decimal `json:"last_balance_amount" db:"last_balance_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	UPIPhonePay       decimal.Decimal `json:"upi_phonepay" db:"upi_phonepay"`
	Cash              decimal.Decimal `json:"cash" db:"cash"`
	TotalBalance      decimal.Decimal `json:"total_balance" db:"total_balance"`
	TotalExpenses     decimal.Decimal `json:"total_expenses" db:"total_expenses"`
	FinalBalance      decimal.Decimal `json:"final_balance" db:"final_balance"`
	CreatedBy         string          `json:"created_by" db:"created_by"`
	UpdatedBy         string          `json:"updated_by" db:"updated_by"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
	PhonePayEntries   []MoneyEntry    `json:"phonepay_entries" db:"-"`
	CashEntries       []MoneyEntry    `json:"cash_entries" db:"-"`
	Expenses          []Expense       `json:"expenses" db:"-"`
}

type PriceListItem struct {
	ID          int64           `json:"id" db:"id"`
	BrandNumber string          `json:"brand_number" db:"brand_number"`
	SizeCode    string          `json:"size_code" db:"size_code"`
	PackType    string          `json:"pack_type" db:"pack_type"`
	ProductName string          `json:"product_name" db:"product_name"`
	MRP         decimal.Decimal `json:"mrp" db:"mrp"`
	VolumeML    int             `json:"volume_ml" db:"volume_ml"`
	Description string          `json:"description" db:"description"`
}

type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	Username   string    `json:"username" db:"username"`
	Role       string    `json:"role" db:"role"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Details    string    `json:"details" db:"details"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type UserLogin struct {
	Username    string    `json:"username" db:"username"`
	Role        string    `json:"role" db:"role"`
	LastLoginAt time.Time `json:"last_login_at" db:"last_login_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string    `db:"username"`
	Password  string    `db:"password_hash"`
	Role      string    `db:"role"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

type StoreCounts struct {
	InvoiceCount int `json:"invoice_count" db:"invoice_count"`
	ItemCount    int `json:"item_count" db:"item_count"`
	StockCount   int `json:"stock_count" db:"stock_count"`
}
