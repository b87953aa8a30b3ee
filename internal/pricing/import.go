package pricing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"liquorstock/backend/internal/domain"
)

// sourceRow is one entry of the published MRP list.
type sourceRow struct {
	BrandNumber domain.FlexValue `json:"brand_number"`
	SizeCode    domain.FlexValue `json:"size_code"`
	PackType    domain.FlexValue `json:"pack_type"`
	ProductName domain.FlexValue `json:"product_name"`
	MRP         domain.FlexValue `json:"mrp"`
	VolumeML    domain.FlexValue `json:"botel_pack_quantity(ml)"`
	Type        domain.FlexValue `json:"type"`
}

func (r sourceRow) item() domain.PriceListItem {
	item := domain.PriceListItem{
		BrandNumber: r.BrandNumber.String(),
		SizeCode:    r.SizeCode.String(),
		PackType:    r.PackType.String(),
		ProductName: r.ProductName.String(),
		MRP:         decimal.Zero,
	}
	if mrp, err := decimal.NewFromString(r.MRP.String()); err == nil {
		item.MRP = mrp
	}
	if ml, err := r.VolumeML.Int(); err == nil {
		item.VolumeML = ml
	}
	if t := r.Type.String(); t != "" {
		item.Description = "type: " + t
	}
	return item
}

// ParseJSON reads a JSON array of price list rows. Unparseable prices and
// volumes become zero.
func ParseJSON(r io.Reader) ([]domain.PriceListItem, error) {
	var rows []sourceRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}
	items := make([]domain.PriceListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

var xlsxColumns = map[string]string{
	"brand_number":            "brand_number",
	"size_code":               "size_code",
	"pack_type":               "pack_type",
	"product_name":            "product_name",
	"mrp":                     "mrp",
	"botel_pack_quantity(ml)": "volume_ml",
	"volume_ml":               "volume_ml",
	"type":                    "type",
}

// ParseXLSX reads the first sheet of a workbook whose first row names the
// same columns as the JSON list.
func ParseXLSX(r io.Reader) ([]domain.PriceListItem, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open price list workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("price list workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read price list sheet: %w", err)
	}
	if len(rows) == 0 {
		return []domain.PriceListItem{}, nil
	}

	index := make(map[string]int)
	for i, header := range rows[0] {
		if field, ok := xlsxColumns[strings.ToLower(strings.TrimSpace(header))]; ok {
			index[field] = i
		}
	}
	if _, ok := index["brand_number"]; !ok {
		return nil, fmt.Errorf("price list sheet has no brand_number column")
	}

	cell := func(row []string, field string) domain.FlexValue {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return domain.FlexValue{}
		}
		return domain.NewFlexValue(row[i])
	}

	items := make([]domain.PriceListItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		src := sourceRow{
			BrandNumber: cell(row, "brand_number"),
			SizeCode:    cell(row, "size_code"),
			PackType:    cell(row, "pack_type"),
			ProductName: cell(row, "product_name"),
			MRP:         cell(row, "mrp"),
			VolumeML:    cell(row, "volume_ml"),
			Type:        cell(row, "type"),
		}
		if src.BrandNumber.IsBlank() {
			continue
		}
		items = append(items, src.item())
	}
	return items, nil
}

type importKey struct {
	BrandNumber string
	SizeCode    string
	PackType    string
	VolumeML    int
}

// Dedupe keeps the last row per (brand, size code, pack type, volume), in
// order of first appearance.
func Dedupe(items []domain.PriceListItem) []domain.PriceListItem {
	pos := make(map[importKey]int, len(items))
	out := make([]domain.PriceListItem, 0, len(items))
	for _, item := range items {
		key := importKey{item.BrandNumber, item.SizeCode, item.PackType, item.VolumeML}
		if i, ok := pos[key]; ok {
			out[i] = item
			continue
		}
		pos[key] = len(out)
		out = append(out, item)
	}
	return out
}
