package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadPriceListJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.json")
	body := `[{"brand_number":"5016","size_code":"QQ","pack_type":"G","mrp":"1,100","botel_pack_quantity(ml)":750},
	          {"brand_number":"0110","size_code":"QQ","pack_type":"G","mrp":620,"botel_pack_quantity(ml)":"750"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	items, err := readPriceList(path)
	if err != nil {
		t.Fatalf("read price list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].VolumeML != 750 || items[1].MRP.IntPart() != 620 {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestReadPriceListRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte("brand_number,mrp\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := readPriceList(path); err == nil {
		t.Fatalf("expected csv to be rejected")
	}
}
