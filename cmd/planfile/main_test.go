package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFarmsCSV(t *testing.T) {
	path := writeTemp(t, "farms.csv",
		"id,name,lat,lng,available_units,max_capacity,avg_unit_weight\n"+
			"farm-1,North Pasture,40.10,-3.00,60,0,95.5\n"+
			"farm-2,,40.16,-3.05,80,120,\n")
	farms, err := loadFarmsCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(farms) != 2 {
		t.Fatalf("want 2 farms, got %d", len(farms))
	}
	f := farms[0]
	if f.ID != "farm-1" || f.Name != "North Pasture" || f.AvailableUnits != 60 || f.AvgUnitWeight != 95.5 {
		t.Fatalf("bad first farm: %+v", f)
	}
	if f.Location.Lat != 40.10 || f.Location.Lng != -3.00 {
		t.Fatalf("bad location: %+v", f.Location)
	}
	if farms[1].MaxCapacity != 120 || farms[1].AvgUnitWeight != 0 {
		t.Fatalf("bad second farm: %+v", farms[1])
	}
}

func TestLoadFarmsCSVMissingColumn(t *testing.T) {
	path := writeTemp(t, "farms.csv", "id,lat,lng\nfarm-1,40,-3\n")
	if _, err := loadFarmsCSV(path); err == nil {
		t.Fatal("expected an error for the missing units column")
	}
}

func TestLoadFarmsCSVBadNumber(t *testing.T) {
	path := writeTemp(t, "farms.csv",
		"id,lat,lng,available_units\nfarm-1,forty,-3,10\n")
	if _, err := loadFarmsCSV(path); err == nil {
		t.Fatal("expected a parse error for the latitude")
	}
}

func TestReadRequestRejectsUnknownFields(t *testing.T) {
	path := writeTemp(t, "req.json", `{"farms":[],"bogus":true}`)
	if _, err := readRequest(path); err == nil {
		t.Fatal("expected an error for the unknown field")
	}
}
