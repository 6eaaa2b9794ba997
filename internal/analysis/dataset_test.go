package analysis

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var csvRows = []string{
	"id,price,flag,city,when,note",
	"1,10.5,0,Paris,2024-01-02,first",
	"2,,1,Lyon,2024-01-03,NA",
	"3,12.25,1,Paris,2024-01-04,third",
	"4,9.75,0,,2024-01-05,fourth",
	"4,9.75,0,,2024-01-05,fourth",
}

func loadRows(t *testing.T, rows []string, opt Options) *Dataset {
	t.Helper()
	ds, err := LoadCSV(strings.NewReader(strings.Join(rows, "\n")), "test.csv", opt)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return ds
}

func TestLoadCSVKindsAndCounts(t *testing.T) {
	ds := loadRows(t, csvRows, DefaultOptions())
	if ds.Rows != 5 || ds.Cols() != 6 {
		t.Fatalf("shape = %dx%d, want 5x6", ds.Rows, ds.Cols())
	}
	want := map[string]Kind{
		"id": KindNumeric, "price": KindNumeric, "flag": KindNumeric,
		"city": KindCategorical, "when": KindDatetime, "note": KindCategorical,
	}
	for name, k := range want {
		c, ok := ds.Column(name)
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if c.Kind != k {
			t.Fatalf("column %q kind = %s, want %s", name, c.Kind, k)
		}
	}
	// price: 1 empty; city: 2 empty; note: 1 "NA"
	if got := ds.MissingCount(); got != 4 {
		t.Fatalf("missing = %d, want 4", got)
	}
	if got := ds.DuplicateRows(); got != 1 {
		t.Fatalf("duplicates = %d, want 1", got)
	}
	price, _ := ds.Column("price")
	if !math.IsNaN(price.Values[1]) {
		t.Fatalf("missing price should be NaN, got %v", price.Values[1])
	}
	if got := len(price.Present()); got != 4 {
		t.Fatalf("present prices = %d, want 4", got)
	}
}

func TestDistinctAndValueCounts(t *testing.T) {
	ds := loadRows(t, csvRows, DefaultOptions())
	flag, _ := ds.Column("flag")
	if got := flag.Distinct(); got != 2 {
		t.Fatalf("flag distinct = %d, want 2", got)
	}
	city, _ := ds.Column("city")
	vc := city.ValueCounts()
	if len(vc) != 2 || vc[0].Value != "Paris" || vc[0].Count != 2 || vc[1].Value != "Lyon" {
		t.Fatalf("city counts = %#v", vc)
	}
	// 1.0 and 1 are the same numeric value
	num := loadRows(t, []string{"x", "1", "1.0", "2"}, DefaultOptions())
	x, _ := num.Column("x")
	if got := x.Distinct(); got != 2 {
		t.Fatalf("numeric distinct = %d, want 2", got)
	}
	sorted := x.SortedByValue()
	if sorted[0].Value != "1" || sorted[0].Count != 2 || sorted[1].Value != "2" {
		t.Fatalf("sorted = %#v", sorted)
	}
}

func TestSignedZeroIsOneValue(t *testing.T) {
	ds := loadRows(t, []string{"a", "0", "-0", "0.0"}, DefaultOptions())
	a, _ := ds.Column("a")
	if a.Kind != KindNumeric {
		t.Fatalf("kind = %s, want numeric", a.Kind)
	}
	if got := a.Distinct(); got != 1 {
		t.Fatalf("distinct = %d, want 1", got)
	}
	vc := a.ValueCounts()
	if len(vc) != 1 || vc[0].Value != "0" || vc[0].Count != 3 {
		t.Fatalf("counts = %#v", vc)
	}
	if got := ds.DuplicateRows(); got != 2 {
		t.Fatalf("duplicates = %d, want 2", got)
	}
}

func TestLoadCSVDelimiterSniffing(t *testing.T) {
	ds := loadRows(t, []string{"a;b;c", "1;2;x", "3;4;y"}, DefaultOptions())
	if ds.Cols() != 3 {
		t.Fatalf("cols = %d, want 3", ds.Cols())
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "data.tsv")
	if err := os.WriteFile(p, []byte("a\tb\n1\t2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tsv, err := LoadCSVFile(p, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadCSVFile: %v", err)
	}
	if tsv.Name != "data.tsv" || tsv.Cols() != 2 || tsv.Rows != 1 {
		t.Fatalf("tsv = %s %dx%d", tsv.Name, tsv.Rows, tsv.Cols())
	}
}

func TestLoadCSVLocaleNumbers(t *testing.T) {
	opt := DefaultOptions()
	opt.Delimiter = ';'
	opt.DecimalSeparator = ','
	opt.ThousandsSeparator = '.'
	ds := loadRows(t, []string{"v", "1.000,5", "2,25"}, opt)
	v, _ := ds.Column("v")
	if v.Kind != KindNumeric {
		t.Fatalf("kind = %s, want numeric", v.Kind)
	}
	if v.Values[0] != 1000.5 || v.Values[1] != 2.25 {
		t.Fatalf("values = %v", v.Values)
	}
	// with default options a thousands separator makes the column text
	plain := loadRows(t, []string{"v", "\"1,000\"", "2"}, DefaultOptions())
	pv, _ := plain.Column("v")
	if pv.Kind != KindCategorical {
		t.Fatalf("kind = %s, want categorical", pv.Kind)
	}
}

func TestLoadCSVEdgeCases(t *testing.T) {
	if _, err := LoadCSV(strings.NewReader(""), "empty.csv", DefaultOptions()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty input err = %v, want ErrEmptyInput", err)
	}

	headerOnly := loadRows(t, []string{"a,b"}, DefaultOptions())
	if headerOnly.Rows != 0 || headerOnly.Cols() != 2 {
		t.Fatalf("header only = %dx%d", headerOnly.Rows, headerOnly.Cols())
	}

	_, err := LoadCSV(strings.NewReader("a,b\n1,2,3\n"), "wide.csv", DefaultOptions())
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 2 {
		t.Fatalf("wide row err = %v, want ParseError on line 2", err)
	}

	_, err = LoadCSV(strings.NewReader("a,b\n\"open,2\n"), "quote.csv", DefaultOptions())
	if !errors.As(err, &pe) {
		t.Fatalf("bad quote err = %v, want ParseError", err)
	}

	ragged := loadRows(t, []string{"a,b,c", "1,2"}, DefaultOptions())
	c, _ := ragged.Column("c")
	if !c.Missing[0] {
		t.Fatalf("padded cell should be missing")
	}

	dup := loadRows(t, []string{"x,x,", "1,2,3"}, DefaultOptions())
	names := []string{dup.Columns[0].Name, dup.Columns[1].Name, dup.Columns[2].Name}
	if names[0] != "x" || names[1] != "x.1" || names[2] != "Unnamed: 2" {
		t.Fatalf("names = %v", names)
	}

	allMissing := loadRows(t, []string{"a,b", "1,", "2,"}, DefaultOptions())
	b, _ := allMissing.Column("b")
	if b.Kind != KindNumeric || b.Distinct() != 0 {
		t.Fatalf("all-missing column = %s distinct %d", b.Kind, b.Distinct())
	}
}

func TestLoadCSVMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	ds := loadRows(t, []string{"a", "1", "2", "3"}, opt)
	if ds.Rows != 2 {
		t.Fatalf("rows = %d, want 2", ds.Rows)
	}
	if len(ds.Warnings) != 1 || ds.Warnings[0] != "processed only 2/3 rows due to MaxRows" {
		t.Fatalf("warnings = %#v", ds.Warnings)
	}
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", "NA", "NaN", "null", "None", "#N/A", "<NA>"} {
		if !IsMissing(v) {
			t.Errorf("%q should be missing", v)
		}
	}
	for _, v := range []string{"0", "na ", "none", "-"} {
		if IsMissing(v) {
			t.Errorf("%q should not be missing", v)
		}
	}
}
