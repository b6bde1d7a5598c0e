package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"marginreco/internal/ledger"
)

// Sheet is one worksheet of a fixture workbook; rows start at A1
type Sheet struct {
	Name string
	Rows [][]interface{}
}

// WorkbookBytes renders sheets into an xlsx document
func WorkbookBytes(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for n, s := range sheets {
		if n == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet %s: %v", s.Name, err)
		}
		for i, row := range s.Rows {
			if len(row) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			r := row
			if err := f.SetSheetRow(s.Name, cell, &r); err != nil {
				t.Fatalf("write row %d of %s: %v", i+1, s.Name, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("render workbook: %v", err)
	}
	return buf.Bytes()
}

// WriteWorkbook writes sheets to dir/name and returns the path
func WriteWorkbook(t testing.TB, dir, name string, sheets ...Sheet) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, WorkbookBytes(t, sheets...), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Sample ledger sheet names
const (
	SalesSheet     = "Sales Register"
	DiscountsSheet = "Discounts"
)

// Sample ledger expectations. Every record has GST 28% and CESS 22%, so each
// tax-inclusive charge is divided by 1.5, and every recorded discount equals the
// sum of its pre-tax additional, dealer and manufacturer shares.
const (
	SampleRecords      = 3
	SampleUnits        = 4
	SampleDropped      = 1
	SampleDuplicates   = 1
	SampleTotalMargin  = 280000
	SamplePuneMargin   = 240000
	SampleMumbaiMargin = 40000
)

// SalesHeader is the header of the sample primary ledger
var SalesHeader = []interface{}{
	"SNO", "Location", "Model", "ChassisNo", "Address", "COUNT", "Sale Price(+)", "Purchase Price(-)",
	"GST%", "CESS%", "Discount-DBT(-)", "AdditionalDiscount", "AdditionalFreeAcc(-)", "DSAComission(-)",
	"Dlr Share Retail Support", "Tata Share Retail Support",
}

// SalesRows are the sample primary records. MAT004 has no discount ledger entry.
var SalesRows = [][]interface{}{
	{1, "Pune", "Nexon", "MAT001", "12 MG Road", 1, 1000000, 900000, 28, 22, 16000, 15000, 1500, 2000, 3000, 6000},
	{2, "Mumbai", "Punch", "MAT002", "4 Marine Drive", 1, 700000, 650000, 28, 22, 8000, 7500, 0, 1000, 1500, 3000},
	{3, "Pune", "Nexon", "MAT003", "9 FC Road", 2, 2000000, 1800000, 28, 22, 32000, 30000, 3000, 4000, 6000, 12000},
	{4, "Pune", "Harrier", "MAT004", "1 Camp", 1, 2500000, 2300000, 28, 22, 0, 0, 0, 0, 0, 0},
}

// DiscountRows are the sample discount ledger rows, header first. MAT003 appears
// twice and the first entry wins; the blank identifier row is skipped.
var DiscountRows = [][]interface{}{
	{"Chassis_No", "Total Discount"},
	{"MAT001", 5000},
	{"MAT002", 3000},
	{"MAT003", 10000},
	{"MAT003", 7000},
	{"", 100},
	{"MAT999", 100},
}

// SalesSheetRows lays out the primary ledger below headerRows report-title rows
func SalesSheetRows(headerRows int, records [][]interface{}) [][]interface{} {
	rows := make([][]interface{}, headerRows, headerRows+1+len(records))
	if headerRows > 0 {
		rows[0] = []interface{}{"Vehicle Sales Register"}
	}
	rows = append(rows, SalesHeader)
	return append(rows, records...)
}

// WriteSampleLedgers writes the sample primary and discount workbooks to dir. The
// primary header sits below six title rows.
func WriteSampleLedgers(t testing.TB, dir string) (primary, secondary string) {
	t.Helper()
	primary = WriteWorkbook(t, dir, "sales.xlsx", Sheet{Name: SalesSheet, Rows: SalesSheetRows(6, SalesRows)})
	secondary = WriteWorkbook(t, dir, "discounts.xlsx", Sheet{Name: DiscountsSheet, Rows: DiscountRows})
	return primary, secondary
}

// ToTable converts fixture rows to a ledger table the way the reader types cells:
// integers become numbers, empty strings absent cells and other strings text.
func ToTable(header []interface{}, rows [][]interface{}) *ledger.Table {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = h.(string)
	}
	t := ledger.MustTable(cols)
	for _, r := range rows {
		values := make([]ledger.Value, len(cols))
		for j := range cols {
			if j < len(r) {
				values[j] = toValue(r[j])
			}
		}
		if err := t.AppendRow(values); err != nil {
			panic(err)
		}
	}
	return t
}

// SampleTables returns the sample ledgers as tables
func SampleTables() (primary, secondary *ledger.Table) {
	return ToTable(SalesHeader, SalesRows), ToTable(DiscountRows[0], DiscountRows[1:])
}

func toValue(v interface{}) ledger.Value {
	switch x := v.(type) {
	case int:
		return ledger.Int(int64(x))
	case string:
		if x == "" {
			return ledger.Empty()
		}
		return ledger.Str(x)
	case nil:
		return ledger.Empty()
	default:
		panic(fmt.Sprintf("unsupported fixture value %T", v))
	}
}
