// Package dataprocessing reads ledger worksheets out of xlsx workbooks.
//
// A worksheet is turned into a ledger.Table: a fixed number of leading rows is
// skipped, the next non-blank row is the header, and every following non-blank row
// is a record. Cells are typed while reading:
//
//   - a cell stored as a number whose displayed value is also a plain number becomes
//     a Number (dates and other formatted serials stay Text, as displayed)
//   - strings become Text, even when they look numeric
//   - empty cells are Absent
//
// Headers are made unique the way spreadsheet tooling usually does it: an empty
// header becomes "Unnamed: <index>" and repeated names get ".1", ".2" suffixes.
//
// # Usage
//
//	sheets, err := dataprocessing.SheetNames("sales.xlsx")
//	table, err := dataprocessing.ReadFile("sales.xlsx", dataprocessing.ReadOptions{
//	    Sheet:      "Sheet1",
//	    HeaderRows: 6,
//	})
package dataprocessing
