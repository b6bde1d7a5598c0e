// Package exporter writes report workbooks.
//
// WorkbookExporter renders two xlsx artifacts for a run:
//
// Complete workbook: the full ledger on Sheet1, the per-location breakdown on
// Summary and the reconciliation blocks on Difference.
//
// Trimmed workbook: the ledger without the columns whose aggregate-row value is
// zero.
//
// Both workbooks are staged as temporary files next to their destinations and
// renamed into place only after every write succeeded. Column widths follow the
// longest rendered cell of each column.
//
// Example usage:
//
//	exp := exporter.NewWorkbookExporter(logger)
//	err := exp.Export(rep, exporter.Destination{
//	    CompletePath: "out/chassis.xlsx",
//	    TrimmedPath:  "out/trim_chassis.xlsx",
//	})
package exporter
