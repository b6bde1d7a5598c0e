package exporter

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
	"marginreco/internal/report"
)

// Sheet names of the complete workbook
const (
	LedgerSheet     = "Sheet1"
	SummarySheet    = "Summary"
	DifferenceSheet = "Difference"
)

// Summary block headers
var (
	modelHeaders = []string{
		"MODEL", "QTY", "SALE-PUR DIFF", "Additional Discount", "Additional Accessories Discount",
		"DSA Commission", "Dlr share in Retail Support", "Net Margin", "Per Car Margin",
	}
	supportHeaders    = []string{"TATA RETAIL SUPPORT", "MFG share in Retail Support CREDIT IN TATA PUR"}
	additionalHeaders = []string{"TOTAL ADDL DISC", "ADDIL DISC PER CAR"}
)

// Difference block headers; the first column holds the location
var (
	priceHeaders    = []string{ledger.ColLocation, "Sale", "Discount", "Net Sale", "Purchase", "Profit"}
	discountHeaders = []string{
		ledger.ColLocation, ledger.Normalized(ledger.ColAdditionalDiscount), ledger.ColDealerShareTotal,
		ledger.ColMfrShareTotal, "Total Discount", ledger.ColRecordedDiscount, "Difference",
	}
	shareHeaders = []string{
		ledger.ColLocation, ledger.ColMfrShareTotal, ledger.Normalized(ledger.ColAdditionalAccessories),
		ledger.ColCommission, ledger.ColDiscountCredit, "Balance",
	}
)

const (
	// layoutStartRow leaves the first row of the Summary and Difference sheets empty
	layoutStartRow = 1
	// blockGap separates side-by-side Summary blocks and stacked blocks
	blockGap = 2
)

// Destination names the two artifacts of a run
type Destination struct {
	CompletePath string
	TrimmedPath  string
}

// WorkbookExporter renders reports to xlsx
type WorkbookExporter struct {
	logger *slog.Logger
}

// NewWorkbookExporter creates an exporter
func NewWorkbookExporter(logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{logger: logger.With(slog.String("component", "exporter"))}
}

// Export writes the complete and trimmed workbooks. Either both artifacts are in place
// afterwards or neither is.
func (e *WorkbookExporter) Export(rep *report.Report, dest Destination) error {
	if dest.CompletePath == "" || dest.TrimmedPath == "" {
		return apperrors.NewAppValidationError("both artifact paths are required")
	}
	if dest.CompletePath == dest.TrimmedPath {
		return apperrors.NewAppValidationError("complete and trimmed artifacts need distinct paths")
	}

	complete, err := e.CompleteWorkbook(rep)
	if err != nil {
		return apperrors.NewArtifactIOError("failed to render complete workbook", err)
	}
	defer complete.Close()

	trimmed, err := TableWorkbook(rep.Trimmed)
	if err != nil {
		return apperrors.NewArtifactIOError("failed to render trimmed workbook", err)
	}
	defer trimmed.Close()

	set := &artifactSet{logger: e.logger}
	if err := set.stage(complete, dest.CompletePath); err != nil {
		set.discard()
		return err
	}
	if err := set.stage(trimmed, dest.TrimmedPath); err != nil {
		set.discard()
		return err
	}
	if err := set.commit(); err != nil {
		return err
	}

	e.logger.Info("workbooks written",
		slog.String("complete", dest.CompletePath),
		slog.String("trimmed", dest.TrimmedPath),
		slog.Int("columns", len(rep.Ledger.Columns())),
		slog.Int("trimmed_columns", len(rep.Trimmed.Columns())))
	return nil
}

// CompleteWorkbook renders the ledger, Summary and Difference sheets
func (e *WorkbookExporter) CompleteWorkbook(rep *report.Report) (*excelize.File, error) {
	f, err := TableWorkbook(rep.Ledger)
	if err != nil {
		return nil, err
	}
	style, err := headerStyle(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, style, rep.Summary); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeDifference(f, style, rep.Reconciliation); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// TableWorkbook renders a ledger onto Sheet1 of a new workbook
func TableWorkbook(t *ledger.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	if name := f.GetSheetName(0); name != LedgerSheet {
		if err := f.SetSheetName(name, LedgerSheet); err != nil {
			f.Close()
			return nil, err
		}
	}
	style, err := headerStyle(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	w := newSheetWriter(f, LedgerSheet, style)
	cols := t.Columns()
	if err := w.header(0, 0, cols...); err != nil {
		f.Close()
		return nil, err
	}
	for i := 0; i < t.Len(); i++ {
		for j, col := range cols {
			if err := w.set(i+1, j, cellValue(t.Cell(i, col))); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	if err := w.autosize(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}

// writeSummary stacks one section per location: a heading, then the model, support
// and additional-discount blocks side by side.
func writeSummary(f *excelize.File, style int, sum *report.Summary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	w := newSheetWriter(f, SummarySheet, style)

	supportCol := len(modelHeaders) + blockGap
	additionalCol := supportCol + len(supportHeaders) + blockGap

	current := layoutStartRow
	for _, loc := range sum.Locations {
		if err := w.header(current, 0, fmt.Sprintf("Location: %s", loc.Location)); err != nil {
			return err
		}
		current += 2

		if err := w.header(current, 0, modelHeaders...); err != nil {
			return err
		}
		if err := w.header(current, supportCol, supportHeaders...); err != nil {
			return err
		}
		if err := w.header(current, additionalCol, additionalHeaders...); err != nil {
			return err
		}

		lines := loc.Lines()
		for n, line := range lines {
			r := current + 1 + n
			if err := w.row(r, 0,
				line.Model, number(line.Qty), number(line.PriceDelta), number(line.AdditionalDiscount),
				number(line.AccessoriesDiscount), number(line.Commission), number(line.DealerShare),
				number(line.NetMargin), nullNumber(line.PerUnitMargin),
			); err != nil {
				return err
			}
			if err := w.row(r, supportCol, number(line.ManufacturerShare), number(line.DiscountCredit)); err != nil {
				return err
			}
			if err := w.row(r, additionalCol, number(line.TotalAdditionalDiscount), nullNumber(line.AdditionalPerUnit)); err != nil {
				return err
			}
		}
		current += len(lines) + blockGap
	}
	return w.autosize()
}

// writeDifference stacks the three reconciliation blocks followed by the Total,
// Total Margin and Difference cells.
func writeDifference(f *excelize.File, style int, rec *report.Reconciliation) error {
	if _, err := f.NewSheet(DifferenceSheet); err != nil {
		return err
	}
	w := newSheetWriter(f, DifferenceSheet, style)
	current := layoutStartRow

	if err := w.header(current, 0, priceHeaders...); err != nil {
		return err
	}
	for n, l := range rec.PriceBased {
		if err := w.row(current+1+n, 0, l.Location,
			number(l.Sale), number(l.Discount), number(l.NetSale), number(l.Purchase), number(l.Profit)); err != nil {
			return err
		}
	}
	current += len(rec.PriceBased) + blockGap

	if err := w.header(current, 0, discountHeaders...); err != nil {
		return err
	}
	for n, l := range rec.Discounts {
		if err := w.row(current+1+n, 0, l.Location,
			number(l.AdditionalDiscount), number(l.DealerShare), number(l.ManufacturerShare),
			number(l.TotalDiscount), number(l.RecordedDiscount), number(l.Difference)); err != nil {
			return err
		}
	}
	current += len(rec.Discounts) + blockGap

	if err := w.header(current, 0, shareHeaders...); err != nil {
		return err
	}
	for n, l := range rec.ShareBased {
		if err := w.row(current+1+n, 0, l.Location,
			number(l.ManufacturerShare), number(l.AccessoriesDiscount), number(l.Commission),
			number(l.DiscountCredit), number(l.Balance)); err != nil {
			return err
		}
	}
	current += len(rec.ShareBased) + blockGap

	// the single cells sit under the discount credit column
	col := len(shareHeaders) - 2
	for _, cell := range []struct {
		label string
		value interface{}
	}{
		{"Total", number(rec.Total)},
		{"Total Margin", number(rec.TotalMargin)},
		{"Difference", number(rec.Diff)},
	} {
		if err := w.header(current, col, cell.label); err != nil {
			return err
		}
		if err := w.set(current+1, col, cell.value); err != nil {
			return err
		}
		current += 2
	}
	return w.autosize()
}
