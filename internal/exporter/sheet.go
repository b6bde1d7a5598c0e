package exporter

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// maxColumnWidth is the widest column excel accepts
const maxColumnWidth = 255

// sheetWriter places values by zero-based row and column and remembers the widest
// rendered value of each column.
type sheetWriter struct {
	f           *excelize.File
	sheet       string
	headerStyle int
	widths      map[int]int
}

func newSheetWriter(f *excelize.File, sheet string, headerStyle int) *sheetWriter {
	return &sheetWriter{f: f, sheet: sheet, headerStyle: headerStyle, widths: make(map[int]int)}
}

func (w *sheetWriter) set(row, col int, v interface{}) error {
	if v == nil {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", w.sheet, cell, err)
	}
	if n := utf8.RuneCountInString(rendered(v)); n > w.widths[col] {
		w.widths[col] = n
	}
	return nil
}

// header writes a bold header row starting at col
func (w *sheetWriter) header(row, col int, names ...string) error {
	for j, name := range names {
		if err := w.set(row, col+j, name); err != nil {
			return err
		}
	}
	if w.headerStyle == 0 || len(names) == 0 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(col+len(names), row+1)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(w.sheet, first, last, w.headerStyle)
}

// row writes values left to right starting at col
func (w *sheetWriter) row(row, col int, values ...interface{}) error {
	for j, v := range values {
		if err := w.set(row, col+j, v); err != nil {
			return err
		}
	}
	return nil
}

// autosize sets every written column to its longest rendered value plus two
func (w *sheetWriter) autosize() error {
	for col, n := range w.widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		width := float64(n + 2)
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := w.f.SetColWidth(w.sheet, name, name, width); err != nil {
			return fmt.Errorf("failed to size column %s on %s: %w", name, w.sheet, err)
		}
	}
	return nil
}
