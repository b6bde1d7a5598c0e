package dataprocessing

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

// ReadOptions selects the worksheet and header position
type ReadOptions struct {
	// Sheet is the worksheet name. Empty selects the only sheet of a single-sheet workbook.
	Sheet string
	// HeaderRows is the number of leading rows skipped before the header.
	HeaderRows int
}

// SheetNames lists the worksheets of a workbook file in workbook order
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// SheetNamesFrom lists the worksheets of a workbook stream
func SheetNamesFrom(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, openError("upload", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ResolveSheet picks the requested sheet from the available ones. An empty request
// resolves only when the workbook has exactly one sheet.
func ResolveSheet(available []string, requested string) (string, error) {
	if requested == "" {
		if len(available) == 1 {
			return available[0], nil
		}
		return "", apperrors.NewAppValidationError(
			fmt.Sprintf("workbook has %d sheets, choose one of: %s", len(available), strings.Join(available, ", "))).
			WithContext("available_sheets", available)
	}
	for _, name := range available {
		if name == requested {
			return name, nil
		}
	}
	return "", apperrors.NewAppValidationError(
		fmt.Sprintf("sheet %q not found, choose one of: %s", requested, strings.Join(available, ", "))).
		WithContext("available_sheets", available)
}

// ReadFile reads one worksheet of a workbook file into a table
func ReadFile(path string, opts ReadOptions) (*ledger.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()
	return readSheet(f, opts)
}

// Read reads one worksheet of a workbook stream into a table
func Read(r io.Reader, opts ReadOptions) (*ledger.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, openError("upload", err)
	}
	defer f.Close()
	return readSheet(f, opts)
}

func openError(name string, err error) error {
	return apperrors.NewAppError(apperrors.ErrTypeValidation,
		fmt.Sprintf("cannot open workbook %s", name), err).
		WithContext("workbook", name)
}

func readSheet(f *excelize.File, opts ReadOptions) (*ledger.Table, error) {
	if opts.HeaderRows < 0 {
		return nil, apperrors.NewAppValidationError("header rows must not be negative")
	}
	sheet, err := ResolveSheet(f.GetSheetList(), opts.Sheet)
	if err != nil {
		return nil, err
	}

	display, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("cannot read sheet %q", sheet), err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("cannot read sheet %q", sheet), err)
	}

	headerAt := -1
	for i := opts.HeaderRows; i < len(display); i++ {
		if !blankRow(display[i]) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, apperrors.NewSchemaError(
			fmt.Sprintf("sheet %q has no header row after skipping %d rows", sheet, opts.HeaderRows)).
			WithContext("sheet", sheet)
	}

	width := len(display[headerAt])
	for i := headerAt + 1; i < len(display); i++ {
		if len(display[i]) > width {
			width = len(display[i])
		}
	}

	table, err := ledger.NewTable(uniqueHeaders(display[headerAt], width))
	if err != nil {
		return nil, err
	}

	formats := dateFormats{}
	for i := headerAt + 1; i < len(display); i++ {
		if blankRow(display[i]) {
			continue
		}
		row := make([]ledger.Value, width)
		for j := 0; j < width; j++ {
			row[j] = parseCell(f, sheet, i, j, cellAt(raw, i, j), cellAt(display, i, j), formats)
		}
		if err := table.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// uniqueHeaders names every column of the header, padding to width
func uniqueHeaders(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]bool, width)
	count := make(map[string]int, width)
	for j := 0; j < width; j++ {
		name := ""
		if j < len(header) {
			name = header[j]
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", j)
		}
		if seen[name] {
			base := name
			for {
				count[base]++
				name = fmt.Sprintf("%s.%d", base, count[base])
				if !seen[name] {
					break
				}
			}
		}
		seen[name] = true
		names[j] = name
	}
	return names
}

func parseCell(f *excelize.File, sheet string, row, col int, raw, shown string, formats dateFormats) ledger.Value {
	if raw == "" && shown == "" {
		return ledger.Empty()
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return ledger.Str(shown)
	}
	if !storedAsNumber(f, sheet, cell) || formats.isDate(f, sheet, cell) {
		return ledger.Str(shown)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return ledger.Str(shown)
	}
	return ledger.Num(d)
}

func storedAsNumber(f *excelize.File, sheet, cell string) bool {
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return false
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool,
		excelize.CellTypeError, excelize.CellTypeDate:
		return false
	}
	return true
}

// dateFormats caches, per style id, whether the style renders numbers as dates or times
type dateFormats map[int]bool

func (d dateFormats) isDate(f *excelize.File, sheet, cell string) bool {
	id, err := f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d[id]; ok {
		return v
	}
	style, err := f.GetStyle(id)
	v := err == nil && style != nil && isDateStyle(style)
	d[id] = v
	return v
}

func isDateStyle(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		return hasDateToken(*style.CustomNumFmt)
	}
	n := style.NumFmt
	return (n >= 14 && n <= 22) || (n >= 45 && n <= 47)
}

// hasDateToken reports whether a number format code contains a date or time
// placeholder outside quoted literals, escapes and bracketed sections
func hasDateToken(code string) bool {
	quoted, bracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case quoted:
			quoted = c != '"'
		case bracket:
			bracket = c != ']'
		case c == '"':
			quoted = true
		case c == '[':
			bracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			switch c {
			case 'y', 'Y', 'm', 'M', 'd', 'D', 'h', 'H', 's', 'S':
				return true
			}
		}
	}
	return false
}

func cellAt(rows [][]string, i, j int) string {
	if i >= len(rows) || j >= len(rows[i]) {
		return ""
	}
	return rows[i][j]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
