package config

import (
	"path/filepath"
	"strings"
)

// WorkbookName appends the workbook extension unless the name already carries it
func WorkbookName(name string) string {
	if strings.EqualFold(filepath.Ext(name), WorkbookExtension) {
		return name
	}
	return name + WorkbookExtension
}

// CompletePath is where the CLI writes the complete workbook
func (o OutputConfig) CompletePath() string {
	return filepath.Join(o.Dir, WorkbookName(o.CompleteName))
}

// TrimmedPath is where the CLI writes the trimmed workbook
func (o OutputConfig) TrimmedPath() string {
	return filepath.Join(o.Dir, WorkbookName(o.TrimmedName))
}

// SanitizeDownloadName reduces a caller supplied file name to a safe base name with
// the workbook extension. Empty or unusable names fall back to def.
func SanitizeDownloadName(name, def string) string {
	name = strings.TrimSpace(filepath.Base(filepath.Clean("/" + name)))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' || r == '/' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == WorkbookExtension {
		return WorkbookName(def)
	}
	return WorkbookName(name)
}
