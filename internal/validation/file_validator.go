// Package validation checks ledger workbooks before they are opened.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "marginreco/internal/errors"
)

// zipMagic starts every OOXML workbook
var zipMagic = []byte("PK\x03\x04")

// workbookExtensions are the OOXML spreadsheet extensions excelize opens
var workbookExtensions = map[string]bool{".xlsx": true, ".xlsm": true, ".xltx": true, ".xltm": true}

// FileValidator validates ledger workbooks given as paths or uploads
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateWorkbookFile checks that path is a readable workbook on disk
func (v *FileValidator) ValidateWorkbookFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return apperrors.NewAppValidationError(fmt.Sprintf("workbook %s does not exist", path)).
			WithContext("file", path)
	}
	if err != nil {
		return apperrors.NewArtifactIOError(fmt.Sprintf("failed to stat workbook %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a workbook", path)).
			WithContext("file", path)
	}
	if err := v.validateName(path); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewArtifactIOError(fmt.Sprintf("workbook %s is not readable", path), err)
	}
	defer f.Close()
	if err := v.validateContent(path, f); err != nil {
		return err
	}

	v.logger.Debug("workbook validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateWorkbookUpload checks the client file name and the leading bytes of an upload.
// An empty name skips the extension check.
func (v *FileValidator) ValidateWorkbookUpload(name string, r io.ReaderAt) error {
	if name != "" {
		if err := v.validateName(name); err != nil {
			return err
		}
	}
	return v.validateContent(name, io.NewSectionReader(r, 0, int64(len(zipMagic))))
}

func (v *FileValidator) validateName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !workbookExtensions[ext] {
		v.logger.Warn("file is not an xlsx workbook",
			slog.String("file", name),
			slog.String("extension", ext))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("%s is not an xlsx workbook (extension %q)", filepath.Base(name), ext)).
			WithContext("file", filepath.Base(name))
	}
	if strings.HasPrefix(filepath.Base(name), "~$") {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("%s is an Excel lock file", filepath.Base(name))).
			WithContext("file", filepath.Base(name))
	}
	return nil
}

func (v *FileValidator) validateContent(name string, r io.Reader) error {
	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(r, head); err != nil || !bytes.Equal(head, zipMagic) {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("%s is not an xlsx workbook", displayName(name))).
			WithContext("file", displayName(name))
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "upload"
	}
	return filepath.Base(name)
}
