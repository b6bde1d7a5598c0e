package exporter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "marginreco/internal/errors"
)

type stagedFile struct {
	temp string
	dest string
}

// artifactSet stages workbooks next to their destinations and renames them all into
// place on commit.
type artifactSet struct {
	staged    []stagedFile
	committed []string
	logger    *slog.Logger
}

func (s *artifactSet) stage(f *excelize.File, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewArtifactIOError(fmt.Sprintf("failed to create directory %s", dir), err).
			WithContext("path", dest)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+"-*.tmp")
	if err != nil {
		return apperrors.NewArtifactIOError("failed to create temporary file", err).WithContext("path", dest)
	}
	s.staged = append(s.staged, stagedFile{temp: tmp.Name(), dest: dest})

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return apperrors.NewArtifactIOError("failed to write workbook", err).WithContext("path", dest)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewArtifactIOError("failed to flush workbook", err).WithContext("path", dest)
	}
	return nil
}

// commit renames every staged file. On failure the files already renamed by this set
// are removed together with the remaining temporaries.
func (s *artifactSet) commit() error {
	for n, sf := range s.staged {
		if err := os.Rename(sf.temp, sf.dest); err != nil {
			s.staged = s.staged[n:]
			s.rollback()
			return apperrors.NewArtifactIOError("failed to move workbook into place", err).
				WithContext("path", sf.dest)
		}
		s.committed = append(s.committed, sf.dest)
	}
	s.staged = nil
	return nil
}

func (s *artifactSet) rollback() {
	for _, path := range s.committed {
		s.remove(path)
	}
	s.committed = nil
	s.discard()
}

// discard removes every staged temporary file
func (s *artifactSet) discard() {
	for _, sf := range s.staged {
		s.remove(sf.temp)
	}
	s.staged = nil
}

func (s *artifactSet) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove artifact", slog.String("path", path), slog.String("error", err.Error()))
	}
}
