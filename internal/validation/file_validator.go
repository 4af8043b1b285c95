package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"riskdash/internal/files"
)

const officeLockPrefix = "~$"

// FileValidator checks the directories and extracts given to cmd/detect
// before any of them is parsed.
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger.With(slog.String("component", "file_validator"))}
}

// stat wraps os.Stat with the messages shared by every check. kind names the
// path in errors ("input directory", "file").
func (v *FileValidator) stat(kind, path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		v.logger.Error("path does not exist", slog.String("kind", kind), slog.String("path", path))
		return nil, fmt.Errorf("%s %s does not exist", kind, path)
	case err != nil:
		v.logger.Error("stat failed", slog.String("kind", kind), slog.String("path", path), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to stat %s %s: %w", kind, path, err)
	}
	return info, nil
}

// ValidateInputDirectory returns the number of CSV and workbook extracts in
// dir. A directory without extracts yields zero and no error.
func (v *FileValidator) ValidateInputDirectory(dir string) (int, error) {
	info, err := v.stat("input directory", dir)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	found, err := files.FindTabularFiles(dir)
	if err != nil {
		return 0, err
	}
	log := v.logger.With(slog.String("directory", dir))
	if len(found) == 0 {
		log.Warn("no extracts in input directory", slog.Any("extensions", files.TabularExtensions))
	} else {
		log.Info("input directory ready", slog.Int("files_found", len(found)))
	}
	return len(found), nil
}

// ValidateOutputDirectory creates dir when missing and probes it with a
// scratch file.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		v.logger.Error("output directory rejected", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// ValidateFile requires path to be a regular file the process can open.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := v.stat("file", path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	f.Close()

	v.logger.Debug("file ok", slog.String("file", path), slog.Int64("size", info.Size()))
	return nil
}

// ValidateTabularFile additionally requires a CSV or workbook extension and
// refuses the "~$" lock files Excel leaves next to open workbooks.
func (v *FileValidator) ValidateTabularFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	base := filepath.Base(path)
	if !files.IsTabular(base) {
		return fmt.Errorf("file %s is not a tabular extract (extension: %s)", path, strings.ToLower(filepath.Ext(base)))
	}
	if strings.HasPrefix(base, officeLockPrefix) {
		v.logger.Warn("Skipping temporary Excel file", slog.String("file", path))
		return fmt.Errorf("file %s is a temporary Excel file", path)
	}
	return nil
}
