package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"riskdash/internal/config"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions describes one CSV document
type WriteOptions struct {
	Headers []string
	Records [][]string
	// BOMPrefix starts the document with a UTF-8 byte order mark so Excel
	// opens non-ASCII identifiers correctly.
	BOMPrefix bool
}

// CSVWriter writes CSV files. Relative names land in the exports directory.
type CSVWriter struct {
	paths *config.Paths
}

func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteCSV writes the document to a temporary file next to the target and
// renames it into place, so readers never see a partial report.
func (w *CSVWriter) WriteCSV(name string, options WriteOptions) error {
	target := w.ResolvePath(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSVTo(tmp, options); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", target, err)
	}
	return nil
}

// ResolvePath maps a relative name into the exports directory
func (w *CSVWriter) ResolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return w.paths.GetExportPath(name)
}

// WriteCSVTo writes the document to out
func WriteCSVTo(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(out)
	if len(options.Headers) > 0 {
		if err := cw.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	if err := cw.WriteAll(options.Records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}
