package files

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"riskdash/internal/config"
)

// Manager owns the stored copies of uploaded extracts
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger.With("component", "files")}
}

// SaveUpload writes data to the uploads directory as name and returns the
// absolute path. name must be a bare file name.
func (m *Manager) SaveUpload(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	target := m.paths.GetUploadPath(name)
	if err := writeAtomic(target, data); err != nil {
		return "", fmt.Errorf("store upload %s: %w", name, err)
	}

	m.logger.Info("Upload stored",
		slog.String("file", name),
		slog.Int("size_bytes", len(data)))
	return target, nil
}

// ReadFile reads a stored file. Relative paths are resolved by Resolve.
func (m *Manager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(m.Resolve(path))
}

func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(m.Resolve(path))
	return err == nil
}

// DeleteFile removes a stored file; deleting a missing file succeeds
func (m *Manager) DeleteFile(path string) error {
	full := m.Resolve(path)
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	m.logger.Debug("File deleted", slog.String("full_path", full))
	return nil
}

// Resolve maps "uploads/x", "exports/x" and "logs/x" onto their configured
// directories. Other relative paths land under the data directory.
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	dir, rest, found := strings.Cut(filepath.ToSlash(path), "/")
	if found {
		switch dir {
		case "uploads":
			return m.paths.GetUploadPath(rest)
		case "exports":
			return m.paths.GetExportPath(rest)
		case "logs":
			return m.paths.GetLogPath(rest)
		}
	}
	return filepath.Join(m.paths.DataDir, path)
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return werr
	}
	return os.Rename(tmp.Name(), target)
}
