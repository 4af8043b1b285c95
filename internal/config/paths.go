package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds the absolute directories the service reads and writes. Layout
// under the base directory with the default configuration:
//
//	data/
//	  uploads/      stored page uploads
//	  exports/      harmonized exports
//	  riskdash.db   input panel statuses (sqlite store)
//	logs/
type Paths struct {
	ExecutableDir string
	DataDir       string
	UploadsDir    string
	ExportsDir    string
	LogsDir       string
	DBFile        string
}

// ExecutableDir is the directory of the running binary, symlinks resolved
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err == nil {
		exe, err = filepath.EvalSymlinks(exe)
	}
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Dir(exe), nil
}

// NewPaths resolves the relative entries of pc against baseDir
func NewPaths(baseDir string, pc PathsConfig) *Paths {
	abs := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		return p
	}

	data := abs(pc.DataDir, DefaultDataDir)
	return &Paths{
		ExecutableDir: baseDir,
		DataDir:       data,
		UploadsDir:    filepath.Join(data, "uploads"),
		ExportsDir:    filepath.Join(data, "exports"),
		LogsDir:       abs(pc.LogsDir, DefaultLogsDir),
		DBFile:        filepath.Join(data, "riskdash.db"),
	}
}

// EnsureDirectories creates every writable directory
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.UploadsDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Paths) GetUploadPath(filename string) string { return filepath.Join(p.UploadsDir, filename) }
func (p *Paths) GetExportPath(filename string) string { return filepath.Join(p.ExportsDir, filename) }
func (p *Paths) GetLogPath(filename string) string    { return filepath.Join(p.LogsDir, filename) }

// LogPathResolution logs the resolved directories at startup
func (p *Paths) LogPathResolution() {
	slog.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("uploads", p.UploadsDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.String("db_file", p.DBFile))
}
