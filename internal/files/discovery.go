package files

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// TabularExtensions are the upload formats the loader reads
var TabularExtensions = []string{".csv", ".xlsx", ".xlsm"}

// FileInfo describes one extract found by FindTabularFiles
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FindTabularFiles lists the extracts directly inside dir, sorted by name.
// Subdirectories are not descended into.
func FindTabularFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	found := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsTabular(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, FileInfo{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	// os.ReadDir already sorts by name
	return found, nil
}

// IsTabular reports whether name has a supported extension, ignoring case
func IsTabular(name string) bool {
	return slices.Contains(TabularExtensions, strings.ToLower(filepath.Ext(name)))
}
