package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds release workbooks relative to a base path
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// IsWorkbook reports whether name looks like a readable workbook. Excel
// lock files (~$name.xlsx) are not workbooks.
func IsWorkbook(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// FindWorkbooks lists the workbooks directly inside dir, sorted by name so
// releases named by year and quarter come out in publication order
func (d *Discovery) FindWorkbooks(dir string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) && d.basePath != "" {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsWorkbook(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// ExpandPaths replaces every directory in paths with the workbooks it
// contains. Plain files are kept as given, so a missing workbook still
// reaches the loader and fails there with a source error.
func (d *Discovery) ExpandPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		found, err := d.FindWorkbooks(p)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no workbooks in %s", p)
		}
		for _, f := range found {
			out = append(out, f.Path)
		}
	}
	return out, nil
}
