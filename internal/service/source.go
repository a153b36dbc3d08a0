package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeblew999/plat-covid/internal/dataset"
)

// SourceService reports which dataset files are served.
type SourceService struct {
	dataDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{dataDir: dataDir}
}

// List returns the case and transmission dataset files. Files absent from
// the data directory are reported as embedded.
func (s *SourceService) List() ([]SourceFile, error) {
	names := []string{dataset.CasesFile, dataset.TransmissionFile}

	files := make([]SourceFile, 0, len(names))
	for _, name := range names {
		file := SourceFile{Name: name, FileType: "GeoJSON", Embedded: true}
		if s.dataDir != "" {
			info, err := os.Stat(filepath.Join(s.dataDir, name))
			switch {
			case err == nil:
				file.Embedded = false
				file.Size = formatSize(info.Size())
			case !os.IsNotExist(err):
				return nil, err
			}
		}
		files = append(files, file)
	}

	return files, nil
}

// DataDir returns the path to the data directory.
func (s *SourceService) DataDir() string {
	return s.dataDir
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
