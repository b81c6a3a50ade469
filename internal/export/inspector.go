package export

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Inspector reports disk usage of the export directory.
type Inspector struct{ dir string }

func NewInspector(dir string) *Inspector { return &Inspector{dir} }

type StorageStats struct {
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
	TotalSize  string `json:"total_size"`
}

func (i *Inspector) Stats() (*StorageStats, error) {
	var st StorageStats
	err := filepath.WalkDir(i.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st.FileCount++
		st.TotalBytes += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "walk export dir")
	}
	st.TotalSize = formatBytes(st.TotalBytes)
	return &st, nil
}

// formatBytes renders n as B/KB/MB/GB with one decimal place.
func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit*unit:
		return fmt.Sprintf("%.1f GB", float64(n)/(unit*unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%.1f KB", float64(n)/unit)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
