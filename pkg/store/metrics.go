package store

import (
	"io/fs"
	"path/filepath"
)

// DiskUsageBytes returns the best-effort on-disk size of the database
// directory. Exposed as a Prometheus gauge by pkg/telemetry.
func DiskUsageBytes() uint64 {
	if db == nil || dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		total += uint64(fi.Size())
		return nil
	})
	return total
}
