package store

import (
	"io/fs"
	"path/filepath"
)

// DiskUsage returns the best-effort on-disk size of the database
// directory in bytes. Exposed as a gauge by pkg/metrics.
func (k *KV) DiskUsage() uint64 {
	if !k.Ready() || k.path == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(k.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
