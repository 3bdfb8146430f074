package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var startedAt = time.Now()

// SysHealth represents real-time system metrics.
type SysHealth struct {
	AllocMB      uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	Uptime       time.Duration
	DatabaseSize string
	CacheSize    string
}

// GetSysHealth collects real-time health data for the database file and the
// cache directory.
func GetSysHealth(databasePath, cacheDir string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		Uptime:       time.Since(startedAt).Round(time.Second),
		DatabaseSize: humanSize(pathSize(databasePath)),
		CacheSize:    humanSize(pathSize(cacheDir)),
	}
}

func pathSize(path string) int64 {
	if path == "" {
		return 0
	}
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
