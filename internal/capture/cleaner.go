package capture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/nova/internal/logging"
)

// StartCleaner starts a goroutine that periodically removes captures in dir
// older than retention and, when maxFiles > 0, the oldest captures beyond
// maxFiles. A non-positive retention disables the age rule. Caller must call
// wg.Add(1) first; the goroutine calls wg.Done on exit.
func StartCleaner(ctx context.Context, wg *sync.WaitGroup, dir string, retention, interval time.Duration, maxFiles int) {
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := CleanCaptures(dir, retention, maxFiles, time.Now())
				if err != nil {
					logging.Debugw("capture cleanup failed", "dir", dir, "err", err)
					continue
				}
				if removed > 0 {
					logging.Infow("capture cleanup", "dir", dir, "removed", removed)
				}
			}
		}
	}()
}

type captureFile struct {
	path string
	mod  time.Time
}

// CleanCaptures runs one cleanup pass and returns the number of removed
// files. Only files named like captures are considered.
func CleanCaptures(dir string, retention time.Duration, maxFiles int, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var files []captureFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, capturePrefix) || !strings.HasSuffix(name, captureExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, captureFile{path: filepath.Join(dir, name), mod: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	removed := 0
	kept := files[:0]
	cutoff := now.Add(-retention)
	for _, f := range files {
		if retention > 0 && f.mod.Before(cutoff) {
			if os.Remove(f.path) == nil {
				removed++
			}
			continue
		}
		kept = append(kept, f)
	}

	if maxFiles > 0 && len(kept) > maxFiles {
		for _, f := range kept[:len(kept)-maxFiles] {
			if os.Remove(f.path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}
