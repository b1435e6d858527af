package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return mkdirCache(dir, false)
}

// PurgeStats reports how many entries Purge removed per cache kind.
type PurgeStats struct {
	Pages   int
	Answers int
}

// Purge removes cache entries older than maxAge. Page entries expire by the
// SavedAt stamp in their metadata, answers by file mtime (refreshed on every
// hit). A non-positive maxAge disables purging.
func Purge(dir string, maxAge time.Duration) (PurgeStats, error) {
	var st PurgeStats
	if maxAge <= 0 || strings.TrimSpace(dir) == "" {
		return st, nil
	}
	now := time.Now().UTC()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".meta.json"):
			if pageExpired(path, now, maxAge) {
				_ = os.Remove(path)
				_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
				st.Pages++
			}
		case strings.HasSuffix(name, ".body"):
			// removed with its metadata
		case strings.HasSuffix(name, ".json"):
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if now.Sub(info.ModTime().UTC()) > maxAge {
				_ = os.Remove(path)
				st.Answers++
			}
		}
		return nil
	})
	return st, err
}

func pageExpired(metaPath string, now time.Time, maxAge time.Duration) bool {
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return false
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		// unreadable metadata cannot be revalidated anyway
		return true
	}
	return now.Sub(e.SavedAt) > maxAge
}
