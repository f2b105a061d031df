package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type storedFile struct {
	name    string
	size    int64
	modTime time.Time
}

// Run starts a ticker loop that prunes the upload directory until ctx ends.
// A non-positive interval disables the janitor.
func (s *UploadStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("🧹 Upload janitor started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := s.Prune(time.Now())
			if err != nil {
				s.logger.Error("Error pruning uploads: %v", err)
			}
			if removed > 0 {
				s.logger.Info("Pruned %d upload(s)", removed)
			}
		}
	}
}

// Prune removes uploads older than the maximum age and then, oldest first, uploads
// beyond the maximum directory size. It returns how many files were removed.
func (s *UploadStore) Prune(now time.Time) (int, error) {
	if s.maxAge <= 0 && s.maxDirSize <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return 0, err
	}

	// oldest first
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	var total int64
	for _, f := range files {
		total += f.size
	}

	removed := 0
	var errs error
	for _, f := range files {
		expired := s.maxAge > 0 && now.Sub(f.modTime) > s.maxAge
		oversize := s.maxDirSize > 0 && total > s.maxDirSize
		if !expired && !oversize {
			continue
		}

		if err := s.removeFile(f.name); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		total -= f.size
		removed++
	}

	return removed, errs
}

// Clear removes every stored upload and empties the ledger.
func (s *UploadStore) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs error
	for _, f := range files {
		if err := os.Remove(filepath.Join(s.uploadDir, f.name)); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, errors.Wrapf(err, "could not remove %s", f.name))
			continue
		}
		removed++
	}

	if s.uploadRepo != nil {
		errs = multierr.Append(errs, s.uploadRepo.DeleteAll())
	}
	return removed, errs
}

func (s *UploadStore) listFiles() ([]storedFile, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not read upload directory")
	}

	files := make([]storedFile, 0, len(entries))
	for _, entry := range entries {
		// skip directories and in-flight temp files
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, storedFile{name: entry.Name(), size: info.Size(), modTime: info.ModTime()})
	}
	return files, nil
}

func (s *UploadStore) removeFile(name string) error {
	if err := os.Remove(filepath.Join(s.uploadDir, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove %s", name)
	}
	if s.uploadRepo != nil {
		if err := s.uploadRepo.DeleteByFilename(name); err != nil {
			return errors.Wrapf(err, "could not remove %s from ledger", name)
		}
	}
	return nil
}

// Untracked returns the names of files in the upload directory that have no ledger entry.
func (s *UploadStore) Untracked() ([]string, error) {
	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, f := range files {
		if s.uploadRepo != nil {
			existing, err := s.uploadRepo.GetByFilename(f.name)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				continue
			}
		}
		names = append(names, f.name)
	}
	sort.Strings(names)
	return names, nil
}
