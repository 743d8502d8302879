package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	fileExt     = ".csv"
	batchMarker = "_batch_"
)

// File is one batch file on disk.
type File struct {
	Index int
	Path  string
}

// Layout maps sessions and batch indexes to paths under a root directory.
type Layout struct {
	Root string
}

// SessionDir returns the directory holding a session's batch files.
func (l Layout) SessionDir(sessionID string) string {
	return filepath.Join(l.Root, sessionID)
}

// FileName returns the batch file name for an index.
func FileName(sessionID string, index int) string {
	return fmt.Sprintf("%s%s%06d%s", sessionID, batchMarker, index, fileExt)
}

// Path returns the full path of a batch file.
func (l Layout) Path(sessionID string, index int) string {
	return filepath.Join(l.SessionDir(sessionID), FileName(sessionID, index))
}

// parseIndex extracts the batch index from a file name belonging to sessionID.
func parseIndex(sessionID, name string) (int, bool) {
	prefix := sessionID + batchMarker
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), fileExt)
	if digits == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// List returns the session's batch files sorted by index. A missing session
// directory yields an empty list.
func (l Layout) List(sessionID string) ([]File, error) {
	entries, err := os.ReadDir(l.SessionDir(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list batches: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ok := parseIndex(sessionID, e.Name())
		if !ok {
			continue
		}
		files = append(files, File{Index: idx, Path: filepath.Join(l.SessionDir(sessionID), e.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
	return files, nil
}

// RemoveFrom deletes batch files with index >= from and returns how many were
// removed. Used on resume to drop batches written after the last checkpoint.
func (l Layout) RemoveFrom(sessionID string, from int) (int, error) {
	files, err := l.List(sessionID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files {
		if f.Index < from {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale batch %d: %w", f.Index, err)
		}
		removed++
	}
	return removed, nil
}

// Cleanup removes the session's batch directory.
func (l Layout) Cleanup(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("cleanup: empty session id")
	}
	if err := os.RemoveAll(l.SessionDir(sessionID)); err != nil {
		return fmt.Errorf("cleanup batches: %w", err)
	}
	return nil
}
