package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/vendor-collector/internal/fsutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for checkpoint persistence.
var (
	checkpointSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_checkpoint_saves_total",
		Help: "Checkpoint saves by backend and result",
	}, []string{"backend", "result"})

	checkpointSaveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_checkpoint_save_duration_seconds",
		Help:    "Checkpoint save duration by backend",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"backend"})
)

// Store persists sessions keyed by session ID.
//
// Save must be atomic from a reader's perspective: a concurrent or later Load
// sees either the previous record or the new one in full.
type Store interface {
	Save(ctx context.Context, s *Session) error
	// Load returns ErrNotFound when no checkpoint exists and an *IOError when
	// one exists but cannot be read or decoded.
	Load(ctx context.Context, sessionID string) (*Session, error)
	// Delete removes a checkpoint. Missing checkpoints are not an error.
	Delete(ctx context.Context, sessionID string) error
	// List returns all known session IDs in lexical order.
	List(ctx context.Context) ([]string, error)
}

const checkpointExt = ".json"

// FileStore keeps one JSON file per session in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created lazily.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the checkpoint directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// Path returns the checkpoint file for a session.
func (f *FileStore) Path(sessionID string) string {
	return filepath.Join(f.dir, sessionID+checkpointExt)
}

// Save writes the session via temp file + rename.
func (f *FileStore) Save(ctx context.Context, s *Session) error {
	start := time.Now()
	defer func() {
		checkpointSaveDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	}()

	if err := ValidateSessionID(s.SessionID); err != nil {
		return &IOError{Op: "save", SessionID: s.SessionID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &IOError{Op: "save", SessionID: s.SessionID, Err: err}
	}

	s.LastUpdated = time.Now()
	data, err := Marshal(s)
	if err != nil {
		checkpointSavesTotal.WithLabelValues("file", "error").Inc()
		return &IOError{Op: "save", SessionID: s.SessionID, Err: err}
	}

	if err := fsutil.WriteFileAtomic(f.Path(s.SessionID), data, 0644); err != nil {
		checkpointSavesTotal.WithLabelValues("file", "error").Inc()
		return &IOError{Op: "save", SessionID: s.SessionID, Err: err}
	}

	checkpointSavesTotal.WithLabelValues("file", "ok").Inc()
	return nil
}

// Load reads a session back.
func (f *FileStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "load", SessionID: sessionID, Err: err}
	}

	s, err := Unmarshal(data)
	if err != nil {
		return nil, &IOError{Op: "load", SessionID: sessionID, Err: err}
	}
	if s.SessionID != sessionID {
		return nil, &IOError{Op: "load", SessionID: sessionID, Err: fmt.Errorf("file holds session %q", s.SessionID)}
	}
	return s, nil
}

// Delete removes the checkpoint file.
func (f *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := os.Remove(f.Path(sessionID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "delete", SessionID: sessionID, Err: err}
	}
	return nil
}

// List returns the IDs of all checkpoint files in the directory.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		// Hidden names are in-flight temp files.
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, checkpointExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, checkpointExt))
	}
	sort.Strings(ids)
	return ids, nil
}
