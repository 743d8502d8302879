package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/vendor-collector/internal/fsutil"
	"github.com/Sternrassler/vendor-collector/pkg/retry"
	"github.com/rs/zerolog"
)

// WriteFunc persists one encoded batch file. The default writes atomically
// via temp file + rename.
type WriteFunc func(path string, data []byte) error

func atomicWrite(path string, data []byte) error {
	return fsutil.WriteFileAtomic(path, data, 0644)
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	Layout    Layout
	SessionID string
	Columns   []string
	BatchSize int

	// StartIndex is the index of the first batch this writer produces.
	// A resumed session passes its checkpointed CurrentBatch.
	StartIndex int

	// Retry bounds flush attempts. Zero value uses retry.DefaultConfig.
	Retry retry.Config

	// Write overrides how encoded batches reach storage.
	Write WriteFunc
}

// Writer buffers rows and flushes them as numbered batch files. It is owned
// by a single goroutine.
type Writer struct {
	cfg    WriterConfig
	buf    [][]string
	next   int
	logger zerolog.Logger
}

// NewWriter validates cfg and creates a writer with an empty buffer.
func NewWriter(cfg WriterConfig, logger zerolog.Logger) (*Writer, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("batch writer: empty session id")
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("batch writer: no columns")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch writer: batch size must be positive (got %d)", cfg.BatchSize)
	}
	if cfg.StartIndex < 0 {
		return nil, fmt.Errorf("batch writer: negative start index %d", cfg.StartIndex)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Write == nil {
		cfg.Write = atomicWrite
	}
	cfg.Columns = append([]string(nil), cfg.Columns...)

	return &Writer{
		cfg:  cfg,
		buf:  make([][]string, 0, cfg.BatchSize),
		next: cfg.StartIndex,
		logger: logger.With().
			Str("session_id", cfg.SessionID).
			Logger(),
	}, nil
}

// Columns returns the header every batch file carries.
func (w *Writer) Columns() []string {
	return append([]string(nil), w.cfg.Columns...)
}

// Buffered returns the number of rows not yet flushed.
func (w *Writer) Buffered() int {
	return len(w.buf)
}

// NextIndex returns the index the next flushed batch will get.
func (w *Writer) NextIndex() int {
	return w.next
}

// Append buffers one row. Rows must have exactly one value per column.
func (w *Writer) Append(row []string) error {
	if len(row) != len(w.cfg.Columns) {
		return fmt.Errorf("%w: row has %d values, schema has %d columns", ErrSchemaMismatch, len(row), len(w.cfg.Columns))
	}
	w.buf = append(w.buf, append([]string(nil), row...))
	return nil
}

// MaybeFlush writes the buffer as a new batch file once it holds at least
// BatchSize rows. It reports whether a file was written.
func (w *Writer) MaybeFlush(ctx context.Context) (bool, error) {
	if len(w.buf) < w.cfg.BatchSize {
		return false, nil
	}
	return true, w.flush(ctx)
}

// Finalize flushes any remaining rows. An empty buffer writes nothing.
func (w *Writer) Finalize(ctx context.Context) (bool, error) {
	if len(w.buf) == 0 {
		return false, nil
	}
	return true, w.flush(ctx)
}

func (w *Writer) flush(ctx context.Context) error {
	start := time.Now()
	defer func() {
		flushDuration.Observe(time.Since(start).Seconds())
	}()

	data, err := w.encode()
	if err != nil {
		return &WriteError{SessionID: w.cfg.SessionID, Index: w.next, Attempts: 0, Err: err}
	}

	path := w.cfg.Layout.Path(w.cfg.SessionID, w.next)
	attempts, err := retry.Do(ctx, "batch_flush", w.cfg.Retry, nil, func(attempt int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return w.cfg.Write(path, data)
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, retry.ErrContextCancelled) {
			return fmt.Errorf("flush batch %d: %w", w.next, ctx.Err())
		}
		flushFailuresTotal.Inc()
		w.logger.Error().
			Err(err).
			Int("batch_index", w.next).
			Int("attempt", attempts).
			Msg("Batch flush failed")
		return &WriteError{SessionID: w.cfg.SessionID, Index: w.next, Attempts: attempts, Err: err}
	}

	rows := len(w.buf)
	batchesFlushedTotal.Inc()
	rowsFlushedTotal.Add(float64(rows))
	w.logger.Info().
		Int("batch_index", w.next).
		Int("rows", rows).
		Str("path", path).
		Msg("Batch flushed")

	w.buf = w.buf[:0]
	w.next++
	return nil
}

func (w *Writer) encode() ([]byte, error) {
	var b bytes.Buffer
	cw := csv.NewWriter(&b)
	if err := cw.Write(w.cfg.Columns); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	if err := cw.WriteAll(w.buf); err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return b.Bytes(), nil
}
