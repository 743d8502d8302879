package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/Sternrassler/vendor-collector/internal/fsutil"
	"github.com/rs/zerolog"
)

// MergeResult describes a produced output file.
type MergeResult struct {
	Path    string
	Batches int
	Rows    int
}

// Merger concatenates a session's batch files into one output file.
type Merger struct {
	layout    Layout
	outputDir string
	logger    zerolog.Logger
}

// NewMerger creates a merger reading batches from layout and writing outputs
// into outputDir.
func NewMerger(layout Layout, outputDir string, logger zerolog.Logger) *Merger {
	return &Merger{layout: layout, outputDir: outputDir, logger: logger}
}

// OutputPath resolves the output file name. An empty name yields
// "{sessionId}_merged.csv"; a name without extension gets ".csv".
func (m *Merger) OutputPath(sessionID, outputName string) string {
	if outputName == "" {
		outputName = sessionID + "_merged"
	}
	if filepath.Ext(outputName) == "" {
		outputName += fileExt
	}
	if filepath.IsAbs(outputName) {
		return outputName
	}
	return filepath.Join(m.outputDir, outputName)
}

// Merge writes the first batch verbatim and appends only the data rows of
// every later batch, in index order. Batch files are never modified.
// Merging the same batch set twice yields byte-identical output.
func (m *Merger) Merge(ctx context.Context, sessionID, outputName string) (*MergeResult, error) {
	dir := m.layout.SessionDir(sessionID)
	fail := func(err error) (*MergeResult, error) {
		mergesTotal.WithLabelValues("error").Inc()
		m.logger.Error().Err(err).Str("session_id", sessionID).Str("dir", dir).Msg("Merge failed")
		return nil, &MergeError{SessionID: sessionID, Dir: dir, Err: err}
	}

	files, err := m.layout.List(sessionID)
	if err != nil {
		return fail(err)
	}
	if len(files) == 0 {
		return fail(ErrNoBatches)
	}

	out := m.OutputPath(sessionID, outputName)
	rows := 0
	err = fsutil.WriteAtomic(out, 0644, func(w io.Writer) error {
		var header []string
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, h, err := appendBatch(w, f, header)
			if err != nil {
				return err
			}
			if header == nil {
				header = h
			}
			rows += n
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	mergesTotal.WithLabelValues("ok").Inc()
	mergedRowsTotal.Add(float64(rows))
	m.logger.Info().
		Str("session_id", sessionID).
		Str("path", out).
		Int("batches", len(files)).
		Int("rows", rows).
		Msg("Batches merged")

	return &MergeResult{Path: out, Batches: len(files), Rows: rows}, nil
}

// Cleanup removes the session's batch files. It is never called by Merge.
func (m *Merger) Cleanup(sessionID string) error {
	return m.layout.Cleanup(sessionID)
}

// appendBatch copies one batch file into w. With want == nil the header is
// written too; otherwise the file's header must equal want and is skipped.
// It returns the number of data rows copied and the file's header.
func appendBatch(w io.Writer, f File, want []string) (int, []string, error) {
	src, err := os.Open(f.Path)
	if err != nil {
		return 0, nil, fmt.Errorf("open batch %d: %w", f.Index, err)
	}
	defer src.Close()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, fmt.Errorf("batch %d: missing header", f.Index)
		}
		return 0, nil, fmt.Errorf("batch %d: read header: %w", f.Index, err)
	}
	if want != nil && !slices.Equal(header, want) {
		return 0, nil, fmt.Errorf("%w: batch %d header %v, expected %v", ErrSchemaMismatch, f.Index, header, want)
	}

	// Count data rows with the reader, then copy raw bytes so the output is
	// a byte-level concatenation of the inputs.
	headerEnd := r.InputOffset()
	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("batch %d: %w", f.Index, err)
		}
		rows++
	}

	start := headerEnd
	if want == nil {
		start = 0
	}
	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return 0, nil, fmt.Errorf("batch %d: seek: %w", f.Index, err)
	}

	tw := &trailingNewline{w: w}
	if _, err := io.Copy(tw, src); err != nil {
		return 0, nil, fmt.Errorf("batch %d: copy: %w", f.Index, err)
	}
	if tw.n > 0 && tw.last != '\n' {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return 0, nil, err
		}
	}
	return rows, header, nil
}

// trailingNewline remembers the last byte written so a file without a final
// newline does not run into the next one.
type trailingNewline struct {
	w    io.Writer
	n    int64
	last byte
}

func (t *trailingNewline) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.n += int64(n)
		t.last = p[n-1]
	}
	return n, err
}
