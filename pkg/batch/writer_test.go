package batch

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Sternrassler/vendor-collector/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{"vendor_id", "vendor_name"}

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func newTestWriter(t *testing.T, root string, batchSize int, write WriteFunc) *Writer {
	t.Helper()
	w, err := NewWriter(WriterConfig{
		Layout:    Layout{Root: root},
		SessionID: "s1",
		Columns:   testColumns,
		BatchSize: batchSize,
		Retry:     fastRetry(3),
		Write:     write,
	}, zerolog.Nop())
	require.NoError(t, err)
	return w
}

func TestWriter_FlushesAtThreshold(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	w := newTestWriter(t, root, 2, nil)

	require.NoError(t, w.Append([]string{"1", "a"}))
	flushed, err := w.MaybeFlush(ctx)
	require.NoError(t, err)
	assert.False(t, flushed)
	assert.Equal(t, 1, w.Buffered())

	require.NoError(t, w.Append([]string{"2", "b"}))
	flushed, err = w.MaybeFlush(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 0, w.Buffered())
	assert.Equal(t, 1, w.NextIndex())

	data, err := os.ReadFile(Layout{Root: root}.Path("s1", 0))
	require.NoError(t, err)
	assert.Equal(t, "vendor_id,vendor_name\n1,a\n2,b\n", string(data))
}

func TestWriter_FinalizeSkipsEmptyBuffer(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	w := newTestWriter(t, root, 2, nil)

	flushed, err := w.Finalize(ctx)
	require.NoError(t, err)
	assert.False(t, flushed)

	files, err := Layout{Root: root}.List("s1")
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, w.Append([]string{"1", "a"}))
	flushed, err = w.Finalize(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)

	files, err = Layout{Root: root}.List("s1")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWriter_RejectsRowWithWrongWidth(t *testing.T) {
	w := newTestWriter(t, t.TempDir(), 2, nil)

	err := w.Append([]string{"1", "a", "extra"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Equal(t, 0, w.Buffered())
}

func TestWriter_QuotesCellsWithDelimiters(t *testing.T) {
	root := t.TempDir()
	w := newTestWriter(t, root, 1, nil)

	require.NoError(t, w.Append([]string{"1", `[{"name":"a, b"}]`}))
	_, err := w.MaybeFlush(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(Layout{Root: root}.Path("s1", 0))
	require.NoError(t, err)
	assert.Equal(t, "vendor_id,vendor_name\n1,\"[{\"\"name\"\":\"\"a, b\"\"}]\"\n", string(data))
}

func TestWriter_RetriesTransientWriteFailures(t *testing.T) {
	calls := 0
	write := func(path string, data []byte) error {
		calls++
		if calls < 3 {
			return errors.New("disk busy")
		}
		return atomicWrite(path, data)
	}
	w := newTestWriter(t, t.TempDir(), 1, write)

	require.NoError(t, w.Append([]string{"1", "a"}))
	flushed, err := w.MaybeFlush(context.Background())
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, w.NextIndex())
}

func TestWriter_ExhaustedRetriesReturnWriteError(t *testing.T) {
	write := func(string, []byte) error { return errors.New("read-only filesystem") }
	w := newTestWriter(t, t.TempDir(), 1, write)

	require.NoError(t, w.Append([]string{"1", "a"}))
	_, err := w.MaybeFlush(context.Background())

	var we *WriteError
	require.True(t, errors.As(err, &we), "got %v", err)
	assert.Equal(t, 0, we.Index)
	assert.Equal(t, 3, we.Attempts)
	assert.ErrorIs(t, err, retry.ErrRetryExhausted)

	// The buffer is kept so nothing is lost in memory.
	assert.Equal(t, 1, w.Buffered())
	assert.Equal(t, 0, w.NextIndex())
}

func TestWriter_CancelledFlushIsNotWriteError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := newTestWriter(t, t.TempDir(), 1, nil)

	require.NoError(t, w.Append([]string{"1", "a"}))
	_, err := w.MaybeFlush(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var we *WriteError
	assert.False(t, errors.As(err, &we))
}

func TestWriter_StartIndexContinuesNumbering(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(WriterConfig{
		Layout:     Layout{Root: root},
		SessionID:  "s1",
		Columns:    testColumns,
		BatchSize:  1,
		StartIndex: 7,
	}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, w.Append([]string{"1", "a"}))
	_, err = w.MaybeFlush(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(Layout{Root: root}.Path("s1", 7))
	assert.NoError(t, err)
}

func TestNewWriter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  WriterConfig
	}{
		{"no session", WriterConfig{Columns: testColumns, BatchSize: 1}},
		{"no columns", WriterConfig{SessionID: "s", BatchSize: 1}},
		{"zero batch", WriterConfig{SessionID: "s", Columns: testColumns}},
		{"negative start", WriterConfig{SessionID: "s", Columns: testColumns, BatchSize: 1, StartIndex: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(tt.cfg, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}
