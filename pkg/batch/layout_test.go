package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName_IsZeroPadded(t *testing.T) {
	assert.Equal(t, "sess_batch_000000.csv", FileName("sess", 0))
	assert.Equal(t, "sess_batch_000042.csv", FileName("sess", 42))
	assert.Equal(t, "sess_batch_1234567.csv", FileName("sess", 1234567))
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		want   int
		wantOK bool
	}{
		{"valid", "s1_batch_000003.csv", 3, true},
		{"other session", "s2_batch_000003.csv", 0, false},
		{"wrong ext", "s1_batch_000003.json", 0, false},
		{"no digits", "s1_batch_.csv", 0, false},
		{"temp file", ".s1_batch_000003.csv.tmp-1", 0, false},
		{"not numeric", "s1_batch_abc.csv", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseIndex("s1", tt.file)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseIndex(%q) = (%d, %v), want (%d, %v)", tt.file, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func writeBatch(t *testing.T, l Layout, session string, idx int, content string) {
	t.Helper()
	path := l.Path(session, idx)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLayout_ListSortsByIndex(t *testing.T) {
	l := Layout{Root: t.TempDir()}
	for _, idx := range []int{10, 2, 0, 1} {
		writeBatch(t, l, "s1", idx, "h\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(l.SessionDir("s1"), "README"), nil, 0644))

	files, err := l.List("s1")
	require.NoError(t, err)

	var got []int
	for _, f := range files {
		got = append(got, f.Index)
	}
	assert.Equal(t, []int{0, 1, 2, 10}, got)
}

func TestLayout_RemoveFrom(t *testing.T) {
	l := Layout{Root: t.TempDir()}
	for idx := 0; idx < 4; idx++ {
		writeBatch(t, l, "s1", idx, "h\n")
	}

	removed, err := l.RemoveFrom("s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	files, err := l.List("s1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[1].Index)
}

func TestLayout_CleanupRemovesSessionDir(t *testing.T) {
	l := Layout{Root: t.TempDir()}
	writeBatch(t, l, "s1", 0, "h\n")
	writeBatch(t, l, "s2", 0, "h\n")

	require.NoError(t, l.Cleanup("s1"))

	_, err := os.Stat(l.SessionDir("s1"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(l.SessionDir("s2"))
	assert.NoError(t, err)

	assert.Error(t, l.Cleanup(""))
}
