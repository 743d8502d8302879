package checkpoint

import (
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/vendor-collector/pkg/workitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, n int64) *Session {
	t.Helper()
	s, err := Create("session_test", workitem.Range(1, n), Options{BatchSize: 2, PerItemTarget: 10})
	require.NoError(t, err)
	return s
}

func TestCreate_InitialState(t *testing.T) {
	s := newSession(t, 5)

	assert.Equal(t, SchemaVersion, s.Version)
	assert.Equal(t, "session_test", s.SessionID)
	assert.Equal(t, 5, s.TotalCount)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, 0, s.CurrentBatch)
	assert.Equal(t, 2, s.BatchSize)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Empty(t, s.ProcessedVendors)
	assert.Equal(t, workitem.Range(1, 5), s.Options.Items)
	assert.Nil(t, s.EndTime)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		items workitem.Spec
		batch int
	}{
		{"empty id", "", workitem.Range(1, 2), 1},
		{"path id", "../x", workitem.Range(1, 2), 1},
		{"invalid range", "s", workitem.Range(5, 1), 1},
		{"zero batch", "s", workitem.Range(1, 2), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.id, tt.items, Options{BatchSize: tt.batch})
			assert.Error(t, err)
		})
	}
}

func TestRecord_AdvancesIndex(t *testing.T) {
	s := newSession(t, 2)

	require.NoError(t, s.Record(VendorEntry{ID: "1", Status: ItemSuccess}))
	require.NoError(t, s.Record(VendorEntry{ID: "2", Status: ItemInvalidData}))

	assert.Equal(t, 2, s.CurrentIndex)
	assert.Len(t, s.ProcessedVendors, 2)
	assert.Equal(t, 0, s.Remaining())

	err := s.Record(VendorEntry{ID: "3", Status: ItemSuccess})
	assert.Error(t, err, "recording past TotalCount must fail")
}

func TestRollback_DropsEntriesAfterSnapshot(t *testing.T) {
	s := newSession(t, 5)
	require.NoError(t, s.Record(VendorEntry{ID: "1", Status: ItemSuccess}))
	snap := s.Progress()

	require.NoError(t, s.Record(VendorEntry{ID: "2", Status: ItemSuccess}))
	require.NoError(t, s.Record(VendorEntry{ID: "3", Status: ItemSuccess}))
	s.CurrentBatch = 1

	s.Rollback(snap)

	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, 0, s.CurrentBatch)
	assert.Len(t, s.ProcessedVendors, 1)
	assert.Equal(t, "1", s.ProcessedVendors[0].ID)
}

func TestTransitions(t *testing.T) {
	now := time.Now()

	t.Run("completed is final", func(t *testing.T) {
		s := newSession(t, 1)
		require.NoError(t, s.MarkCompleted(now))
		assert.True(t, s.IsTerminal())
		require.NotNil(t, s.EndTime)

		assert.ErrorIs(t, s.MarkFailed(errors.New("x"), now), ErrTerminal)
		assert.ErrorIs(t, s.Record(VendorEntry{ID: "1"}), ErrTerminal)
		assert.Error(t, s.Reopen())
	})

	t.Run("failed can be reopened", func(t *testing.T) {
		s := newSession(t, 1)
		require.NoError(t, s.MarkFailed(errors.New("disk full"), now))
		assert.Equal(t, StatusError, s.Status)
		assert.Equal(t, "disk full", s.Error)
		require.NotNil(t, s.ErrorTime)

		require.NoError(t, s.Reopen())
		assert.Equal(t, StatusRunning, s.Status)
		assert.Empty(t, s.Error)
		assert.Nil(t, s.ErrorTime)
		assert.Equal(t, 1, s.Retries)
	})
}

func TestCounts(t *testing.T) {
	s := newSession(t, 4)
	for _, st := range []ItemStatus{ItemSuccess, ItemSuccess, ItemVendorFailed, ItemError} {
		require.NoError(t, s.Record(VendorEntry{ID: "x", Status: st}))
	}

	counts := s.Counts()
	assert.Equal(t, 2, counts[ItemSuccess])
	assert.Equal(t, 1, counts[ItemVendorFailed])
	assert.Equal(t, 1, counts[ItemError])
	assert.Equal(t, 0, counts[ItemInvalidData])
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		check   func(t *testing.T, s *Session)
	}{
		{
			name: "camelCase fields",
			data: `{"version":1,"sessionId":"abc","totalCount":3,"currentIndex":2,"currentBatch":1,"batchSize":2,"status":"running",
				"processedVendors":[{"id":"7","status":"vendor_failed","extra":{"reason":"timeout"}}]}`,
			check: func(t *testing.T, s *Session) {
				assert.Equal(t, "abc", s.SessionID)
				assert.Equal(t, 2, s.CurrentIndex)
				assert.Equal(t, 1, s.CurrentBatch)
				require.Len(t, s.ProcessedVendors, 1)
				assert.Equal(t, ItemVendorFailed, s.ProcessedVendors[0].Status)
				assert.Equal(t, "timeout", s.ProcessedVendors[0].Extra["reason"])
			},
		},
		{
			name: "unversioned record is accepted",
			data: `{"sessionId":"old","totalCount":1,"status":"completed"}`,
			check: func(t *testing.T, s *Session) {
				assert.Equal(t, SchemaVersion, s.Version)
				assert.NotNil(t, s.ProcessedVendors)
			},
		},
		{
			name:    "newer version",
			data:    `{"version":99,"sessionId":"x","totalCount":1}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "index out of range",
			data:    `{"version":1,"sessionId":"x","totalCount":1,"currentIndex":2}`,
			wantErr: errors.New("any"),
		},
		{
			name:    "not json",
			data:    `{"version":`,
			wantErr: errors.New("any"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Unmarshal([]byte(tt.data))
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrUnsupportedVersion) {
					assert.ErrorIs(t, err, ErrUnsupportedVersion)
				}
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestMarshal_UsesPersistedFieldNames(t *testing.T) {
	s := newSession(t, 3)
	data, err := Marshal(s)
	require.NoError(t, err)

	for _, field := range []string{`"sessionId"`, `"startTime"`, `"totalCount"`, `"currentIndex"`,
		`"currentBatch"`, `"batchSize"`, `"processedVendors"`, `"lastUpdated"`, `"options"`} {
		assert.Contains(t, string(data), field)
	}
}
