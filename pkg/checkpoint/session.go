// Package checkpoint persists the progress of a collection session so that a
// crashed or interrupted run can resume where its last checkpoint left off.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/vendor-collector/pkg/workitem"
)

// SchemaVersion is written into every checkpoint. Loading a checkpoint with
// a higher version fails with ErrUnsupportedVersion.
const SchemaVersion = 1

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ItemStatus is the recorded outcome of one work item.
type ItemStatus string

const (
	ItemSuccess      ItemStatus = "success"
	ItemVendorFailed ItemStatus = "vendor_failed"
	ItemInvalidData  ItemStatus = "invalid_data"
	ItemError        ItemStatus = "error"
)

// ErrTerminal is returned when mutating a completed or failed session.
var ErrTerminal = errors.New("session is in a terminal state")

// VendorEntry records how one work item was accounted for.
type VendorEntry struct {
	ID     string         `json:"id"`
	Status ItemStatus     `json:"status"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Options are the caller-supplied parameters a session was started with.
// They are persisted so a resumed run uses identical settings.
type Options struct {
	Items         workitem.Spec `json:"items"`
	BatchSize     int           `json:"batchSize"`
	PerItemTarget int           `json:"perItemTarget"`
	Columns       []string      `json:"columns,omitempty"`
}

// Session is the full persisted progress record of one collection run.
type Session struct {
	Version          int           `json:"version"`
	SessionID        string        `json:"sessionId"`
	StartTime        time.Time     `json:"startTime"`
	TotalCount       int           `json:"totalCount"`
	CurrentIndex     int           `json:"currentIndex"`
	CurrentBatch     int           `json:"currentBatch"`
	BatchSize        int           `json:"batchSize"`
	Status           Status        `json:"status"`
	ProcessedVendors []VendorEntry `json:"processedVendors"`
	Options          Options       `json:"options"`
	LastUpdated      time.Time     `json:"lastUpdated"`
	EndTime          *time.Time    `json:"endTime,omitempty"`
	Error            string        `json:"error,omitempty"`
	ErrorTime        *time.Time    `json:"errorTime,omitempty"`

	// Retries counts how many times a failed session was reopened.
	Retries int `json:"retries,omitempty"`
}

// Create initializes a new running session with all counters at zero.
func Create(sessionID string, items workitem.Spec, opts Options) (*Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := items.Validate(); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive (got %d)", opts.BatchSize)
	}

	opts.Items = items
	now := time.Now()
	return &Session{
		Version:          SchemaVersion,
		SessionID:        sessionID,
		StartTime:        now,
		TotalCount:       items.Sequence().Len(),
		BatchSize:        opts.BatchSize,
		Status:           StatusRunning,
		ProcessedVendors: []VendorEntry{},
		Options:          opts,
		LastUpdated:      now,
	}, nil
}

// IsTerminal reports whether the session is completed or failed.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError
}

// Remaining returns the number of items not yet accounted for.
func (s *Session) Remaining() int {
	return s.TotalCount - s.CurrentIndex
}

// Record accounts for the item at CurrentIndex and advances the index.
func (s *Session) Record(entry VendorEntry) error {
	if s.IsTerminal() {
		return ErrTerminal
	}
	if s.CurrentIndex >= s.TotalCount {
		return fmt.Errorf("all %d items already recorded", s.TotalCount)
	}
	s.ProcessedVendors = append(s.ProcessedVendors, entry)
	s.CurrentIndex++
	return nil
}

// Progress is a snapshot of the counters that move between checkpoints.
type Progress struct {
	Index   int
	Batch   int
	Entries int
}

// Progress captures the current counters.
func (s *Session) Progress() Progress {
	return Progress{
		Index:   s.CurrentIndex,
		Batch:   s.CurrentBatch,
		Entries: len(s.ProcessedVendors),
	}
}

// Rollback restores the counters of an earlier snapshot, dropping entries
// recorded after it.
func (s *Session) Rollback(p Progress) {
	s.CurrentIndex = p.Index
	s.CurrentBatch = p.Batch
	if p.Entries <= len(s.ProcessedVendors) {
		s.ProcessedVendors = s.ProcessedVendors[:p.Entries]
	}
}

// MarkCompleted transitions running -> completed.
func (s *Session) MarkCompleted(at time.Time) error {
	if s.IsTerminal() {
		return ErrTerminal
	}
	s.Status = StatusCompleted
	s.EndTime = &at
	return nil
}

// MarkFailed transitions running -> error and records the cause.
func (s *Session) MarkFailed(cause error, at time.Time) error {
	if s.IsTerminal() {
		return ErrTerminal
	}
	s.Status = StatusError
	if cause != nil {
		s.Error = cause.Error()
	}
	s.ErrorTime = &at
	return nil
}

// Reopen moves a failed session back to running. It is only reachable via an
// explicit retry request; completed sessions can never be reopened.
func (s *Session) Reopen() error {
	if s.Status != StatusError {
		return fmt.Errorf("cannot reopen session in status %q", s.Status)
	}
	s.Status = StatusRunning
	s.Error = ""
	s.ErrorTime = nil
	s.Retries++
	return nil
}

// Counts tallies recorded outcomes by status.
func (s *Session) Counts() map[ItemStatus]int {
	counts := make(map[ItemStatus]int, 4)
	for _, e := range s.ProcessedVendors {
		counts[e.Status]++
	}
	return counts
}

// Marshal encodes the session in its persisted form.
func Marshal(s *Session) ([]byte, error) {
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal decodes and sanity-checks a persisted session.
func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	switch {
	case s.Version > SchemaVersion:
		return nil, fmt.Errorf("%w: version %d (supported: %d)", ErrUnsupportedVersion, s.Version, SchemaVersion)
	case s.Version == 0:
		// Records written before versioning carry the same layout.
		s.Version = SchemaVersion
	}

	if s.SessionID == "" {
		return nil, fmt.Errorf("decode session: missing sessionId")
	}
	if s.CurrentIndex < 0 || s.CurrentIndex > s.TotalCount {
		return nil, fmt.Errorf("decode session: currentIndex %d outside [0,%d]", s.CurrentIndex, s.TotalCount)
	}
	if s.ProcessedVendors == nil {
		s.ProcessedVendors = []VendorEntry{}
	}
	return &s, nil
}
