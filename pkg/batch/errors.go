package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBatches is returned by Merge when a session has no batch files.
	ErrNoBatches = errors.New("no batch files")

	// ErrSchemaMismatch is returned when a row or a batch header does not
	// match the session's column schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// WriteError reports a batch flush that failed after exhausting retries.
// It is fatal to the running session.
type WriteError struct {
	SessionID string
	Index     int
	Attempts  int
	Err       error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("batch write %s #%d failed after %d attempts: %v", e.SessionID, e.Index, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// MergeError reports a merge that could not produce an output file.
type MergeError struct {
	SessionID string
	Dir       string
	Err       error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("merge session %s (dir %s): %v", e.SessionID, e.Dir, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MergeError) Unwrap() error {
	return e.Err
}
