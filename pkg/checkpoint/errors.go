package checkpoint

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Load when no checkpoint exists for the session.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrUnsupportedVersion is returned for checkpoints written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported checkpoint version")

	// ErrInvalidSessionID is returned for IDs that cannot name a checkpoint.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// IOError reports a checkpoint that could not be written or read back.
// It is fatal to the running session.
type IOError struct {
	Op        string
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("checkpoint %s %q: %v", e.Op, e.SessionID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *IOError) Unwrap() error {
	return e.Err
}

// ValidateSessionID rejects IDs that would escape the checkpoint namespace.
func ValidateSessionID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	case strings.ContainsAny(id, `/\`), id == ".", id == "..", strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}
