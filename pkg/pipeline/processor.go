package pipeline

import (
	"context"
	"fmt"

	"github.com/Sternrassler/vendor-collector/pkg/checkpoint"
)

// Outcome classifies a processed work item.
type Outcome int

const (
	outcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeInvalidData
	OutcomeUpstreamFailure
)

// String returns the metrics label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidData:
		return "invalid_data"
	case OutcomeUpstreamFailure:
		return "upstream_failure"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of processing one work item.
type Result struct {
	Outcome Outcome
	// Row holds one value per configured column. Success only.
	Row []string
	// Extra is copied into the session's processedVendors entry.
	Extra map[string]any
	// Message describes why the item failed.
	Message string
}

// Success wraps a record row.
func Success(row []string, extra map[string]any) Result {
	return Result{Outcome: OutcomeSuccess, Row: row, Extra: extra}
}

// InvalidData reports an item that exists upstream but cannot be used,
// or does not exist at all.
func InvalidData(reason string) Result {
	return Result{Outcome: OutcomeInvalidData, Message: reason}
}

// UpstreamFailure reports an item whose upstream calls failed.
func UpstreamFailure(message string) Result {
	return Result{Outcome: OutcomeUpstreamFailure, Message: message}
}

// Processor fetches one work item. Expected failures are returned as
// InvalidData or UpstreamFailure results, never as panics. Process may be
// called more than once for the same id when a session resumes.
type Processor interface {
	Process(ctx context.Context, id string, target int) Result
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, id string, target int) Result

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, id string, target int) Result {
	return f(ctx, id, target)
}

// entryFor maps a result to the persisted per-item entry.
func entryFor(id string, res Result) checkpoint.VendorEntry {
	entry := checkpoint.VendorEntry{ID: id, Extra: res.Extra}
	switch res.Outcome {
	case OutcomeSuccess:
		entry.Status = checkpoint.ItemSuccess
	case OutcomeInvalidData:
		entry.Status = checkpoint.ItemInvalidData
	case OutcomeUpstreamFailure:
		entry.Status = checkpoint.ItemVendorFailed
	default:
		entry.Status = checkpoint.ItemError
		if res.Message == "" {
			res.Message = fmt.Sprintf("unknown outcome %d", res.Outcome)
		}
	}
	if res.Message != "" {
		entry.Extra = withReason(entry.Extra, res.Message)
	}
	return entry
}

func withReason(extra map[string]any, reason string) map[string]any {
	out := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	out["reason"] = reason
	return out
}
