package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/vendor-collector/pkg/checkpoint"
)

// Summary is a compact view of a session's checkpoint.
type Summary struct {
	SessionID    string
	Status       checkpoint.Status
	Items        string
	CurrentIndex int
	Remaining    int
	TotalCount   int
	Batches      int
	Counts       map[checkpoint.ItemStatus]int
	StartTime    time.Time
	LastUpdated  time.Time
	Error        string
}

// Percent returns the share of accounted-for items.
func (s Summary) Percent() float64 {
	if s.TotalCount == 0 {
		return 0
	}
	return float64(s.CurrentIndex) / float64(s.TotalCount) * 100
}

func summarize(s *checkpoint.Session) Summary {
	return Summary{
		SessionID:    s.SessionID,
		Status:       s.Status,
		Items:        s.Options.Items.String(),
		CurrentIndex: s.CurrentIndex,
		Remaining:    s.Remaining(),
		TotalCount:   s.TotalCount,
		Batches:      s.CurrentBatch,
		Counts:       s.Counts(),
		StartTime:    s.StartTime,
		LastUpdated:  s.LastUpdated,
		Error:        s.Error,
	}
}

// Status returns the summary of one session.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (Summary, error) {
	s, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("status %s: %w", sessionID, err)
	}
	return summarize(s), nil
}

// Sessions returns summaries of all stored sessions. Unreadable checkpoints
// are logged and skipped.
func (o *Orchestrator) Sessions(ctx context.Context) ([]Summary, error) {
	ids, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		s, err := o.store.Load(ctx, id)
		if err != nil {
			o.logger.Warn().Err(err).Str("session_id", id).Msg("Skipping unreadable checkpoint")
			continue
		}
		out = append(out, summarize(s))
	}
	return out, nil
}
