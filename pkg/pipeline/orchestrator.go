package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/vendor-collector/pkg/batch"
	"github.com/Sternrassler/vendor-collector/pkg/checkpoint"
	"github.com/Sternrassler/vendor-collector/pkg/logging"
	"github.com/Sternrassler/vendor-collector/pkg/ratelimit"
	"github.com/Sternrassler/vendor-collector/pkg/retry"
	"github.com/Sternrassler/vendor-collector/pkg/workitem"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCancelled is returned when the caller's context ends a run. The
	// session keeps its last checkpoint and can be resumed.
	ErrCancelled = errors.New("session cancelled")

	// ErrSessionNotCompleted is returned by Complete for unfinished sessions.
	ErrSessionNotCompleted = errors.New("session not completed")

	// ErrSessionNotFailed is returned by Retry for sessions not in error state.
	ErrSessionNotFailed = errors.New("session not in error state")

	// ErrSessionFailed reports a run that ended, or was found, in error state.
	ErrSessionFailed = errors.New("session in error state")
)

// Config configures an Orchestrator.
type Config struct {
	// BatchDir is the root of the per-session batch directories.
	BatchDir string
	// OutputDir receives merged outputs.
	OutputDir string
	// Columns is the batch schema for new sessions.
	Columns []string
	// FlushRetry bounds batch write attempts.
	FlushRetry retry.Config
	// WriteBatch overrides how batch files are written.
	WriteBatch batch.WriteFunc
}

// StartOptions are the parameters of a new session.
type StartOptions struct {
	// SessionID names the session. Empty generates one. An existing
	// session with this ID is resumed instead of created.
	SessionID     string
	BatchSize     int
	PerItemTarget int
}

// Orchestrator owns the session loop. One Orchestrator runs one session at a
// time; the limiter and batch buffer are used from a single goroutine.
type Orchestrator struct {
	store     checkpoint.Store
	processor Processor
	limiter   *ratelimit.Limiter
	layout    batch.Layout
	merger    *batch.Merger
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an orchestrator.
func New(store checkpoint.Store, processor Processor, limiter *ratelimit.Limiter, cfg Config, logger zerolog.Logger) (*Orchestrator, error) {
	if store == nil || processor == nil || limiter == nil {
		return nil, fmt.Errorf("orchestrator: store, processor and limiter are required")
	}
	if cfg.BatchDir == "" {
		return nil, fmt.Errorf("orchestrator: batch dir is required")
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("orchestrator: columns are required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.BatchDir
	}

	layout := batch.Layout{Root: cfg.BatchDir}
	return &Orchestrator{
		store:     store,
		processor: processor,
		limiter:   limiter,
		layout:    layout,
		merger:    batch.NewMerger(layout, cfg.OutputDir, logger),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// NewSessionID returns an ID of the form session_YYYYMMDD_HHMMSS_xxxxxxxx.
func NewSessionID(t time.Time) string {
	return fmt.Sprintf("session_%s_%s", t.Format("20060102_150405"), uuid.NewString()[:8])
}

// Start creates a session for items and runs it to completion, cancellation
// or failure. When opts.SessionID names an existing session, that session is
// resumed instead and items/opts are ignored.
func (o *Orchestrator) Start(ctx context.Context, items workitem.Spec, opts StartOptions) (*checkpoint.Session, error) {
	id := opts.SessionID
	if id == "" {
		id = NewSessionID(o.now())
	} else {
		existing, err := o.store.Load(ctx, id)
		switch {
		case err == nil:
			o.logger.Info().Str("session_id", id).Msg("Session exists, resuming")
			return o.resume(ctx, existing)
		case !errors.Is(err, checkpoint.ErrNotFound):
			return nil, err
		}
	}

	if opts.PerItemTarget <= 0 {
		return nil, fmt.Errorf("per-item target must be positive (got %d)", opts.PerItemTarget)
	}
	s, err := checkpoint.Create(id, items, checkpoint.Options{
		BatchSize:     opts.BatchSize,
		PerItemTarget: opts.PerItemTarget,
		Columns:       o.cfg.Columns,
	})
	if err != nil {
		return nil, err
	}

	// Persist immediately so an early crash is still resumable.
	if err := o.store.Save(ctx, s); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("session_id", s.SessionID).
		Str("items", items.String()).
		Int("total", s.TotalCount).
		Int("batch_size", s.BatchSize).
		Int("per_item_target", opts.PerItemTarget).
		Msg("Session started")

	return o.run(ctx, s)
}

// Resume loads a session and continues it from its checkpoint. Completed and
// failed sessions are returned unchanged; use Retry to reopen a failed one.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (*checkpoint.Session, error) {
	s, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}
	return o.resume(ctx, s)
}

func (o *Orchestrator) resume(ctx context.Context, s *checkpoint.Session) (*checkpoint.Session, error) {
	if s.IsTerminal() {
		o.logger.Info().
			Str("session_id", s.SessionID).
			Str("status", string(s.Status)).
			Msg("Session already finished, nothing to resume")
		return s, nil
	}

	o.logger.Info().
		Str("session_id", s.SessionID).
		Int("index", s.CurrentIndex).
		Int("total", s.TotalCount).
		Int("batch_index", s.CurrentBatch).
		Msg("Resuming session")
	return o.run(ctx, s)
}

// Retry reopens a session in error state and continues it from its last
// checkpoint.
func (o *Orchestrator) Retry(ctx context.Context, sessionID string) (*checkpoint.Session, error) {
	s, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retry %s: %w", sessionID, err)
	}
	if s.Status != checkpoint.StatusError {
		return s, fmt.Errorf("retry %s: %w (status %s)", sessionID, ErrSessionNotFailed, s.Status)
	}

	o.logger.Warn().
		Str("session_id", s.SessionID).
		Str("previous_error", s.Error).
		Msg("Reopening failed session")

	if err := s.Reopen(); err != nil {
		return s, err
	}
	if err := o.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return o.run(ctx, s)
}

// Complete merges the batch files of a completed session into one output.
func (o *Orchestrator) Complete(ctx context.Context, sessionID, outputName string) (*batch.MergeResult, error) {
	s, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("complete %s: %w", sessionID, err)
	}
	if s.Status != checkpoint.StatusCompleted {
		return nil, fmt.Errorf("complete %s: %w (status %s)", sessionID, ErrSessionNotCompleted, s.Status)
	}
	return o.merger.Merge(ctx, sessionID, outputName)
}

// Cleanup removes a session's batch files and, if requested, its checkpoint.
func (o *Orchestrator) Cleanup(ctx context.Context, sessionID string, deleteCheckpoint bool) error {
	if err := o.merger.Cleanup(sessionID); err != nil {
		return err
	}
	if deleteCheckpoint {
		return o.store.Delete(ctx, sessionID)
	}
	return nil
}

// run processes items [CurrentIndex, TotalCount) of a running session.
func (o *Orchestrator) run(ctx context.Context, s *checkpoint.Session) (*checkpoint.Session, error) {
	sessionsActive.Inc()
	defer sessionsActive.Dec()

	logger := logging.ForSession(o.logger, s.SessionID)
	saved := s.Progress()

	if err := s.Options.Items.Validate(); err != nil {
		return o.fail(ctx, s, saved, err)
	}
	seq := s.Options.Items.Sequence()
	if seq.Len() != s.TotalCount {
		return o.fail(ctx, s, saved, fmt.Errorf("item spec yields %d items, checkpoint expects %d", seq.Len(), s.TotalCount))
	}

	columns := s.Options.Columns
	if len(columns) == 0 {
		columns = o.cfg.Columns
		s.Options.Columns = columns
	}

	removed, err := o.layout.RemoveFrom(s.SessionID, s.CurrentBatch)
	if err != nil {
		return o.fail(ctx, s, saved, err)
	}
	if removed > 0 {
		logger.Warn().
			Int("batch_index", s.CurrentBatch).
			Int("removed", removed).
			Msg("Removed batch files written after the last checkpoint")
	}

	writer, err := batch.NewWriter(batch.WriterConfig{
		Layout:     o.layout,
		SessionID:  s.SessionID,
		Columns:    columns,
		BatchSize:  s.BatchSize,
		StartIndex: s.CurrentBatch,
		Retry:      o.cfg.FlushRetry,
		Write:      o.cfg.WriteBatch,
	}, logger)
	if err != nil {
		return o.fail(ctx, s, saved, err)
	}

	target := s.Options.PerItemTarget
	for s.CurrentIndex < s.TotalCount {
		if err := ctx.Err(); err != nil {
			return o.cancelled(s, err)
		}

		id := seq.At(s.CurrentIndex)
		if err := o.limiter.Acquire(ctx); err != nil {
			return o.cancelled(s, err)
		}

		start := time.Now()
		res, perr := o.process(ctx, id, target)
		itemDuration.Observe(time.Since(start).Seconds())

		// An item interrupted mid-flight is not recorded; resume redoes it.
		if err := ctx.Err(); err != nil {
			return o.cancelled(s, err)
		}

		entry := entryFor(id, res)
		if perr != nil {
			entry = checkpoint.VendorEntry{ID: id, Status: checkpoint.ItemError, Extra: map[string]any{"reason": perr.Error()}}
		} else if res.Outcome == OutcomeSuccess {
			if err := writer.Append(res.Row); err != nil {
				entry = checkpoint.VendorEntry{ID: id, Status: checkpoint.ItemError, Extra: withReason(res.Extra, err.Error())}
			}
		}
		if err := s.Record(entry); err != nil {
			return o.fail(ctx, s, saved, err)
		}
		o.logItem(logger, s, entry)

		flushed, err := writer.MaybeFlush(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return o.cancelled(s, ctx.Err())
			}
			return o.fail(ctx, s, saved, err)
		}
		if flushed {
			s.CurrentBatch = writer.NextIndex()
			// The batch file is in place; its checkpoint must land even if
			// cancellation arrives now.
			if err := o.store.Save(context.WithoutCancel(ctx), s); err != nil {
				return o.fail(ctx, s, saved, err)
			}
			saved = s.Progress()
			logger.Info().
				Int("index", s.CurrentIndex).
				Int("total", s.TotalCount).
				Int("batch_index", s.CurrentBatch).
				Msg("Checkpoint saved")
		}
	}

	if _, err := writer.Finalize(ctx); err != nil {
		if ctx.Err() != nil {
			return o.cancelled(s, ctx.Err())
		}
		return o.fail(ctx, s, saved, err)
	}
	s.CurrentBatch = writer.NextIndex()

	if err := s.MarkCompleted(o.now()); err != nil {
		return o.fail(ctx, s, saved, err)
	}
	if err := o.store.Save(context.WithoutCancel(ctx), s); err != nil {
		return o.fail(ctx, s, saved, err)
	}

	sessionsTotal.WithLabelValues("completed").Inc()
	counts := s.Counts()
	logger.Info().
		Int("total", s.TotalCount).
		Int("batches", s.CurrentBatch).
		Int("success", counts[checkpoint.ItemSuccess]).
		Int("vendor_failed", counts[checkpoint.ItemVendorFailed]).
		Int("invalid_data", counts[checkpoint.ItemInvalidData]).
		Int("error", counts[checkpoint.ItemError]).
		Msg("Session completed")
	return s, nil
}

// process runs the processor, converting a panic into an error.
func (o *Orchestrator) process(ctx context.Context, id string, target int) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return o.processor.Process(ctx, id, target), nil
}

func (o *Orchestrator) logItem(logger zerolog.Logger, s *checkpoint.Session, entry checkpoint.VendorEntry) {
	outcome := string(entry.Status)
	if entry.Status == checkpoint.ItemVendorFailed {
		outcome = OutcomeUpstreamFailure.String()
	}
	itemsProcessedTotal.WithLabelValues(outcome).Inc()

	var ev *zerolog.Event
	if entry.Status == checkpoint.ItemSuccess {
		ev = logger.Debug()
	} else {
		ev = logger.Warn()
		if reason, ok := entry.Extra["reason"]; ok {
			ev = ev.Interface("reason", reason)
		}
	}
	ev.Str("vendor_id", entry.ID).
		Str("status", string(entry.Status)).
		Int("index", s.CurrentIndex).
		Int("total", s.TotalCount).
		Msg("Item processed")
}

// cancelled abandons the in-memory progress since the last checkpoint.
func (o *Orchestrator) cancelled(s *checkpoint.Session, cause error) (*checkpoint.Session, error) {
	sessionsTotal.WithLabelValues("cancelled").Inc()
	o.logger.Warn().
		Str("session_id", s.SessionID).
		Int("index", s.CurrentIndex).
		Int("total", s.TotalCount).
		Msg("Session cancelled, progress kept at last checkpoint")
	return s, fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// fail moves the session to the error state with the progress of its last
// successful checkpoint and saves it on a best-effort basis.
func (o *Orchestrator) fail(ctx context.Context, s *checkpoint.Session, saved checkpoint.Progress, cause error) (*checkpoint.Session, error) {
	sessionsTotal.WithLabelValues("error").Inc()

	s.Rollback(saved)
	s.Status = checkpoint.StatusRunning
	s.EndTime = nil
	_ = s.MarkFailed(cause, o.now())

	logger := logging.ForSession(o.logger, s.SessionID)
	logger.Error().
		Err(cause).
		Int("index", s.CurrentIndex).
		Int("batch_index", s.CurrentBatch).
		Msg("Session failed")

	if err := o.store.Save(context.WithoutCancel(ctx), s); err != nil {
		logger.Error().Err(err).Msg("Failed to persist error state")
	}
	return s, cause
}
