package pagination

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for paginated collection.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_pages_fetched_total",
		Help: "Total number of pages fetched by the paginated collector",
	})

	collectStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_pagination_stops_total",
		Help: "Paginated collections by stop reason",
	}, []string{"reason"})
)

// StopReason explains why Collect returned.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopTarget    StopReason = "target"
	StopShortPage StopReason = "short_page"
	StopMaxPages  StopReason = "max_pages"
	StopError     StopReason = "error"
)

// DefaultMaxPages bounds the loop when Config.MaxPages is unset.
const DefaultMaxPages = 1000

// Config holds collector configuration.
type Config struct {
	// PageSize is the page size requested from the upstream. A page with
	// fewer items is treated as the last one.
	PageSize int

	// Target is the maximum number of records to return.
	Target int

	// MaxPages caps the number of fetches (default: DefaultMaxPages).
	MaxPages int
}

// PageFetcher fetches one page of records for the given cursor.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, cursor, pageSize int) ([]T, error)
}

// PageFunc adapts a plain function to PageFetcher.
type PageFunc[T any] func(ctx context.Context, cursor, pageSize int) ([]T, error)

// FetchPage calls f.
func (f PageFunc[T]) FetchPage(ctx context.Context, cursor, pageSize int) ([]T, error) {
	return f(ctx, cursor, pageSize)
}

// Result is the outcome of a collection.
type Result[T any] struct {
	Items  []T
	Pages  int
	Reason StopReason
}

// Collect walks pages from cursor 0 until a stop condition is met and
// returns at most cfg.Target records. On a fetch error the records gathered
// so far are returned together with the error.
func Collect[T any](ctx context.Context, fetcher PageFetcher[T], cfg Config) (Result[T], error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}

	res := Result[T]{}
	if cfg.Target <= 0 {
		res.Reason = StopTarget
		return res, nil
	}
	if cfg.PageSize <= 0 {
		return res, fmt.Errorf("page size must be positive (got %d)", cfg.PageSize)
	}

	for cursor := 0; ; cursor++ {
		if cursor >= cfg.MaxPages {
			res.Reason = StopMaxPages
			log.Warn().
				Int("pages", res.Pages).
				Int("collected", len(res.Items)).
				Msg("Pagination stopped at page limit")
			break
		}

		if err := ctx.Err(); err != nil {
			res.Reason = StopError
			collectStopsTotal.WithLabelValues(string(res.Reason)).Inc()
			return res, err
		}

		items, err := fetcher.FetchPage(ctx, cursor, cfg.PageSize)
		if err != nil {
			res.Reason = StopError
			collectStopsTotal.WithLabelValues(string(res.Reason)).Inc()
			return res, fmt.Errorf("fetch page %d: %w", cursor, err)
		}
		res.Pages++
		pagesFetchedTotal.Inc()

		if len(items) == 0 {
			res.Reason = StopExhausted
			break
		}

		take := min(len(items), cfg.Target-len(res.Items))
		res.Items = append(res.Items, items[:take]...)

		if len(res.Items) >= cfg.Target {
			res.Reason = StopTarget
			break
		}
		if len(items) < cfg.PageSize {
			res.Reason = StopShortPage
			break
		}
	}

	collectStopsTotal.WithLabelValues(string(res.Reason)).Inc()
	log.Debug().
		Int("pages", res.Pages).
		Int("collected", len(res.Items)).
		Str("reason", string(res.Reason)).
		Msg("Pagination complete")

	return res, nil
}
