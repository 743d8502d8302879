package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/vendor-collector/internal/config"
	"github.com/Sternrassler/vendor-collector/pkg/cache"
	"github.com/Sternrassler/vendor-collector/pkg/checkpoint"
	"github.com/Sternrassler/vendor-collector/pkg/logging"
	"github.com/Sternrassler/vendor-collector/pkg/metrics"
	"github.com/Sternrassler/vendor-collector/pkg/pipeline"
	"github.com/Sternrassler/vendor-collector/pkg/ratelimit"
	"github.com/Sternrassler/vendor-collector/pkg/retry"
	"github.com/Sternrassler/vendor-collector/pkg/vendor"
)

// app holds the collaborators shared by the subcommands.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	redis  *redis.Client
}

// newApp loads configuration, applies flag overrides and sets up logging,
// Redis and the metrics endpoint.
func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		if !logging.ValidLevel(opts.logLevel) {
			return nil, fmt.Errorf("unknown log level %q", opts.logLevel)
		}
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.LogPretty = opts.logPretty
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	})
	a := &app{cfg: cfg, logger: logging.NewLogger("collector")}

	if cfg.CheckpointBackend == config.BackendRedis || cfg.CacheEnabled {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.MetricsAddr, a.logger); err != nil {
				a.logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
	}

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

func (a *app) store() checkpoint.Store {
	if a.cfg.CheckpointBackend == config.BackendRedis {
		return checkpoint.NewRedisStore(a.redis, "")
	}
	return checkpoint.NewFileStore(a.cfg.CheckpointDir())
}

// vendorClient builds the processor used by start and resume. A 429 with
// Retry-After pauses itemLimiter as well as the page limiter.
func (a *app) vendorClient(itemLimiter *ratelimit.Limiter) (*vendor.Client, error) {
	if a.cfg.VendorBaseURL == "" {
		return nil, errors.New("vendor_base_url is not configured")
	}

	vcfg := vendor.DefaultConfig(a.cfg.VendorBaseURL)
	vcfg.UserAgent = a.cfg.UserAgent
	vcfg.PageSize = a.cfg.PageSize
	vcfg.MaxPages = a.cfg.MaxPages
	if d := a.cfg.RequestTimeoutDuration(); d > 0 {
		vcfg.Timeout = d
	}
	if d := a.cfg.CacheTTLDuration(); d > 0 {
		vcfg.CacheTTL = d
	}

	opts := []vendor.Option{
		vendor.WithPageLimiter(ratelimit.New("page", a.cfg.PageDelayDuration(), a.logger)),
		vendor.WithHoldLimiter(itemLimiter),
	}
	if a.cfg.CacheEnabled {
		opts = append(opts, vendor.WithCache(cache.NewManager(a.redis)))
	}
	if len(a.cfg.Proxies) > 0 {
		rr, err := vendor.NewRoundRobin(a.cfg.Proxies)
		if err != nil {
			return nil, fmt.Errorf("proxies: %w", err)
		}
		opts = append(opts, vendor.WithProxyPolicy(rr))
		a.logger.Info().Int("proxies", rr.Len()).Msg("Rotating requests through proxies")
	}

	return vendor.New(vcfg, logging.NewLogger("vendor"), opts...)
}

// offline stands in for the vendor client in commands that never process items.
var offline = pipeline.ProcessorFunc(func(context.Context, string, int) pipeline.Result {
	return pipeline.UpstreamFailure("no vendor client configured")
})

func (a *app) orchestrator(withVendor bool) (*pipeline.Orchestrator, error) {
	itemLimiter := ratelimit.New("item", a.cfg.ItemDelayDuration(), a.logger)

	var processor pipeline.Processor = offline
	if withVendor {
		client, err := a.vendorClient(itemLimiter)
		if err != nil {
			return nil, err
		}
		processor = client
	}

	flushRetry := retry.DefaultConfig()
	flushRetry.MaxAttempts = a.cfg.FlushAttempts
	flushRetry.InitialBackoff = a.cfg.FlushBackoffDuration()

	return pipeline.New(
		a.store(),
		processor,
		itemLimiter,
		pipeline.Config{
			BatchDir:   a.cfg.BatchDir(),
			OutputDir:  a.cfg.OutputDir(),
			Columns:    vendor.Columns,
			FlushRetry: flushRetry,
		},
		logging.NewLogger("pipeline"),
	)
}

// reportRun logs the outcome of start, resume and retry.
func (a *app) reportRun(cmd *cobra.Command, s *checkpoint.Session, err error) error {
	if errors.Is(err, pipeline.ErrCancelled) && s != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Interrupted at %d/%d. Resume with: collector resume %s\n",
			s.CurrentIndex, s.TotalCount, s.SessionID)
		return err
	}
	if err != nil {
		if s != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s failed at %d/%d: %s\n",
				s.SessionID, s.CurrentIndex, s.TotalCount, s.Error)
			if s.Status == checkpoint.StatusError {
				fmt.Fprintf(cmd.OutOrStdout(), "Reopen it with: collector resume %s --retry-failed\n", s.SessionID)
			}
		}
		return err
	}

	if s.Status == checkpoint.StatusError {
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s is in error state (%s) at %d/%d. Reopen it with: collector resume %s --retry-failed\n",
			s.SessionID, s.Error, s.CurrentIndex, s.TotalCount, s.SessionID)
		return fmt.Errorf("session %s: %w", s.SessionID, pipeline.ErrSessionFailed)
	}

	counts := s.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s %s: %d/%d items, %d batches (success %d, vendor_failed %d, invalid_data %d, error %d)\n",
		s.SessionID, s.Status, s.CurrentIndex, s.TotalCount, s.CurrentBatch,
		counts[checkpoint.ItemSuccess], counts[checkpoint.ItemVendorFailed],
		counts[checkpoint.ItemInvalidData], counts[checkpoint.ItemError])
	return nil
}
