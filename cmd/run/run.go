// Package run wires the configuration of a wdgraph command into a ready to use
// loader: logger, tracing, HTTP source, optional cache and the entity store.
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wdgraph/wdgraph/internal/config"
	"github.com/wdgraph/wdgraph/pkg/loader"
	"github.com/wdgraph/wdgraph/pkg/logger"
	"github.com/wdgraph/wdgraph/pkg/retryablehttp"
	"github.com/wdgraph/wdgraph/pkg/source"
	"github.com/wdgraph/wdgraph/pkg/source/caching"
	"github.com/wdgraph/wdgraph/pkg/storage/memory"
	"github.com/wdgraph/wdgraph/pkg/telemetry"
	"github.com/wdgraph/wdgraph/pkg/wikibase"
)

// ReadConfig returns the wdgraph configuration based on the values provided in the 'config.yaml' file,
// env vars and bound flags. The 'config.yaml' file is loaded from '/etc/wdgraph', '$HOME/.wdgraph',
// or the current working directory. If no configuration file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Context holds everything a command needs to run load sessions.
type Context struct {
	Config *config.Config
	Logger logger.Logger
	Store  *memory.Store
	Loader *loader.Loader

	tracerProvider telemetry.TracerProvider
	cache          *caching.Fetcher
}

// NewContext verifies cfg and builds the components it describes. The
// returned Context must be closed.
func NewContext(cfg *config.Config) (*Context, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Config:         cfg,
		Logger:         log,
		Store:          memory.New(),
		tracerProvider: telemetryConfig(cfg, log),
	}

	wikibaseOpts := []wikibase.ClientOption{
		wikibase.WithEndpoint(cfg.Source.Endpoint),
		wikibase.WithMaxLag(cfg.Source.MaxLag),
		wikibase.WithLogger(log),
		wikibase.WithHTTPClient(retryablehttp.NewClient(
			retryablehttp.WithLogger(log),
			retryablehttp.WithRetryMax(cfg.Source.RetryMax),
			retryablehttp.WithTimeout(cfg.Source.Timeout),
		)),
	}
	if cfg.Source.UserAgent != "" {
		wikibaseOpts = append(wikibaseOpts, wikibase.WithUserAgent(cfg.Source.UserAgent))
	}

	var fetcher source.Fetcher = wikibase.NewClient(wikibaseOpts...)
	if cfg.Cache.Enabled {
		c.cache, err = caching.NewFetcher(fetcher,
			caching.WithMaxSize(cfg.Cache.MaxSize),
			caching.WithTTL(cfg.Cache.TTL),
			caching.WithLogger(log),
		)
		if err != nil {
			return nil, errors.Join(err, c.Close())
		}
		fetcher = c.cache
	}

	c.Loader, err = loader.New(c.Store, fetcher,
		loader.WithLogger(log),
		loader.WithMaxBatchSize(cfg.Loader.MaxBatchSize),
		loader.WithSmallBatchSize(cfg.Loader.SmallBatchSize),
		loader.WithSmallListThreshold(cfg.Loader.SmallListThreshold),
		loader.WithMaxConcurrentFetches(cfg.Loader.MaxConcurrentFetches),
		loader.WithProps(cfg.Loader.Props),
	)
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}

	return c, nil
}

// Run calls fn, serving the prometheus metrics endpoint for as long as fn runs
// when metrics are enabled. A metrics server that fails to start cancels the
// context passed to fn.
func (c *Context) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !c.Config.Metrics.Enabled {
		return fn(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              c.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		c.Logger.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", c.Config.Metrics.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start prometheus metrics server: %w", err)
		}
		c.Logger.Info("metrics server shut down.")
		return nil
	})
	grp.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				c.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
			}
		}()
		return fn(ctx)
	})

	return grp.Wait()
}

// Close releases the cache and flushes pending spans.
func (c *Context) Close() error {
	if c.cache != nil {
		c.cache.Close()
	}

	// can take up to 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	return errors.Join(c.tracerProvider.ForceFlush(ctx), c.tracerProvider.Close(ctx))
}

// telemetryConfig returns the tracer provider for cfg, a noop one when tracing is disabled.
// opts are applied after the ones derived from cfg.
func telemetryConfig(cfg *config.Config, log logger.Logger, opts ...telemetry.TracerOption) telemetry.TracerProvider {
	if !cfg.Trace.Enabled {
		return telemetry.Noop()
	}

	log.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s'", cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint))

	return telemetry.MustNewTracerProvider(append([]telemetry.TracerOption{
		telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
		telemetry.WithServiceName(cfg.Trace.ServiceName),
		telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		telemetry.WithEnableTailLatencySpanExporter(cfg.Trace.TailLatency.Enabled),
		telemetry.WithTailLatencyInMillisecond(cfg.Trace.TailLatency.Ms),
	}, opts...)...)
}
