// Package config contains all knobs and defaults used to configure the
// wdgraph command line.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/wdgraph/wdgraph/pkg/loader"
	"github.com/wdgraph/wdgraph/pkg/source"
	"github.com/wdgraph/wdgraph/pkg/source/caching"
	"github.com/wdgraph/wdgraph/pkg/telemetry"
	"github.com/wdgraph/wdgraph/pkg/wikibase"
)

const (
	DefaultSourceTimeout  = 30 * time.Second
	DefaultSourceRetryMax = 4
)

var (
	logFormats = []string{"text", "json"}
	logLevels  = []string{"none", "debug", "info", "warn", "error", "panic", "fatal"}
)

// SourceConfig defines where entities are fetched from.
type SourceConfig struct {
	// Endpoint is the api.php URL of the Wikibase installation.
	Endpoint string

	// UserAgent is sent with every request. Empty uses the default agent.
	UserAgent string

	// MaxLag is the maxlag parameter in seconds; 0 omits it.
	MaxLag int

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// RetryMax is the number of transport level retries per request.
	RetryMax int

	// Languages restricts the fetched labels, descriptions and aliases.
	Languages []string
}

type LoaderConfig struct {
	MaxBatchSize         int
	SmallBatchSize       int
	SmallListThreshold   int
	MaxConcurrentFetches int
	Props                []string
}

// CacheConfig defines the in-memory cache of fetched payloads.
type CacheConfig struct {
	Enabled bool
	MaxSize int64
	TTL     time.Duration
}

type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
	TailLatency TailLatencyConfig
}

// TailLatencyConfig keeps only the traces whose root span lasted at least Ms
// milliseconds.
type TailLatencyConfig struct {
	Enabled bool
	Ms      int
}

type OTLPTraceConfig struct {
	Endpoint string
}

type MetricConfig struct {
	Enabled bool
	Addr    string
}

type Config struct {
	Source  SourceConfig
	Loader  LoaderConfig
	Cache   CacheConfig
	Log     LogConfig
	Trace   TraceConfig
	Metrics MetricConfig
}

func (cfg *Config) Verify() error {
	endpoint, err := url.ParseRequestURI(cfg.Source.Endpoint)
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") {
		return fmt.Errorf("config 'source.endpoint' must be an http(s) URL, got %q", cfg.Source.Endpoint)
	}

	if cfg.Source.MaxLag < 0 {
		return errors.New("config 'source.maxLag' must not be negative")
	}

	if cfg.Source.RetryMax < 0 {
		return errors.New("config 'source.retryMax' must not be negative")
	}

	if cfg.Loader.MaxBatchSize < 1 {
		return errors.New("config 'loader.maxBatchSize' must be positive")
	}

	if cfg.Loader.SmallBatchSize < 1 || cfg.Loader.SmallBatchSize > cfg.Loader.MaxBatchSize {
		return fmt.Errorf(
			"config 'loader.smallBatchSize' (%d) must be positive and not greater than 'loader.maxBatchSize' (%d)",
			cfg.Loader.SmallBatchSize,
			cfg.Loader.MaxBatchSize,
		)
	}

	if cfg.Loader.SmallListThreshold < 0 {
		return errors.New("config 'loader.smallListThreshold' must not be negative")
	}

	if cfg.Loader.MaxConcurrentFetches < 1 {
		return errors.New("config 'loader.maxConcurrentFetches' must be positive")
	}

	if cfg.Cache.Enabled && cfg.Cache.MaxSize < 1 {
		return errors.New("config 'cache.maxSize' must be positive when the cache is enabled")
	}

	if !slices.Contains(logFormats, cfg.Log.Format) {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if !slices.Contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Trace.Enabled && (cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1) {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	if cfg.Trace.TailLatency.Enabled && cfg.Trace.TailLatency.Ms < 0 {
		return errors.New("config 'trace.tailLatency.ms' must not be negative")
	}

	return nil
}

// DefaultConfig is the wdgraph default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Endpoint: wikibase.DefaultEndpoint,
			MaxLag:   wikibase.DefaultMaxLag,
			Timeout:  DefaultSourceTimeout,
			RetryMax: DefaultSourceRetryMax,
		},
		Loader: LoaderConfig{
			MaxBatchSize:         loader.DefaultMaxBatchSize,
			SmallBatchSize:       loader.DefaultSmallBatchSize,
			SmallListThreshold:   loader.DefaultSmallListThreshold,
			MaxConcurrentFetches: loader.DefaultMaxConcurrentFetches,
			Props:                slices.Clone(source.DefaultProps),
		},
		Cache: CacheConfig{
			Enabled: false,
			MaxSize: caching.DefaultMaxSize,
			TTL:     caching.DefaultTTL,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio: 0.2,
			ServiceName: "wdgraph",
			TailLatency: TailLatencyConfig{
				Enabled: false,
				Ms:      telemetry.DefaultLatencyInMs,
			},
		},
		Metrics: MetricConfig{
			Enabled: false,
			Addr:    "0.0.0.0:2112",
		},
	}
}
