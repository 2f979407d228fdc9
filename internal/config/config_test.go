package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Verify())
}

func TestVerifyConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "endpoint_must_be_a_url",
			mutate:  func(cfg *Config) { cfg.Source.Endpoint = "www.wikidata.org" },
			wantErr: `config 'source.endpoint' must be an http(s) URL, got "www.wikidata.org"`,
		},
		{
			name:    "endpoint_must_be_http",
			mutate:  func(cfg *Config) { cfg.Source.Endpoint = "ftp://example.org/api.php" },
			wantErr: `config 'source.endpoint' must be an http(s) URL, got "ftp://example.org/api.php"`,
		},
		{
			name:    "negative_maxlag",
			mutate:  func(cfg *Config) { cfg.Source.MaxLag = -1 },
			wantErr: "config 'source.maxLag' must not be negative",
		},
		{
			name:    "negative_retry_max",
			mutate:  func(cfg *Config) { cfg.Source.RetryMax = -1 },
			wantErr: "config 'source.retryMax' must not be negative",
		},
		{
			name:    "zero_max_batch_size",
			mutate:  func(cfg *Config) { cfg.Loader.MaxBatchSize = 0 },
			wantErr: "config 'loader.maxBatchSize' must be positive",
		},
		{
			name:    "small_batch_larger_than_max",
			mutate:  func(cfg *Config) { cfg.Loader.SmallBatchSize = 60 },
			wantErr: "config 'loader.smallBatchSize' (60) must be positive and not greater than 'loader.maxBatchSize' (50)",
		},
		{
			name:    "negative_small_list_threshold",
			mutate:  func(cfg *Config) { cfg.Loader.SmallListThreshold = -1 },
			wantErr: "config 'loader.smallListThreshold' must not be negative",
		},
		{
			name:    "zero_concurrent_fetches",
			mutate:  func(cfg *Config) { cfg.Loader.MaxConcurrentFetches = 0 },
			wantErr: "config 'loader.maxConcurrentFetches' must be positive",
		},
		{
			name: "enabled_cache_needs_size",
			mutate: func(cfg *Config) {
				cfg.Cache.Enabled = true
				cfg.Cache.MaxSize = 0
			},
			wantErr: "config 'cache.maxSize' must be positive when the cache is enabled",
		},
		{
			name:    "log_format",
			mutate:  func(cfg *Config) { cfg.Log.Format = "xml" },
			wantErr: "config 'log.format' must be one of ['text', 'json']",
		},
		{
			name:    "log_level",
			mutate:  func(cfg *Config) { cfg.Log.Level = "verbose" },
			wantErr: "config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		},
		{
			name: "sample_ratio",
			mutate: func(cfg *Config) {
				cfg.Trace.Enabled = true
				cfg.Trace.SampleRatio = 1.5
			},
			wantErr: "config 'trace.sampleRatio' must be between 0 and 1",
		},
		{
			name: "tail_latency",
			mutate: func(cfg *Config) {
				cfg.Trace.TailLatency.Enabled = true
				cfg.Trace.TailLatency.Ms = -1
			},
			wantErr: "config 'trace.tailLatency.ms' must not be negative",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)
			require.EqualError(t, cfg.Verify(), test.wantErr)
		})
	}
}

func TestDefaultConfigDoesNotShareProps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader.Props[0] = "changed"

	require.NotEqual(t, "changed", DefaultConfig().Loader.Props[0])
}
