package run

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wdgraph/wdgraph/cmd"
	"github.com/wdgraph/wdgraph/cmd/util"
	"github.com/wdgraph/wdgraph/internal/config"
	"github.com/wdgraph/wdgraph/pkg/logger"
	"github.com/wdgraph/wdgraph/pkg/telemetry"
	"github.com/wdgraph/wdgraph/pkg/testutils"
)

// executeWithConfig runs a command carrying the shared config flags and
// returns the config it read.
func executeWithConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	t.Cleanup(viper.Reset)

	var cfg *config.Config
	inspect := &cobra.Command{
		Use: "inspect",
		PreRun: func(c *cobra.Command, _ []string) {
			BindConfigFlags(c.Flags())
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = ReadConfig()
			return err
		},
	}
	AddConfigFlags(inspect.Flags())

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(inspect)
	rootCmd.SetArgs(append([]string{"inspect"}, args...))
	require.NoError(t, rootCmd.Execute())
	require.NotNil(t, cfg)

	return cfg
}

func TestReadConfigNoConfigDefaultValues(t *testing.T) {
	util.PrepareTempConfigDir(t)

	cfg := executeWithConfig(t)

	want := config.DefaultConfig()
	require.Empty(t, cfg.Source.Languages)
	cfg.Source.Languages = want.Source.Languages
	require.Equal(t, want, cfg)
}

func TestReadConfigFileValuesAreParsed(t *testing.T) {
	util.PrepareTempConfigFile(t, `source:
    endpoint: https://test.wikidata.org/w/api.php
    maxLag: 2
    languages: [en, de]
loader:
    maxBatchSize: 20
    smallBatchSize: 10
cache:
    enabled: true
    TTL: 5s
log:
    level: debug
`)

	cfg := executeWithConfig(t)
	require.Equal(t, "https://test.wikidata.org/w/api.php", cfg.Source.Endpoint)
	require.Equal(t, 2, cfg.Source.MaxLag)
	require.Equal(t, []string{"en", "de"}, cfg.Source.Languages)
	require.Equal(t, 20, cfg.Loader.MaxBatchSize)
	require.Equal(t, 10, cfg.Loader.SmallBatchSize)
	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, 5*time.Second, cfg.Cache.TTL)
	require.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Verify())
}

func TestReadConfigIsMerged(t *testing.T) {
	util.PrepareTempConfigFile(t, `log:
    level: debug
    format: json
metrics:
    addr: 127.0.0.1:9000
`)

	t.Setenv("WDGRAPH_LOG_LEVEL", "warn")
	t.Setenv("WDGRAPH_LOADER_MAX_CONCURRENT_FETCHES", "3")
	t.Setenv("WDGRAPH_TRACE_SAMPLE_RATIO", "0.5")
	t.Setenv("WDGRAPH_CACHE_TTL", "1m")
	t.Setenv("WDGRAPH_TRACE_TAIL_LATENCY_MS", "250")

	cfg := executeWithConfig(t, "--metrics-addr", "127.0.0.1:9100", "--languages", "fr", "--trace-tail-latency-enabled")
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, 3, cfg.Loader.MaxConcurrentFetches)
	require.InDelta(t, 0.5, cfg.Trace.SampleRatio, 1e-9)
	require.Equal(t, time.Minute, cfg.Cache.TTL)
	require.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	require.Equal(t, []string{"fr"}, cfg.Source.Languages)
	require.True(t, cfg.Trace.TailLatency.Enabled)
	require.Equal(t, 250, cfg.Trace.TailLatency.Ms)
}

func TestReadConfigMalformedFile(t *testing.T) {
	util.PrepareTempConfigFile(t, "log: [")
	t.Cleanup(viper.Reset)

	cmd.NewRootCommand()
	_, err := ReadConfig()
	require.ErrorContains(t, err, "failed to load config")
}

func TestNewContext(t *testing.T) {
	t.Run("invalid_config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Log.Format = "xml"

		_, err := NewContext(cfg)
		require.EqualError(t, err, "config 'log.format' must be one of ['text', 'json']")
	})

	t.Run("with_cache", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Log.Level = "none"
		cfg.Cache.Enabled = true

		c, err := NewContext(cfg)
		require.NoError(t, err)
		require.NotNil(t, c.cache)
		require.Same(t, c.Store, c.Loader.Store())
		require.NoError(t, c.Close())
	})

	t.Run("without_cache", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Log.Level = "none"

		c, err := NewContext(cfg)
		require.NoError(t, err)
		require.Nil(t, c.cache)
		require.NoError(t, c.Close())
	})
}

func TestContextRun(t *testing.T) {
	t.Run("metrics_disabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Log.Level = "none"
		c, err := NewContext(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, c.Close()) })

		want := errors.New("boom")
		err = c.Run(context.Background(), func(context.Context) error { return want })
		require.ErrorIs(t, err, want)
	})

	t.Run("serves_metrics_while_running", func(t *testing.T) {
		port, release := testutils.TCPRandomPort()
		release()

		cfg := config.DefaultConfig()
		cfg.Log.Level = "none"
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = fmt.Sprintf("localhost:%d", port)

		c, err := NewContext(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, c.Close()) })

		err = c.Run(context.Background(), func(context.Context) error {
			testutils.EnsureMetricsHealthy(t, cfg.Metrics.Addr)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("metrics_server_failure_cancels", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Log.Level = "none"
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = "not-a-host-port"

		c, err := NewContext(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, c.Close()) })

		err = c.Run(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
		require.ErrorContains(t, err, "failed to start prometheus metrics server")
	})
}

func TestTelemetryConfigTailLatency(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tests := []struct {
		name      string
		enabled   bool
		wantSpans int
	}{
		{name: "disabled", enabled: false, wantSpans: 1},
		{name: "drops_fast_traces", enabled: true, wantSpans: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Trace.Enabled = true
			cfg.Trace.OTLP.Endpoint = ""
			cfg.Trace.SampleRatio = 1
			cfg.Trace.TailLatency.Enabled = test.enabled
			cfg.Trace.TailLatency.Ms = 60000

			exporter := tracetest.NewInMemoryExporter()
			tp := telemetryConfig(cfg, logger.NewNoopLogger(), telemetry.WithExporter(exporter))
			t.Cleanup(func() {
				require.NoError(t, tp.Close(context.Background()))
			})

			_, span := tp.Tracer("").Start(context.Background(), "load")
			span.End()

			require.NoError(t, tp.ForceFlush(context.Background()))
			require.Len(t, exporter.GetSpans(), test.wantSpans)
		})
	}
}
