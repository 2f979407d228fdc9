package run

import (
	"github.com/spf13/pflag"

	"github.com/wdgraph/wdgraph/cmd/util"
	"github.com/wdgraph/wdgraph/internal/config"
)

type flagBinding struct {
	key  string
	flag string
	envs []string
}

// configBindings lists every config key that can be set from a flag or env var.
var configBindings = []flagBinding{
	{"source.endpoint", "source-endpoint", []string{"WDGRAPH_SOURCE_ENDPOINT"}},
	{"source.userAgent", "source-user-agent", []string{"WDGRAPH_SOURCE_USER_AGENT", "WDGRAPH_SOURCE_USERAGENT"}},
	{"source.maxLag", "source-max-lag", []string{"WDGRAPH_SOURCE_MAX_LAG", "WDGRAPH_SOURCE_MAXLAG"}},
	{"source.timeout", "source-timeout", []string{"WDGRAPH_SOURCE_TIMEOUT"}},
	{"source.retryMax", "source-retry-max", []string{"WDGRAPH_SOURCE_RETRY_MAX", "WDGRAPH_SOURCE_RETRYMAX"}},
	{"source.languages", "languages", []string{"WDGRAPH_SOURCE_LANGUAGES"}},
	{"loader.maxBatchSize", "loader-max-batch-size", []string{"WDGRAPH_LOADER_MAX_BATCH_SIZE", "WDGRAPH_LOADER_MAXBATCHSIZE"}},
	{"loader.smallBatchSize", "loader-small-batch-size", []string{"WDGRAPH_LOADER_SMALL_BATCH_SIZE", "WDGRAPH_LOADER_SMALLBATCHSIZE"}},
	{"loader.smallListThreshold", "loader-small-list-threshold", []string{"WDGRAPH_LOADER_SMALL_LIST_THRESHOLD", "WDGRAPH_LOADER_SMALLLISTTHRESHOLD"}},
	{"loader.maxConcurrentFetches", "loader-max-concurrent-fetches", []string{"WDGRAPH_LOADER_MAX_CONCURRENT_FETCHES", "WDGRAPH_LOADER_MAXCONCURRENTFETCHES"}},
	{"loader.props", "loader-props", []string{"WDGRAPH_LOADER_PROPS"}},
	{"cache.enabled", "cache-enabled", []string{"WDGRAPH_CACHE_ENABLED"}},
	{"cache.maxSize", "cache-max-size", []string{"WDGRAPH_CACHE_MAX_SIZE", "WDGRAPH_CACHE_MAXSIZE"}},
	{"cache.ttl", "cache-ttl", []string{"WDGRAPH_CACHE_TTL"}},
	{"log.format", "log-format", []string{"WDGRAPH_LOG_FORMAT"}},
	{"log.level", "log-level", []string{"WDGRAPH_LOG_LEVEL"}},
	{"trace.enabled", "trace-enabled", []string{"WDGRAPH_TRACE_ENABLED"}},
	{"trace.otlp.endpoint", "trace-otlp-endpoint", []string{"WDGRAPH_TRACE_OTLP_ENDPOINT"}},
	{"trace.sampleRatio", "trace-sample-ratio", []string{"WDGRAPH_TRACE_SAMPLE_RATIO", "WDGRAPH_TRACE_SAMPLERATIO"}},
	{"trace.serviceName", "trace-service-name", []string{"WDGRAPH_TRACE_SERVICE_NAME", "WDGRAPH_TRACE_SERVICENAME"}},
	{"trace.tailLatency.enabled", "trace-tail-latency-enabled", []string{"WDGRAPH_TRACE_TAIL_LATENCY_ENABLED", "WDGRAPH_TRACE_TAILLATENCY_ENABLED"}},
	{"trace.tailLatency.ms", "trace-tail-latency-ms", []string{"WDGRAPH_TRACE_TAIL_LATENCY_MS", "WDGRAPH_TRACE_TAILLATENCY_MS"}},
	{"metrics.enabled", "metrics-enabled", []string{"WDGRAPH_METRICS_ENABLED"}},
	{"metrics.addr", "metrics-addr", []string{"WDGRAPH_METRICS_ADDR"}},
}

// AddConfigFlags registers the shared configuration flags on flags. Call
// BindConfigFlags before reading the config, once the command is chosen.
func AddConfigFlags(flags *pflag.FlagSet) {
	defaultConfig := config.DefaultConfig()

	flags.String("source-endpoint", defaultConfig.Source.Endpoint, "the api.php URL of the Wikibase installation to fetch entities from")
	flags.String("source-user-agent", defaultConfig.Source.UserAgent, "the User-Agent header sent with every request")
	flags.Int("source-max-lag", defaultConfig.Source.MaxLag, "the maxlag parameter in seconds (0 omits it)")
	flags.Duration("source-timeout", defaultConfig.Source.Timeout, "the timeout of a single HTTP attempt")
	flags.Int("source-retry-max", defaultConfig.Source.RetryMax, "the number of transport retries per request")
	flags.StringSlice("languages", defaultConfig.Source.Languages, "restrict labels, descriptions and aliases of followed entities to these languages")

	flags.Int("loader-max-batch-size", defaultConfig.Loader.MaxBatchSize, "the largest number of IDs fetched in one request")
	flags.Int("loader-small-batch-size", defaultConfig.Loader.SmallBatchSize, "the batch size used for short ID lists")
	flags.Int("loader-small-list-threshold", defaultConfig.Loader.SmallListThreshold, "ID lists up to this length use the small batch size")
	flags.Int("loader-max-concurrent-fetches", defaultConfig.Loader.MaxConcurrentFetches, "the number of fetches in flight at once")
	flags.StringSlice("loader-props", defaultConfig.Loader.Props, "the entity parts requested from the source")

	flags.Bool("cache-enabled", defaultConfig.Cache.Enabled, "enable/disable the in-memory cache of fetched entities")
	flags.Int64("cache-max-size", defaultConfig.Cache.MaxSize, "the number of entities kept in the cache")
	flags.Duration("cache-ttl", defaultConfig.Cache.TTL, "how long a cached entity is served")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")
	flags.Bool("trace-tail-latency-enabled", defaultConfig.Trace.TailLatency.Enabled, "export only the traces whose root span lasted at least --trace-tail-latency-ms")
	flags.Int("trace-tail-latency-ms", defaultConfig.Trace.TailLatency.Ms, "the root span duration (in ms) a trace needs to be exported when tail latency export is enabled")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint while the command runs")
	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")
}

// BindConfigFlags binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func BindConfigFlags(flags *pflag.FlagSet) {
	for _, b := range configBindings {
		util.MustBindPFlag(b.key, flags.Lookup(b.flag))
		util.MustBindEnv(append([]string{b.key}, b.envs...)...)
	}
}
