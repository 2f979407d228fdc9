// Package wikibase implements the remote fetch port against the MediaWiki
// wbgetentities API and decodes its responses into entity payloads.
package wikibase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wdgraph/wdgraph/internal/build"
	"github.com/wdgraph/wdgraph/internal/keys"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/logger"
	"github.com/wdgraph/wdgraph/pkg/retryablehttp"
	"github.com/wdgraph/wdgraph/pkg/source"
	"github.com/wdgraph/wdgraph/pkg/telemetry"
)

var tracer = otel.Tracer("wdgraph/pkg/wikibase")

const (
	DefaultEndpoint           = "https://www.wikidata.org/w/api.php"
	DefaultMaxLag             = 5
	DefaultAPIRetryMaxElapsed = 30 * time.Second
)

var (
	requestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "wikibase_request_duration_ms",
		Help:      "The duration (in ms) of a wbgetentities batch request, retries included.",
		Buckets:   []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	}, []string{"status"})

	decodedEntitiesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "wikibase_decoded_entities_total",
		Help:      "The total number of entities decoded from wbgetentities responses.",
	})

	apiRetryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "wikibase_api_retries_total",
		Help:      "The total number of requests repeated because of a retryable API error.",
	}, []string{"code"})

	deduplicatedRequestsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "wikibase_deduplicated_requests_total",
		Help:      "The total number of batch requests served by an identical request in flight.",
	})
)

// Client fetches entity batches from a Wikibase installation.
type Client struct {
	endpoint           string
	userAgent          string
	maxLag             int
	apiRetryMaxElapsed time.Duration

	httpClient *retryablehttp.RetryableHTTPClient
	logger     logger.Logger
	group      singleflight.Group
}

var _ source.Fetcher = (*Client)(nil)

// ClientOption defines an option that can be used to change the behavior of a Client.
type ClientOption func(*Client)

// WithEndpoint sets the api.php URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithMaxLag sets the maxlag parameter in seconds. Zero omits it.
func WithMaxLag(seconds int) ClientOption {
	return func(c *Client) {
		c.maxLag = seconds
	}
}

// WithAPIRetryMaxElapsed bounds the time spent repeating requests rejected
// with a retryable API error.
func WithAPIRetryMaxElapsed(d time.Duration) ClientOption {
	return func(c *Client) {
		c.apiRetryMaxElapsed = d
	}
}

func WithHTTPClient(client *retryablehttp.RetryableHTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithLogger(logger logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:           DefaultEndpoint,
		userAgent:          fmt.Sprintf("%s/%s", build.ProjectName, build.Version),
		maxLag:             DefaultMaxLag,
		apiRetryMaxElapsed: DefaultAPIRetryMaxElapsed,
		logger:             logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = retryablehttp.NewClient(retryablehttp.WithLogger(c.logger))
	}

	return c
}

// FetchBatch implements source.Fetcher with one wbgetentities request.
// Identical requests in flight at the same time share one round trip.
func (c *Client) FetchBatch(ctx context.Context, ids []entity.ID, opts source.FetchOptions) (map[entity.ID]*entity.Payload, error) {
	if len(ids) == 0 {
		return map[entity.ID]*entity.Payload{}, nil
	}

	query := c.query(ids, opts)

	ctx, span := tracer.Start(ctx, "wbgetentities", trace.WithAttributes(
		attribute.Int("ids", len(ids)),
	))
	defer span.End()

	start := time.Now()
	v, err := c.shared(ctx, keys.BatchKey(ids, opts).String(), query)

	status := "ok"
	if err != nil {
		status = "error"
	}
	requestDurationHistogram.WithLabelValues(status).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		telemetry.TraceError(span, err)
		return nil, fmt.Errorf("%w: %w", source.ErrFetchFailed, err)
	}

	payloads := v.(map[entity.ID]*entity.Payload)
	span.SetAttributes(attribute.Int("entities", len(payloads)))
	return payloads, nil
}

// shared joins the request in flight for key or starts it. The request ignores
// the cancellation of whoever started it; each caller stops waiting when its
// own ctx is done.
func (c *Client) shared(ctx context.Context, key, query string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fetch(context.WithoutCancel(ctx), query)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			deduplicatedRequestsCounter.Inc()
		}
		return res.Val, res.Err
	}
}

func (c *Client) query(ids []entity.ID, opts source.FetchOptions) string {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}

	values := url.Values{}
	values.Set("action", "wbgetentities")
	values.Set("format", "json")
	values.Set("ids", strings.Join(raw, "|"))
	values.Set("props", strings.Join(opts.PropsOrDefault(), "|"))
	if len(opts.Languages) > 0 {
		values.Set("languages", strings.Join(opts.Languages, "|"))
	}
	if c.maxLag > 0 {
		values.Set("maxlag", strconv.Itoa(c.maxLag))
	}
	return values.Encode()
}

func (c *Client) fetch(ctx context.Context, query string) (map[entity.ID]*entity.Payload, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.apiRetryMaxElapsed

	return backoff.RetryWithData(func() (map[entity.ID]*entity.Payload, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, body, err := c.httpClient.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("unexpected status code %d", resp.StatusCode))
		}

		payloads, err := DecodeEntities(body)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Retryable() {
				apiRetryCounter.WithLabelValues(apiErr.Code).Inc()
				c.logger.WarnWithContext(ctx, "wikibase api asked to retry", zap.String("code", apiErr.Code), zap.String("info", apiErr.Info))
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		decodedEntitiesCounter.Add(float64(len(payloads)))
		return payloads, nil
	}, backoff.WithContext(policy, ctx))
}
