// Package retryablehttp provides the HTTP client used to reach remote data
// sources. Connection errors, 5xx and 429 responses are retried with
// exponential backoff by hashicorp/go-retryablehttp; retries are logged through
// a [logger.Logger].
package retryablehttp

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/wdgraph/wdgraph/pkg/logger"
)

const (
	DefaultRetryMax     = 4
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second
	DefaultTimeout      = 30 * time.Second
)

type ClientOption func(*RetryableHTTPClient)

func WithLogger(logger logger.Logger) ClientOption {
	return func(c *RetryableHTTPClient) {
		c.logger = logger
	}
}

func WithRetryMax(n int) ClientOption {
	return func(c *RetryableHTTPClient) {
		c.internalClient.RetryMax = n
	}
}

func WithRetryWait(minWait, maxWait time.Duration) ClientOption {
	return func(c *RetryableHTTPClient) {
		c.internalClient.RetryWaitMin = minWait
		c.internalClient.RetryWaitMax = maxWait
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *RetryableHTTPClient) {
		c.internalClient.HTTPClient.Timeout = timeout
	}
}

type RetryableHTTPClient struct {
	internalClient *retryablehttp.Client
	logger         logger.Logger
}

func NewClient(opts ...ClientOption) *RetryableHTTPClient {
	internal := retryablehttp.NewClient()
	internal.RetryMax = DefaultRetryMax
	internal.RetryWaitMin = DefaultRetryWaitMin
	internal.RetryWaitMax = DefaultRetryWaitMax
	internal.HTTPClient.Timeout = DefaultTimeout
	// Every attempt, retries included, gets its own client span.
	internal.HTTPClient.Transport = otelhttp.NewTransport(internal.HTTPClient.Transport)

	client := &RetryableHTTPClient{
		internalClient: internal,
		logger:         logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(client)
	}

	internal.Logger = &leveledLogger{logger: client.logger}
	internal.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return client
}

// Do executes req with retries and returns the response with its body already
// read and closed.
func (client *RetryableHTTPClient) Do(req *http.Request) (*http.Response, []byte, error) {
	retryableReq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, nil, err
	}

	resp, err := client.internalClient.Do(retryableReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp, body, nil
}

// StandardClient returns an *http.Client that retries through this client.
func (client *RetryableHTTPClient) StandardClient() *http.Client {
	return client.internalClient.StandardClient()
}

// leveledLogger adapts a logger.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger logger.Logger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues)...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}
