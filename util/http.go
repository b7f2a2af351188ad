package util

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Adapts slog to retryablehttp.LeveledLogger. Intermediate failures are expected with retries, so ERROR is demoted to WARN.
type retryLogger struct {
	inner *slog.Logger
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.inner.Warn(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.inner.Warn(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.inner.Info(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.inner.Debug(msg, kv...) }

type RetryOptions struct {
	// overall per-request timeout, including retries
	Timeout  time.Duration
	RetryMax int
	WaitMin  time.Duration
	WaitMax  time.Duration
	// defaults to slog.Default()
	Logger *slog.Logger
}

func DefaultRetryOptions(timeout time.Duration) RetryOptions {
	return RetryOptions{
		Timeout:  timeout,
		RetryMax: 3,
		WaitMin:  time.Second,
		WaitMax:  10 * time.Second,
	}
}

// Standard http.Client backed by retryablehttp: retries connection errors, 5xx (except 501) and 429 (honoring Retry-After).
func NewRetryingClient(opts RetryOptions) *http.Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = otelhttp.NewTransport(rc.HTTPClient.Transport)
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.WaitMin
	rc.RetryWaitMax = opts.WaitMax
	rc.Logger = retryLogger{logger.With("system", "http")}
	client := rc.StandardClient()
	client.Timeout = opts.Timeout
	return client
}

// The timeout must exceed any server-side long-poll duration (Telegram getUpdates), or polls get cut off and retried.
func RobustHTTPClient(timeout time.Duration) *http.Client {
	return NewRetryingClient(DefaultRetryOptions(timeout))
}
