package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/bnema/webview-content-blocker/internal/models"
)

const defaultUserAgent = "webview-content-blocker/1.0"

// Fetcher downloads filter lists
type Fetcher struct {
	client    *retryablehttp.Client
	userAgent string
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig, log zerolog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = leveledLogger{log: log.With().Str("component", "fetcher").Logger()}

	return &Fetcher{client: client, userAgent: ua}
}

// Fetch downloads content from a URL with retries
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// leveledLogger routes retryablehttp logs to zerolog
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.log.Error().Fields(kv).Msg(msg)
}

func (l leveledLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg(msg)
}

func (l leveledLogger) Debug(msg string, kv ...interface{}) {
	l.log.Trace().Fields(kv).Msg(msg)
}

func (l leveledLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warn().Fields(kv).Msg(msg)
}
