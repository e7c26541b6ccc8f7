package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/models"
)

// Transport issues the engine's outbound requests: classification probes and
// https re-fetches. It never retries, a failed upgrade falls through to the
// next rule instead.
type Transport struct {
	client *resty.Client
}

var _ blocker.NetworkFetcher = (*Transport)(nil)

// NewTransport creates a transport from config
func NewTransport(cfg models.HTTPConfig) *Transport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", ua)

	return &Transport{client: client}
}

// Do sends req and returns the decoded response. Only transport failures are
// errors; the caller judges status codes.
func (t *Transport) Do(ctx context.Context, req *blocker.FetchRequest) (*blocker.FetchResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	header := resp.Header().Clone()
	var body []byte
	if method != http.MethodHead {
		body, err = decodeBody(header, raw)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
		}
	}

	return &blocker.FetchResponse{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Header:     header,
		Body:       body,
	}, nil
}
