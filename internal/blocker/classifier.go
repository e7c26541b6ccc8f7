package blocker

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bnema/webview-content-blocker/internal/logging"
	"github.com/bnema/webview-content-blocker/internal/models"
)

const defaultProbeTimeout = 30 * time.Second

// Classifier maps requests to resource types
type Classifier struct {
	fetcher  NetworkFetcher
	limiter  *rate.Limiter
	group    singleflight.Group
	recorder Recorder
	timeout  time.Duration
}

// NewClassifier creates a classifier. rps limits outbound HEAD probes; zero
// or less means unlimited.
func NewClassifier(fetcher NetworkFetcher, rps float64) *Classifier {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Classifier{
		fetcher:  fetcher,
		limiter:  rate.NewLimiter(limit, 1),
		recorder: nopRecorder{},
		timeout:  defaultProbeTimeout,
	}
}

// FromContentType maps a MIME type to a resource type.
// https://developer.mozilla.org/en-US/docs/Web/HTTP/Basics_of_HTTP/MIME_types
func (c *Classifier) FromContentType(contentType string) models.ResourceType {
	return ResourceTypeFromContentType(contentType)
}

// ResourceTypeFromContentType maps a MIME type to a resource type.
// Parameters such as charset are ignored.
func ResourceTypeFromContentType(contentType string) models.ResourceType {
	ct := mediaType(contentType)

	switch {
	case ct == "text/css":
		return models.ResourceStyleSheet
	case ct == "image/svg+xml":
		return models.ResourceSVG
	case strings.HasPrefix(ct, "image/"):
		return models.ResourceImage
	case strings.HasPrefix(ct, "font/"):
		return models.ResourceFont
	case strings.HasPrefix(ct, "audio/"), strings.HasPrefix(ct, "video/"), ct == "application/ogg":
		return models.ResourceMedia
	case strings.HasSuffix(ct, "javascript"):
		return models.ResourceScript
	case strings.HasPrefix(ct, "text/"):
		return models.ResourceDocument
	}
	return models.ResourceRaw
}

// FromURL asks the server for the content type of req.URL with a HEAD
// request. Only http(s) URLs are probed; anything else, and any failure,
// yields raw. Concurrent callers for the same method and URL share one
// probe, which is not tied to any of their contexts.
func (c *Classifier) FromURL(ctx context.Context, req Request) models.ResourceType {
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return models.ResourceRaw
	}
	if c.fetcher == nil {
		return models.ResourceRaw
	}

	log := logging.FromContext(ctx).With().
		Str("component", "classifier").
		Str("url", req.URL).
		Logger()

	probeCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(req.Method+" "+req.URL, func() (any, error) {
		pctx, cancel := context.WithTimeout(probeCtx, c.timeout)
		defer cancel()
		if err := c.limiter.Wait(pctx); err != nil {
			return "", err
		}
		resp, err := c.fetcher.Do(pctx, &FetchRequest{
			Method:  http.MethodHead,
			URL:     req.URL,
			Headers: req.Headers,
		})
		if err != nil {
			return "", err
		}
		return resp.Header.Get("Content-Type"), nil
	})

	var v any
	var err error
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.recorder.Failure(StageClassify)
		log.Warn().Err(err).Msg("resource type probe failed")
		return models.ResourceRaw
	}

	contentType, _ := v.(string)
	if contentType == "" {
		return models.ResourceRaw
	}
	return ResourceTypeFromContentType(contentType)
}

// mediaType strips parameters from a Content-Type value
func mediaType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
