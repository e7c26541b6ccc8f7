package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/metrics"
	"github.com/bnema/webview-content-blocker/internal/models"
)

// Checker decides on intercepted requests
type Checker interface {
	CheckRequest(ctx context.Context, req blocker.Request) (*blocker.Response, error)
	CheckResponse(ctx context.Context, req blocker.Request, contentType string) (*blocker.Response, error)
}

// Interception decisions reported to metrics
const (
	DecisionBlocked   = "blocked"
	DecisionRewritten = "rewritten"
	DecisionContinued = "continued"
	DecisionError     = "error"
)

// replyTimeout bounds the call that releases a paused request
const replyTimeout = 5 * time.Second

// InterceptorOptions configures an Interceptor
type InterceptorOptions struct {
	// Stage is models.StageRequest or models.StageResponse
	Stage string
	// Concurrency bounds the paused requests evaluated at once
	Concurrency int64
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// Interceptor pauses the requests of a page with the Fetch domain and
// answers each one with the decision of a Checker.
type Interceptor struct {
	fetch   cdp.Fetch
	checker Checker
	stage   string
	sem     *semaphore.Weighted
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewInterceptor creates an interceptor on the Fetch domain of c
func NewInterceptor(c *cdp.Client, checker Checker, opts InterceptorOptions) *Interceptor {
	return newInterceptor(c.Fetch, checker, opts)
}

func newInterceptor(f cdp.Fetch, checker Checker, opts InterceptorOptions) *Interceptor {
	stage := opts.Stage
	if stage != models.StageResponse {
		stage = models.StageRequest
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Interceptor{
		fetch:   f,
		checker: checker,
		stage:   stage,
		sem:     semaphore.NewWeighted(concurrency),
		log:     opts.Logger.With().Str("component", "interceptor").Str("stage", stage).Logger(),
		metrics: opts.Metrics,
	}
}

// Run enables interception and handles paused requests until ctx is done or
// the connection drops.
func (i *Interceptor) Run(ctx context.Context) error {
	stage := fetch.RequestStageRequest
	if i.stage == models.StageResponse {
		stage = fetch.RequestStageResponse
	}
	pattern := "*"
	err := i.fetch.Enable(ctx, fetch.NewEnableArgs().SetPatterns([]fetch.RequestPattern{
		{URLPattern: &pattern, RequestStage: stage},
	}))
	if err != nil {
		return fmt.Errorf("enable fetch: %w", err)
	}

	stream, err := i.fetch.RequestPaused(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to paused requests: %w", err)
	}
	defer stream.Close()
	i.log.Info().Msg("interception enabled")

	for {
		ev, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive paused request: %w", err)
		}
		if err := i.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		go func() {
			defer i.sem.Release(1)
			i.handle(ctx, ev)
		}()
	}
}

// handle evaluates one paused request and releases it. Evaluation errors
// let the request through.
func (i *Interceptor) handle(ctx context.Context, ev *fetch.RequestPausedReply) {
	req := requestFromPaused(ev)
	log := i.log.With().Str("request_id", string(ev.RequestID)).Str("url", req.URL).Logger()
	responseStage := ev.ResponseStatusCode != nil || ev.ResponseErrorReason != nil

	var resp *blocker.Response
	var err error
	switch {
	case responseStage && ev.ResponseErrorReason != nil:
		// nothing to decide on a failed load
	case responseStage:
		resp, err = i.checker.CheckResponse(ctx, req, headerValue(ev.ResponseHeaders, "Content-Type"))
	default:
		resp, err = i.checker.CheckRequest(ctx, req)
	}
	if err != nil {
		log.Warn().Err(err).Msg("evaluation failed, continuing request")
		i.record(DecisionError)
		resp = nil
	}

	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	if resp == nil {
		if err == nil {
			i.record(DecisionContinued)
		}
		if responseStage {
			err = i.fetch.ContinueResponse(replyCtx, fetch.NewContinueResponseArgs(ev.RequestID))
		} else {
			err = i.fetch.ContinueRequest(replyCtx, fetch.NewContinueRequestArgs(ev.RequestID))
		}
		if err != nil {
			log.Warn().Err(err).Msg("continue failed")
		}
		return
	}

	if resp.Action == models.ActionBlock {
		i.record(DecisionBlocked)
		log.Debug().Msg("blocked")
	} else {
		i.record(DecisionRewritten)
		log.Debug().Int("status", resp.StatusCode).Msg("served https variant")
	}
	if err := i.fetch.FulfillRequest(replyCtx, fulfillArgs(ev.RequestID, resp)); err != nil {
		log.Warn().Err(err).Msg("fulfill failed")
	}
}

func (i *Interceptor) record(decision string) {
	if i.metrics != nil {
		i.metrics.Intercepted.WithLabelValues(decision).Inc()
	}
}

// requestFromPaused converts a paused request to the engine's form
func requestFromPaused(ev *fetch.RequestPausedReply) blocker.Request {
	url := ev.Request.URL
	if ev.Request.URLFragment != nil {
		url += *ev.Request.URLFragment
	}

	var headers map[string]string
	if len(ev.Request.Headers) > 0 {
		if err := json.Unmarshal(ev.Request.Headers, &headers); err != nil {
			headers = nil
		}
	}
	return blocker.Request{URL: url, Method: ev.Request.Method, Headers: headers, Body: postData(ev.Request)}
}

// postData returns the request body. Entries carry base64 chunks and take
// precedence over the legacy string field.
func postData(req network.Request) []byte {
	if len(req.PostDataEntries) > 0 {
		var body []byte
		for _, e := range req.PostDataEntries {
			if e.Bytes == nil {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(*e.Bytes)
			if err != nil {
				chunk = []byte(*e.Bytes)
			}
			body = append(body, chunk...)
		}
		return body
	}
	if req.PostData != nil {
		return []byte(*req.PostData)
	}
	return nil
}

func headerValue(entries []fetch.HeaderEntry, name string) string {
	for _, h := range entries {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// fulfillArgs builds the reply for a terminal decision. A block is an empty
// 200 response.
func fulfillArgs(id fetch.RequestID, resp *blocker.Response) *fetch.FulfillRequestArgs {
	if resp.Action == models.ActionBlock {
		return fetch.NewFulfillRequestArgs(id, http.StatusOK).
			SetResponseHeaders([]fetch.HeaderEntry{}).
			SetBody([]byte{})
	}

	args := fetch.NewFulfillRequestArgs(id, resp.StatusCode).
		SetResponseHeaders(responseHeaders(resp)).
		SetBody(resp.Body)
	if resp.ReasonPhrase != "" {
		args.SetResponsePhrase(resp.ReasonPhrase)
	}
	return args
}

// responseHeaders flattens resp headers. Content-Type is rebuilt from the
// detected type and charset.
func responseHeaders(resp *blocker.Response) []fetch.HeaderEntry {
	names := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]fetch.HeaderEntry, 0, len(names)+1)
	for _, k := range names {
		out = append(out, fetch.HeaderEntry{Name: k, Value: resp.Headers[k]})
	}
	if resp.ContentType != "" {
		ct := resp.ContentType
		if resp.Encoding != "" {
			ct += "; charset=" + resp.Encoding
		}
		out = append(out, fetch.HeaderEntry{Name: "Content-Type", Value: ct})
	}
	return out
}
