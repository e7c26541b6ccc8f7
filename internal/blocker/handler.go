package blocker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/webview-content-blocker/internal/logging"
	"github.com/bnema/webview-content-blocker/internal/models"
)

const (
	defaultTopURLTimeout = 2 * time.Second
	defaultHideDelay     = 800 * time.Millisecond
)

// Options configures a Handler. Nil capabilities get inert defaults: no
// network, no page, no script sink.
type Options struct {
	Fetcher  NetworkFetcher
	Scripts  ScriptRunner
	TopURL   TopURLProvider
	Recorder Recorder

	// TopURLTimeout bounds the wait for the top URL. Zero uses 2s.
	TopURLTimeout time.Duration
	// HideDelay postpones css-display-none scripts. Negative means no delay,
	// zero uses 800ms.
	HideDelay time.Duration
	// ClassifyRPS limits HEAD probes, zero means unlimited.
	ClassifyRPS float64
	// ProbeTimeout bounds a HEAD probe. Zero uses 30s.
	ProbeTimeout time.Duration
	// Lifetime ends pending hide scripts when done, typically the
	// context of the owning session.
	Lifetime context.Context
}

// Handler evaluates requests against an ordered rule list
type Handler struct {
	rules atomic.Pointer[[]*Rule]

	fetcher    NetworkFetcher
	scripts    ScriptRunner
	topURL     TopURLProvider
	recorder   Recorder
	classifier *Classifier

	topURLTimeout time.Duration
	hideDelay     time.Duration
	lifetime      context.Context
}

// New creates a handler with an empty rule list
func New(opts Options) *Handler {
	h := &Handler{
		fetcher:       opts.Fetcher,
		scripts:       opts.Scripts,
		topURL:        opts.TopURL,
		recorder:      opts.Recorder,
		topURLTimeout: opts.TopURLTimeout,
		hideDelay:     opts.HideDelay,
		lifetime:      opts.Lifetime,
	}
	if h.scripts == nil {
		h.scripts = nopScripts{}
	}
	if h.topURL == nil {
		h.topURL = noTopURL{}
	}
	if h.recorder == nil {
		h.recorder = nopRecorder{}
	}
	if h.lifetime == nil {
		h.lifetime = context.Background()
	}
	if h.topURLTimeout <= 0 {
		h.topURLTimeout = defaultTopURLTimeout
	}
	switch {
	case h.hideDelay == 0:
		h.hideDelay = defaultHideDelay
	case h.hideDelay < 0:
		h.hideDelay = 0
	}

	h.classifier = NewClassifier(h.fetcher, opts.ClassifyRPS)
	h.classifier.recorder = h.recorder
	if opts.ProbeTimeout > 0 {
		h.classifier.timeout = opts.ProbeTimeout
	}

	empty := []*Rule{}
	h.rules.Store(&empty)
	return h
}

// SetRules replaces the whole rule list
func (h *Handler) SetRules(rules []*Rule) {
	snapshot := make([]*Rule, len(rules))
	copy(snapshot, rules)
	h.rules.Store(&snapshot)
}

// Load compiles defs and replaces the rule list. On error the current list
// stays active.
func (h *Handler) Load(defs []models.RuleDefinition) error {
	rules, err := CompileRules(defs)
	if err != nil {
		return err
	}
	h.SetRules(rules)
	return nil
}

// Rules returns a copy of the current rule list
func (h *Handler) Rules() []*Rule {
	current := *h.rules.Load()
	out := make([]*Rule, len(current))
	copy(out, current)
	return out
}

// Definitions returns the current rule list in payload form
func (h *Handler) Definitions() []models.RuleDefinition {
	current := *h.rules.Load()
	defs := make([]models.RuleDefinition, 0, len(current))
	for _, r := range current {
		defs = append(defs, r.Definition())
	}
	return defs
}

// Len returns the number of active rules
func (h *Handler) Len() int {
	return len(*h.rules.Load())
}

// Classifier returns the classifier used by CheckRequest
func (h *Handler) Classifier() *Classifier {
	return h.classifier
}

// CheckRequest classifies req with a HEAD probe and evaluates it. Nothing is
// sent when there are no rules.
func (h *Handler) CheckRequest(ctx context.Context, req Request) (*Response, error) {
	if h.Len() == 0 {
		return nil, nil
	}
	return h.CheckURL(ctx, req, h.classifier.FromURL(ctx, req))
}

// CheckResponse evaluates req using the content type of its response
func (h *Handler) CheckResponse(ctx context.Context, req Request, contentType string) (*Response, error) {
	return h.CheckURL(ctx, req, ResourceTypeFromContentType(contentType))
}

// CheckURL evaluates req against the rules in order. The first terminal
// action wins; css-display-none rules schedule their script and let the
// evaluation continue. A nil response means the request proceeds.
func (h *Handler) CheckURL(ctx context.Context, req Request, resourceType models.ResourceType) (*Response, error) {
	start := time.Now()
	log := logging.FromContext(ctx).With().
		Str("component", "content-blocker").
		Str("url", req.URL).
		Logger()

	origin, err := parseEndpoint(req.URL)
	if err != nil {
		h.recorder.ObserveCheck(OutcomeError, time.Since(start))
		return nil, err
	}

	rules := *h.rules.Load()
	top := topURLState{h: h}

	for i, rule := range rules {
		trigger := rule.Trigger
		if !trigger.MatchesURL(req.URL) {
			continue
		}
		if !trigger.MatchesResourceType(resourceType) {
			continue
		}
		if !trigger.MatchesDomain(origin.host) {
			continue
		}

		if trigger.NeedsTopURL() {
			topURL, ok := top.get(ctx, log)
			if !ok {
				continue
			}
			match, err := trigger.MatchesTopURL(origin, topURL)
			if err != nil {
				log.Debug().Err(err).Int("rule", i).Str("top_url", topURL).Msg("unparsable top url")
				continue
			}
			if !match {
				continue
			}
		}

		switch rule.Action.Type {
		case models.ActionBlock:
			log.Debug().Int("rule", i).Msg("request blocked")
			h.recorder.ObserveCheck(OutcomeBlocked, time.Since(start))
			return &Response{Action: models.ActionBlock}, nil

		case models.ActionCSSDisplayNone:
			h.scheduleHide(ctx, log, rule.Action.Selector)

		case models.ActionMakeHTTPS:
			if origin.scheme != "http" || !origin.defaultHTTPPort() {
				continue
			}
			resp, err := h.makeHTTPS(ctx, req)
			if err != nil {
				h.recorder.Failure(StageMakeHTTPS)
				lvl := zerolog.WarnLevel
				if isTLSError(err) {
					lvl = zerolog.DebugLevel
				}
				log.WithLevel(lvl).Err(err).Int("rule", i).Msg("https upgrade failed")
				continue
			}
			log.Debug().Int("rule", i).Int("status", resp.StatusCode).Msg("request upgraded to https")
			h.recorder.ObserveCheck(OutcomeRewritten, time.Since(start))
			return resp, nil
		}
	}

	h.recorder.ObserveCheck(OutcomeAllowed, time.Since(start))
	return nil, nil
}

// scheduleHide runs the hide script on the page after the configured delay
// without blocking the caller. The script outlives the interception call
// but not the handler's lifetime.
func (h *Handler) scheduleHide(ctx context.Context, log zerolog.Logger, selector string) {
	h.recorder.HideScheduled()
	script := HideScript(selector)
	delay := h.hideDelay

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(h.lifetime, cancel)

	go func() {
		defer stop()
		defer cancel()

		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-runCtx.Done():
				log.Debug().Str("selector", selector).Msg("hide script dropped")
				return
			}
		}
		if runCtx.Err() != nil {
			return
		}
		if err := h.scripts.EvaluateScript(runCtx, script); err != nil && runCtx.Err() == nil {
			h.recorder.Failure(StageScript)
			log.Warn().Err(err).Str("selector", selector).Msg("hide script failed")
		}
	}()
}

// topURLState reads the top URL at most once per evaluation pass
type topURLState struct {
	h       *Handler
	fetched bool
	url     string
	ok      bool
}

func (s *topURLState) get(ctx context.Context, log zerolog.Logger) (string, bool) {
	if s.fetched {
		return s.url, s.ok
	}
	s.fetched = true

	ctx, cancel := context.WithTimeout(ctx, s.h.topURLTimeout)
	defer cancel()

	type result struct {
		url string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := s.h.topURL.TopURL(ctx)
		ch <- result{url: u, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.h.recorder.Failure(StageTopURL)
			log.Warn().Err(r.err).Msg("top url unavailable, skipping top-frame rules")
			return "", false
		}
		s.url, s.ok = r.url, true
	case <-ctx.Done():
		s.h.recorder.Failure(StageTopURL)
		log.Warn().Err(ctx.Err()).Msg("top url unavailable, skipping top-frame rules")
		return "", false
	}
	return s.url, s.ok
}

var (
	errNoFetcher       = errors.New("no network fetcher configured")
	errBodyUnavailable = errors.New("request body is not available for the https upgrade")
)
