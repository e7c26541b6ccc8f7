package blocker_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/blocker/mocks"
	"github.com/bnema/webview-content-blocker/internal/models"
)

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	hides    atomic.Int32
	failures []string
}

func (r *countingRecorder) ObserveCheck(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *countingRecorder) HideScheduled() { r.hides.Add(1) }

func (r *countingRecorder) Failure(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stage)
}

func blockRule(def models.TriggerDefinition) models.RuleDefinition {
	return models.RuleDefinition{Trigger: def, Action: models.ActionDefinition{Type: models.ActionBlock}}
}

func hideRule(def models.TriggerDefinition, selector string) models.RuleDefinition {
	return models.RuleDefinition{Trigger: def, Action: models.ActionDefinition{Type: models.ActionCSSDisplayNone, Selector: selector}}
}

func httpsRule(def models.TriggerDefinition) models.RuleDefinition {
	return models.RuleDefinition{Trigger: def, Action: models.ActionDefinition{Type: models.ActionMakeHTTPS}}
}

func newHandler(t *testing.T, opts blocker.Options, defs ...models.RuleDefinition) *blocker.Handler {
	t.Helper()
	if opts.HideDelay == 0 {
		opts.HideDelay = -1
	}
	h := blocker.New(opts)
	require.NoError(t, h.Load(defs))
	return h
}

func TestCheckURLEmptyResourceTypesMatchEverything(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{URLFilter: ".*"}))

	for _, rt := range models.ResourceTypes {
		resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/x"}, rt)
		require.NoError(t, err)
		require.NotNil(t, resp, rt)
		assert.Equal(t, models.ActionBlock, resp.Action)
	}
}

func TestCheckURLImageRuleMatchesSVG(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{
		URLFilter:    ".*",
		ResourceType: []models.ResourceType{models.ResourceImage},
	}))
	ctx := context.Background()
	req := blocker.Request{URL: "https://example.com/logo.svg"}

	resp, err := h.CheckURL(ctx, req, models.ResourceSVG)
	require.NoError(t, err)
	assert.NotNil(t, resp)

	resp, err = h.CheckURL(ctx, req, models.ResourceScript)
	require.NoError(t, err)
	assert.Nil(t, resp)

	// the evaluation does not alter the stored rule
	assert.Equal(t, []models.ResourceType{models.ResourceImage}, h.Definitions()[0].Trigger.ResourceType)
}

func TestCheckURLResourceMismatchSkipsOnlyThatRule(t *testing.T) {
	h := newHandler(t, blocker.Options{},
		blockRule(models.TriggerDefinition{URLFilter: ".*", ResourceType: []models.ResourceType{models.ResourceImage}}),
		blockRule(models.TriggerDefinition{URLFilter: `.*\.js`}),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/app.js"}, models.ResourceScript)
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestCheckURLFirstTerminalWins(t *testing.T) {
	rec := &countingRecorder{}
	h := newHandler(t, blocker.Options{Recorder: rec},
		blockRule(models.TriggerDefinition{URLFilter: ".*", IfDomain: []string{"*ads.example.com"}}),
		hideRule(models.TriggerDefinition{URLFilter: ".*"}, ".banner"),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "http://ads.example.com/x.js"}, models.ResourceScript)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, models.ActionBlock, resp.Action)
	assert.Empty(t, resp.Body)
	assert.Empty(t, resp.ContentType)
	assert.Zero(t, rec.hides.Load(), "css rule after a block must not run")
}

func TestCheckURLHideDoesNotShortCircuit(t *testing.T) {
	ctrl := gomock.NewController(t)
	scripts := mocks.NewMockScriptRunner(ctrl)
	done := make(chan struct{})
	scripts.EXPECT().
		EvaluateScript(gomock.Any(), blocker.HideScript(".banner")).
		DoAndReturn(func(context.Context, string) error {
			close(done)
			return nil
		})

	rec := &countingRecorder{}
	h := newHandler(t, blocker.Options{Scripts: scripts, Recorder: rec},
		hideRule(models.TriggerDefinition{URLFilter: ".*"}, ".banner"),
		blockRule(models.TriggerDefinition{URLFilter: ".*", IfDomain: []string{"blocked.example.com"}}),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "http://blocked.example.com/"}, models.ResourceDocument)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, models.ActionBlock, resp.Action)
	assert.EqualValues(t, 1, rec.hides.Load())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hide script was not evaluated")
	}
}

func TestCheckURLHideDroppedWhenLifetimeEnds(t *testing.T) {
	ctrl := gomock.NewController(t)
	scripts := mocks.NewMockScriptRunner(ctrl)
	scripts.EXPECT().EvaluateScript(gomock.Any(), gomock.Any()).Times(0)

	lifetime, end := context.WithCancel(context.Background())
	rec := &countingRecorder{}
	h := newHandler(t, blocker.Options{Scripts: scripts, Recorder: rec, Lifetime: lifetime, HideDelay: 50 * time.Millisecond},
		hideRule(models.TriggerDefinition{URLFilter: ".*"}, ".banner"),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/"}, models.ResourceDocument)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.EqualValues(t, 1, rec.hides.Load())

	end()
	time.Sleep(150 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.failures)
}

func TestCheckURLHideSurvivesRequestContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	scripts := mocks.NewMockScriptRunner(ctrl)
	done := make(chan error, 1)
	scripts.EXPECT().
		EvaluateScript(gomock.Any(), blocker.HideScript(".banner")).
		DoAndReturn(func(ctx context.Context, _ string) error {
			done <- ctx.Err()
			return nil
		})

	h := newHandler(t, blocker.Options{Scripts: scripts, HideDelay: 20 * time.Millisecond},
		hideRule(models.TriggerDefinition{URLFilter: ".*"}, ".banner"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := h.CheckURL(ctx, blocker.Request{URL: "https://example.com/"}, models.ResourceDocument)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hide script was not evaluated")
	}
}

func TestCheckURLHideOnlyAllowsRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	scripts := mocks.NewMockScriptRunner(ctrl)
	done := make(chan struct{})
	scripts.EXPECT().EvaluateScript(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) error {
		close(done)
		return errors.New("page gone")
	})

	rec := &countingRecorder{}
	h := newHandler(t, blocker.Options{Scripts: scripts, Recorder: rec},
		hideRule(models.TriggerDefinition{URLFilter: ".*"}, "#ad"),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/"}, models.ResourceDocument)
	require.NoError(t, err)
	assert.Nil(t, resp)
	<-done
}

func TestCheckURLMakeHTTPSGates(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"already https", "https://example.com/"},
		{"non default port", "http://example.com:8080/"},
		{"other scheme", "ftp://example.com/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// any call to the fetcher fails the test
			fetcher := mocks.NewMockNetworkFetcher(ctrl)
			h := newHandler(t, blocker.Options{Fetcher: fetcher}, httpsRule(models.TriggerDefinition{URLFilter: ".*"}))

			resp, err := h.CheckURL(context.Background(), blocker.Request{URL: tt.url}, models.ResourceDocument)
			require.NoError(t, err)
			assert.Nil(t, resp)
		})
	}
}

func TestCheckURLMakeHTTPSUpgrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockNetworkFetcher(ctrl)

	headers := map[string]string{"Accept": "text/html"}
	fetcher.EXPECT().
		Do(gomock.Any(), &blocker.FetchRequest{
			Method:  http.MethodPost,
			URL:     "https://example.com:80/form?next=http://example.com/",
			Headers: headers,
		}).
		Return(&blocker.FetchResponse{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header: http.Header{
				"Content-Type": []string{"text/html; charset=ISO-8859-1"},
				"Set-Cookie":   []string{"a=1", "b=2"},
			},
			Body: []byte("<html></html>"),
		}, nil)

	h := newHandler(t, blocker.Options{Fetcher: fetcher}, httpsRule(models.TriggerDefinition{URLFilter: ".*"}))

	resp, err := h.CheckURL(context.Background(), blocker.Request{
		URL:     "http://example.com:80/form?next=http://example.com/",
		Method:  http.MethodPost,
		Headers: headers,
	}, models.ResourceDocument)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, models.ActionMakeHTTPS, resp.Action)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", resp.ReasonPhrase)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, "iso-8859-1", resp.Encoding)
	assert.Equal(t, "a=1,b=2", resp.Headers["Set-Cookie"])
	assert.Equal(t, []byte("<html></html>"), resp.Body)
}

func TestCheckURLMakeHTTPSDetectsMissingContentType(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockNetworkFetcher(ctrl)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	fetcher.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&blocker.FetchResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       png,
	}, nil)

	h := newHandler(t, blocker.Options{Fetcher: fetcher}, httpsRule(models.TriggerDefinition{URLFilter: ".*"}))

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "http://example.com/logo"}, models.ResourceImage)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, "utf-8", resp.Encoding)
	assert.Equal(t, "OK", resp.ReasonPhrase)
}

func TestCheckURLMakeHTTPSFailureFallsThrough(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback bool
	}{
		{name: "tls failure", err: errors.New("tls: handshake failure"), fallback: true},
		{name: "connection refused without next rule", err: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fetcher := mocks.NewMockNetworkFetcher(ctrl)
			fetcher.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			rec := &countingRecorder{}
			defs := []models.RuleDefinition{httpsRule(models.TriggerDefinition{URLFilter: ".*"})}
			if tt.fallback {
				defs = append(defs, blockRule(models.TriggerDefinition{URLFilter: ".*"}))
			}
			h := newHandler(t, blocker.Options{Fetcher: fetcher, Recorder: rec}, defs...)

			resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "http://example.com/"}, models.ResourceDocument)
			require.NoError(t, err)
			if tt.fallback {
				require.NotNil(t, resp)
				assert.Equal(t, models.ActionBlock, resp.Action)
			} else {
				assert.Nil(t, resp)
			}
			assert.Contains(t, rec.failures, blocker.StageMakeHTTPS)
		})
	}
}

func TestCheckURLMakeHTTPSErrorStatusIsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status int
		phrase string
	}{
		{name: "not found", status: http.StatusNotFound, phrase: "Not Found"},
		{name: "bad gateway", status: http.StatusBadGateway, phrase: "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fetcher := mocks.NewMockNetworkFetcher(ctrl)
			fetcher.EXPECT().Do(gomock.Any(), gomock.Any()).Return(&blocker.FetchResponse{
				StatusCode: tt.status,
				Header:     http.Header{"Content-Type": []string{"text/html"}},
				Body:       []byte("<h1>error</h1>"),
			}, nil)

			rec := &countingRecorder{}
			h := newHandler(t, blocker.Options{Fetcher: fetcher, Recorder: rec},
				httpsRule(models.TriggerDefinition{URLFilter: ".*"}),
				blockRule(models.TriggerDefinition{URLFilter: ".*"}),
			)

			resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "http://example.com/missing"}, models.ResourceDocument)
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, models.ActionMakeHTTPS, resp.Action)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.phrase, resp.ReasonPhrase)
			assert.Equal(t, []byte("<h1>error</h1>"), resp.Body)
			assert.Empty(t, rec.failures)
		})
	}
}

func TestCheckURLMakeHTTPSForwardsBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockNetworkFetcher(ctrl)
	fetcher.EXPECT().
		Do(gomock.Any(), &blocker.FetchRequest{
			Method:  http.MethodPost,
			URL:     "https://example.com/form",
			Headers: map[string]string{"Content-Length": "10", "Content-Type": "application/x-www-form-urlencoded"},
			Body:    []byte("name=value"),
		}).
		Return(&blocker.FetchResponse{StatusCode: http.StatusOK, Header: http.Header{}}, nil)

	h := newHandler(t, blocker.Options{Fetcher: fetcher}, httpsRule(models.TriggerDefinition{URLFilter: ".*"}))

	resp, err := h.CheckURL(context.Background(), blocker.Request{
		URL:     "http://example.com/form",
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Length": "10", "Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte("name=value"),
	}, models.ResourceDocument)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckURLMakeHTTPSMissingBodyFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockNetworkFetcher(ctrl)
	fetcher.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)

	rec := &countingRecorder{}
	h := newHandler(t, blocker.Options{Fetcher: fetcher, Recorder: rec}, httpsRule(models.TriggerDefinition{URLFilter: ".*"}))

	resp, err := h.CheckURL(context.Background(), blocker.Request{
		URL:     "http://example.com/form",
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Length": "11"},
	}, models.ResourceDocument)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, []string{blocker.StageMakeHTTPS}, rec.failures)
}

func TestCheckURLTopURLGates(t *testing.T) {
	ctrl := gomock.NewController(t)
	top := mocks.NewMockTopURLProvider(ctrl)
	// read once per pass even with several gated rules
	top.EXPECT().TopURL(gomock.Any()).Return("https://example.com/index.html", nil).Times(1)

	h := newHandler(t, blocker.Options{TopURL: top},
		blockRule(models.TriggerDefinition{URLFilter: ".*", LoadType: []string{models.LoadThirdParty}}),
		blockRule(models.TriggerDefinition{URLFilter: ".*", IfTopURL: []string{"https://other.com"}}),
		blockRule(models.TriggerDefinition{URLFilter: `.*\.css`, LoadType: []string{models.LoadFirstParty}}),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/app.js"}, models.ResourceScript)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCheckURLTopURLTimeoutSkipsGatedRulesOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	top := mocks.NewMockTopURLProvider(ctrl)
	top.EXPECT().TopURL(gomock.Any()).DoAndReturn(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	rec := &countingRecorder{}
	h := newHandler(t, blocker.Options{TopURL: top, TopURLTimeout: 20 * time.Millisecond, Recorder: rec},
		blockRule(models.TriggerDefinition{URLFilter: ".*", LoadType: []string{models.LoadThirdParty}}),
		hideRule(models.TriggerDefinition{URLFilter: ".*", UnlessTopURL: []string{"https://example.com"}}, ".ad"),
		blockRule(models.TriggerDefinition{URLFilter: `.*\.js`}),
	)

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://tracker.net/t.js"}, models.ResourceScript)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, models.ActionBlock, resp.Action)
	assert.Zero(t, rec.hides.Load())
	assert.Equal(t, []string{blocker.StageTopURL}, rec.failures)
}

func TestCheckURLTopURLNotNeeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	top := mocks.NewMockTopURLProvider(ctrl)

	h := newHandler(t, blocker.Options{TopURL: top}, blockRule(models.TriggerDefinition{URLFilter: ".*"}))

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/"}, models.ResourceDocument)
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestCheckURLRepairsCustomScheme(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{
		URLFilter: "my_app://.*",
		IfDomain:  []string{"assets.local"},
	}))

	resp, err := h.CheckURL(context.Background(), blocker.Request{URL: "my_app://assets.local/img.png"}, models.ResourceImage)
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestCheckURLMalformedURL(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{URLFilter: ".*"}))

	_, err := h.CheckURL(context.Background(), blocker.Request{URL: "http://exa mple.com/"}, models.ResourceDocument)
	assert.ErrorIs(t, err, blocker.ErrMalformedURL)
}

func TestCheckURLIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	top := mocks.NewMockTopURLProvider(ctrl)
	top.EXPECT().TopURL(gomock.Any()).Return("https://news.example.com/", nil).Times(2)

	h := newHandler(t, blocker.Options{TopURL: top},
		blockRule(models.TriggerDefinition{URLFilter: ".*", LoadType: []string{models.LoadThirdParty}, ResourceType: []models.ResourceType{models.ResourceScript}}),
	)
	req := blocker.Request{URL: "https://tracker.net/t.js"}

	first, err := h.CheckURL(context.Background(), req, models.ResourceScript)
	require.NoError(t, err)
	second, err := h.CheckURL(context.Background(), req, models.ResourceScript)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotNil(t, first)
}

func TestCheckRequestClassifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockNetworkFetcher(ctrl)
	fetcher.EXPECT().
		Do(gomock.Any(), &blocker.FetchRequest{Method: http.MethodHead, URL: "https://example.com/logo"}).
		Return(&blocker.FetchResponse{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"image/svg+xml"}},
		}, nil)

	h := newHandler(t, blocker.Options{Fetcher: fetcher}, blockRule(models.TriggerDefinition{
		URLFilter:    ".*",
		ResourceType: []models.ResourceType{models.ResourceImage},
	}))

	resp, err := h.CheckRequest(context.Background(), blocker.Request{URL: "https://example.com/logo"})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestCheckRequestWithoutRulesSkipsProbe(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockNetworkFetcher(ctrl)

	h := newHandler(t, blocker.Options{Fetcher: fetcher})
	resp, err := h.CheckRequest(context.Background(), blocker.Request{URL: "https://example.com/"})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCheckResponseUsesContentType(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{
		URLFilter:    ".*",
		ResourceType: []models.ResourceType{models.ResourceStyleSheet},
	}))

	resp, err := h.CheckResponse(context.Background(), blocker.Request{URL: "app://local/theme"}, "text/css; charset=utf-8")
	require.NoError(t, err)
	assert.NotNil(t, resp)

	resp, err = h.CheckResponse(context.Background(), blocker.Request{URL: "app://local/theme"}, "text/html")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestLoadRejectsInvalidPayloadAndKeepsRules(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{URLFilter: ".*"}))

	err := h.Load([]models.RuleDefinition{
		blockRule(models.TriggerDefinition{URLFilter: ".*"}),
		blockRule(models.TriggerDefinition{URLFilter: ".*", IfDomain: []string{"a.com"}, UnlessDomain: []string{"b.com"}}),
	})
	require.ErrorIs(t, err, blocker.ErrConflictingDomains)
	assert.Contains(t, err.Error(), "rule 1")
	assert.Equal(t, 1, h.Len())
}

func TestConcurrentReplaceAndCheck(t *testing.T) {
	h := newHandler(t, blocker.Options{}, blockRule(models.TriggerDefinition{URLFilter: ".*"}))
	blockAll, err := blocker.CompileRules([]models.RuleDefinition{blockRule(models.TriggerDefinition{URLFilter: ".*"})})
	require.NoError(t, err)
	allowAll, err := blocker.CompileRules([]models.RuleDefinition{blockRule(models.TriggerDefinition{URLFilter: "nothing"})})
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				h.SetRules(allowAll)
			} else {
				h.SetRules(blockAll)
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := h.CheckURL(context.Background(), blocker.Request{URL: "https://example.com/"}, models.ResourceDocument)
				assert.NoError(t, err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
	assert.Equal(t, 1, h.Len())
}
