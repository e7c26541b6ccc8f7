package blocker

import (
	"context"
	"net/http"
	"time"

	"github.com/bnema/webview-content-blocker/internal/models"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . NetworkFetcher,ScriptRunner,TopURLProvider

// NetworkFetcher performs the outbound HTTP calls of the engine: HEAD
// requests for classification and the https re-fetch of make-https rules.
type NetworkFetcher interface {
	Do(ctx context.Context, req *FetchRequest) (*FetchResponse, error)
}

// ScriptRunner evaluates a script in the page currently loaded by the
// hosting view.
type ScriptRunner interface {
	EvaluateScript(ctx context.Context, script string) error
}

// TopURLProvider returns the URL loaded in the top-level browsing context.
// An empty string means nothing is loaded.
type TopURLProvider interface {
	TopURL(ctx context.Context) (string, error)
}

// Recorder observes engine decisions
type Recorder interface {
	ObserveCheck(outcome string, elapsed time.Duration)
	HideScheduled()
	Failure(stage string)
}

// Check outcomes reported to the Recorder
const (
	OutcomeBlocked   = "blocked"
	OutcomeRewritten = "rewritten"
	OutcomeAllowed   = "allowed"
	OutcomeError     = "error"
)

// Failure stages reported to the Recorder
const (
	StageClassify  = "classify"
	StageTopURL    = "top_url"
	StageMakeHTTPS = "make_https"
	StageScript    = "script"
)

// FetchRequest is an outbound request issued by the engine
type FetchRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// FetchResponse is the result of a FetchRequest
type FetchResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Request is an intercepted request as seen by the host
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the request payload, re-sent by make-https.
	Body []byte `json:"body,omitempty"`
}

// Response is a terminal decision: the host serves it instead of letting
// the request through. A block yields an empty response.
type Response struct {
	ContentType  string            `json:"content_type"`
	Encoding     string            `json:"encoding"`
	StatusCode   int               `json:"status_code,omitempty"`
	ReasonPhrase string            `json:"reason_phrase,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         []byte            `json:"body,omitempty"`
	// Action is the rule action that produced the response.
	Action models.ActionType `json:"action"`
}

type nopRecorder struct{}

func (nopRecorder) ObserveCheck(string, time.Duration) {}
func (nopRecorder) HideScheduled()                     {}
func (nopRecorder) Failure(string)                     {}

type nopScripts struct{}

func (nopScripts) EvaluateScript(context.Context, string) error { return nil }

type noTopURL struct{}

func (noTopURL) TopURL(context.Context) (string, error) { return "", nil }
