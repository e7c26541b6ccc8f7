package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/metrics"
	"github.com/bnema/webview-content-blocker/internal/models"
)

var (
	// ErrNotFound is returned for unknown session ids
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned by Create after Close
	ErrClosed = errors.New("registry closed")
)

// Session is one blocking context, usually one web view or page target
type Session struct {
	ID      string
	Label   string
	Target  string
	Handler *blocker.Handler
	Created time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	metrics *metrics.Metrics

	mu      sync.Mutex
	closers []func() error
}

// Context is cancelled when the session is removed
func (s *Session) Context() context.Context {
	return s.ctx
}

// OnClose registers fn to run when the session is removed
func (s *Session) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Load replaces the rule list of the session
func (s *Session) Load(defs []models.RuleDefinition) error {
	if err := s.Handler.Load(defs); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetRules(s.ID, s.Handler.Len())
	}
	return nil
}

func (s *Session) close() error {
	s.cancel()
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options configures a Registry
type Options struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Engine is the base handler configuration of every session. Recorder
	// defaults to Metrics when set.
	Engine blocker.Options
}

// Registry owns the sessions of the process. It replaces any process-wide
// state: whoever creates it decides its lifetime.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      zerolog.Logger
	metrics  *metrics.Metrics
	engine   blocker.Options
	closed   bool
}

// New creates an empty registry
func New(opts Options) *Registry {
	engine := opts.Engine
	if engine.Recorder == nil && opts.Metrics != nil {
		engine.Recorder = opts.Metrics
	}
	return &Registry{
		sessions: make(map[string]*Session),
		log:      opts.Logger.With().Str("component", "registry").Logger(),
		metrics:  opts.Metrics,
		engine:   engine,
	}
}

// Create opens a session. Non-nil scripts and top replace the page
// capabilities of the base engine options, typically with a bridge.Page.
func (r *Registry) Create(label, target string, scripts blocker.ScriptRunner, top blocker.TopURLProvider) (*Session, error) {
	opts := r.engine
	if scripts != nil {
		opts.Scripts = scripts
	}
	if top != nil {
		opts.TopURL = top
	}

	ctx, cancel := context.WithCancel(context.Background())
	opts.Lifetime = ctx
	s := &Session{
		ID:      uuid.New().String(),
		Label:   label,
		Target:  target,
		Handler: blocker.New(opts),
		Created: time.Now().UTC(),
		ctx:     ctx,
		cancel:  cancel,
		metrics: r.metrics,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Sessions.Set(float64(n))
		r.metrics.SetRules(s.ID, 0)
	}
	r.log.Info().Str("session", s.ID).Str("label", label).Str("target", target).Msg("session created")
	return s, nil
}

// Get returns the session with the given id
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the sessions ordered by creation time
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Remove closes and forgets a session. Pending evaluations of the session
// see their context cancelled.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if r.metrics != nil {
		r.metrics.Sessions.Set(float64(n))
		r.metrics.ForgetSession(id)
	}
	err := s.close()
	if err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("session closed with errors")
	} else {
		r.log.Info().Str("session", id).Msg("session removed")
	}
	return err
}

// Close removes every session and rejects new ones
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.Remove(id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
