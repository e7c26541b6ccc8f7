package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bnema/webview-content-blocker/internal/metrics"
	"github.com/bnema/webview-content-blocker/internal/registry"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server
type Options struct {
	Registry     *registry.Registry
	Metrics      *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer     prometheus.Gatherer
	// AllowOrigins enables CORS for these origins
	AllowOrigins []string
	Logger       zerolog.Logger
}

// Server is the control API of a running content blocker. It lets a host
// manage sessions, replace their rules and evaluate requests.
type Server struct {
	router   *gin.Engine
	registry *registry.Registry
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New creates a server and registers its routes
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:   gin.New(),
		registry: opts.Registry,
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "api").Logger(),
	}

	s.router.Use(gin.Recovery(), s.requestLogger())
	if s.metrics != nil {
		s.router.Use(metricsMiddleware(s.metrics))
	}
	if len(opts.AllowOrigins) > 0 {
		s.router.Use(corsMiddleware(opts.AllowOrigins))
	}

	s.router.GET("/healthz", s.health)
	if opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	sessions := s.router.Group("/sessions")
	sessions.GET("", s.listSessions)
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.GET("/:id/rules", s.getRules)
	sessions.PUT("/:id/rules", s.putRules)
	sessions.POST("/:id/check", s.check)

	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("control api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
