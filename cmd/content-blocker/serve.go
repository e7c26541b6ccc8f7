package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/webview-content-blocker/internal/api"
	"github.com/bnema/webview-content-blocker/internal/bridge"
	"github.com/bnema/webview-content-blocker/internal/fetcher"
	"github.com/bnema/webview-content-blocker/internal/logging"
	"github.com/bnema/webview-content-blocker/internal/metrics"
	"github.com/bnema/webview-content-blocker/internal/models"
	"github.com/bnema/webview-content-blocker/internal/registry"
	"github.com/bnema/webview-content-blocker/internal/store"
	"github.com/bnema/webview-content-blocker/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API and the browser bridge",
	Long: `Run the session registry, the control API with its metrics endpoint and
the rule-file watcher. When bridge.devtools_url is set, a page of that
browser is attached and every request it makes is evaluated.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("rule-set", "", "load this stored rule set instead of the active one")
	serveCmd.Flags().String("devtools-url", "", "DevTools endpoint of the browser to attach to")
	_ = viper.BindPFlag("bridge.devtools_url", serveCmd.Flags().Lookup("devtools-url"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ruleSet, _ := cmd.Flags().GetString("rule-set")

	if !cfg.API.Enabled && cfg.Bridge.DevToolsURL == "" {
		return errors.New("nothing to serve: enable the api or set bridge.devtools_url")
	}

	log := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithContext(ctx, log)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	reg := registry.New(registry.Options{
		Logger:  log,
		Metrics: m,
		Engine:  engineOptions(fetcher.NewTransport(cfg.HTTP)),
	})
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn().Err(err).Msg("closing sessions")
		}
	}()

	initial, source, err := initialRules(ctx, ruleSet)
	if err != nil {
		return err
	}
	log.Info().Str("source", source).Int("rules", len(initial)).Msg("rules loaded")

	g, gctx := errgroup.WithContext(ctx)

	var w *watcher.Watcher
	if cfg.Rules.Watch && source == cfg.Rules.File {
		w = watcher.New(cfg.Rules.File, log)
		g.Go(func() error { return w.Run(gctx) })
	}

	if cfg.API.Enabled {
		srv := api.New(api.Options{
			Registry:     reg,
			Metrics:      m,
			Gatherer:     promReg,
			AllowOrigins: cfg.API.AllowOrigins,
			Logger:       log,
		})
		g.Go(func() error { return srv.Run(gctx, cfg.API.Addr) })
	}

	if cfg.Bridge.DevToolsURL != "" {
		g.Go(func() error { return runBridge(gctx, log, reg, m, w, initial) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// initialRules picks the startup payload: the named rule set, the active
// rule set, or the rule file, in that order.
func initialRules(ctx context.Context, name string) ([]models.RuleDefinition, string, error) {
	_, statErr := os.Stat(cfg.Store.Path)
	if name != "" || statErr == nil {
		st, err := openStore()
		if err != nil {
			return nil, "", err
		}
		defer st.Close()

		var set *store.RuleSet
		if name != "" {
			set, err = st.Get(ctx, name)
		} else {
			set, err = st.Active(ctx)
		}
		switch {
		case err == nil:
			return set.Rules, "store:" + set.Name, nil
		case name != "" || !errors.Is(err, store.ErrNotFound):
			return nil, "", err
		}
	}

	if cfg.Rules.File == "" {
		return nil, "none", nil
	}
	defs, err := models.LoadRuleFile(cfg.Rules.File)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "none", nil
	}
	if err != nil {
		return nil, "", err
	}
	return defs, cfg.Rules.File, nil
}

// runBridge attaches to a page of the browser and evaluates its requests
// until ctx is done or the page goes away.
func runBridge(ctx context.Context, log zerolog.Logger, reg *registry.Registry, m *metrics.Metrics, w *watcher.Watcher, initial []models.RuleDefinition) error {
	conn, err := bridge.Dial(ctx, cfg.Bridge.DevToolsURL, cfg.Bridge.Target)
	if err != nil {
		return err
	}

	page := bridge.NewPage(conn.Client)
	sess, err := reg.Create("devtools", conn.Target.ID, page, page)
	if err != nil {
		_ = conn.Close()
		return err
	}
	sess.OnClose(conn.Close)
	if w != nil {
		w.Add(sess)
		sess.OnClose(func() error {
			w.Remove(sess)
			return nil
		})
	}
	if err := sess.Load(initial); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	log.Info().
		Str("session", sess.ID).
		Str("target", conn.Target.ID).
		Str("url", conn.Target.URL).
		Msg("attached to page")

	// the interceptor stops with the process or with its session
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(sess.Context(), cancel)
	defer stopAfter()
	runCtx = logging.WithSession(runCtx, sess.ID)

	interceptor := bridge.NewInterceptor(conn.Client, sess.Handler, bridge.InterceptorOptions{
		Stage:       cfg.Bridge.Stage,
		Concurrency: cfg.Bridge.Concurrency,
		Logger:      log.With().Str("session", sess.ID).Logger(),
		Metrics:     m,
	})
	return interceptor.Run(runCtx)
}
