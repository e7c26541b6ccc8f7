package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// Loader receives a freshly decoded rule payload
type Loader interface {
	Load(defs []models.RuleDefinition) error
}

// Watcher reloads a rule file into its loaders whenever the file changes.
// The parent directory is watched so editors that replace the file by
// renaming are seen too.
type Watcher struct {
	path     string
	log      zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	loaders []Loader
}

// New creates a watcher for the rule file at path
func New(path string, log zerolog.Logger, loaders ...Loader) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		log:      log.With().Str("component", "watcher").Str("file", path).Logger(),
		debounce: 100 * time.Millisecond,
		loaders:  loaders,
	}
}

// Add registers another loader
func (w *Watcher) Add(l Loader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaders = append(w.loaders, l)
}

// Remove unregisters l
func (w *Watcher) Remove(l Loader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, cur := range w.loaders {
		if cur == l {
			w.loaders = append(w.loaders[:i], w.loaders[i+1:]...)
			return
		}
	}
}

// Reload decodes the file and hands it to every loader. A loader that
// rejects the payload keeps its previous rules.
func (w *Watcher) Reload() error {
	defs, err := models.LoadRuleFile(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	loaders := append([]Loader(nil), w.loaders...)
	w.mu.Unlock()

	var errs []error
	for _, l := range loaders {
		if err := l.Load(defs); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("load %s: %w", w.path, err)
	}
	w.log.Info().Int("rules", len(defs)).Int("loaders", len(loaders)).Msg("rules reloaded")
	return nil
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Debug().Msg("watching rule file")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			w.log.Debug().Str("op", ev.Op.String()).Msg("rule file changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.log.Warn().Err(err).Msg("rule reload failed, keeping previous rules")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}
