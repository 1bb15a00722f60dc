// Package watch keeps a catalog file translated: whenever the file changes
// on disk it is reloaded, its untranslated entries are sent as a batch, and
// the results are written back.
package watch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/minios-linux/tskit/session"
	"github.com/minios-linux/tskit/translate"
)

// DefaultDebounce is the quiet period after the last write before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *zerolog.Logger
	// OnEvent, when set, observes every translation event after it has been
	// applied to the session.
	OnEvent func(translate.Event)
}

// Watcher reacts to changes of one catalog file.
type Watcher struct {
	path     string
	sess     *session.Session
	events   <-chan translate.Event
	debounce time.Duration
	onEvent  func(translate.Event)
	log      zerolog.Logger

	trigger chan struct{}

	mu       sync.Mutex
	lastHash [sha256.Size]byte
	timer    *time.Timer

	// running and pending are only touched by Run.
	running bool
	pending bool
}

// New returns a watcher for path. Translation events must be delivered on
// events; sess must use the translator that emits them.
func New(path string, sess *session.Session, events <-chan translate.Event, opts Options) *Watcher {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "watch").Logger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		sess:     sess,
		events:   events,
		debounce: opts.Debounce,
		onEvent:  opts.OnEvent,
		log:      log,
		trigger:  make(chan struct{}, 1),
	}
	sess.OnFile(func(e session.FileEvent) {
		if e.Kind == session.FileSaved && e.OK && filepath.Clean(e.Path) == w.path {
			w.remember()
		}
	})
	return w
}

// Run processes the file once, then watches it until ctx is done or the
// event channel is closed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	// Editors often replace files instead of writing them in place, so the
	// directory is watched rather than the file.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.log.Info().Str("path", w.path).Dur("debounce", w.debounce).Msg("watching catalog")

	w.process(ctx, true)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Str("path", w.path).Msg("watch error")

		case <-w.trigger:
			w.process(ctx, false)

		case e, ok := <-w.events:
			if !ok {
				return nil
			}
			w.handle(ctx, e)
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// process reloads the file if its content changed and submits its
// untranslated entries.
func (w *Watcher) process(ctx context.Context, initial bool) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// The file may be mid-replace; the next event retries.
		w.log.Warn().Err(err).Str("path", w.path).Msg("catalog not readable")
		return
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	unchanged := sum == w.lastHash
	w.mu.Unlock()
	if unchanged && !initial {
		return
	}

	if err := w.sess.Load(w.path); err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("reload failed")
		return
	}
	w.mu.Lock()
	w.lastHash = sum
	w.mu.Unlock()

	if w.running {
		w.pending = true
		return
	}
	w.submit(ctx)
}

func (w *Watcher) submit(ctx context.Context) {
	n, err := w.sess.TranslateUntranslated(ctx)
	switch {
	case errors.Is(err, translate.ErrBatchRunning):
		w.pending = true
	case err != nil:
		w.log.Error().Err(err).Str("path", w.path).Msg("batch not started")
	case n > 0:
		w.running = true
		w.log.Info().Str("path", w.path).Int("total", n).Msg("translating")
	default:
		w.log.Debug().Str("path", w.path).Msg("nothing to translate")
	}
}

// handle applies a translation event and starts any deferred batch once
// the current one ended.
func (w *Watcher) handle(ctx context.Context, e translate.Event) {
	if _, err := w.sess.Apply(e); err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("saving results failed")
	}
	if w.onEvent != nil {
		w.onEvent(e)
	}
	if e.Kind != translate.EventCompleted && e.Kind != translate.EventCanceled {
		return
	}
	w.running = false
	if w.pending {
		w.pending = false
		w.submit(ctx)
	}
}

// remember records the hash of the file as written by the session, so the
// resulting fsnotify events are ignored.
func (w *Watcher) remember() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	sum := sha256.Sum256(data)
	w.mu.Lock()
	w.lastHash = sum
	w.mu.Unlock()
}
