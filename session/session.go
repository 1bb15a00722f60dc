// Package session binds one .ts catalog file to a translator: it loads and
// saves the file, reports the outcome of each as a FileEvent, and applies
// translation results back to untranslated entries.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/minios-linux/tskit/translate"
	"github.com/minios-linux/tskit/tsfile"
)

// ErrNoCatalog is returned by operations that need a loaded catalog.
var ErrNoCatalog = errors.New("no catalog loaded")

// FileEventKind identifies a FileEvent.
type FileEventKind int

const (
	FileLoaded FileEventKind = iota
	FileSaved
)

func (k FileEventKind) String() string {
	if k == FileSaved {
		return "saved"
	}
	return "loaded"
}

// FileEvent reports the outcome of a load or save.
type FileEvent struct {
	Kind FileEventKind
	Path string
	OK   bool
	Err  error
}

// Translator starts batch translations. *translate.Client implements it.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string) error
}

// Options configures a Session.
type Options struct {
	// SaveAfterBatch writes the catalog when a batch completes with changes.
	SaveAfterBatch bool
	Logger         *zerolog.Logger
}

// Session holds the current catalog and its file path.
type Session struct {
	tr             Translator
	saveAfterBatch bool
	log            zerolog.Logger

	mu      sync.RWMutex
	catalog *tsfile.Catalog
	path    string
	dirty   *atomic.Bool

	obsMu     sync.Mutex
	observers []func(FileEvent)
}

// New returns a session with no catalog loaded.
func New(tr Translator, opts Options) *Session {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "session").Logger()
	}
	return &Session{
		tr:             tr,
		saveAfterBatch: opts.SaveAfterBatch,
		log:            log,
		dirty:          new(atomic.Bool),
	}
}

// OnFile registers fn to receive load and save outcomes.
func (s *Session) OnFile(fn func(FileEvent)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) notify(e FileEvent) {
	s.obsMu.Lock()
	observers := slices.Clone(s.observers)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(e)
	}
}

// Load parses path and makes it the current catalog. On failure the
// previously loaded catalog is kept.
func (s *Session) Load(path string) error {
	c, err := tsfile.ParseFile(path)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("load failed")
		s.notify(FileEvent{Kind: FileLoaded, Path: path, Err: err})
		return err
	}

	dirty := new(atomic.Bool)
	c.OnChange(func(tsfile.Change) { dirty.Store(true) })

	s.mu.Lock()
	s.catalog = c
	s.path = path
	s.dirty = dirty
	s.mu.Unlock()

	s.log.Info().Str("path", path).Int("entries", c.Len()).Msg("catalog loaded")
	s.notify(FileEvent{Kind: FileLoaded, Path: path, OK: true})
	return nil
}

// Catalog returns the current catalog, or nil.
func (s *Session) Catalog() *tsfile.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Path returns the file path of the current catalog.
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Dirty reports whether the catalog changed since it was loaded or saved.
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty.Load()
}

// Save writes the current catalog back to its path.
func (s *Session) Save() error {
	return s.SaveAs(s.Path())
}

// SaveAs writes the current catalog to path, which becomes the current path
// on success.
func (s *Session) SaveAs(path string) error {
	s.mu.RLock()
	c := s.catalog
	s.mu.RUnlock()
	if c == nil {
		s.notify(FileEvent{Kind: FileSaved, Path: path, Err: ErrNoCatalog})
		return ErrNoCatalog
	}

	if err := c.WriteFile(path); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("save failed")
		s.notify(FileEvent{Kind: FileSaved, Path: path, Err: err})
		return err
	}

	s.mu.Lock()
	if s.catalog == c {
		s.path = path
		s.dirty.Store(false)
	}
	s.mu.Unlock()

	s.log.Info().Str("path", path).Msg("catalog saved")
	s.notify(FileEvent{Kind: FileSaved, Path: path, OK: true})
	return nil
}

// Pending returns the source texts of untranslated entries in entry order.
func (s *Session) Pending() []string {
	c := s.Catalog()
	if c == nil {
		return nil
	}
	idx := c.Untranslated()
	texts := make([]string, 0, len(idx))
	for _, i := range idx {
		texts = append(texts, c.EntryAt(i).Source)
	}
	return texts
}

// TranslateUntranslated starts a batch over the untranslated entries and
// returns how many texts were submitted. With nothing to translate it
// returns 0 without starting a batch.
func (s *Session) TranslateUntranslated(ctx context.Context) (int, error) {
	if s.Catalog() == nil {
		return 0, ErrNoCatalog
	}
	texts := s.Pending()
	if len(texts) == 0 {
		return 0, nil
	}
	if err := s.tr.TranslateBatch(ctx, texts); err != nil {
		return 0, err
	}
	s.log.Info().Str("path", s.Path()).Int("total", len(texts)).Msg("batch submitted")
	return len(texts), nil
}

// Apply applies a translation event to the current catalog and returns the
// number of entries changed. EventCompleted saves the catalog when
// SaveAfterBatch is set and there are unsaved changes.
func (s *Session) Apply(e translate.Event) (int, error) {
	c := s.Catalog()
	if c == nil {
		return 0, nil
	}

	var changed int
	switch e.Kind {
	case translate.EventTranslated:
		changed = c.ApplyResults(map[string]string{e.Original: e.Translated})
	case translate.EventCompleted:
		changed = c.ApplyResults(e.Results)
		s.log.Info().
			Str("path", s.Path()).
			Int("results", len(e.Results)).
			Int("applied", changed).
			Msg("batch results applied")
		if s.saveAfterBatch && s.Dirty() {
			if err := s.Save(); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}
