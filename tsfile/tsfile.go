// Package tsfile implements the in-memory model of Qt Linguist translation
// catalogs (.ts files) together with reading and writing of the XML format.
//
// A catalog is a flat, ordered list of entries. Contexts are not stored as
// separate containers: each entry carries its context name and contexts are
// derived on demand by grouping entries in first-seen order. Entries are
// therefore never moved between contexts, only re-tagged.
//
// A Catalog is safe for concurrent use. Change observers registered with
// OnChange are invoked after the internal lock has been released, so they
// may call back into the catalog.
package tsfile

import (
	"slices"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// State is the completion state of an entry.
type State int

const (
	// Unfinished entries are untranslated or awaiting review.
	Unfinished State = iota
	// Finished entries are complete. It is the implicit default in .ts files.
	Finished
	// Vanished entries are no longer present in the sources.
	Vanished
	// Obsolete entries are retained but deprecated.
	Obsolete
)

// String returns the .ts "type" attribute value for the state. Finished has
// no attribute value and is rendered as "finished".
func (s State) String() string {
	switch s {
	case Unfinished:
		return "unfinished"
	case Vanished:
		return "vanished"
	case Obsolete:
		return "obsolete"
	default:
		return "finished"
	}
}

// normalize maps values outside the defined states to Finished, the state
// they are written as.
func (s State) normalize() State {
	if s < Unfinished || s > Obsolete {
		return Finished
	}
	return s
}

// ParseState maps a "type" attribute value to a State. Anything other than
// unfinished, vanished or obsolete is Finished.
func ParseState(s string) State {
	switch s {
	case "unfinished":
		return Unfinished
	case "vanished":
		return Vanished
	case "obsolete":
		return Obsolete
	default:
		return Finished
	}
}

// Entry is one translatable message.
type Entry struct {
	// Context is the name of the owning context.
	Context string
	// Source is the source text. Together with Context it identifies the entry.
	Source string
	// Translation is the translated text, possibly empty.
	Translation string
	// State is the completion state.
	State State
	// Comments holds <comment> texts in document order.
	Comments []string
	// Locations holds "file:line" references in document order.
	Locations []string
}

// IsZero reports whether e is the empty sentinel returned by lookups that
// found nothing.
func (e Entry) IsZero() bool { return e.Source == "" }

// IsUntranslated reports whether the entry still needs a translation.
func (e Entry) IsUntranslated() bool {
	return e.State == Unfinished || e.Translation == ""
}

func (e Entry) clone() Entry {
	e.Comments = append([]string(nil), e.Comments...)
	e.Locations = append([]string(nil), e.Locations...)
	return e
}

// Stats is a partition of the catalog's entries by state.
type Stats struct {
	Total      int `json:"total"`
	Translated int `json:"translated"`
	Unfinished int `json:"unfinished"`
	Vanished   int `json:"vanished"`
	Obsolete   int `json:"obsolete"`
}

// ContextSummary describes one derived context.
type ContextSummary struct {
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Finished int    `json:"finished"`
}

// ChangeKind identifies a catalog mutation.
type ChangeKind int

const (
	ChangeUpdated ChangeKind = iota
	ChangeAdded
	ChangeRemoved
)

// Change is delivered to observers after each mutation.
type Change struct {
	Kind  ChangeKind
	Index int
}

// Catalog is the aggregate root of a translation file.
type Catalog struct {
	mu         sync.RWMutex
	entries    []Entry
	version    string
	language   string
	sourceLang string

	obsMu     sync.Mutex
	observers []func(Change)
}

// New returns an empty catalog with the given document metadata.
func New(version, language, sourceLanguage string) *Catalog {
	return &Catalog{version: version, language: language, sourceLang: sourceLanguage}
}

// Version returns the root "version" attribute.
func (c *Catalog) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Language returns the target language ("language" attribute).
func (c *Catalog) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// SourceLanguage returns the "sourcelanguage" attribute, possibly empty.
func (c *Catalog) SourceLanguage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sourceLang
}

// SetLanguage changes the target language.
func (c *Catalog) SetLanguage(lang string) {
	c.mu.Lock()
	c.language = lang
	c.mu.Unlock()
}

// OnChange registers an observer for entry mutations.
func (c *Catalog) OnChange(fn func(Change)) {
	if fn == nil {
		return
	}
	c.obsMu.Lock()
	c.observers = append(c.observers, fn)
	c.obsMu.Unlock()
}

func (c *Catalog) notify(ch Change) {
	c.obsMu.Lock()
	obs := slices.Clone(c.observers)
	c.obsMu.Unlock()
	for _, fn := range obs {
		fn(ch)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of all entries in order.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.clone()
	}
	return out
}

// EntryAt returns the entry at index, or the empty sentinel when out of range.
func (c *Catalog) EntryAt(index int) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.entries) {
		return Entry{}
	}
	return c.entries[index].clone()
}

// Find returns the first entry matching context and source, or the empty
// sentinel.
func (c *Catalog) Find(context, source string) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(context, source); i >= 0 {
		return c.entries[i].clone()
	}
	return Entry{}
}

func (c *Catalog) indexOf(context, source string) int {
	for i := range c.entries {
		if c.entries[i].Context == context && c.entries[i].Source == source {
			return i
		}
	}
	return -1
}

// FindBySource returns the indices of all entries, in any context, whose
// source equals source.
func (c *Catalog) FindBySource(source string) []int {
	return c.selectIndices(func(e *Entry) bool { return e.Source == source })
}

// Untranslated returns the indices of entries that are Unfinished or have an
// empty translation.
func (c *Catalog) Untranslated() []int {
	return c.selectIndices(func(e *Entry) bool { return e.IsUntranslated() })
}

// NeedsReview returns the indices of Unfinished entries that already carry a
// translation.
func (c *Catalog) NeedsReview() []int {
	return c.selectIndices(func(e *Entry) bool {
		return e.State == Unfinished && e.Translation != ""
	})
}

// Search returns indices of entries containing text, case-insensitively, in
// the source or the translation. Empty text matches nothing.
func (c *Catalog) Search(text string, inSource, inTranslation bool) []int {
	if text == "" {
		return nil
	}
	needle := strings.ToLower(text)
	return c.selectIndices(func(e *Entry) bool {
		if inSource && strings.Contains(strings.ToLower(e.Source), needle) {
			return true
		}
		return inTranslation && strings.Contains(strings.ToLower(e.Translation), needle)
	})
}

func (c *Catalog) selectIndices(match func(*Entry) bool) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var result []int
	for i := range c.entries {
		if match(&c.entries[i]) {
			result = append(result, i)
		}
	}
	return result
}

// ContextMessageCount returns the number of entries in the named context.
func (c *Catalog) ContextMessageCount(name string) int {
	return len(c.selectIndices(func(e *Entry) bool { return e.Context == name }))
}

// Contexts summarizes the derived contexts in first-seen order.
func (c *Catalog) Contexts() []ContextSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var result []ContextSummary
	pos := make(map[string]int)
	for _, e := range c.entries {
		i, ok := pos[e.Context]
		if !ok {
			i = len(result)
			pos[e.Context] = i
			result = append(result, ContextSummary{Name: e.Context})
		}
		result[i].Total++
		if e.State == Finished {
			result[i].Finished++
		}
	}
	return result
}

// Statistics partitions the entries by state in a single pass.
func (c *Catalog) Statistics() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Stats
	for _, e := range c.entries {
		switch e.State {
		case Finished:
			s.Translated++
		case Unfinished:
			s.Unfinished++
		case Vanished:
			s.Vanished++
		case Obsolete:
			s.Obsolete++
		}
	}
	s.Total = len(c.entries)
	return s
}

// ---------------------------------------------------------------------------
// Updates
// ---------------------------------------------------------------------------

// UpdateTranslation sets the translation of the first entry matching context
// and source. It is a no-op when nothing matches.
func (c *Catalog) UpdateTranslation(context, source, text string) {
	c.updateKeyed(context, source, func(e *Entry) { e.Translation = text })
}

// UpdateState sets the state of the first entry matching context and source.
func (c *Catalog) UpdateState(context, source string, state State) {
	c.updateKeyed(context, source, func(e *Entry) { e.State = state.normalize() })
}

// UpdateTranslationAt sets the translation of the entry at index.
func (c *Catalog) UpdateTranslationAt(index int, text string) {
	c.updateAt(index, func(e *Entry) { e.Translation = text })
}

// UpdateStateAt sets the state of the entry at index.
func (c *Catalog) UpdateStateAt(index int, state State) {
	c.updateAt(index, func(e *Entry) { e.State = state.normalize() })
}

func (c *Catalog) updateKeyed(context, source string, fn func(*Entry)) {
	c.mu.Lock()
	i := c.indexOf(context, source)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	fn(&c.entries[i])
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeUpdated, Index: i})
}

func (c *Catalog) updateAt(index int, fn func(*Entry)) {
	c.mu.Lock()
	if index < 0 || index >= len(c.entries) {
		c.mu.Unlock()
		return
	}
	fn(&c.entries[index])
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeUpdated, Index: index})
}

// Add appends an entry and returns its index.
func (c *Catalog) Add(e Entry) int {
	c.mu.Lock()
	idx := len(c.entries)
	e.State = e.State.normalize()
	c.entries = append(c.entries, e.clone())
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeAdded, Index: idx})
	return idx
}

// Remove deletes the entry at index. It returns false when out of range.
func (c *Catalog) Remove(index int) bool {
	c.mu.Lock()
	if index < 0 || index >= len(c.entries) {
		c.mu.Unlock()
		return false
	}
	c.entries = append(c.entries[:index], c.entries[index+1:]...)
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeRemoved, Index: index})
	return true
}

// ApplyResults fills untranslated entries whose source has a result in
// results and marks them Finished. Entries sharing a source all receive the
// same translation. It returns the number of entries changed.
func (c *Catalog) ApplyResults(results map[string]string) int {
	c.mu.Lock()
	var changed []int
	for i := range c.entries {
		e := &c.entries[i]
		if !e.IsUntranslated() {
			continue
		}
		tr, ok := results[e.Source]
		if !ok || tr == "" {
			continue
		}
		e.Translation = tr
		e.State = Finished
		changed = append(changed, i)
	}
	c.mu.Unlock()
	for _, i := range changed {
		c.notify(Change{Kind: ChangeUpdated, Index: i})
	}
	return len(changed)
}
