package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/tskit/translate"
	"github.com/minios-linux/tskit/tsfile"
)

const doc = `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE TS>
<TS version="2.1" language="zh_CN" sourcelanguage="en">
  <context>
    <name>MainWindow</name>
    <message>
      <source>Open</source>
      <translation type="unfinished"></translation>
    </message>
    <message>
      <source>Save</source>
      <translation>保存</translation>
    </message>
    <message>
      <source>Quit</source>
      <translation type="unfinished"></translation>
    </message>
  </context>
  <context>
    <name>Dialog</name>
    <message>
      <source>Open</source>
      <translation type="unfinished"></translation>
    </message>
  </context>
</TS>
`

type fakeTranslator struct {
	texts [][]string
	err   error
}

func (f *fakeTranslator) TranslateBatch(_ context.Context, texts []string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, texts)
	return nil
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app_zh_CN.ts")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndFileEvents(t *testing.T) {
	s := New(&fakeTranslator{}, Options{})
	var events []FileEvent
	s.OnFile(func(e FileEvent) { events = append(events, e) })

	path := writeDoc(t, doc)
	if err := s.Load(path); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Path() != path || s.Catalog() == nil || s.Catalog().Len() != 4 {
		t.Fatalf("after Load: path=%q catalog=%v", s.Path(), s.Catalog())
	}

	bad := writeDoc(t, "<TS><context>")
	err := s.Load(bad)
	var pe *tsfile.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Load(bad) error = %v, want *tsfile.ParseError", err)
	}
	if s.Path() != path || s.Catalog().Len() != 4 {
		t.Fatal("failed Load must keep the previous catalog")
	}

	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	if e := events[0]; e.Kind != FileLoaded || !e.OK || e.Path != path {
		t.Fatalf("first event = %+v", e)
	}
	if e := events[1]; e.Kind != FileLoaded || e.OK || e.Err == nil {
		t.Fatalf("second event = %+v", e)
	}
}

func TestSaveWithoutCatalog(t *testing.T) {
	s := New(&fakeTranslator{}, Options{})
	var got FileEvent
	s.OnFile(func(e FileEvent) { got = e })

	if err := s.Save(); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("Save() error = %v, want ErrNoCatalog", err)
	}
	if got.Kind != FileSaved || got.OK {
		t.Fatalf("event = %+v, want failed save", got)
	}
	if _, err := s.TranslateUntranslated(context.Background()); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("TranslateUntranslated() error = %v, want ErrNoCatalog", err)
	}
}

func TestSaveAs(t *testing.T) {
	s := New(&fakeTranslator{}, Options{})
	if err := s.Load(writeDoc(t, doc)); err != nil {
		t.Fatal(err)
	}
	s.Catalog().UpdateTranslation("MainWindow", "Quit", "退出")
	if !s.Dirty() {
		t.Fatal("Dirty() = false after update")
	}

	out := filepath.Join(t.TempDir(), "sub", "copy.ts")
	if err := s.SaveAs(out); err != nil {
		t.Fatalf("SaveAs() error: %v", err)
	}
	if s.Path() != out || s.Dirty() {
		t.Fatalf("after SaveAs: path=%q dirty=%v", s.Path(), s.Dirty())
	}
	c, err := tsfile.ParseFile(out)
	if err != nil {
		t.Fatalf("ParseFile(saved) error: %v", err)
	}
	if got := c.Find("MainWindow", "Quit").Translation; got != "退出" {
		t.Fatalf("saved translation = %q", got)
	}

	var ioErr *tsfile.IOError
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAs(filepath.Join(blocker, "x.ts")); !errors.As(err, &ioErr) {
		t.Fatalf("SaveAs(unwritable) error = %v, want *tsfile.IOError", err)
	}
	if s.Path() != out {
		t.Fatalf("failed SaveAs changed path to %q", s.Path())
	}
}

func TestTranslateUntranslated(t *testing.T) {
	tr := &fakeTranslator{}
	s := New(tr, Options{})
	if err := s.Load(writeDoc(t, doc)); err != nil {
		t.Fatal(err)
	}

	n, err := s.TranslateUntranslated(context.Background())
	if err != nil {
		t.Fatalf("TranslateUntranslated() error: %v", err)
	}
	want := []string{"Open", "Quit", "Open"}
	if n != 3 || len(tr.texts) != 1 || !reflect.DeepEqual(tr.texts[0], want) {
		t.Fatalf("submitted n=%d texts=%v, want %v", n, tr.texts, want)
	}

	tr.err = translate.ErrBatchRunning
	if _, err := s.TranslateUntranslated(context.Background()); !errors.Is(err, translate.ErrBatchRunning) {
		t.Fatalf("error = %v, want ErrBatchRunning", err)
	}
}

func TestTranslateUntranslatedNothingPending(t *testing.T) {
	tr := &fakeTranslator{}
	s := New(tr, Options{})
	done := strings.NewReplacer(
		`<translation type="unfinished"></translation>`, `<translation>x</translation>`,
	).Replace(doc)
	if err := s.Load(writeDoc(t, done)); err != nil {
		t.Fatal(err)
	}
	n, err := s.TranslateUntranslated(context.Background())
	if err != nil || n != 0 || len(tr.texts) != 0 {
		t.Fatalf("n=%d err=%v texts=%v, want no batch", n, err, tr.texts)
	}
}

func TestApplyCompletedSaves(t *testing.T) {
	path := writeDoc(t, doc)
	s := New(&fakeTranslator{}, Options{SaveAfterBatch: true})
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	var saved []FileEvent
	s.OnFile(func(e FileEvent) {
		if e.Kind == FileSaved {
			saved = append(saved, e)
		}
	})

	n, err := s.Apply(translate.Event{Kind: translate.EventTranslated, Original: "Quit", Translated: "退出", Batch: true})
	if err != nil || n != 1 {
		t.Fatalf("Apply(translated) = %d, %v", n, err)
	}
	if len(saved) != 0 {
		t.Fatal("per-item result must not save")
	}

	n, err = s.Apply(translate.Event{
		Kind:    translate.EventCompleted,
		Results: map[string]string{"Open": "打开", "Quit": "退出", "Save": "ignored"},
	})
	if err != nil {
		t.Fatalf("Apply(completed) error: %v", err)
	}
	if n != 2 {
		t.Fatalf("Apply(completed) changed %d, want 2", n)
	}
	if len(saved) != 1 || !saved[0].OK {
		t.Fatalf("save events = %+v, want one successful save", saved)
	}

	c, err := tsfile.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Find("Dialog", "Open"); got.Translation != "打开" || got.State != tsfile.Finished {
		t.Fatalf("Dialog/Open = %+v", got)
	}
	if got := c.Find("MainWindow", "Save").Translation; got != "保存" {
		t.Fatalf("finished entry overwritten: %q", got)
	}
	if got := c.Untranslated(); len(got) != 0 {
		t.Fatalf("untranslated after apply = %v", got)
	}
}

func TestApplyWithoutSaveAfterBatch(t *testing.T) {
	path := writeDoc(t, doc)
	s := New(&fakeTranslator{}, Options{})
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(translate.Event{Kind: translate.EventCompleted, Results: map[string]string{"Open": "打开"}}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != doc {
		t.Fatal("file rewritten without SaveAfterBatch")
	}
	if !s.Dirty() {
		t.Fatal("Dirty() = false with unsaved results")
	}

	if n, err := s.Apply(translate.Event{Kind: translate.EventProgress, Current: 1, Total: 2}); n != 0 || err != nil {
		t.Fatalf("Apply(progress) = %d, %v", n, err)
	}
}
