package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minios-linux/tskit/provider"
)

// echoAdapter sends each text as the request body and takes the response
// body as the translation.
type echoAdapter struct {
	url    string
	mode   provider.BatchMode
	pacing time.Duration
}

func (a *echoAdapter) ID() string                    { return "echo" }
func (a *echoAdapter) Name() string                  { return "Echo" }
func (a *echoAdapter) BatchMode() provider.BatchMode { return a.mode }
func (a *echoAdapter) PacingDelay() time.Duration    { return a.pacing }

func (a *echoAdapter) BuildRequest(text string, _ provider.Config) (*provider.Request, error) {
	return &provider.Request{Method: http.MethodPost, URL: a.url, Body: []byte(text)}, nil
}

func (a *echoAdapter) ParseResponse(status int, body []byte) (string, error) {
	if status != http.StatusOK {
		return "", &provider.ProviderError{Provider: a.ID(), Status: status, Reason: "request failed", Message: string(body)}
	}
	if len(body) == 0 {
		return "", provider.ErrEmptyResult
	}
	return string(body), nil
}

func (a *echoAdapter) BuildBatchRequest(texts []string, cfg provider.Config) (*provider.Request, error) {
	if a.mode != provider.BatchNative {
		return nil, provider.ErrBatchUnsupported
	}
	return &provider.Request{Method: http.MethodPost, URL: a.url, Body: []byte(strings.Join(texts, "\n"))}, nil
}

func (a *echoAdapter) ParseBatchResponse(status int, body []byte, texts []string) (map[string]string, error) {
	if status != http.StatusOK {
		return nil, &provider.ProviderError{Provider: a.ID(), Status: status, Reason: "request failed"}
	}
	lines := strings.Split(string(body), "\n")
	if len(lines) != len(texts) {
		return nil, fmt.Errorf("got %d translations for %d texts", len(lines), len(texts))
	}
	out := make(map[string]string, len(texts))
	for i, src := range texts {
		out[src] = lines[i]
	}
	return out, nil
}

// newEchoServer answers every request with its body. When gate is not nil,
// each request first reports on started and then waits for gate to close.
func newEchoServer(t *testing.T, started chan<- string, gate <-chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if started != nil {
			started <- string(body)
		}
		if gate != nil {
			<-gate
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var testCfg = provider.Config{Credential: "key", SourceLang: "en", TargetLang: "zh-CN"}

// collect reads events until one of kind last arrives.
func collect(t *testing.T, q *eventQueue, last EventKind) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-q.out:
			if !ok {
				t.Fatalf("event channel closed; got %v", kinds(got))
			}
			got = append(got, e)
			if e.Kind == last {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s; got %v", last, kinds(got))
		}
	}
}

func kinds(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Kind.String()
	}
	return out
}

func progress(events []Event) [][2]int {
	var out [][2]int
	for _, e := range events {
		if e.Kind == EventProgress {
			out = append(out, [2]int{e.Current, e.Total})
		}
	}
	return out
}

func newTestBatch(t *testing.T) (*Batch, *eventQueue) {
	t.Helper()
	q := newEventQueue()
	t.Cleanup(q.close)
	return NewBatch(http.DefaultClient, q.push, zerolog.Nop()), q
}

func TestBatchSequentialCompletes(t *testing.T) {
	srv := newEchoServer(t, nil, nil)
	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL}

	if err := b.Start(context.Background(), a, testCfg, []string{"A", "B", "C"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events := collect(t, q, EventCompleted)

	wantProgress := [][2]int{{0, 3}, {1, 3}, {2, 3}, {3, 3}}
	if got := progress(events); !reflect.DeepEqual(got, wantProgress) {
		t.Fatalf("progress = %v, want %v", got, wantProgress)
	}
	want := map[string]string{"A": "A", "B": "B", "C": "C"}
	if got := events[len(events)-1].Results; !reflect.DeepEqual(got, want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	var translated []string
	for _, e := range events {
		if e.Kind == EventTranslated {
			translated = append(translated, e.Original)
		}
	}
	if !reflect.DeepEqual(translated, []string{"A", "B", "C"}) {
		t.Fatalf("translated order = %v", translated)
	}
	if b.IsRunning() {
		t.Fatal("IsRunning() = true after completion")
	}
}

func TestBatchSequentialOneRequestInFlight(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL, pacing: 20 * time.Millisecond}

	begin := time.Now()
	if err := b.Start(context.Background(), a, testCfg, []string{"1", "2", "3", "4"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	collect(t, q, EventCompleted)

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("max requests in flight = %d, want 1", got)
	}
	if elapsed := time.Since(begin); elapsed < 4*a.pacing {
		t.Fatalf("batch took %v, want at least %v of pacing", elapsed, 4*a.pacing)
	}
}

func TestBatchDuplicateSources(t *testing.T) {
	srv := newEchoServer(t, nil, nil)
	b, q := newTestBatch(t)

	if err := b.Start(context.Background(), &echoAdapter{url: srv.URL}, testCfg, []string{"X", "X"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events := collect(t, q, EventCompleted)

	if got := events[len(events)-1].Results; len(got) != 1 || got["X"] != "X" {
		t.Fatalf("results = %v, want one entry for X", got)
	}
	if got := progress(events); got[len(got)-1] != [2]int{2, 2} {
		t.Fatalf("final progress = %v, want [2 2]", got[len(got)-1])
	}
}

func TestBatchItemFailureContinues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	b, q := newTestBatch(t)
	if err := b.Start(context.Background(), &echoAdapter{url: srv.URL}, testCfg, []string{"ok", "bad", "fine"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events := collect(t, q, EventCompleted)

	var failed []Event
	for _, e := range events {
		if e.Kind == EventError {
			failed = append(failed, e)
		}
	}
	if len(failed) != 1 || failed[0].Original != "bad" {
		t.Fatalf("error events = %+v, want one for %q", failed, "bad")
	}
	var pe *provider.ProviderError
	if !errors.As(failed[0].Err, &pe) || pe.Status != http.StatusInternalServerError {
		t.Fatalf("error = %v, want ProviderError with status 500", failed[0].Err)
	}
	want := map[string]string{"ok": "ok", "fine": "fine"}
	if got := events[len(events)-1].Results; !reflect.DeepEqual(got, want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
}

func TestBatchCancelDiscardsInFlightResult(t *testing.T) {
	started := make(chan string, 4)
	gate := make(chan struct{})
	srv := newEchoServer(t, started, gate)
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)

	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL}
	if err := b.Start(context.Background(), a, testCfg, []string{"A", "B", "C"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case body := <-started:
		if body != "A" {
			t.Fatalf("first request = %q, want A", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first request never arrived")
	}

	if !b.Cancel() {
		t.Fatal("Cancel() = false while running")
	}
	if b.IsRunning() {
		t.Fatal("IsRunning() = true after Cancel")
	}
	events := collect(t, q, EventCanceled)
	if got := events[len(events)-1]; got.Current != 1 || got.Total != 3 {
		t.Fatalf("canceled at %d/%d, want 1/3", got.Current, got.Total)
	}

	release()
	select {
	case e := <-q.out:
		t.Fatalf("unexpected event after cancel: %s %+v", e.Kind, e)
	case <-time.After(200 * time.Millisecond):
	}
	select {
	case body := <-started:
		t.Fatalf("request %q dispatched after cancel", body)
	default:
	}

	if b.Cancel() {
		t.Fatal("second Cancel() = true, want no-op")
	}

	// A fresh batch starts from zero.
	if err := b.Start(context.Background(), a, testCfg, []string{"D"}); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	<-started
	events = collect(t, q, EventCompleted)
	if got := progress(events); !reflect.DeepEqual(got, [][2]int{{0, 1}, {1, 1}}) {
		t.Fatalf("restart progress = %v", got)
	}
	if got := events[len(events)-1].Results; !reflect.DeepEqual(got, map[string]string{"D": "D"}) {
		t.Fatalf("restart results = %v", got)
	}
}

func TestBatchStartWhileRunning(t *testing.T) {
	started := make(chan string, 4)
	gate := make(chan struct{})
	srv := newEchoServer(t, started, gate)
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)

	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL}
	if err := b.Start(context.Background(), a, testCfg, []string{"A"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	<-started

	if err := b.Start(context.Background(), a, testCfg, []string{"B"}); !errors.Is(err, ErrBatchRunning) {
		t.Fatalf("second Start() error = %v, want ErrBatchRunning", err)
	}
	st := b.Status()
	if !st.Running || st.Provider != "echo" || st.Current != 1 || st.Total != 1 {
		t.Fatalf("Status() = %+v", st)
	}

	release()
	collect(t, q, EventCompleted)
	if st := b.Status(); st.Running {
		t.Fatalf("Status() after completion = %+v", st)
	}
}

func TestBatchStartValidation(t *testing.T) {
	b, _ := newTestBatch(t)
	a := &echoAdapter{url: "http://127.0.0.1:1"}

	tests := []struct {
		name  string
		cfg   provider.Config
		texts []string
	}{
		{"empty texts", testCfg, nil},
		{"no credential", provider.Config{TargetLang: "zh-CN"}, []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Start(context.Background(), a, tt.cfg, tt.texts)
			if !errors.Is(err, provider.ErrConfig) {
				t.Fatalf("Start() error = %v, want ErrConfig", err)
			}
			if b.IsRunning() {
				t.Fatal("IsRunning() = true after rejected Start")
			}
		})
	}
}

func TestBatchParentContextCanceled(t *testing.T) {
	b, q := newTestBatch(t)
	a := &echoAdapter{url: "http://127.0.0.1:1", pacing: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Start(ctx, a, testCfg, []string{"A", "B"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	cancel()
	collect(t, q, EventCanceled)
	if b.IsRunning() {
		t.Fatal("IsRunning() = true after parent context canceled")
	}
}

func TestBatchNative(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write([]byte(strings.ToUpper(string(body))))
	}))
	defer srv.Close()

	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL, mode: provider.BatchNative}
	if err := b.Start(context.Background(), a, testCfg, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events := collect(t, q, EventCompleted)

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	if got := progress(events); !reflect.DeepEqual(got, [][2]int{{0, 3}, {3, 3}}) {
		t.Fatalf("progress = %v", got)
	}
	want := map[string]string{"a": "A", "b": "B", "c": "C"}
	if got := events[len(events)-1].Results; !reflect.DeepEqual(got, want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
}

func TestBatchNativeFailureStillCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL, mode: provider.BatchNative}
	if err := b.Start(context.Background(), a, testCfg, []string{"a", "b"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events := collect(t, q, EventCompleted)

	if got := kinds(events); !reflect.DeepEqual(got, []string{"progress", "error", "progress", "completed"}) {
		t.Fatalf("events = %v", got)
	}
	if got := events[len(events)-1].Results; len(got) != 0 {
		t.Fatalf("results = %v, want empty", got)
	}
}

func TestBatchNativeParentContextCanceled(t *testing.T) {
	started := make(chan string, 1)
	gate := make(chan struct{})
	srv := newEchoServer(t, started, gate)
	t.Cleanup(func() { close(gate) })

	b, q := newTestBatch(t)
	a := &echoAdapter{url: srv.URL, mode: provider.BatchNative}
	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Start(ctx, a, testCfg, []string{"a", "b"}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	<-started
	cancel()
	events := collect(t, q, EventCanceled)

	if got := kinds(events); !reflect.DeepEqual(got, []string{"progress", "canceled"}) {
		t.Fatalf("events = %v, want [progress canceled]", got)
	}
	if b.IsRunning() {
		t.Fatal("IsRunning() = true after parent context canceled")
	}
}

func TestEventQueueOrderAndClose(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 100; i++ {
		q.push(Event{Kind: EventProgress, Current: i})
	}
	for i := 0; i < 100; i++ {
		e := <-q.out
		if e.Current != i {
			t.Fatalf("event %d has Current=%d", i, e.Current)
		}
	}

	q.close()
	q.close()
	q.push(Event{Kind: EventError})
	select {
	case _, ok := <-q.out:
		if ok {
			t.Fatal("received event after close")
		}
	case <-time.After(time.Second):
		t.Fatal("output channel not closed")
	}
}
