package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minios-linux/tskit/provider"
)

// ErrBatchRunning is returned by Start while another batch is active.
var ErrBatchRunning = errors.New("a batch translation is already running")

// Batch runs one batch translation job at a time.
//
// Sequential providers are driven one text per request: each item waits the
// provider's pacing delay, then issues its request, and the next item is
// dispatched only after the previous response arrived. Native batch
// providers receive all texts in one request and report progress as 0 then
// total.
//
// Every started job ends with exactly one EventCompleted or EventCanceled.
// Results are keyed by source text; a text appearing twice in one batch
// keeps the translation that completed last.
type Batch struct {
	client provider.Doer
	emit   func(Event)
	log    zerolog.Logger

	mu  sync.Mutex
	job *job
}

// job is the in-flight state of one batch.
type job struct {
	adapter provider.Adapter
	cfg     provider.Config
	queue   []string
	results map[string]string
	cursor  int
	total   int
	cancel  context.CancelFunc
}

// Status is a snapshot of the batch state.
type Status struct {
	Running  bool   `json:"running"`
	Provider string `json:"provider,omitempty"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
}

// NewBatch returns an idle orchestrator sending requests through client and
// reporting through emit. emit must not block.
func NewBatch(client provider.Doer, emit func(Event), log zerolog.Logger) *Batch {
	return &Batch{client: client, emit: emit, log: log}
}

// Start begins translating texts through a. Requests are bound to ctx;
// Cancel stops dispatch without interrupting a request already sent.
//
// It fails with provider.ErrConfig when texts is empty or cfg has no
// credential, and with ErrBatchRunning while another job is active.
func (b *Batch) Start(ctx context.Context, a provider.Adapter, cfg provider.Config, texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts to translate", provider.ErrConfig)
	}
	if strings.TrimSpace(cfg.Credential) == "" {
		return fmt.Errorf("%w: no credential configured for %s", provider.ErrConfig, a.ID())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job != nil {
		return ErrBatchRunning
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{
		adapter: a,
		cfg:     cfg,
		queue:   append([]string(nil), texts...),
		results: make(map[string]string, len(texts)),
		total:   len(texts),
		cancel:  cancel,
	}
	b.job = j
	b.log.Info().
		Str("provider", a.ID()).
		Str("mode", a.BatchMode().String()).
		Int("total", j.total).
		Msg("batch started")
	b.emit(Event{Kind: EventProgress, Current: 0, Total: j.total, Batch: true})

	if a.BatchMode() == provider.BatchNative {
		go b.runNative(ctx, j)
	} else {
		go b.runSequential(ctx, jobCtx, j)
	}
	return nil
}

// Cancel discards the active job and emits EventCanceled. It reports
// whether a job was active; calling it while idle is a no-op.
func (b *Batch) Cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return false
	}
	b.abort(b.job)
	return true
}

// abort drops j and emits EventCanceled. Called with b.mu held.
func (b *Batch) abort(j *job) {
	j.cancel()
	b.job = nil
	b.log.Info().
		Str("provider", j.adapter.ID()).
		Int("cursor", j.cursor).
		Int("total", j.total).
		Msg("batch canceled")
	b.emit(Event{Kind: EventCanceled, Current: j.cursor, Total: j.total, Batch: true})
}

// IsRunning reports whether a job is active.
func (b *Batch) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.job != nil
}

// Status returns a snapshot of the active job.
func (b *Batch) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return Status{}
	}
	return Status{
		Running:  true,
		Provider: b.job.adapter.ID(),
		Current:  b.job.cursor,
		Total:    b.job.total,
	}
}

func (b *Batch) runSequential(ctx, jobCtx context.Context, j *job) {
	delay := j.adapter.PacingDelay()
	for {
		b.mu.Lock()
		if b.job != j {
			b.mu.Unlock()
			return
		}
		if j.cursor >= j.total {
			b.finish(j)
			b.mu.Unlock()
			return
		}
		text := j.queue[j.cursor]
		j.cursor++
		b.mu.Unlock()

		if !sleep(jobCtx, delay) {
			b.mu.Lock()
			if b.job == j {
				// The caller's context ended.
				b.abort(j)
			}
			b.mu.Unlock()
			return
		}

		translated, err := provider.Translate(ctx, b.client, j.adapter, text, j.cfg)

		b.mu.Lock()
		if b.job != j {
			// Canceled while the request was in flight.
			b.mu.Unlock()
			return
		}
		if ctx.Err() != nil {
			b.abort(j)
			b.mu.Unlock()
			return
		}
		b.record(j, text, translated, err)
		b.emit(Event{Kind: EventProgress, Current: j.cursor, Total: j.total, Batch: true})
		b.mu.Unlock()
	}
}

func (b *Batch) runNative(ctx context.Context, j *job) {
	results, err := provider.TranslateBatch(ctx, b.client, j.adapter, j.queue, j.cfg)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job != j {
		return
	}
	if ctx.Err() != nil {
		// The caller's context ended during the request.
		b.abort(j)
		return
	}
	if err != nil {
		b.log.Error().Err(err).Str("provider", j.adapter.ID()).Int("total", j.total).Msg("batch request failed")
		b.emit(Event{Kind: EventError, Message: err.Error(), Err: err, Batch: true})
	}
	for src, tr := range results {
		j.results[src] = tr
	}
	j.cursor = j.total
	b.emit(Event{Kind: EventProgress, Current: j.total, Total: j.total, Batch: true})
	b.finish(j)
}

// record stores one item outcome. Called with b.mu held.
func (b *Batch) record(j *job, text, translated string, err error) {
	if err != nil {
		b.log.Error().
			Err(err).
			Str("provider", j.adapter.ID()).
			Int("cursor", j.cursor).
			Int("total", j.total).
			Msg("batch item failed")
		b.emit(Event{Kind: EventError, Original: text, Message: err.Error(), Err: err, Batch: true})
		return
	}
	j.results[text] = translated
	b.log.Debug().
		Str("provider", j.adapter.ID()).
		Int("cursor", j.cursor).
		Int("total", j.total).
		Msg("batch item translated")
	b.emit(Event{Kind: EventTranslated, Original: text, Translated: translated, Batch: true})
}

// finish emits EventCompleted and returns to idle. Called with b.mu held.
func (b *Batch) finish(j *job) {
	j.cancel()
	b.job = nil
	b.log.Info().
		Str("provider", j.adapter.ID()).
		Int("translated", len(j.results)).
		Int("total", j.total).
		Msg("batch completed")
	b.emit(Event{Kind: EventCompleted, Results: j.results, Current: j.total, Total: j.total, Batch: true})
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
