// Package translate is the translation client facade: provider selection
// and configuration persisted through the settings package, single-text
// translation, and batch translation through the Batch orchestrator.
//
// Results and failures of asynchronous operations are delivered as Events
// on the channel returned by Client.Events, in emission order.
package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minios-linux/tskit/provider"
	"github.com/minios-linux/tskit/settings"
)

// Options configures a Client.
type Options struct {
	// Registry lists the available providers. Defaults to
	// provider.DefaultRegistry().
	Registry *provider.Registry
	// HTTPClient sends provider requests. Defaults to a client built from
	// Proxy and Timeout.
	HTTPClient provider.Doer
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout (default provider.DefaultTimeout).
	Timeout time.Duration
	// Logger receives structured logs. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Client is the translation facade used by the CLI, the watcher and the
// HTTP API.
type Client struct {
	registry *provider.Registry
	http     provider.Doer
	log      zerolog.Logger
	events   *eventQueue
	batch    *Batch

	// Process-only settings layered over the settings store.
	mu            sync.RWMutex
	providerOver  string
	credentials   map[string]string
	languageOvers map[string]languagePair
}

type languagePair struct {
	source, target string
}

// New returns a client. Close it to stop event delivery.
func New(opts Options) (*Client, error) {
	registry := opts.Registry
	if registry == nil {
		registry = provider.DefaultRegistry()
	}
	doer := opts.HTTPClient
	if doer == nil {
		hc, err := provider.NewHTTPClient(opts.Proxy, opts.Timeout)
		if err != nil {
			return nil, err
		}
		doer = hc
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "translate").Logger()
	}

	c := &Client{
		registry:      registry,
		http:          doer,
		log:           log,
		events:        newEventQueue(),
		credentials:   make(map[string]string),
		languageOvers: make(map[string]languagePair),
	}
	c.batch = NewBatch(doer, c.events.push, log)
	return c, nil
}

// Events returns the event channel. It is closed by Close.
func (c *Client) Events() <-chan Event {
	return c.events.out
}

// Close cancels any running batch and stops event delivery.
func (c *Client) Close() {
	c.batch.Cancel()
	c.events.close()
}

// ---------------------------------------------------------------------------
// Provider catalogue and configuration
// ---------------------------------------------------------------------------

// SupportedProviders returns the provider IDs in display order.
func (c *Client) SupportedProviders() []string {
	return c.registry.IDs()
}

// ProviderDisplayName returns the display name of a provider.
func (c *Client) ProviderDisplayName(id string) string {
	return c.registry.DisplayName(id)
}

// ActiveProvider returns the selected provider. A stored ID that is not
// registered falls back to the first registered provider.
func (c *Client) ActiveProvider() string {
	c.mu.RLock()
	over := c.providerOver
	c.mu.RUnlock()
	if over != "" {
		return over
	}
	id := provider.NormalizeID(settings.Load().ActiveProvider())
	if c.registry.Has(id) {
		return id
	}
	if ids := c.registry.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return id
}

// SetProvider selects and persists the active provider.
func (c *Client) SetProvider(id string) error {
	id = provider.NormalizeID(id)
	if !c.registry.Has(id) {
		_, err := c.registry.Adapter(id)
		return err
	}
	if err := settings.SetProvider(id); err != nil {
		return fmt.Errorf("saving provider: %w", err)
	}
	c.log.Info().Str("provider", id).Msg("provider selected")
	return nil
}

// SetCredential persists the credential of a provider.
func (c *Client) SetCredential(id, value string) error {
	id = provider.NormalizeID(id)
	if !c.registry.Has(id) {
		_, err := c.registry.Adapter(id)
		return err
	}
	if err := settings.SetCredential(id, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// SetLanguages persists the source and target languages of a provider.
func (c *Client) SetLanguages(id, source, target string) error {
	id = provider.NormalizeID(id)
	if !c.registry.Has(id) {
		_, err := c.registry.Adapter(id)
		return err
	}
	if err := settings.SetLanguages(id, source, target); err != nil {
		return fmt.Errorf("saving languages: %w", err)
	}
	return nil
}

// SetProviderOverride selects a provider for this process only. An empty
// id clears the override.
func (c *Client) SetProviderOverride(id string) error {
	id = provider.NormalizeID(id)
	if id != "" && !c.registry.Has(id) {
		_, err := c.registry.Adapter(id)
		return err
	}
	c.mu.Lock()
	c.providerOver = id
	c.mu.Unlock()
	return nil
}

// SetCredentialOverride sets a credential for this process only, taking
// precedence over the environment and the settings store.
func (c *Client) SetCredentialOverride(id, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials[provider.NormalizeID(id)] = value
}

// SetLanguageOverride sets the language pair of a provider for this process
// only. Empty values keep the stored language.
func (c *Client) SetLanguageOverride(id, source, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.languageOvers[provider.NormalizeID(id)] = languagePair{source: source, target: target}
}

// Config returns the effective configuration of a provider.
func (c *Client) Config(id string) provider.Config {
	id = provider.NormalizeID(id)
	c.mu.RLock()
	credOver := c.credentials[id]
	langs := c.languageOvers[id]
	c.mu.RUnlock()

	stored := settings.Load().ProviderConfig(id)
	credential, _ := settings.ResolveCredential(id, credOver)
	cfg := provider.Config{
		Credential: credential,
		SourceLang: stored.SourceLang,
		TargetLang: stored.TargetLang,
	}
	if langs.source != "" {
		cfg.SourceLang = langs.source
	}
	if langs.target != "" {
		cfg.TargetLang = langs.target
	}
	return cfg
}

// active resolves the active adapter and its configuration, failing with
// provider.ErrConfig when no credential is available.
func (c *Client) active() (provider.Adapter, provider.Config, error) {
	a, err := c.registry.Adapter(c.ActiveProvider())
	if err != nil {
		return nil, provider.Config{}, err
	}
	cfg := c.Config(a.ID())
	if strings.TrimSpace(cfg.Credential) == "" {
		return nil, provider.Config{}, fmt.Errorf("%w: no credential configured for %s", provider.ErrConfig, a.Name())
	}
	return a, cfg, nil
}

// ---------------------------------------------------------------------------
// Translation
// ---------------------------------------------------------------------------

// Translate translates one text through the active provider and waits for
// the result.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", provider.ErrConfig)
	}
	a, cfg, err := c.active()
	if err != nil {
		return "", err
	}
	translated, err := provider.Translate(ctx, c.http, a, text, cfg)
	if err != nil {
		c.log.Error().Err(err).Str("provider", a.ID()).Msg("translation failed")
		return "", err
	}
	return translated, nil
}

// TranslateOne validates the request synchronously, then translates text in
// the background and delivers EventTranslated or EventError.
func (c *Client) TranslateOne(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("%w: text is empty", provider.ErrConfig)
	}
	a, cfg, err := c.active()
	if err != nil {
		return err
	}
	go func() {
		translated, err := provider.Translate(ctx, c.http, a, text, cfg)
		if err != nil {
			c.log.Error().Err(err).Str("provider", a.ID()).Msg("translation failed")
			c.events.push(Event{Kind: EventError, Original: text, Message: err.Error(), Err: err})
			return
		}
		c.events.push(Event{Kind: EventTranslated, Original: text, Translated: translated})
	}()
	return nil
}

// TranslateBatch starts a batch through the active provider. See Batch.
func (c *Client) TranslateBatch(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts to translate", provider.ErrConfig)
	}
	a, cfg, err := c.active()
	if err != nil {
		return err
	}
	return c.batch.Start(ctx, a, cfg, texts)
}

// CancelBatch cancels the running batch, if any.
func (c *Client) CancelBatch() bool {
	return c.batch.Cancel()
}

// IsBatchRunning reports whether a batch is active.
func (c *Client) IsBatchRunning() bool {
	return c.batch.IsRunning()
}

// BatchStatus returns a snapshot of the batch state.
func (c *Client) BatchStatus() Status {
	return c.batch.Status()
}
