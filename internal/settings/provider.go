package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long a fetched document is served before re-reading it.
const DefaultTTL = 5 * time.Minute

// ErrNotFound is returned by a Source when a document does not exist.
var ErrNotFound = errors.New("settings document not found")

// Source reads raw JSON documents by name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// KVSource stores documents in a JetStream key-value bucket, one key per
// document name.
type KVSource struct {
	kv jetstream.KeyValue
}

// NewKVSource creates the bucket, or binds to it if it already exists.
func NewKVSource(ctx context.Context, js jetstream.JetStream, bucket string) (*KVSource, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "moodshift runtime settings",
		History:     5,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("creating settings bucket %q: %w", bucket, err)
		}
		kv, err = js.KeyValue(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("binding settings bucket %q: %w", bucket, err)
		}
	}
	return &KVSource{kv: kv}, nil
}

// Fetch implements Source.
func (s *KVSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

// Put writes a document. Used by the seed command.
func (s *KVSource) Put(ctx context.Context, name string, doc []byte) error {
	if !json.Valid(doc) {
		return fmt.Errorf("document %q is not valid JSON", name)
	}
	_, err := s.kv.Put(ctx, name, doc)
	return err
}

// Watch calls onChange whenever a document is written or deleted, until ctx
// is done. It returns once the watcher is registered.
func (s *KVSource) Watch(ctx context.Context, onChange func(name string)) error {
	w, err := s.kv.WatchAll(ctx, jetstream.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("watching settings bucket: %w", err)
	}

	go func() {
		defer func() { _ = w.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Updates():
				if !ok {
					return
				}
				if e != nil {
					onChange(e.Key())
				}
			}
		}
	}()
	return nil
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// Provider caches each document class for a fixed TTL. A nil source serves
// defaults only. Safe for concurrent use; two callers racing on an expired
// entry may both fetch it.
type Provider struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a Provider. A non-positive ttl selects DefaultTTL.
func NewProvider(source Source, ttl time.Duration, opts ...Option) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	p := &Provider{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Invalidate drops every cached document, so the next read fetches fresh
// ones. Wired to KVSource.Watch by the serve command.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	clear(p.entries)
	p.mu.Unlock()
}

func (p *Provider) cached(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[name]
	if !ok || p.now().Sub(e.fetchedAt) >= p.ttl {
		return nil, false
	}
	return e.value, true
}

func (p *Provider) store(name string, value any) {
	p.mu.Lock()
	p.entries[name] = entry{value: value, fetchedAt: p.now()}
	p.mu.Unlock()
}

// load returns the cached value of name, or fetches and decodes it. Any fetch
// or decode failure yields the default. The result is cached either way.
func load[T any](ctx context.Context, p *Provider, name string, defaults func() T) T {
	if v, ok := p.cached(name); ok {
		return v.(T)
	}

	value := fetch(ctx, p.source, name, defaults)
	p.store(name, value)
	return value
}

func fetch[T any](ctx context.Context, source Source, name string, defaults func() T) T {
	if source == nil {
		return defaults()
	}

	raw, err := source.Fetch(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		slog.Warn("settings document not found, using defaults", "doc", name)
		return defaults()
	case err != nil:
		slog.Error("fetching settings document", "doc", name, "error", err)
		return defaults()
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		slog.Error("decoding settings document, using defaults", "doc", name, "error", err)
		return defaults()
	}
	slog.Debug("settings document loaded", "doc", name)
	return value
}

// LLM returns the model parameters.
func (p *Provider) LLM(ctx context.Context) LLM {
	return load(ctx, p, DocLLM, DefaultLLM)
}

// Prompts returns the prompt templates.
func (p *Provider) Prompts(ctx context.Context) Prompts {
	return load(ctx, p, DocPrompts, DefaultPrompts)
}

// Polly returns the speech provider defaults. A document without feature
// engines resolves every feature to its main engine, see Polly.FeatureEngine.
func (p *Provider) Polly(ctx context.Context) Polly {
	return load(ctx, p, DocPolly, DefaultPolly)
}

// Voices returns the locale voice table.
func (p *Provider) Voices(ctx context.Context) VoiceTable {
	return load(ctx, p, DocVoices, DefaultVoices)
}

// Prosody returns the per-style prosody table.
func (p *Provider) Prosody(ctx context.Context) ProsodyTable {
	return load(ctx, p, DocProsody, DefaultProsody)
}

// Fallbacks returns the canned reply bank.
func (p *Provider) Fallbacks(ctx context.Context) FallbackBank {
	return load(ctx, p, DocFallbacks, DefaultFallbacks)
}

// LoadAll reads every class concurrently.
func (p *Provider) LoadAll(ctx context.Context) Snapshot {
	var (
		snap Snapshot
		g    errgroup.Group
	)
	g.Go(func() error { snap.LLM = p.LLM(ctx); return nil })
	g.Go(func() error { snap.Prompts = p.Prompts(ctx); return nil })
	g.Go(func() error { snap.Polly = p.Polly(ctx); return nil })
	g.Go(func() error { snap.Voices = p.Voices(ctx); return nil })
	g.Go(func() error { snap.Prosody = p.Prosody(ctx); return nil })
	g.Go(func() error { snap.Fallbacks = p.Fallbacks(ctx); return nil })
	_ = g.Wait()
	return snap
}

// DefaultDocument returns the JSON encoding of a document's default value.
func DefaultDocument(name string) ([]byte, error) {
	var v any
	switch name {
	case DocLLM:
		v = DefaultLLM()
	case DocPrompts:
		v = DefaultPrompts()
	case DocPolly:
		v = DefaultPolly()
	case DocVoices:
		v = DefaultVoices()
	case DocProsody:
		v = DefaultProsody()
	case DocFallbacks:
		v = DefaultFallbacks()
	default:
		return nil, fmt.Errorf("unknown settings document %q", name)
	}
	return json.MarshalIndent(v, "", "  ")
}
