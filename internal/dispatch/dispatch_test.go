package dispatch_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/moodshift/internal/artifact"
	"github.com/nadzzz/moodshift/internal/conversation"
	"github.com/nadzzz/moodshift/internal/dispatch"
	"github.com/nadzzz/moodshift/internal/fingerprint"
	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/reply"
	"github.com/nadzzz/moodshift/internal/settings"
	"github.com/nadzzz/moodshift/internal/speech"
)

type memCache struct {
	mu       sync.Mutex
	items    map[string]*artifact.Artifact
	storeErr error
	stores   int
}

func newMemCache() *memCache {
	return &memCache{items: map[string]*artifact.Artifact{}}
}

func (c *memCache) Lookup(_ context.Context, fp string) (*artifact.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.items[fp]
	return a, ok
}

func (c *memCache) Store(_ context.Context, fp, text string, audio []byte, voiceID, engine string) (*artifact.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	if c.storeErr != nil {
		return nil, c.storeErr
	}
	a := &artifact.Artifact{
		Fingerprint: fp,
		Reply:       text,
		VoiceID:     voiceID,
		Engine:      engine,
		URL:         "https://example.test/audio/" + fp + ".mp3?token=t",
	}
	c.items[fp] = a
	return a, nil
}

type staticSettings struct{ snap settings.Snapshot }

func (s staticSettings) LoadAll(context.Context) settings.Snapshot { return s.snap }

func defaultSnapshot() settings.Snapshot {
	return settings.NewProvider(nil, settings.DefaultTTL).LoadAll(context.Background())
}

type stubReplier struct {
	text string
	err  error

	generated   int
	intensified int
	history     []conversation.Message
}

func (r *stubReplier) Generate(_ context.Context, history []conversation.Message, _ string,
	_ settings.Prompts, _ string, _ settings.LLM) (reply.Result, error) {
	r.generated++
	r.history = history
	if r.err != nil {
		return reply.Result{}, r.err
	}
	return reply.Result{Style: message.DefaultStyle, Text: r.text}, nil
}

func (r *stubReplier) Intensify(_ context.Context, _ string, _ message.Style, _ string,
	_ settings.Prompts, _ settings.LLM) (reply.Result, error) {
	r.intensified++
	if r.err != nil {
		return reply.Result{}, r.err
	}
	return reply.Result{Style: message.DefaultStyle, Text: r.text}, nil
}

type stubSynth struct {
	err    error
	markup string
	engine message.Engine
	calls  int
}

func (s *stubSynth) Synthesize(_ context.Context, markup, locale string, gender message.Gender,
	preferred message.Engine, _ settings.Polly, voices settings.VoiceTable) (*speech.Result, error) {
	s.calls++
	s.markup = markup
	s.engine = preferred
	if s.err != nil {
		return nil, s.err
	}
	return &speech.Result{
		Audio:   []byte("audio"),
		VoiceID: speech.SelectVoice(locale, gender, preferred, voices),
		Engine:  preferred,
	}, nil
}

type memHistory struct {
	records   map[string][]conversation.Message
	readErr   error
	appendErr error
	appends   int
}

func (h *memHistory) Read(_ context.Context, id string) ([]conversation.Message, error) {
	if h.readErr != nil {
		return nil, h.readErr
	}
	return h.records[id], nil
}

func (h *memHistory) Append(_ context.Context, id, user, assistant string) error {
	h.appends++
	if h.appendErr != nil {
		return h.appendErr
	}
	h.records[id] = conversation.Window(h.records[id], conversation.DefaultMaxMessages,
		conversation.Pair(user, assistant, time.Now())...)
	return nil
}

func (h *memHistory) Clear(_ context.Context, id string) error {
	delete(h.records, id)
	return nil
}

func (h *memHistory) Close() error { return nil }

func normalRequest() *message.Request {
	return &message.Request{
		DeviceID:    "d1",
		Text:        "I feel stuck",
		Language:    "en",
		Locale:      "en-US",
		VoiceGender: message.GenderFemale,
	}
}

func TestHandle_GeneratesAndStores(t *testing.T) {
	t.Parallel()

	cache := newMemCache()
	rep := &stubReplier{text: "Move one small thing."}
	synth := &stubSynth{}
	hist := &memHistory{records: map[string][]conversation.Message{}}
	d := dispatch.New(cache, staticSettings{defaultSnapshot()}, rep, synth, hist)

	resp, err := d.Handle(t.Context(), normalRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Move one small thing.", resp.Response)
	assert.Contains(t, resp.AudioURL, "/audio/"+fingerprint.Derive(normalRequest())+".mp3?token=")
	assert.Equal(t, "Danielle", resp.VoiceID)
	assert.Equal(t, "generative", resp.Engine)
	assert.Equal(t, 1, hist.appends)
	assert.Len(t, hist.records["d1"], 2)
	assert.True(t, strings.HasPrefix(synth.markup, "<speak>"))

	// The second identical request is served from the cache.
	again, err := d.Handle(t.Context(), normalRequest())
	require.NoError(t, err)
	assert.Equal(t, resp, again)
	assert.Equal(t, 1, rep.generated)
	assert.Equal(t, 1, synth.calls)
	assert.Equal(t, 1, cache.stores)
}

func TestHandle_InvalidRequest(t *testing.T) {
	t.Parallel()

	cache := newMemCache()
	rep := &stubReplier{text: "x"}
	synth := &stubSynth{}
	d := dispatch.New(cache, staticSettings{defaultSnapshot()}, rep, synth, nil)

	_, err := d.Handle(t.Context(), &message.Request{DeviceID: "d1"})
	require.ErrorIs(t, err, message.ErrInvalidRequest)

	_, err = d.Handle(t.Context(), &message.Request{DeviceID: "d1", StrongerMode: true})
	require.ErrorIs(t, err, message.ErrInvalidRequest)

	assert.Zero(t, rep.generated+rep.intensified)
	assert.Zero(t, synth.calls)
	assert.Zero(t, cache.stores)
}

func TestHandle_GenerationFailureUsesFallbackPhrase(t *testing.T) {
	t.Parallel()

	snap := defaultSnapshot()
	snap.Fallbacks = settings.FallbackBank{"en": {"Breathe. You've got this."}}
	rep := &stubReplier{err: errors.New("model down")}
	hist := &memHistory{records: map[string][]conversation.Message{}}
	d := dispatch.New(newMemCache(), staticSettings{snap}, rep, &stubSynth{}, hist,
		dispatch.WithRand(rand.New(rand.NewPCG(1, 2))))

	resp, err := d.Handle(t.Context(), normalRequest())
	require.NoError(t, err)
	assert.Equal(t, "Breathe. You've got this.", resp.Response)
	assert.Zero(t, hist.appends, "fallback replies are not remembered")
}

func TestHandle_HistoryReadFailureIsIgnored(t *testing.T) {
	t.Parallel()

	rep := &stubReplier{text: "ok"}
	hist := &memHistory{records: map[string][]conversation.Message{}, readErr: errors.New("store down")}
	d := dispatch.New(newMemCache(), staticSettings{defaultSnapshot()}, rep, &stubSynth{}, hist)

	resp, err := d.Handle(t.Context(), normalRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Response)
	assert.Empty(t, rep.history)
}

func TestHandle_HistoryAppendFailureIsIgnored(t *testing.T) {
	t.Parallel()

	hist := &memHistory{records: map[string][]conversation.Message{}, appendErr: errors.New("store down")}
	d := dispatch.New(newMemCache(), staticSettings{defaultSnapshot()}, &stubReplier{text: "ok"}, &stubSynth{}, hist)

	resp, err := d.Handle(t.Context(), normalRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Response)
	assert.NotEmpty(t, resp.AudioURL)
	assert.Equal(t, 1, hist.appends)
}

func TestHandle_StrongerMode(t *testing.T) {
	t.Parallel()

	req := &message.Request{
		DeviceID:         "d1",
		Language:         "en",
		Locale:           "en-US",
		VoiceGender:      message.GenderMale,
		StrongerMode:     true,
		CrystalVoice:     true,
		OriginalResponse: "Good. You did it!",
	}

	t.Run("model", func(t *testing.T) {
		t.Parallel()
		rep := &stubReplier{text: "YOU DID IT!"}
		synth := &stubSynth{}
		hist := &memHistory{records: map[string][]conversation.Message{}}
		d := dispatch.New(newMemCache(), staticSettings{defaultSnapshot()}, rep, synth, hist)

		resp, err := d.Handle(t.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, "YOU DID IT!", resp.Response)
		assert.Equal(t, 1, rep.intensified)
		assert.Zero(t, rep.generated)
		assert.Zero(t, hist.appends, "stronger mode never touches history")
		assert.Contains(t, synth.markup, `volume="x-loud"`)
	})

	t.Run("manual fallback", func(t *testing.T) {
		t.Parallel()
		rep := &stubReplier{err: errors.New("timeout")}
		d := dispatch.New(newMemCache(), staticSettings{defaultSnapshot()}, rep, &stubSynth{}, nil)

		resp, err := d.Handle(t.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, "GOOD! YOU DID IT!! ", resp.Response)
	})
}

func TestHandle_FeatureEngineFallsBackToDefault(t *testing.T) {
	t.Parallel()

	snap := defaultSnapshot()
	snap.Polly.FeatureEngines = nil
	snap.Polly.Engine = message.EngineStandard
	synth := &stubSynth{}
	d := dispatch.New(newMemCache(), staticSettings{snap}, &stubReplier{text: "hi"}, synth, nil)

	resp, err := d.Handle(t.Context(), normalRequest())
	require.NoError(t, err)
	assert.Equal(t, message.EngineStandard, synth.engine)
	assert.Equal(t, "standard", resp.Engine)
}

func TestHandle_SynthesisFailureCarriesReply(t *testing.T) {
	t.Parallel()

	cache := newMemCache()
	d := dispatch.New(cache, staticSettings{defaultSnapshot()},
		&stubReplier{text: "Still here for you."}, &stubSynth{err: errors.New("all engines failed")}, nil)

	_, err := d.Handle(t.Context(), normalRequest())
	var synthErr *message.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "Still here for you.", synthErr.Reply)
	assert.Zero(t, cache.stores)
}

func TestHandle_StoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("bucket unavailable")
	cache := newMemCache()
	cache.storeErr = storeErr
	d := dispatch.New(cache, staticSettings{defaultSnapshot()}, &stubReplier{text: "hi"}, &stubSynth{}, nil)

	_, err := d.Handle(t.Context(), normalRequest())
	var synthErr *message.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "hi", synthErr.Reply)
	require.ErrorIs(t, err, storeErr)
}
