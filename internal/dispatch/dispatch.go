// Package dispatch implements the response pipeline.
//
// The dispatcher receives requests from transports, answers from the artifact
// cache when it can, and otherwise generates a reply, renders it to speech
// markup, synthesizes audio and stores the result before answering. Model
// failures degrade to canned or locally amplified replies; audio failures are
// reported with the reply text attached.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nadzzz/moodshift/internal/artifact"
	"github.com/nadzzz/moodshift/internal/conversation"
	"github.com/nadzzz/moodshift/internal/fingerprint"
	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/reply"
	"github.com/nadzzz/moodshift/internal/settings"
	"github.com/nadzzz/moodshift/internal/speech"
	"github.com/nadzzz/moodshift/internal/ssml"
)

// Cache is the artifact store consulted before and written after synthesis.
type Cache interface {
	Lookup(ctx context.Context, fingerprint string) (*artifact.Artifact, bool)
	Store(ctx context.Context, fingerprint, reply string, audio []byte, voiceID, engine string) (*artifact.Artifact, error)
}

// Settings loads every runtime tunable for one request.
type Settings interface {
	LoadAll(ctx context.Context) settings.Snapshot
}

// Replier produces reply text.
type Replier interface {
	Generate(ctx context.Context, history []conversation.Message, text string,
		prompts settings.Prompts, languageName string, llm settings.LLM) (reply.Result, error)
	Intensify(ctx context.Context, prior string, style message.Style, languageName string,
		prompts settings.Prompts, llm settings.LLM) (reply.Result, error)
}

// Synthesizer turns markup into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, markup, locale string, gender message.Gender,
		preferred message.Engine, polly settings.Polly, voices settings.VoiceTable) (*speech.Result, error)
}

// Dispatcher is the pipeline engine.
type Dispatcher struct {
	cache       Cache
	settings    Settings
	replier     Replier
	synthesizer Synthesizer
	history     conversation.Store
	rnd         *rand.Rand
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRand fixes the source used to pick fallback phrases. The Rand must not
// be shared with other goroutines unless the caller serializes requests.
func WithRand(rnd *rand.Rand) Option {
	return func(d *Dispatcher) { d.rnd = rnd }
}

// New creates a Dispatcher. history may be nil, in which case replies are
// generated without conversation context.
func New(cache Cache, cfg Settings, replier Replier, synthesizer Synthesizer, history conversation.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cache:       cache,
		settings:    cfg,
		replier:     replier,
		synthesizer: synthesizer,
		history:     history,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle runs one request through the pipeline.
//
// Validation failures wrap message.ErrInvalidRequest and have no side
// effects. Synthesis and artifact-write failures are returned as
// *message.SynthesisError carrying the reply text.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	fp := fingerprint.Derive(req)
	logger := slog.With("device_id", req.DeviceID, "fingerprint", fp, "stronger", req.StrongerMode)

	if hit, ok := d.cache.Lookup(ctx, fp); ok {
		logger.Info("cache hit", "engine", hit.Engine, "duration", time.Since(start))
		return &message.Response{
			Success:  true,
			Response: hit.Reply,
			AudioURL: hit.URL,
			VoiceID:  hit.VoiceID,
			Engine:   hit.Engine,
		}, nil
	}

	snap := d.settings.LoadAll(ctx)
	languageName := reply.LanguageName(req.Language)
	gender := req.VoiceGender.Normalize()

	var res reply.Result
	if req.StrongerMode {
		res = d.intensify(ctx, logger, req, languageName, snap)
	} else {
		res = d.generate(ctx, logger, req, languageName, snap)
	}

	engine := snap.Polly.FeatureEngine(req.StrongerMode, req.CrystalVoice)
	markup := ssml.Build(res.Text, engine, res.Style, snap.Prosody, req.StrongerMode, req.CrystalVoice)
	logger.Debug("markup built", "engine", engine, "style", res.Style, "length", len(markup))

	audio, err := d.synthesizer.Synthesize(ctx, markup, req.Locale, gender, engine, snap.Polly, snap.Voices)
	if err != nil {
		logger.Error("speech synthesis failed", "error", err)
		return nil, &message.SynthesisError{Reply: res.Text, Err: err}
	}

	stored, err := d.cache.Store(ctx, fp, res.Text, audio.Audio, audio.VoiceID, string(audio.Engine))
	if err != nil {
		logger.Error("storing artifact failed", "error", err)
		return nil, &message.SynthesisError{Reply: res.Text, Err: fmt.Errorf("storing artifact: %w", err)}
	}

	logger.Info("response produced",
		"voice", audio.VoiceID,
		"engine", audio.Engine,
		"audio_bytes", len(audio.Audio),
		"duration", time.Since(start),
	)

	return &message.Response{
		Success:  true,
		Response: res.Text,
		AudioURL: stored.URL,
		VoiceID:  audio.VoiceID,
		Engine:   string(audio.Engine),
	}, nil
}

func (d *Dispatcher) intensify(ctx context.Context, logger *slog.Logger, req *message.Request, languageName string, snap settings.Snapshot) reply.Result {
	res, err := d.replier.Intensify(ctx, req.OriginalResponse, message.DefaultStyle, languageName, snap.Prompts, snap.LLM)
	if err == nil {
		return res
	}
	logger.Warn("intensify failed, amplifying locally", "error", err)
	return reply.Result{Style: message.DefaultStyle, Text: reply.AmplifyManually(req.OriginalResponse)}
}

func (d *Dispatcher) generate(ctx context.Context, logger *slog.Logger, req *message.Request, languageName string, snap settings.Snapshot) reply.Result {
	var history []conversation.Message
	if d.history != nil {
		var err error
		history, err = d.history.Read(ctx, req.DeviceID)
		if err != nil {
			logger.Warn("reading conversation failed", "error", err)
			history = nil
		}
	}

	res, err := d.replier.Generate(ctx, history, req.Text, snap.Prompts, languageName, snap.LLM)
	if err != nil {
		logger.Warn("reply generation failed, using fallback phrase", "error", err)
		return reply.Result{
			Style: message.DefaultStyle,
			Text:  reply.FallbackPhrase(req.Language, snap.Fallbacks, d.rnd),
		}
	}

	if d.history != nil {
		if err := d.history.Append(ctx, req.DeviceID, req.Text, res.Text); err != nil {
			logger.Warn("appending conversation failed", "error", err)
		}
	}
	return res
}
