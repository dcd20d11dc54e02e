// Package speech turns speech markup into audio through a remote provider,
// falling back across engine tiers.
//
// The preferred engine fixes both the fallback order and the voice: a voice
// is picked once for the whole order and the same markup is sent to every
// tier that is tried.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/settings"
)

// Default voices used when the voice table has nothing suitable.
const (
	DefaultMaleVoice   = "Matthew"
	DefaultFemaleVoice = "Joanna"
)

// SpeakRequest is one call to the provider at a single engine tier.
type SpeakRequest struct {
	Markup       string
	VoiceID      string
	LanguageCode string
	Engine       message.Engine
	OutputFormat string
	Region       string
}

// Client performs a single synthesis call.
type Client interface {
	Speak(ctx context.Context, req SpeakRequest) ([]byte, error)
}

// Result holds the produced audio and what produced it.
type Result struct {
	Audio   []byte
	VoiceID string
	Engine  message.Engine
}

// EngineOrder returns the tiers to try, best first.
func EngineOrder(preferred message.Engine) []message.Engine {
	switch preferred {
	case message.EngineGenerative:
		return []message.Engine{message.EngineGenerative, message.EngineNeural, message.EngineStandard}
	case message.EngineNeural:
		return []message.Engine{message.EngineNeural, message.EngineStandard}
	default:
		return []message.Engine{message.EngineStandard}
	}
}

func defaultVoice(gender message.Gender) string {
	if gender == message.GenderMale {
		return DefaultMaleVoice
	}
	return DefaultFemaleVoice
}

// SelectVoice returns the first voice for gender along the preferred engine
// order, then the first voice of the opposite gender, then a default.
func SelectVoice(locale string, gender message.Gender, preferred message.Engine, voices settings.VoiceTable) string {
	gender = gender.Normalize()

	row, ok := voices[locale]
	if !ok {
		return defaultVoice(gender)
	}

	order := EngineOrder(preferred)
	for _, g := range []message.Gender{gender, gender.Opposite()} {
		for _, engine := range order {
			if v := row.ForEngine(engine).For(g); v != "" {
				return v
			}
		}
	}
	return defaultVoice(gender)
}

// Synthesizer walks the engine order until one tier succeeds.
type Synthesizer struct {
	client Client
}

// NewSynthesizer creates a Synthesizer backed by client.
func NewSynthesizer(client Client) *Synthesizer {
	return &Synthesizer{client: client}
}

// Synthesize produces audio for markup. Each tier gets its own deadline of
// polly.Timeout(). The last tier's error is returned when every tier fails.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	markup, locale string,
	gender message.Gender,
	preferred message.Engine,
	polly settings.Polly,
	voices settings.VoiceTable,
) (*Result, error) {
	order := EngineOrder(preferred)
	voiceID := SelectVoice(locale, gender, preferred, voices)
	log := slog.With("voice", voiceID, "locale", locale)

	var lastErr error
	for i, engine := range order {
		audio, err := s.speak(ctx, SpeakRequest{
			Markup:       markup,
			VoiceID:      voiceID,
			LanguageCode: locale,
			Engine:       engine,
			OutputFormat: polly.OutputFormat,
			Region:       polly.Region,
		}, polly)
		if err == nil {
			log.Debug("speech synthesized", "engine", engine, "bytes", len(audio))
			return &Result{Audio: audio, VoiceID: voiceID, Engine: engine}, nil
		}

		lastErr = err
		if i < len(order)-1 {
			log.Warn("speech engine failed, trying next", "engine", engine, "error", err)
		}
	}

	return nil, fmt.Errorf("synthesizing with engine %s: %w", order[len(order)-1], lastErr)
}

func (s *Synthesizer) speak(ctx context.Context, req SpeakRequest, polly settings.Polly) ([]byte, error) {
	if timeout := polly.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	audio, err := s.client.Speak(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("provider returned empty audio")
	}
	return audio, nil
}
