// Package message defines the core data types flowing through the moodshift pipeline.
package message

import (
	"errors"
	"fmt"
	"strings"
)

// Gender selects the voice gender used for speech synthesis.
type Gender string

const (
	// GenderMale requests a male voice.
	GenderMale Gender = "male"

	// GenderFemale requests a female voice.
	GenderFemale Gender = "female"
)

// Opposite returns the other gender. Unknown values are treated as female.
func (g Gender) Opposite() Gender {
	if g == GenderMale {
		return GenderFemale
	}
	return GenderMale
}

// Normalize maps unknown values to GenderFemale.
func (g Gender) Normalize() Gender {
	if g == GenderMale {
		return GenderMale
	}
	return GenderFemale
}

// Engine is a speech-synthesis engine tier. Tiers differ in quality and in
// the subset of speech markup they accept.
type Engine string

const (
	// EngineGenerative is the top tier. It only honours rate and volume.
	EngineGenerative Engine = "generative"

	// EngineNeural is the mid tier. It only honours volume in decibels.
	EngineNeural Engine = "neural"

	// EngineStandard is the baseline tier with full markup support.
	EngineStandard Engine = "standard"
)

// Style is a tonal preset used to pick prosody settings.
type Style string

const (
	StyleChaosEnergy    Style = "chaosEnergy"
	StyleGentleGrandma  Style = "gentleGrandma"
	StylePermissionSlip Style = "permissionSlip"
	StyleRealityCheck   Style = "realityCheck"
	StyleMicroDare      Style = "microDare"

	// DefaultStyle is the style every reply resolves to unless the model is
	// allowed to choose one.
	DefaultStyle = StyleMicroDare
)

var styleLabels = map[Style]string{
	StyleChaosEnergy:    "CHAOS_ENERGY",
	StyleGentleGrandma:  "GENTLE_GRANDMA",
	StylePermissionSlip: "PERMISSION_SLIP",
	StyleRealityCheck:   "REALITY_CHECK",
	StyleMicroDare:      "MICRO_DARE",
}

// Label returns the upper-snake label used in model prompts.
func (s Style) Label() string {
	if label, ok := styleLabels[s]; ok {
		return label
	}
	return styleLabels[DefaultStyle]
}

// ParseStyle accepts either the style key ("gentleGrandma") or its prompt
// label ("GENTLE_GRANDMA").
func ParseStyle(value string) (Style, bool) {
	value = strings.TrimSpace(value)
	for style, label := range styleLabels {
		if value == string(style) || strings.EqualFold(value, label) {
			return style, true
		}
	}
	return "", false
}

// Request is the inbound payload from a client device.
type Request struct {
	// DeviceID identifies the client; conversation history is keyed by it.
	DeviceID string `json:"deviceId"`

	// Text is the user's input. Optional in stronger mode.
	Text string `json:"text,omitempty"`

	// Language is the ISO-639-1 code of the reply language (e.g. "en", "hi").
	Language string `json:"language"`

	// Locale selects the voice table row (e.g. "en-US", "hi-IN").
	Locale string `json:"locale"`

	// VoiceGender is "male" or "female".
	VoiceGender Gender `json:"voiceGender"`

	// CrystalVoice requests the soft voice treatment.
	CrystalVoice bool `json:"crystalVoice"`

	// StrongerMode asks for OriginalResponse to be amplified instead of
	// generating a fresh reply.
	StrongerMode bool `json:"strongerMode"`

	// OriginalResponse is the prior reply to amplify. Required in stronger mode.
	OriginalResponse string `json:"originalResponse,omitempty"`
}

// Validate checks the request invariant: a device id plus either non-empty
// text or stronger mode with a prior reply.
func (r *Request) Validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("%w: deviceId is required", ErrInvalidRequest)
	}
	if r.StrongerMode {
		if r.OriginalResponse == "" {
			return fmt.Errorf("%w: originalResponse is required in stronger mode", ErrInvalidRequest)
		}
		return nil
	}
	if r.Text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	return nil
}

// Response is returned to the client.
type Response struct {
	Success bool `json:"success"`

	// Response is the reply text. It is also set on synthesis failures so the
	// client still has something to show.
	Response string `json:"response,omitempty"`

	// AudioURL locates the synthesized audio; it embeds a single-use token.
	AudioURL string `json:"audioUrl,omitempty"`

	VoiceID string `json:"voiceId,omitempty"`
	Engine  string `json:"engine,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrInvalidRequest marks requests rejected before any side effect.
var ErrInvalidRequest = errors.New("invalid request")

// SynthesisError reports that audio could not be produced or stored after a
// reply was generated. Reply carries the text so callers can still surface it.
type SynthesisError struct {
	Reply string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("audio synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn sent to a chat-completions model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
