// Package settings serves the runtime tunables of the pipeline: model
// parameters, prompts, speech provider defaults, voice and prosody tables and
// the fallback phrase bank.
//
// Each class is stored as one JSON document in an external store and cached
// in-process for a short freshness window. When a document is missing or
// cannot be fetched, a hardcoded default is served (and cached) instead.
package settings

import (
	"time"

	"github.com/nadzzz/moodshift/internal/message"
)

// Document names in the external store.
const (
	DocLLM       = "llm"
	DocPrompts   = "prompts"
	DocPolly     = "polly"
	DocVoices    = "voices"
	DocProsody   = "prosody"
	DocFallbacks = "fallbacks"
)

// Documents lists every document name, in seeding order.
var Documents = []string{DocLLM, DocPrompts, DocPolly, DocVoices, DocProsody, DocFallbacks}

// LLM holds the language-model runtime parameters.
type LLM struct {
	Model            string  `json:"model"`
	APIURL           string  `json:"apiUrl"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	TimeoutSeconds   int     `json:"timeoutSeconds"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	PresencePenalty  float64 `json:"presencePenalty"`
	MaxResponseWords int     `json:"maxResponseWords"`

	// StyleFromModel lets a "style" field in the model output pick the
	// prosody preset. Off by default: every reply uses message.DefaultStyle.
	StyleFromModel bool `json:"styleFromModel,omitempty"`
}

// Timeout returns the per-call deadline for model requests.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Prompts holds the prompt templates.
type Prompts struct {
	// SystemPrompt may contain "$languageName" placeholders.
	SystemPrompt string `json:"systemPrompt"`

	// StrongerPrompt may contain "{style}" and "$languageName" placeholders.
	StrongerPrompt string `json:"strongerPrompt"`

	EmergencyResponse string `json:"emergencyResponse"`
}

// FeatureEngines picks a preferred engine per feature.
type FeatureEngines struct {
	Main     message.Engine `json:"main,omitempty"`
	Stronger message.Engine `json:"stronger,omitempty"`
	Crystal  message.Engine `json:"crystal,omitempty"`
}

// Polly holds the speech provider defaults.
type Polly struct {
	Region         string          `json:"region"`
	Engine         message.Engine  `json:"engine"`
	FeatureEngines *FeatureEngines `json:"featureEngines,omitempty"`
	OutputFormat   string          `json:"outputFormat"`
	TimeoutSeconds int             `json:"timeoutSeconds"`
}

// Timeout returns the per-call deadline for synthesis requests.
func (p Polly) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// FeatureEngine resolves the preferred engine for a request. Stronger mode
// wins over crystal voice, which wins over the main feature. Unset entries
// fall back to Engine.
func (p Polly) FeatureEngine(stronger, crystal bool) message.Engine {
	var chosen message.Engine
	if p.FeatureEngines != nil {
		switch {
		case stronger:
			chosen = p.FeatureEngines.Stronger
		case crystal:
			chosen = p.FeatureEngines.Crystal
		default:
			chosen = p.FeatureEngines.Main
		}
	}
	if chosen == "" {
		return p.Engine
	}
	return chosen
}

// VoicePair holds the optional voice ids for each gender.
type VoicePair struct {
	Male   string `json:"male,omitempty"`
	Female string `json:"female,omitempty"`
}

// For returns the voice for gender, or "" when none is defined.
func (v VoicePair) For(gender message.Gender) string {
	if gender == message.GenderMale {
		return v.Male
	}
	return v.Female
}

// LocaleVoices holds the voices of one locale per engine tier.
type LocaleVoices struct {
	Generative VoicePair `json:"generative"`
	Neural     VoicePair `json:"neural"`
	Standard   VoicePair `json:"standard"`
}

// ForEngine returns the voices defined for an engine tier.
func (l LocaleVoices) ForEngine(engine message.Engine) VoicePair {
	switch engine {
	case message.EngineGenerative:
		return l.Generative
	case message.EngineNeural:
		return l.Neural
	default:
		return l.Standard
	}
}

// VoiceTable maps a locale ("en-US") to its voices.
type VoiceTable map[string]LocaleVoices

// Prosody is a qualitative speech rate, pitch and loudness.
type Prosody struct {
	Rate   string `json:"rate"`
	Pitch  string `json:"pitch"`
	Volume string `json:"volume"`
}

// ProsodyTable maps a style to its prosody.
type ProsodyTable map[message.Style]Prosody

// FallbackBank maps a language code to canned replies.
type FallbackBank map[string][]string

// Snapshot is one consistent read of every class.
type Snapshot struct {
	LLM       LLM
	Prompts   Prompts
	Polly     Polly
	Voices    VoiceTable
	Prosody   ProsodyTable
	Fallbacks FallbackBank
}
