// Package ssml renders reply text into engine-specific speech markup.
//
// The three engine tiers accept different markup subsets: generative only
// honours rate and volume (as x-values), neural only honours volume in
// decibels, standard supports full prosody plus effects. Each builder keeps
// its own fixed template per tier.
package ssml

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/settings"
)

const maxArtifactPasses = 10

var (
	whitespace = regexp.MustCompile(`\s+`)

	// Directive-like prefixes a model sometimes echoes from its instructions.
	artifactPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^[\s,;]*(?:pitch|rate|volume|voice|prosody)\s*[=:]\s*\S+`),
		regexp.MustCompile(`(?i)^[\s,;]*(?:pitch|rate|volume|voice|prosody)\s+(?:equal|equals|is|to|at|set to|set at)\s+\S+`),
		regexp.MustCompile(`(?i)^[\s,;]*(?:x-)?(?:high|low|medium|soft|loud|slow|fast|normal|default)\s+(?:pitch|rate|volume|voice)`),
		regexp.MustCompile(`(?i)^\s*(?:(?:pitch|rate|volume)\s*[=:]\s*\S+[\s,;]*)+`),
	}
	leadingPunct = regexp.MustCompile(`^[\s,;:.]+`)

	xmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)

var (
	generativeRate = map[string]string{
		"x-slow": "x-slow",
		"slow":   "x-slow",
		"medium": "medium",
		"fast":   "x-fast",
		"x-fast": "x-fast",
	}
	generativeVolume = map[string]string{
		"silent": "silent",
		"x-soft": "x-soft",
		"soft":   "x-soft",
		"medium": "medium",
		"loud":   "x-loud",
		"x-loud": "x-loud",
	}
	neuralVolume = map[string]string{
		"silent": "-20dB",
		"x-soft": "-10dB",
		"soft":   "-6dB",
		"medium": "+0dB",
		"loud":   "+6dB",
		"x-loud": "+10dB",
	}
)

var defaultProsody = settings.Prosody{Rate: "medium", Pitch: "medium", Volume: "medium"}

// Escape replaces the five XML special characters with their entities.
func Escape(text string) string {
	return xmlEscaper.Replace(text)
}

// Clean collapses whitespace and strips leaked prosody directives from the
// start of text.
func Clean(text string) string {
	text = whitespace.ReplaceAllString(strings.TrimSpace(text), " ")

	for pass := 0; pass < maxArtifactPasses; pass++ {
		matched := false
		for _, re := range artifactPatterns {
			if loc := re.FindStringIndex(text); loc != nil && loc[1] > 0 {
				text = strings.TrimSpace(text[loc[1]:])
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}

	return strings.TrimSpace(leadingPunct.ReplaceAllString(text, ""))
}

func prepare(text string) string {
	return Escape(Clean(text))
}

func lookup(table map[string]string, key, fallback string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

// BuildNormal renders text with the prosody of style. Styles missing from
// table use medium rate, pitch and volume.
func BuildNormal(text string, engine message.Engine, style message.Style, table settings.ProsodyTable) string {
	body := prepare(text)
	p, ok := table[style]
	if !ok {
		p = defaultProsody
	}

	switch engine {
	case message.EngineGenerative:
		return fmt.Sprintf(`<speak><prosody rate="%s" volume="%s">%s</prosody></speak>`,
			lookup(generativeRate, p.Rate, "medium"), lookup(generativeVolume, p.Volume, "medium"), body)
	case message.EngineNeural:
		return fmt.Sprintf(`<speak><prosody volume="%s">%s</prosody></speak>`,
			lookup(neuralVolume, p.Volume, "+0dB"), body)
	default:
		return fmt.Sprintf(`<speak><prosody rate="%s" volume="%s" pitch="%s">%s</prosody></speak>`,
			Escape(p.Rate), Escape(p.Volume), Escape(p.Pitch), body)
	}
}

// BuildIntensified renders text for stronger mode.
func BuildIntensified(text string, engine message.Engine) string {
	body := prepare(text)

	switch engine {
	case message.EngineGenerative:
		return `<speak><prosody rate="medium" volume="x-loud">` + body + `</prosody></speak>`
	case message.EngineNeural:
		return `<speak><prosody volume="+6dB">` + body + `</prosody></speak>`
	default:
		return `<speak><emphasis level="strong"><prosody rate="medium" volume="+6dB" pitch="+15%">` +
			body + `</prosody></emphasis></speak>`
	}
}

// BuildSoft renders text for the crystal voice.
func BuildSoft(text string, engine message.Engine) string {
	body := prepare(text)

	switch engine {
	case message.EngineGenerative:
		return `<speak><prosody rate="x-slow" volume="x-soft">` + body + `</prosody></speak>`
	case message.EngineNeural:
		return `<speak><amazon:effect name="drc"><prosody volume="+0dB">` + body + `</prosody></amazon:effect></speak>`
	default:
		return `<speak><amazon:effect name="drc"><amazon:effect phonation="soft">` +
			`<amazon:effect vocal-tract-length="+12%">` +
			`<prosody rate="slow" pitch="-10%" volume="soft">` + body + `</prosody>` +
			`</amazon:effect></amazon:effect></amazon:effect></speak>`
	}
}

// Build picks the builder for a request: stronger mode wins over the crystal
// voice, which wins over the normal rendering.
func Build(text string, engine message.Engine, style message.Style, table settings.ProsodyTable, stronger, crystal bool) string {
	switch {
	case stronger:
		return BuildIntensified(text, engine)
	case crystal:
		return BuildSoft(text, engine)
	default:
		return BuildNormal(text, engine, style, table)
	}
}
