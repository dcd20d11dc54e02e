package reply

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nadzzz/moodshift/internal/settings"
)

// LastResortPhrase is used when the fallback bank has nothing to offer.
const LastResortPhrase = "You're doing better than you think. Take a moment to breathe."

const defaultLanguage = "en"

// supportedLanguages are the reply languages prompts are written for.
var supportedLanguages = map[string]language.Tag{
	"en": language.English,
	"hi": language.Hindi,
	"es": language.Spanish,
	"zh": language.Chinese,
	"fr": language.French,
	"de": language.German,
	"ar": language.Arabic,
	"ja": language.Japanese,
}

// LanguageName returns the English name of a supported language code, and
// "English" for anything else.
func LanguageName(code string) string {
	tag, ok := supportedLanguages[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		tag = language.English
	}
	return display.English.Languages().Name(tag)
}

// FallbackPhrase picks a canned reply uniformly from the pool for lang, then
// the English pool, then LastResortPhrase. A nil rnd uses the global source.
func FallbackPhrase(lang string, bank settings.FallbackBank, rnd *rand.Rand) string {
	pool, ok := bank[lang]
	if !ok {
		pool = bank[defaultLanguage]
	}
	if len(pool) == 0 {
		return LastResortPhrase
	}
	if rnd == nil {
		return pool[rand.IntN(len(pool))]
	}
	return pool[rnd.IntN(len(pool))]
}

var (
	amplifier = strings.NewReplacer(".", "! ", "!", "!! ")
	spaceRuns = regexp.MustCompile(` {2,}`)
)

// AmplifyManually is the local stand-in for a model-intensified reply: the
// text is uppercased, every period becomes "! " and every original
// exclamation mark becomes "!! ". Introduced exclamation marks are not
// doubled again, and doubled spaces are folded.
func AmplifyManually(text string) string {
	return spaceRuns.ReplaceAllString(amplifier.Replace(strings.ToUpper(text)), " ")
}
