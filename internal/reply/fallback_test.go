package reply_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nadzzz/moodshift/internal/reply"
	"github.com/nadzzz/moodshift/internal/settings"
)

func TestAmplifyManually(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "GOOD! YOU DID IT!! ", reply.AmplifyManually("Good. You did it!"))
	assert.Equal(t, "KEEP GOING!! ", reply.AmplifyManually("keep going!"))
	assert.Equal(t, "NO PUNCTUATION", reply.AmplifyManually("no punctuation"))
}

func TestFallbackPhrase(t *testing.T) {
	t.Parallel()

	bank := settings.FallbackBank{
		"en": {"english one", "english two"},
		"es": {"uno"},
	}
	rnd := rand.New(rand.NewPCG(1, 2))

	assert.Equal(t, "uno", reply.FallbackPhrase("es", bank, rnd))
	assert.Contains(t, bank["en"], reply.FallbackPhrase("ja", bank, rnd), "missing language uses English")
	assert.Equal(t, reply.LastResortPhrase, reply.FallbackPhrase("ja", settings.FallbackBank{}, rnd))
	assert.Equal(t, reply.LastResortPhrase, reply.FallbackPhrase("es", settings.FallbackBank{"es": {}}, nil))
}

func TestFallbackPhrase_Uniform(t *testing.T) {
	t.Parallel()

	bank := settings.FallbackBank{"en": {"a", "b", "c"}}
	rnd := rand.New(rand.NewPCG(7, 7))

	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		seen[reply.FallbackPhrase("en", bank, rnd)]++
	}
	assert.Len(t, seen, 3)
	for phrase, n := range seen {
		assert.Greater(t, n, 50, phrase)
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	want := map[string]string{
		"en": "English",
		"hi": "Hindi",
		"es": "Spanish",
		"zh": "Chinese",
		"fr": "French",
		"de": "German",
		"ar": "Arabic",
		"ja": "Japanese",
		"pt": "English",
		"":   "English",
	}
	for code, name := range want {
		assert.Equal(t, name, reply.LanguageName(code), code)
	}
}
