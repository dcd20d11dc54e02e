// Package fingerprint derives content-addressed cache keys for requests.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/nadzzz/moodshift/internal/message"
)

// Length is the number of hex characters in a fingerprint.
const Length = 32

// separator cannot appear in JSON-decoded user text without being escaped by
// the client, so field boundaries stay unambiguous.
const separator = "\x1f"

// Derive returns the fingerprint of the fields that influence the produced
// reply and audio. The device id is deliberately absent, and the gender is
// normalized the same way voice selection normalizes it.
func Derive(req *message.Request) string {
	var fields []string
	if req.StrongerMode {
		fields = []string{
			"stronger",
			strconv.FormatBool(req.CrystalVoice),
			req.OriginalResponse,
			req.Language,
			req.Locale,
			string(req.VoiceGender.Normalize()),
		}
	} else {
		fields = []string{
			"normal",
			strconv.FormatBool(req.CrystalVoice),
			req.Text,
			req.Language,
			req.Locale,
			string(req.VoiceGender.Normalize()),
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, separator)))
	return hex.EncodeToString(sum[:])[:Length]
}
