package reply

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nadzzz/moodshift/internal/message"
)

const truncationMarker = "..."

var (
	whitespace = regexp.MustCompile(`\s+`)
	emoji      = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FA6F}\x{1FA70}-\x{1FAFF}]`)
)

type modelOutput struct {
	Response string `json:"response"`
	Style    string `json:"style"`
}

// Result is a cleaned reply and the style it should be spoken in.
type Result struct {
	Style message.Style
	Text  string
}

// Parse extracts the reply from raw model content. It accepts a JSON object
// with a "response" field, the first balanced {...} object embedded in other
// text, or otherwise the raw text itself. The style is the default unless
// styleFromModel is set and the object names a known style.
func Parse(content string, maxWords int, styleFromModel bool) Result {
	out, ok := decode(content)
	if !ok {
		if obj, found := firstObject(content); found {
			out, ok = decode(obj)
		}
	}

	text := content
	style := message.DefaultStyle
	if ok {
		text = out.Response
		if styleFromModel {
			if s, known := message.ParseStyle(out.Style); known {
				style = s
			}
		}
	}

	return Result{Style: style, Text: Clean(text, maxWords)}
}

func decode(s string) (modelOutput, bool) {
	var out modelOutput
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return modelOutput{}, false
	}
	return out, true
}

// firstObject returns the first brace-balanced {...} substring, ignoring
// braces inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Clean collapses whitespace, truncates to maxWords words (marking the cut
// with "...") and strips emoji. A non-positive maxWords disables truncation.
func Clean(text string, maxWords int) string {
	text = whitespace.ReplaceAllString(strings.TrimSpace(text), " ")
	if maxWords > 0 {
		if words := strings.Split(text, " "); len(words) > maxWords {
			text = strings.Join(words[:maxWords], " ") + truncationMarker
		}
	}
	text = emoji.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
