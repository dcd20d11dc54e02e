package openai_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/reply"
	"github.com/nadzzz/moodshift/internal/reply/openai"
)

func TestProvider_Complete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"response\":\"hi\"}"}}]}`))
	}))
	defer srv.Close()

	p := openai.New("gsk-test")
	assert.Equal(t, "openai", p.Name())

	content, err := p.Complete(t.Context(), reply.ChatRequest{
		Endpoint:         srv.URL + "/openai/v1/chat/completions",
		Model:            "llama-3.1-8b-instant",
		Messages:         []message.ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		Temperature:      0.7,
		MaxTokens:        800,
		TopP:             1,
		FrequencyPenalty: 0.3,
		PresencePenalty:  0.3,
		JSONMode:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"response":"hi"}`, content)

	assert.Equal(t, "llama-3.1-8b-instant", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	assert.InDelta(t, 800, body["max_tokens"], 1e-9)
	assert.InDelta(t, 1, body["top_p"], 1e-9)
	assert.InDelta(t, 0.3, body["frequency_penalty"], 1e-9)
	assert.InDelta(t, 0.3, body["presence_penalty"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	assert.Len(t, body["messages"], 2)
}

func TestProvider_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		payload string
		wantErr string
	}{
		{"non-success status", http.StatusTooManyRequests, `{"error":"rate limited"}`, "status 429"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"bad json", http.StatusOK, `not json`, "decoding"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.payload))
			}))
			defer srv.Close()

			_, err := openai.New("k").Complete(t.Context(), reply.ChatRequest{Endpoint: srv.URL})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
