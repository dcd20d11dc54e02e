package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/moodshift/internal/artifact"
	"github.com/nadzzz/moodshift/internal/dispatch"
	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/reply"
	"github.com/nadzzz/moodshift/internal/reply/openai"
	"github.com/nadzzz/moodshift/internal/settings"
	"github.com/nadzzz/moodshift/internal/speech"
	httptransport "github.com/nadzzz/moodshift/internal/transport/http"
)

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, message.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/processUserInput", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp message.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestProcessUserInput_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  func(context.Context, *message.Request) (*message.Response, error)
		body     string
		status   int
		wantErr  string
		wantText string
	}{
		{
			name: "success",
			handler: func(context.Context, *message.Request) (*message.Response, error) {
				return &message.Response{Success: true, Response: "hi", AudioURL: "u", VoiceID: "Joanna", Engine: "standard"}, nil
			},
			body:     `{"deviceId":"d1","text":"x"}`,
			status:   http.StatusOK,
			wantText: "hi",
		},
		{
			name: "invalid",
			handler: func(context.Context, *message.Request) (*message.Response, error) {
				return nil, message.ErrInvalidRequest
			},
			body:    `{"deviceId":"d1"}`,
			status:  http.StatusBadRequest,
			wantErr: "Missing required fields",
		},
		{
			name: "undecodable body",
			handler: func(context.Context, *message.Request) (*message.Response, error) {
				t.Error("handler must not run")
				return nil, nil
			},
			body:    `{"deviceId":`,
			status:  http.StatusBadRequest,
			wantErr: "Missing required fields",
		},
		{
			name: "synthesis failure keeps reply",
			handler: func(context.Context, *message.Request) (*message.Response, error) {
				return nil, &message.SynthesisError{Reply: "still here", Err: errors.New("engines exhausted")}
			},
			body:     `{"deviceId":"d1","text":"x"}`,
			status:   http.StatusInternalServerError,
			wantErr:  "Audio synthesis failed",
			wantText: "still here",
		},
		{
			name: "other failure",
			handler: func(context.Context, *message.Request) (*message.Response, error) {
				return nil, errors.New("boom")
			},
			body:    `{"deviceId":"d1","text":"x"}`,
			status:  http.StatusInternalServerError,
			wantErr: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := httptransport.New(0, nil).Router(tt.handler)
			rec, resp := post(t, h, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.status == http.StatusOK, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error)
			assert.Equal(t, tt.wantText, resp.Response)
		})
	}
}

func TestProcessUserInput_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := httptransport.New(0, nil).Router(func(context.Context, *message.Request) (*message.Response, error) {
		t.Error("handler must not run")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/processUserInput", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Method not allowed"}`, rec.Body.String())
}

type fakeAudio struct{}

func (fakeAudio) Open(_ context.Context, name, token string) (*artifact.Object, error) {
	switch {
	case name != "known.mp3":
		return nil, artifact.ErrNotFound
	case token != "secret":
		return nil, artifact.ErrForbidden
	}
	return &artifact.Object{Data: []byte("mp3"), ContentType: artifact.ContentType, CacheControl: artifact.CacheControl}, nil
}

func (fakeAudio) Stats(context.Context) (artifact.Stats, error) {
	return artifact.Stats{Hits: 7, LastHitAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}, nil
}

type brokenAudio struct{ fakeAudio }

func (brokenAudio) Stats(context.Context) (artifact.Stats, error) {
	return artifact.Stats{}, errors.New("bucket gone")
}

type fakeEraser struct {
	cleared []string
	err     error
}

func (e *fakeEraser) Clear(_ context.Context, deviceID string) error {
	e.cleared = append(e.cleared, deviceID)
	return e.err
}

func TestAudio(t *testing.T) {
	t.Parallel()

	h := httptransport.New(0, fakeAudio{}).Router(nil)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/audio/known.mp3?token=secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp3", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, get("/audio/known.mp3?token=nope").Code)
	assert.Equal(t, http.StatusNotFound, get("/audio/other.mp3?token=secret").Code)

	noAudio := httptransport.New(0, nil).Router(nil)
	rec = httptest.NewRecorder()
	noAudio.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/known.mp3?token=secret", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	t.Parallel()

	get := func(h http.Handler) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		return rec
	}

	rec := get(httptransport.New(0, fakeAudio{}).Router(nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"hits":7,"lastHitAt":"2024-05-01T12:00:00Z"}`, rec.Body.String())

	assert.Equal(t, http.StatusInternalServerError, get(httptransport.New(0, brokenAudio{}).Router(nil)).Code)
	assert.Equal(t, http.StatusNotFound, get(httptransport.New(0, nil).Router(nil)).Code)
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	del := func(h http.Handler, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, target, nil))
		return rec
	}

	eraser := &fakeEraser{}
	h := httptransport.New(0, nil, httptransport.WithHistory(eraser)).Router(nil)
	assert.Equal(t, http.StatusNoContent, del(h, "/conversations/d1").Code)
	assert.Equal(t, []string{"d1"}, eraser.cleared)

	failing := &fakeEraser{err: errors.New("store down")}
	h = httptransport.New(0, nil, httptransport.WithHistory(failing)).Router(nil)
	assert.Equal(t, http.StatusInternalServerError, del(h, "/conversations/d2").Code)

	assert.Equal(t, http.StatusNotFound, del(httptransport.New(0, nil).Router(nil), "/conversations/d1").Code)
}

type staticSettings struct{ snap settings.Snapshot }

func (s staticSettings) LoadAll(context.Context) settings.Snapshot { return s.snap }

type fakeSpeaker struct{}

func (fakeSpeaker) Speak(_ context.Context, req speech.SpeakRequest) ([]byte, error) {
	if !strings.HasPrefix(req.Markup, "<speak>") {
		return nil, errors.New("not markup")
	}
	return []byte("ID3 " + req.VoiceID), nil
}

func startJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	return js
}

func TestProcessUserInput_EndToEnd(t *testing.T) {
	t.Parallel()

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"response\":\"Stuck is a pause, not a verdict. Stand up and stretch.\"}"}}]}`)
	}))
	t.Cleanup(model.Close)

	var router http.Handler
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(api.Close)

	cache, err := artifact.New(t.Context(), startJetStream(t), artifact.Options{
		AudioBucket: "audio-e2e",
		StatsBucket: "stats-e2e",
		PublicURL:   api.URL,
	})
	require.NoError(t, err)

	snap := settings.NewProvider(nil, settings.DefaultTTL).LoadAll(t.Context())
	snap.LLM.APIURL = model.URL

	d := dispatch.New(cache, staticSettings{snap},
		reply.NewGenerator(reply.NewChain(openai.New("test-key"))),
		speech.NewSynthesizer(fakeSpeaker{}), nil)
	router = httptransport.New(0, cache).Router(d.Handle)

	body := `{"deviceId":"d1","text":"I feel stuck","language":"en","locale":"en-US","voiceGender":"female","crystalVoice":false,"strongerMode":false}`
	res, err := http.Post(api.URL+"/processUserInput", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out message.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "Stuck is a pause, not a verdict. Stand up and stretch.", out.Response)

	enUS := snap.Voices["en-US"]
	assert.Contains(t, []string{enUS.Generative.Female, enUS.Neural.Female, enUS.Standard.Female}, out.VoiceID)
	assert.Equal(t, "generative", out.Engine)

	audio, err := http.Get(out.AudioURL)
	require.NoError(t, err)
	defer audio.Body.Close()
	require.Equal(t, http.StatusOK, audio.StatusCode)
	data, err := io.ReadAll(audio.Body)
	require.NoError(t, err)
	assert.Equal(t, "ID3 "+out.VoiceID, string(data))

	cache.Wait()
}
