// Package http implements the HTTP transport for moodshift.
//
// It exposes the request endpoint, serves cached audio behind its access
// token, reports cache statistics, clears device history and hosts the
// generated OpenAPI docs.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/moodshift/internal/artifact"
	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/transport"
)

// Error bodies returned to clients.
const (
	errMethodNotAllowed = "Method not allowed"
	errMissingFields    = "Missing required fields"
	errSynthesis        = "Audio synthesis failed"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Artifacts serves stored audio objects and the cache hit statistics.
type Artifacts interface {
	Open(ctx context.Context, name, token string) (*artifact.Object, error)
	Stats(ctx context.Context) (artifact.Stats, error)
}

// HistoryEraser forgets a device's conversation.
type HistoryEraser interface {
	Clear(ctx context.Context, deviceID string) error
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port    int
	audio   Artifacts
	history HistoryEraser
	server  *http.Server
}

// Option configures a Transport.
type Option func(*Transport)

// WithHistory enables DELETE /conversations/{deviceId}.
func WithHistory(history HistoryEraser) Option {
	return func(t *Transport) { t.history = history }
}

// New creates a new HTTP transport on the given port. audio may be nil, in
// which case the audio and stats routes answer 404.
func New(port int, audio Artifacts, opts ...Option) *Transport {
	t := &Transport{port: port, audio: audio}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Router builds the route table for handler.
func (t *Transport) Router(handler transport.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, &message.Response{Error: errMethodNotAllowed})
	})

	// POST /processUserInput: text in, reply plus audio locator out.
	r.Post("/processUserInput", func(w http.ResponseWriter, r *http.Request) {
		t.handleProcess(w, r, handler)
	})

	// GET /audio/{name}: token-gated audio bytes.
	r.Get("/audio/{name}", t.handleAudio)

	// GET /stats: audio cache hit counter.
	r.Get("/stats", t.handleStats)

	// DELETE /conversations/{deviceId}: forget a device's history.
	r.Delete("/conversations/{deviceId}", t.handleClearHistory)

	// Swagger UI: serves the generated OpenAPI docs.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Router(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleProcess processes a POST /processUserInput request.
//
// @Summary     Produce a spoken reply
// @Description Generates a supportive reply to the user's text (or amplifies a prior reply in
// @Description stronger mode), synthesizes it to speech and returns the reply text with a
// @Description token-gated audio URL. Identical requests are answered from the audio cache.
// @Tags        moodshift
// @Accept      json
// @Produce     json
// @Param       request  body      message.Request   true  "User input"
// @Success     200      {object}  message.Response  "Reply and audio locator"
// @Failure     400      {object}  message.Response  "Missing required fields"
// @Failure     405      {object}  message.Response  "Method not allowed"
// @Failure     500      {object}  message.Response  "Synthesis or internal failure; response carries the reply when one was produced"
// @Router      /processUserInput [post]
func (t *Transport) handleProcess(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req message.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Debug("rejecting undecodable body", "error", err)
		writeJSON(w, http.StatusBadRequest, &message.Response{Error: errMissingFields})
		return
	}

	resp, err := handler(r.Context(), &req)
	status, body := responseFor(resp, err)
	writeJSON(w, status, body)
}

// responseFor maps a handler outcome onto a status code and body.
func responseFor(resp *message.Response, err error) (int, *message.Response) {
	if err == nil {
		return http.StatusOK, resp
	}

	var synthErr *message.SynthesisError
	switch {
	case errors.Is(err, message.ErrInvalidRequest):
		return http.StatusBadRequest, &message.Response{Error: errMissingFields}
	case errors.As(err, &synthErr):
		return http.StatusInternalServerError, &message.Response{Error: errSynthesis, Response: synthErr.Reply}
	default:
		slog.Error("request failed", "error", err)
		return http.StatusInternalServerError, &message.Response{Error: err.Error()}
	}
}

// handleAudio serves GET /audio/{name}.
//
// @Summary     Fetch synthesized audio
// @Tags        moodshift
// @Produce     audio/mpeg
// @Param       name   path   string  true  "Object name, {fingerprint}.mp3"
// @Param       token  query  string  true  "Access token from the audio URL"
// @Success     200
// @Failure     403  {string}  string  "Bad token"
// @Failure     404  {string}  string  "Unknown audio"
// @Router      /audio/{name} [get]
func (t *Transport) handleAudio(w http.ResponseWriter, r *http.Request) {
	if t.audio == nil {
		http.NotFound(w, r)
		return
	}

	obj, err := t.audio.Open(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("token"))
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, artifact.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case err != nil:
		slog.Error("serving audio failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.CacheControl != "" {
		w.Header().Set("Cache-Control", obj.CacheControl)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	_, _ = w.Write(obj.Data)
}

// handleStats serves GET /stats.
//
// @Summary     Audio cache statistics
// @Tags        moodshift
// @Produce     json
// @Success     200  {object}  artifact.Stats
// @Failure     404  {string}  string  "No cache configured"
// @Failure     500  {string}  string  "Stats unavailable"
// @Router      /stats [get]
func (t *Transport) handleStats(w http.ResponseWriter, r *http.Request) {
	if t.audio == nil {
		http.NotFound(w, r)
		return
	}
	stats, err := t.audio.Stats(r.Context())
	if err != nil {
		slog.Error("reading cache stats failed", "error", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// handleClearHistory serves DELETE /conversations/{deviceId}.
//
// @Summary     Forget a device's conversation history
// @Tags        moodshift
// @Param       deviceId  path  string  true  "Device id"
// @Success     204
// @Failure     404  {string}  string  "No conversation store configured"
// @Failure     500  {string}  string  "Store failure"
// @Router      /conversations/{deviceId} [delete]
func (t *Transport) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if t.history == nil {
		http.NotFound(w, r)
		return
	}
	deviceID := chi.URLParam(r, "deviceId")
	if err := t.history.Clear(r.Context(), deviceID); err != nil {
		slog.Error("clearing conversation failed", "device_id", deviceID, "error", err)
		http.Error(w, "clearing conversation failed", http.StatusInternalServerError)
		return
	}
	slog.Info("conversation cleared", "device_id", deviceID)
	w.WriteHeader(http.StatusNoContent)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body *message.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
