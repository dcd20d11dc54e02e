// Package artifact stores synthesized audio keyed by request fingerprint,
// together with the reply text and the voice and engine that produced it.
//
// Objects live in a JetStream object store under "audio/{fingerprint}.mp3".
// Each carries a random access token; the locator handed to clients embeds
// it, and Open refuses reads that do not present it.
package artifact

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Storage layout.
const (
	Prefix       = "audio"
	Extension    = "mp3"
	ContentType  = "audio/mpeg"
	CacheControl = "public, max-age=86400"
)

// Metadata keys stored on each object.
const (
	metaToken    = "downloadToken"
	metaResponse = "response"
	metaVoiceID  = "voiceId"
	metaEngine   = "engine"
)

var (
	// ErrNotFound means no artifact exists under the requested name.
	ErrNotFound = errors.New("artifact not found")

	// ErrForbidden means the presented token does not match.
	ErrForbidden = errors.New("artifact token mismatch")
)

var fileName = regexp.MustCompile(`^[0-9a-f]{32}\.` + Extension + `$`)

// Artifact describes one cached result.
type Artifact struct {
	Fingerprint string
	Reply       string
	VoiceID     string
	Engine      string

	// URL is the client-facing locator, token included.
	URL string
}

// Object is the stored audio with its serving headers.
type Object struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// Options configures a Cache.
type Options struct {
	AudioBucket string
	StatsBucket string

	// PublicURL is the externally reachable base of the HTTP transport.
	PublicURL string
}

// Cache is the artifact store plus its hit counter.
type Cache struct {
	objects   jetstream.ObjectStore
	stats     *HitCounter
	publicURL string
	newToken  func() string

	pending sync.WaitGroup
}

// New creates (or binds to) the audio and stats buckets.
func New(ctx context.Context, js jetstream.JetStream, opts Options) (*Cache, error) {
	objects, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      opts.AudioBucket,
		Description: "moodshift synthesized audio",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("creating audio bucket %q: %w", opts.AudioBucket, err)
		}
		objects, err = js.ObjectStore(ctx, opts.AudioBucket)
		if err != nil {
			return nil, fmt.Errorf("binding audio bucket %q: %w", opts.AudioBucket, err)
		}
	}

	stats, err := NewHitCounter(ctx, js, opts.StatsBucket)
	if err != nil {
		return nil, err
	}

	return &Cache{
		objects:   objects,
		stats:     stats,
		publicURL: opts.PublicURL,
		newToken:  uuid.NewString,
	}, nil
}

// ObjectName returns the storage path of a fingerprint.
func ObjectName(fingerprint string) string {
	return Prefix + "/" + fingerprint + "." + Extension
}

func (c *Cache) locator(fingerprint, token string) string {
	return c.publicURL + "/" + ObjectName(fingerprint) + "?token=" + url.QueryEscape(token)
}

// Lookup returns the cached artifact for fingerprint. Read errors count as
// a miss. A hit bumps the hit counter in the background.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) (*Artifact, bool) {
	info, err := c.objects.GetInfo(ctx, ObjectName(fingerprint))
	if err != nil {
		if !errors.Is(err, jetstream.ErrObjectNotFound) {
			slog.Error("checking artifact cache", "fingerprint", fingerprint, "error", err)
		}
		return nil, false
	}

	meta := info.Metadata
	if meta[metaToken] == "" || meta[metaResponse] == "" {
		return nil, false
	}

	c.recordHit()
	return &Artifact{
		Fingerprint: fingerprint,
		Reply:       meta[metaResponse],
		VoiceID:     meta[metaVoiceID],
		Engine:      meta[metaEngine],
		URL:         c.locator(fingerprint, meta[metaToken]),
	}, true
}

// Store writes audio under fingerprint with a fresh token, replacing any
// previous object. Concurrent writers race; the last one wins.
func (c *Cache) Store(ctx context.Context, fingerprint, reply string, audio []byte, voiceID, engine string) (*Artifact, error) {
	token := c.newToken()

	_, err := c.objects.Put(ctx, jetstream.ObjectMeta{
		Name:        ObjectName(fingerprint),
		Description: "synthesized reply audio",
		Headers: nats.Header{
			"Content-Type":  []string{ContentType},
			"Cache-Control": []string{CacheControl},
		},
		Metadata: map[string]string{
			metaToken:    token,
			metaResponse: reply,
			metaVoiceID:  voiceID,
			metaEngine:   engine,
		},
	}, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("storing artifact %s: %w", fingerprint, err)
	}

	return &Artifact{
		Fingerprint: fingerprint,
		Reply:       reply,
		VoiceID:     voiceID,
		Engine:      engine,
		URL:         c.locator(fingerprint, token),
	}, nil
}

// Open returns the audio stored under name ("{fingerprint}.mp3") when token
// matches the one issued with it.
func (c *Cache) Open(ctx context.Context, name, token string) (*Object, error) {
	if !fileName.MatchString(name) {
		return nil, ErrNotFound
	}
	objName := Prefix + "/" + name

	info, err := c.objects.GetInfo(ctx, objName)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading artifact info: %w", err)
	}

	want := info.Metadata[metaToken]
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(token)) != 1 {
		return nil, ErrForbidden
	}

	data, err := c.objects.GetBytes(ctx, objName)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	obj := &Object{Data: data, ContentType: ContentType, CacheControl: CacheControl}
	if info.Headers != nil {
		if v := info.Headers.Get("Content-Type"); v != "" {
			obj.ContentType = v
		}
		if v := info.Headers.Get("Cache-Control"); v != "" {
			obj.CacheControl = v
		}
	}
	return obj, nil
}

// Stats returns the current hit counter.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	return c.stats.Read(ctx)
}

const hitTimeout = 5 * time.Second

// recordHit increments the counter without making the caller wait.
func (c *Cache) recordHit() {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), hitTimeout)
		defer cancel()
		if err := c.stats.Increment(ctx); err != nil {
			slog.Debug("recording cache hit", "error", err)
		}
	}()
}

// Wait blocks until background hit updates have finished.
func (c *Cache) Wait() {
	c.pending.Wait()
}
