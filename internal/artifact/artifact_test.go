package artifact_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/moodshift/internal/artifact"
)

const fp = "0123456789abcdef0123456789abcdef"

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

func newCache(t *testing.T, js jetstream.JetStream) *artifact.Cache {
	t.Helper()
	c, err := artifact.New(t.Context(), js, artifact.Options{
		AudioBucket: "audio-test",
		StatsBucket: "stats-test",
		PublicURL:   "https://moodshift.example.com",
	})
	require.NoError(t, err)
	return c
}

func tokenOf(t *testing.T, locator string) string {
	t.Helper()
	u, err := url.Parse(locator)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestObjectName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "audio/"+fp+".mp3", artifact.ObjectName(fp))
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	js := startJetStream(t)
	c := newCache(t, js)

	_, hit := c.Lookup(t.Context(), fp)
	assert.False(t, hit)

	stored, err := c.Store(t.Context(), fp, "You matter.", []byte("ID3-bytes"), "Danielle", "generative")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.URL, "https://moodshift.example.com/audio/"+fp+".mp3?token="))
	token := tokenOf(t, stored.URL)
	require.NotEmpty(t, token)

	got, hit := c.Lookup(t.Context(), fp)
	require.True(t, hit)
	assert.Equal(t, "You matter.", got.Reply)
	assert.Equal(t, "Danielle", got.VoiceID)
	assert.Equal(t, "generative", got.Engine)
	assert.Equal(t, stored.URL, got.URL)

	obj, err := c.Open(t.Context(), fp+".mp3", token)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-bytes"), obj.Data)
	assert.Equal(t, artifact.ContentType, obj.ContentType)
	assert.Equal(t, artifact.CacheControl, obj.CacheControl)

	c.Wait()
	stats, err := c.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)
	assert.False(t, stats.LastHitAt.IsZero())

	// Bucket binding is idempotent and sees the same objects.
	again := newCache(t, js)
	_, hit = again.Lookup(t.Context(), fp)
	assert.True(t, hit)
	again.Wait()
}

func TestCache_OverwriteIssuesNewToken(t *testing.T) {
	t.Parallel()

	c := newCache(t, startJetStream(t))

	first, err := c.Store(t.Context(), fp, "one", []byte("a"), "Joanna", "standard")
	require.NoError(t, err)
	second, err := c.Store(t.Context(), fp, "two", []byte("b"), "Joanna", "standard")
	require.NoError(t, err)
	require.NotEqual(t, first.URL, second.URL)

	got, hit := c.Lookup(t.Context(), fp)
	require.True(t, hit)
	assert.Equal(t, "two", got.Reply)

	_, err = c.Open(t.Context(), fp+".mp3", tokenOf(t, first.URL))
	require.ErrorIs(t, err, artifact.ErrForbidden)
	c.Wait()
}

func TestCache_OpenErrors(t *testing.T) {
	t.Parallel()

	c := newCache(t, startJetStream(t))
	_, err := c.Store(t.Context(), fp, "hi", []byte("x"), "Joanna", "standard")
	require.NoError(t, err)

	_, err = c.Open(t.Context(), fp+".mp3", "wrong")
	require.ErrorIs(t, err, artifact.ErrForbidden)

	_, err = c.Open(t.Context(), fp+".mp3", "")
	require.ErrorIs(t, err, artifact.ErrForbidden)

	_, err = c.Open(t.Context(), "ffffffffffffffffffffffffffffffff.mp3", "any")
	require.ErrorIs(t, err, artifact.ErrNotFound)

	_, err = c.Open(t.Context(), "../secrets.mp3", "any")
	require.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestCache_MissingMetadataIsMiss(t *testing.T) {
	t.Parallel()

	js := startJetStream(t)
	c := newCache(t, js)

	// An object written without the reply metadata is not a usable hit.
	objects, err := js.ObjectStore(t.Context(), "audio-test")
	require.NoError(t, err)
	_, err = objects.PutBytes(t.Context(), artifact.ObjectName(fp), []byte("orphan"))
	require.NoError(t, err)

	_, hit := c.Lookup(t.Context(), fp)
	assert.False(t, hit)
}

func TestCache_StatsOutageStillHits(t *testing.T) {
	t.Parallel()

	js := startJetStream(t)
	c := newCache(t, js)
	_, err := c.Store(t.Context(), fp, "still cached", []byte("x"), "Joanna", "standard")
	require.NoError(t, err)

	require.NoError(t, js.DeleteKeyValue(t.Context(), "stats-test"))

	got, hit := c.Lookup(t.Context(), fp)
	require.True(t, hit)
	assert.Equal(t, "still cached", got.Reply)
	c.Wait()

	_, err = c.Stats(t.Context())
	require.Error(t, err)
}

func TestCache_StorageOutageIsMiss(t *testing.T) {
	t.Parallel()

	js := startJetStream(t)
	c := newCache(t, js)
	_, err := c.Store(t.Context(), fp, "gone soon", []byte("x"), "Joanna", "standard")
	require.NoError(t, err)

	require.NoError(t, js.DeleteObjectStore(t.Context(), "audio-test"))

	_, hit := c.Lookup(t.Context(), fp)
	assert.False(t, hit)

	_, err = c.Store(t.Context(), fp, "again", []byte("y"), "Joanna", "standard")
	require.Error(t, err)
	c.Wait()
}
