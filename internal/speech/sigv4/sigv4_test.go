package sigv4_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/moodshift/internal/speech/sigv4"
)

var signer = sigv4.Signer{
	Credentials: sigv4.Credentials{AccessKey: "AKIDEXAMPLE", SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"},
	Region:      "us-east-1",
	Service:     "polly",
}

func TestDeriveKey_KnownVector(t *testing.T) {
	t.Parallel()

	// Published example from the AWS signing documentation.
	key := sigv4.DeriveKey("wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "20120215", "us-east-1", "iam")
	assert.Equal(t, "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d", hex.EncodeToString(key))
}

func TestAmzDate(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("CET", 3600))
	assert.Equal(t, "20250304T040607Z", sigv4.AmzDate(ts))
}

func TestCanonicalRequest(t *testing.T) {
	t.Parallel()

	got := sigv4.CanonicalRequest("POST", "/v1/speech", "polly.us-east-1.amazonaws.com", "20250304T040607Z", "abc")
	want := "POST\n/v1/speech\n\n" +
		"content-type:application/json\n" +
		"host:polly.us-east-1.amazonaws.com\n" +
		"x-amz-date:20250304T040607Z\n" +
		"\n" +
		"content-type;host;x-amz-date\n" +
		"abc"
	assert.Equal(t, want, got)
}

func TestStringToSign(t *testing.T) {
	t.Parallel()

	scope := sigv4.Scope("20250304", "eu-west-1", "polly")
	assert.Equal(t, "20250304/eu-west-1/polly/aws4_request", scope)

	sts := sigv4.StringToSign("20250304T040607Z", scope, "canonical")
	lines := strings.Split(sts, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, sigv4.Algorithm, lines[0])
	assert.Equal(t, "20250304T040607Z", lines[1])
	assert.Equal(t, scope, lines[2])
	assert.Equal(t, sigv4.HashHex([]byte("canonical")), lines[3])
}

func TestSign_Headers(t *testing.T) {
	t.Parallel()

	body := []byte(`{"Text":"<speak>hi</speak>"}`)
	req, err := http.NewRequest(http.MethodPost, "https://polly.us-east-1.amazonaws.com/v1/speech", nil)
	require.NoError(t, err)

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, signer.Sign(req, body, now))

	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "polly.us-east-1.amazonaws.com", req.Host)
	assert.Equal(t, "20250102T030405Z", req.Header.Get("X-Amz-Date"))

	auth := req.Header.Get("Authorization")
	assert.NotContains(t, auth, "\n")
	pattern := regexp.MustCompile(`^AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20250102/us-east-1/polly/aws4_request, SignedHeaders=content-type;host;x-amz-date, Signature=([0-9a-f]{64})$`)
	m := pattern.FindStringSubmatch(auth)
	require.Len(t, m, 2, auth)

	// Recompute the signature from its parts.
	canonical := sigv4.CanonicalRequest("POST", "/v1/speech", "polly.us-east-1.amazonaws.com", "20250102T030405Z", sigv4.HashHex(body))
	sts := sigv4.StringToSign("20250102T030405Z", sigv4.Scope("20250102", "us-east-1", "polly"), canonical)
	mac := hmac.New(sha256.New, sigv4.DeriveKey(signer.Credentials.SecretKey, "20250102", "us-east-1", "polly"))
	mac.Write([]byte(sts))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), m[1])
}

func TestSign_FreshPerCall(t *testing.T) {
	t.Parallel()

	body := []byte(`{}`)
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	a := signer.Compute("POST", "polly.us-east-1.amazonaws.com", "/v1/speech", body, t0)
	b := signer.Compute("POST", "polly.us-east-1.amazonaws.com", "/v1/speech", body, t0.Add(time.Second))
	c := signer.Compute("POST", "polly.us-east-1.amazonaws.com", "/v1/speech", []byte(`{"x":1}`), t0)

	assert.NotEqual(t, a.Authorization, b.Authorization)
	assert.NotEqual(t, a.Authorization, c.Authorization)
	assert.Equal(t, a, signer.Compute("POST", "polly.us-east-1.amazonaws.com", "/v1/speech", body, t0))
}

func TestSign_MissingCredentials(t *testing.T) {
	t.Parallel()

	req, err := http.NewRequest(http.MethodPost, "https://polly.us-east-1.amazonaws.com/v1/speech", nil)
	require.NoError(t, err)

	err = sigv4.Signer{Region: "us-east-1", Service: "polly"}.Sign(req, nil, time.Now())
	require.Error(t, err)
}
