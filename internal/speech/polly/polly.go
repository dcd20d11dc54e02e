// Package polly implements speech.Client against the Amazon Polly REST API,
// signing each request by hand with SigV4.
package polly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/moodshift/internal/config"
	"github.com/nadzzz/moodshift/internal/speech"
	"github.com/nadzzz/moodshift/internal/speech/sigv4"
)

const (
	service    = "polly"
	speechPath = "/v1/speech"
)

// Client calls the SynthesizeSpeech endpoint.
type Client struct {
	creds    sigv4.Credentials
	endpoint string // overrides https://polly.{region}.amazonaws.com when set
	client   *http.Client
	now      func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithClock overrides the signing time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Polly client from config.
func New(cfg config.AWSConfig, opts ...Option) *Client {
	c := &Client{
		creds:    sigv4.Credentials{AccessKey: cfg.AccessKey, SecretKey: cfg.SecretKey},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the speech URL for region.
func (c *Client) Endpoint(region string) string {
	if c.endpoint != "" {
		return c.endpoint + speechPath
	}
	return "https://polly." + region + ".amazonaws.com" + speechPath
}

type speechRequest struct {
	Text         string `json:"Text"`
	TextType     string `json:"TextType"`
	VoiceID      string `json:"VoiceId"`
	LanguageCode string `json:"LanguageCode"`
	Engine       string `json:"Engine"`
	OutputFormat string `json:"OutputFormat"`
}

// Speak implements speech.Client. The returned bytes are the raw audio stream.
func (c *Client) Speak(ctx context.Context, in speech.SpeakRequest) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Text:         in.Markup,
		TextType:     "ssml",
		VoiceID:      in.VoiceID,
		LanguageCode: in.LanguageCode,
		Engine:       string(in.Engine),
		OutputFormat: in.OutputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(in.Region), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}

	signer := sigv4.Signer{Credentials: c.creds, Region: in.Region, Service: service}
	if err := signer.Sign(req, body, c.now()); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("polly API error (status %d): %s", resp.StatusCode, respBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio stream: %w", err)
	}
	return audio, nil
}
