// Package reply produces the supportive reply text for a request by calling
// a chat-completions model and cleaning what it returns.
//
// Providers are tried in order (hosted first, then an optional self-hosted
// model). When every provider fails the caller substitutes a local fallback:
// a canned phrase for new replies, or AmplifyManually for intensify requests.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/moodshift/internal/message"
)

// ErrEmptyReply is returned when the model produced no usable text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// ChatRequest is one chat-completions call.
type ChatRequest struct {
	// Endpoint and Model come from the runtime settings. Self-hosted
	// providers use their own.
	Endpoint string
	Model    string

	Messages         []message.ChatMessage
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64

	// JSONMode asks for a JSON object response.
	JSONMode bool
}

// Provider performs chat completions and returns the raw content of the
// first choice.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Chain tries each provider in turn, giving every attempt its own timeout.
type Chain struct {
	providers []Provider
}

// NewChain creates a chain; nil providers are skipped.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Len returns the number of providers.
func (c *Chain) Len() int { return len(c.providers) }

// Complete returns the first successful completion, or the joined errors of
// every attempt.
func (c *Chain) Complete(ctx context.Context, req ChatRequest, timeout time.Duration) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no reply providers configured")
	}

	var errs []error
	for _, p := range c.providers {
		content, err := complete(ctx, p, req, timeout)
		if err == nil {
			return content, nil
		}
		slog.Warn("reply provider failed", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", errors.Join(errs...)
}

func complete(ctx context.Context, p Provider, req ChatRequest, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Complete(ctx, req)
}
