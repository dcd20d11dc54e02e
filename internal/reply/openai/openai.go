// Package openai implements reply.Provider against any OpenAI-compatible
// Chat Completions endpoint. The default settings point it at Groq.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/reply"
)

// Provider calls a hosted chat-completions API with a bearer token.
type Provider struct {
	apiKey string
	client *http.Client
}

// New creates a provider authenticating with apiKey.
func New(apiKey string) *Provider {
	return &Provider{
		apiKey: apiKey,
		client: &http.Client{},
	}
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return "openai" }

// Complete sends req to req.Endpoint and returns the first choice's content.
func (p *Provider) Complete(ctx context.Context, in reply.ChatRequest) (string, error) {
	reqBody := chatRequest{
		Model:            in.Model,
		Messages:         in.Messages,
		Temperature:      in.Temperature,
		MaxTokens:        in.MaxTokens,
		TopP:             in.TopP,
		FrequencyPenalty: in.FrequencyPenalty,
		PresencePenalty:  in.PresencePenalty,
	}
	if in.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.Endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}

	content := chatResp.Choices[0].Message.Content
	slog.Debug("chat completion received", "model", in.Model, "content_length", len(content))
	return content, nil
}

// --- Internal types ---

type chatRequest struct {
	Model            string                `json:"model"`
	Messages         []message.ChatMessage `json:"messages"`
	Temperature      float64               `json:"temperature"`
	MaxTokens        int                   `json:"max_tokens,omitempty"`
	TopP             float64               `json:"top_p"`
	FrequencyPenalty float64               `json:"frequency_penalty"`
	PresencePenalty  float64               `json:"presence_penalty"`
	ResponseFormat   *responseFormat       `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
