// Package local implements reply.Provider using a self-hosted model.
//
// It speaks Ollama's native /api/chat and /api/generate formats and any
// OpenAI-compatible chat endpoint (Ollama's /v1, vLLM, llama.cpp server).
// The format is picked from the endpoint path.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/moodshift/internal/config"
	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/reply"
)

// Provider calls a local model server. It ignores the endpoint and model of
// incoming requests in favour of its own.
type Provider struct {
	endpoint string
	model    string
	client   *http.Client
}

// New creates a local provider from config.
func New(cfg config.SecondaryConfig) *Provider {
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	return &Provider{
		endpoint: cfg.Endpoint,
		model:    model,
		client:   &http.Client{},
	}
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return "local" }

// Complete sends the conversation to the local endpoint.
func (p *Provider) Complete(ctx context.Context, in reply.ChatRequest) (string, error) {
	bodyBytes, err := json.Marshal(p.requestBody(in))
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local LLM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("local LLM failed (status %d): %s", resp.StatusCode, respBody)
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading LLM response: %w", err)
	}

	content := extractContent(respData)
	if content == "" {
		return "", fmt.Errorf("empty response from local LLM")
	}

	slog.Debug("local completion received", "model", p.model, "content_length", len(content))
	return content, nil
}

func (p *Provider) requestBody(in reply.ChatRequest) map[string]any {
	options := map[string]any{
		"temperature":       in.Temperature,
		"top_p":             in.TopP,
		"frequency_penalty": in.FrequencyPenalty,
		"presence_penalty":  in.PresencePenalty,
	}
	if in.MaxTokens > 0 {
		options["num_predict"] = in.MaxTokens
	}

	switch {
	case strings.HasSuffix(p.endpoint, "/api/generate"):
		system, prompt := flatten(in.Messages)
		body := map[string]any{
			"model":   p.model,
			"system":  system,
			"prompt":  prompt,
			"stream":  false,
			"options": options,
		}
		if in.JSONMode {
			body["format"] = "json"
		}
		return body

	case strings.HasSuffix(p.endpoint, "/api/chat"):
		body := map[string]any{
			"model":    p.model,
			"messages": in.Messages,
			"stream":   false,
			"options":  options,
		}
		if in.JSONMode {
			body["format"] = "json"
		}
		return body

	default:
		body := map[string]any{
			"model":             p.model,
			"messages":          in.Messages,
			"temperature":       in.Temperature,
			"top_p":             in.TopP,
			"frequency_penalty": in.FrequencyPenalty,
			"presence_penalty":  in.PresencePenalty,
			"stream":            false,
		}
		if in.MaxTokens > 0 {
			body["max_tokens"] = in.MaxTokens
		}
		if in.JSONMode {
			body["response_format"] = map[string]string{"type": "json_object"}
		}
		return body
	}
}

// flatten folds a chat sequence into a single system prompt and a transcript
// prompt for /api/generate.
func flatten(msgs []message.ChatMessage) (string, string) {
	var system []string
	var sb strings.Builder
	for _, m := range msgs {
		if m.Role == message.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.Role + ": " + m.Content)
	}
	return strings.Join(system, "\n\n"), sb.String()
}

// --- Internal helpers ---

func extractContent(data []byte) string {
	// OpenAI-compatible format: {"choices": [{"message": {"content": "..."}}]}
	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chatResp); err == nil && len(chatResp.Choices) > 0 {
		return chatResp.Choices[0].Message.Content
	}

	// Ollama /api/chat: {"message": {"content": "..."}}
	var ollamaChat struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &ollamaChat); err == nil && ollamaChat.Message.Content != "" {
		return ollamaChat.Message.Content
	}

	// Ollama /api/generate: {"response": "..."}
	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &ollamaResp); err == nil && ollamaResp.Response != "" {
		return ollamaResp.Response
	}

	return string(data)
}
