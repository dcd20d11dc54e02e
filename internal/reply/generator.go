package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/moodshift/internal/conversation"
	"github.com/nadzzz/moodshift/internal/message"
	"github.com/nadzzz/moodshift/internal/settings"
)

const intensifySystemPrompt = "You are MoodShift AI in MAXIMUM POWER MODE. Amplify responses to 2× intensity. ALWAYS respond with valid JSON only."

// Sampling for intensify calls; these are fixed rather than read from settings.
const (
	intensifyTemperature      = 0.9
	intensifyFrequencyPenalty = 0.2
	intensifyPresencePenalty  = 0.8
)

// Generator builds prompts and runs them through a provider chain.
type Generator struct {
	chain *Chain
}

// NewGenerator creates a Generator.
func NewGenerator(chain *Chain) *Generator {
	return &Generator{chain: chain}
}

func baseRequest(llm settings.LLM, msgs []message.ChatMessage) ChatRequest {
	return ChatRequest{
		Endpoint:         llm.APIURL,
		Model:            llm.Model,
		Messages:         msgs,
		Temperature:      llm.Temperature,
		MaxTokens:        llm.MaxTokens,
		TopP:             1,
		FrequencyPenalty: llm.FrequencyPenalty,
		PresencePenalty:  llm.PresencePenalty,
		JSONMode:         true,
	}
}

// Generate produces a fresh reply to text given the device's history.
func (g *Generator) Generate(
	ctx context.Context,
	history []conversation.Message,
	text string,
	prompts settings.Prompts,
	languageName string,
	llm settings.LLM,
) (Result, error) {
	msgs := conversation.BuildMessages(history, text, prompts.SystemPrompt, languageName)
	slog.Debug("generating reply", "model", llm.Model, "messages", len(msgs))
	return g.run(ctx, baseRequest(llm, msgs), llm)
}

// Intensify rewrites a prior reply into a stronger version of itself.
func (g *Generator) Intensify(
	ctx context.Context,
	prior string,
	style message.Style,
	languageName string,
	prompts settings.Prompts,
	llm settings.LLM,
) (Result, error) {
	label := style.Label()
	instruction := strings.ReplaceAll(prompts.StrongerPrompt, "{style}", label)
	instruction = strings.ReplaceAll(instruction, "$languageName", languageName)

	user := fmt.Sprintf("ORIGINAL RESPONSE: \"%s\"\nORIGINAL STYLE: %s\n\n%s", prior, label, instruction)
	req := baseRequest(llm, []message.ChatMessage{
		{Role: message.RoleSystem, Content: intensifySystemPrompt},
		{Role: message.RoleUser, Content: user},
	})
	req.Temperature = intensifyTemperature
	req.FrequencyPenalty = intensifyFrequencyPenalty
	req.PresencePenalty = intensifyPresencePenalty

	return g.run(ctx, req, llm)
}

func (g *Generator) run(ctx context.Context, req ChatRequest, llm settings.LLM) (Result, error) {
	content, err := g.chain.Complete(ctx, req, llm.Timeout())
	if err != nil {
		return Result{}, err
	}

	res := Parse(content, llm.MaxResponseWords, llm.StyleFromModel)
	if res.Text == "" {
		return Result{}, ErrEmptyReply
	}
	return res, nil
}
