package promptgen

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Fields that Enhance knows how to rewrite, with the phrase the fallback
// appends to each.
var enhanceDecorations = map[string]string{
	"prompt":          "cinematic composition, rich detail, natural motion",
	"subject":         "expressive and clearly framed",
	"setting":         "richly detailed environment",
	"camera":          "smooth stabilized movement",
	"lighting":        "carefully motivated light sources",
	"style":           "consistent visual language",
	"mood":            "emotionally resonant",
	"negative_prompt": "low quality, flicker",
}

type Enhancement struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Source Source `json:"-"`
}

// Enhance rewrites a single prompt field. Results are never cached, and a
// failed call falls back to the input with a field specific decoration.
func (s *Service) Enhance(ctx context.Context, field, value, promptContext string) (*Enhancement, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	value = strings.TrimSpace(value)
	decoration, ok := enhanceDecorations[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if value == "" {
		return nil, ErrEmptyInput
	}
	if utf8.RuneCountInString(value)+utf8.RuneCountInString(promptContext) > s.cfg.MaxInputLength {
		return nil, fmt.Errorf("%w: at most %d characters", ErrInputTooLong, s.cfg.MaxInputLength)
	}

	user := fmt.Sprintf("Field: %s\nCurrent value: %s", field, value)
	if c := strings.TrimSpace(promptContext); c != "" {
		user += "\nRest of the prompt: " + c
	}

	content, err := s.chat(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: enhanceSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   250,
		Temperature: 0.7,
	})
	enhanced := strings.TrimSpace(strings.Trim(strings.TrimSpace(content), `"`))
	if err == nil && enhanced == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		s.llmFailures.Inc()
		s.fallbacks.Inc()
		s.log.Warn("serving fallback enhancement", zap.String("field", field), zap.Error(err))
		return &Enhancement{Field: field, Value: value + ", " + decoration, Source: SourceFallback}, nil
	}

	return &Enhancement{Field: field, Value: enhanced, Source: SourceLLM}, nil
}

const enhanceSystemPrompt = `You improve one field of an AI video prompt.
Rewrite the given value so it is more vivid and specific while keeping the
user's intent and staying consistent with the rest of the prompt.
Reply with the new value only, no quotes and no explanation.`
