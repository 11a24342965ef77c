package promptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	DefaultModel          = openai.GPT4oMini
	DefaultCacheTTL       = 5 * time.Minute
	DefaultMaxInputLength = 2000
	DefaultMaxAttempts    = 2
	DefaultTimeout        = 30 * time.Second
	cachePrefix           = "prompt:"
)

var (
	ErrEmptyInput      = errors.New("input is required")
	ErrInputTooLong    = errors.New("input is too long")
	ErrNotConfigured   = errors.New("llm client not configured")
	ErrMalformedOutput = errors.New("llm returned malformed output")
	ErrEmptyCompletion = errors.New("llm returned no choices")
	ErrUnknownField    = errors.New("unknown prompt field")
)

// Completer is the slice of the OpenAI client the facade uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Source string

const (
	SourceCache    Source = "cache"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// VideoPrompt is the structured prompt handed back to clients.
type VideoPrompt struct {
	Title          string   `json:"title"`
	Prompt         string   `json:"prompt"`
	Subject        string   `json:"subject"`
	Setting        string   `json:"setting"`
	Camera         string   `json:"camera"`
	Lighting       string   `json:"lighting"`
	Style          string   `json:"style"`
	Mood           string   `json:"mood"`
	Duration       string   `json:"duration"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Result is a generated prompt together with its encoded form. Body is what
// gets cached, so a cache hit returns exactly the bytes of the first answer.
type Result struct {
	Prompt VideoPrompt
	Body   json.RawMessage
	Source Source
}

type Config struct {
	Model          string
	CacheTTL       time.Duration
	MaxInputLength int
	MaxAttempts    int
	Timeout        time.Duration
}

type Stats struct {
	Requests    int64 `json:"requests"`
	CacheHits   int64 `json:"cache_hits"`
	LLMCalls    int64 `json:"llm_calls"`
	LLMFailures int64 `json:"llm_failures"`
	Fallbacks   int64 `json:"fallbacks"`
}

// Service generates video prompts. Lookups go cache, then LLM, then the
// local fallback. Callers never see an upstream failure.
type Service struct {
	client Completer
	cache  kvstore.Store
	cfg    Config
	log    *zap.Logger

	requests    atomic.Int64
	cacheHits   atomic.Int64
	llmCalls    atomic.Int64
	llmFailures atomic.Int64
	fallbacks   atomic.Int64
}

// New returns a Service. client may be nil, in which case every request is
// served from the cache or the fallback.
func New(client Completer, cache kvstore.Store, cfg Config, log *zap.Logger) *Service {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = DefaultMaxInputLength
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: client, cache: cache, cfg: cfg, log: log.Named("promptgen")}
}

// Normalize lowercases, trims and collapses whitespace.
func Normalize(input string) string {
	return strings.ToLower(strings.Join(strings.Fields(input), " "))
}

func (s *Service) Generate(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	if utf8.RuneCountInString(input) > s.cfg.MaxInputLength {
		return nil, fmt.Errorf("%w: at most %d characters", ErrInputTooLong, s.cfg.MaxInputLength)
	}
	s.requests.Inc()

	key := cachePrefix + Normalize(input)
	if body, err := s.cache.Get(ctx, key); err == nil {
		var prompt VideoPrompt
		if err := json.Unmarshal(body, &prompt); err == nil {
			s.cacheHits.Inc()
			return &Result{Prompt: prompt, Body: body, Source: SourceCache}, nil
		}
		s.log.Warn("dropping unreadable cache entry", zap.String("key", key))
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.log.Warn("prompt cache unavailable", zap.Error(err))
	}

	prompt, err := s.complete(ctx, input)
	if err != nil {
		s.llmFailures.Inc()
		s.fallbacks.Inc()
		s.log.Warn("serving fallback prompt", zap.Error(err))
		return encode(Fallback(input), SourceFallback)
	}

	res, err := encode(prompt, SourceLLM)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, res.Body, s.cfg.CacheTTL); err != nil {
		s.log.Warn("failed to cache prompt", zap.Error(err))
	}
	return res, nil
}

func (s *Service) complete(ctx context.Context, input string) (VideoPrompt, error) {
	content, err := s.chat(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generateSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		MaxTokens:      700,
		Temperature:    0.8,
	})
	if err != nil {
		return VideoPrompt{}, err
	}
	return parseVideoPrompt(content)
}

// chat runs the request, retrying up to MaxAttempts. It returns the first
// non-empty message content.
func (s *Service) chat(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s.llmCalls.Inc()
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		resp, err := s.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			lastErr = ErrEmptyCompletion
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("after %d attempts: %w", s.cfg.MaxAttempts, lastErr)
}

func parseVideoPrompt(content string) (VideoPrompt, error) {
	var prompt VideoPrompt
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &prompt); err != nil {
		return VideoPrompt{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	prompt.Prompt = strings.TrimSpace(prompt.Prompt)
	if prompt.Prompt == "" {
		return VideoPrompt{}, fmt.Errorf("%w: missing prompt", ErrMalformedOutput)
	}
	return prompt, nil
}

func encode(prompt VideoPrompt, source Source) (*Result, error) {
	body, err := json.Marshal(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt: %w", err)
	}
	return &Result{Prompt: prompt, Body: body, Source: source}, nil
}

func (s *Service) Stats() Stats {
	return Stats{
		Requests:    s.requests.Load(),
		CacheHits:   s.cacheHits.Load(),
		LLMCalls:    s.llmCalls.Load(),
		LLMFailures: s.llmFailures.Load(),
		Fallbacks:   s.fallbacks.Load(),
	}
}

const generateSystemPrompt = `You write prompts for AI video generators.
Turn the user's idea into one production-ready video prompt.
Answer with a single JSON object and nothing else, using these keys:
"title" (max 8 words), "prompt" (one vivid paragraph, under 120 words),
"subject", "setting", "camera" (shot type and movement), "lighting",
"style", "mood", "duration" (for example "8s"), "negative_prompt",
"tags" (up to 6 short strings).`
