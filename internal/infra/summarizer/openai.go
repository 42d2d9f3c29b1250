package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"ai-news-digest/internal/resilience/circuitbreaker"
	pkgconfig "ai-news-digest/pkg/config"
)

// ProviderOpenAI is the provider identity used in status tracking, queue
// entries, and metrics.
const ProviderOpenAI = "openai"

// LoadOpenAIConfig loads OpenAI-specific configuration from the environment.
//
// Environment variables (in addition to the shared summarizer variables):
//   - OPENAI_MODEL: Model identifier (default: gpt-4o-mini)
//   - OPENAI_MAX_TOKENS: Response token budget (default: 1024)
func LoadOpenAIConfig() Config {
	cfg := loadSharedConfig()
	cfg.Model = pkgconfig.GetEnvString("OPENAI_MODEL", openai.GPT4oMini)
	cfg.MaxTokens = pkgconfig.GetEnvInt("OPENAI_MAX_TOKENS", cfg.MaxTokens)
	return cfg
}

// OpenAI summarizes text through OpenAI's chat completion API. Calls go
// through a circuit breaker and a per-provider rate limiter; each Summarize
// performs a single remote attempt.
type OpenAI struct {
	client  *openai.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
	config  Config
	metrics MetricsRecorder
}

// NewOpenAI creates an OpenAI adapter with the given API key.
func NewOpenAI(apiKey string, metrics MetricsRecorder) *OpenAI {
	cfg := LoadOpenAIConfig()
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	slog.Info("initialized openai summarizer",
		slog.String("model", cfg.Model),
		slog.Int("character_limit", cfg.CharacterLimit),
		slog.Int("requests_per_minute", cfg.RequestsPerMinute))

	return &OpenAI{
		client:  openai.NewClient(apiKey),
		breaker: circuitbreaker.New(circuitbreaker.ProviderConfig(ProviderOpenAI)),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		config:  cfg,
		metrics: metrics,
	}
}

// Name implements the provider identity.
func (o *OpenAI) Name() string {
	return ProviderOpenAI
}

// Summarize generates a summary of the given text. Errors are returned
// unclassified; the retry subsystem decides what is transient.
func (o *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("openai rate pacing: %w", err)
	}

	start := time.Now()
	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.doSummarize(ctx, text)
	})
	duration := time.Since(start)

	if err != nil {
		o.metrics.RecordCall(ProviderOpenAI, "error", duration)
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("openai api circuit breaker open, request rejected",
				slog.String("state", o.breaker.State().String()))
			return "", fmt.Errorf("openai api unavailable: circuit breaker open")
		}
		return "", err
	}

	summary := result.(string)
	o.metrics.RecordCall(ProviderOpenAI, "success", duration)
	o.metrics.RecordSummaryLength(ProviderOpenAI, utf8.RuneCountInString(summary))
	return summary, nil
}

// doSummarize performs the actual API call.
func (o *OpenAI) doSummarize(ctx context.Context, inputText string) (string, error) {
	prompt := buildPrompt(o.config, truncateInput(inputText))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned no choices")
	}

	summary := resp.Choices[0].Message.Content
	if n := utf8.RuneCountInString(summary); n > o.config.CharacterLimit {
		slog.Warn("summary exceeds character limit",
			slog.String("provider", ProviderOpenAI),
			slog.Int("summary_length", n),
			slog.Int("limit", o.config.CharacterLimit))
	}
	return summary, nil
}
