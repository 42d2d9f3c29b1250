package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"ai-news-digest/internal/resilience/circuitbreaker"
	pkgconfig "ai-news-digest/pkg/config"
)

// ProviderClaude is the provider identity used in status tracking, queue
// entries, and metrics.
const ProviderClaude = "claude"

// LoadClaudeConfig loads Claude-specific configuration from the environment.
//
// Environment variables (in addition to the shared summarizer variables):
//   - CLAUDE_MODEL: Model identifier (default: claude-sonnet-4-5)
//   - CLAUDE_MAX_TOKENS: Response token budget (default: 1024)
func LoadClaudeConfig() Config {
	cfg := loadSharedConfig()
	cfg.Model = pkgconfig.GetEnvString("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")
	cfg.MaxTokens = pkgconfig.GetEnvInt("CLAUDE_MAX_TOKENS", cfg.MaxTokens)
	return cfg
}

// Claude summarizes text through Anthropic's Claude API. Calls go through a
// circuit breaker and a per-provider rate limiter; each Summarize performs a
// single remote attempt.
type Claude struct {
	client  anthropic.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
	config  Config
	metrics MetricsRecorder
}

// NewClaude creates a Claude adapter with the given API key.
func NewClaude(apiKey string, metrics MetricsRecorder) *Claude {
	cfg := LoadClaudeConfig()
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	slog.Info("initialized claude summarizer",
		slog.String("model", cfg.Model),
		slog.Int("character_limit", cfg.CharacterLimit),
		slog.Int("requests_per_minute", cfg.RequestsPerMinute))

	return &Claude{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		breaker: circuitbreaker.New(circuitbreaker.ProviderConfig(ProviderClaude)),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		config:  cfg,
		metrics: metrics,
	}
}

// Name implements the provider identity.
func (c *Claude) Name() string {
	return ProviderClaude
}

// Summarize generates a summary of the given text. Errors are returned
// unclassified; the retry subsystem decides what is transient.
func (c *Claude) Summarize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("claude rate pacing: %w", err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSummarize(ctx, text)
	})
	duration := time.Since(start)

	if err != nil {
		c.metrics.RecordCall(ProviderClaude, "error", duration)
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("claude api circuit breaker open, request rejected",
				slog.String("state", c.breaker.State().String()))
			return "", fmt.Errorf("claude api unavailable: circuit breaker open")
		}
		return "", err
	}

	summary := result.(string)
	c.metrics.RecordCall(ProviderClaude, "success", duration)
	c.metrics.RecordSummaryLength(ProviderClaude, utf8.RuneCountInString(summary))
	return summary, nil
}

// doSummarize performs the actual API call.
func (c *Claude) doSummarize(ctx context.Context, inputText string) (string, error) {
	prompt := buildPrompt(c.config, truncateInput(inputText))

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	summary := textBlock.Text
	if n := utf8.RuneCountInString(summary); n > c.config.CharacterLimit {
		slog.Warn("summary exceeds character limit",
			slog.String("provider", ProviderClaude),
			slog.Int("summary_length", n),
			slog.Int("limit", c.config.CharacterLimit))
	}
	return summary, nil
}
