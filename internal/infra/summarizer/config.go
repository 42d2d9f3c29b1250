// Package summarizer provides AI provider adapters for text summarization.
// It includes Claude (Anthropic) and OpenAI implementations with circuit
// breakers, per-provider rate pacing, and Prometheus metrics.
//
// Adapters perform exactly one remote attempt per call: cross-run retries of
// failed summarizations belong to the durable queue in internal/retryqueue,
// which classifies the errors these adapters return.
package summarizer

import (
	"fmt"
	"time"

	pkgconfig "ai-news-digest/pkg/config"
)

const (
	// minCharLimit is the minimum allowed character limit for summaries.
	minCharLimit = 100

	// maxCharLimit is the maximum allowed character limit for summaries.
	maxCharLimit = 5000

	defaultCharLimit = 900
)

// Config holds the shared configuration for a provider adapter.
type Config struct {
	// CharacterLimit is the maximum number of characters allowed in a
	// summary. Valid range: 100-5000. Default: 900.
	CharacterLimit int

	// Language is the target language for summaries.
	Language string

	// Model is the provider's model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single summarization call.
	Timeout time.Duration

	// RequestsPerMinute paces calls to the provider. Providers enforce
	// their own rate limits; issuing calls faster only amplifies
	// rate-limit errors.
	RequestsPerMinute int
}

// Validate checks the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := ValidateCharacterLimit(c.CharacterLimit); err != nil {
		return fmt.Errorf("invalid character limit: %w", err)
	}
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", c.RequestsPerMinute)
	}
	return nil
}

// loadSharedConfig reads the provider-independent settings from the
// environment.
//
// Environment variables:
//   - SUMMARIZER_CHAR_LIMIT: Character limit (default: 900, range: 100-5000)
//   - SUMMARIZER_LANGUAGE: Target language (default: "japanese")
//   - PROVIDER_TIMEOUT: Per-call timeout (default: 60s)
//   - PROVIDER_REQUESTS_PER_MINUTE: Call pacing (default: 20)
func loadSharedConfig() Config {
	charLimit := pkgconfig.GetEnvInt("SUMMARIZER_CHAR_LIMIT", defaultCharLimit)
	if err := ValidateCharacterLimit(charLimit); err != nil {
		charLimit = defaultCharLimit
	}
	return Config{
		CharacterLimit:    charLimit,
		Language:          pkgconfig.GetEnvString("SUMMARIZER_LANGUAGE", "japanese"),
		MaxTokens:         1024,
		Timeout:           pkgconfig.GetEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		RequestsPerMinute: pkgconfig.GetEnvInt("PROVIDER_REQUESTS_PER_MINUTE", 20),
	}
}

// ValidateCharacterLimit validates that the character limit is within the
// valid range (100-5000).
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit {
		return fmt.Errorf("character limit %d is below minimum %d", limit, minCharLimit)
	}
	if limit > maxCharLimit {
		return fmt.Errorf("character limit %d exceeds maximum %d", limit, maxCharLimit)
	}
	return nil
}

// buildPrompt constructs the summarization prompt for the configured
// language and character limit.
func buildPrompt(cfg Config, text string) string {
	return fmt.Sprintf("以下のテキストを%sで%d文字以内で要約してください：\n%s",
		cfg.Language, cfg.CharacterLimit, text)
}

// truncateInput caps summarization input length so one oversized article
// cannot blow the provider's token budget.
func truncateInput(text string) string {
	const maxChars = 10000
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "...\n(内容が長いため切り詰めました)"
}
