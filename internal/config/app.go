// Package config assembles the application-level configuration for the
// digest pipeline: retry policy, provider weights, data paths, and API
// credentials from the environment, plus the feed list from YAML.
package config

import (
	"fmt"
	"time"

	"ai-news-digest/internal/retryqueue"
	"ai-news-digest/pkg/config"
)

// AppConfig is the fully resolved application configuration.
type AppConfig struct {
	// Retry is the durable retry queue policy.
	Retry retryqueue.Config

	// RetryQueuePath is the JSON file backing the retry queue.
	RetryQueuePath string

	// CleanupMaxAge is how long failed items are retained before cleanup
	// removes them regardless of retry state.
	CleanupMaxAge time.Duration

	// RetentionDays is how long published daily output is kept.
	RetentionDays int

	// OutputPath is the root directory for published JSON artifacts.
	OutputPath string

	// FeedsFile is the YAML file listing feed sources and provider
	// preferences.
	FeedsFile string

	// ProviderWeights drives the weighted batch distribution. Overridden by
	// the feeds file when it carries a weights section.
	ProviderWeights map[string]float64

	// RateLimitCooldown is how long a provider is benched after a
	// rate-limit or quota failure.
	RateLimitCooldown time.Duration

	// AnthropicAPIKey and OpenAIAPIKey enable the respective providers.
	// An empty key disables the provider.
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// Load reads the application configuration from the environment.
//
// Environment variables:
//   - MAX_RETRIES: retry cycles before exhaustion (default 5)
//   - RETRY_INITIAL_DELAY: first backoff delay (default 300s)
//   - RETRY_MAX_DELAY: backoff ceiling (default 24h)
//   - RETRY_BACKOFF_MULTIPLIER: exponential factor (default 2.0)
//   - RETRY_QUEUE_PATH: queue file (default data/retry_queue.json)
//   - RETRY_CLEANUP_MAX_AGE: item retention (default 168h)
//   - RETENTION_DAYS: published data retention (default 30)
//   - OUTPUT_PATH: publish root (default data/public)
//   - FEEDS_FILE: feed list (default config/feeds.yaml)
//   - PROVIDER_WEIGHTS: e.g. "claude=0.5,openai=0.5"
//   - PROVIDER_RATE_LIMIT_COOLDOWN: bench duration (default 5m)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: provider credentials
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Retry: retryqueue.Config{
			MaxRetries: config.GetEnvInt("MAX_RETRIES", retryqueue.DefaultMaxRetries),
			Backoff: retryqueue.BackoffConfig{
				InitialDelay: config.GetEnvDuration("RETRY_INITIAL_DELAY", 300*time.Second),
				MaxDelay:     config.GetEnvDuration("RETRY_MAX_DELAY", 24*time.Hour),
				Multiplier:   config.GetEnvFloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
			},
		},
		RetryQueuePath: config.GetEnvString("RETRY_QUEUE_PATH", "data/retry_queue.json"),
		CleanupMaxAge:  config.GetEnvDuration("RETRY_CLEANUP_MAX_AGE", 168*time.Hour),
		RetentionDays:  config.GetEnvInt("RETENTION_DAYS", 30),
		OutputPath:     config.GetEnvString("OUTPUT_PATH", "data/public"),
		FeedsFile:      config.GetEnvString("FEEDS_FILE", "config/feeds.yaml"),
		ProviderWeights: config.GetEnvWeights("PROVIDER_WEIGHTS", map[string]float64{
			"claude": 0.5,
			"openai": 0.5,
		}),
		RateLimitCooldown: config.GetEnvDuration("PROVIDER_RATE_LIMIT_COOLDOWN", 5*time.Minute),
		AnthropicAPIKey:   config.GetEnvString("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:      config.GetEnvString("OPENAI_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values that would break the
// retry policy at runtime.
func (c *AppConfig) Validate() error {
	if err := config.ValidateIntRange(c.Retry.MaxRetries, 1, 100); err != nil {
		return fmt.Errorf("max retries: %w", err)
	}
	if err := config.ValidatePositiveDuration(c.Retry.Backoff.InitialDelay); err != nil {
		return fmt.Errorf("retry initial delay: %w", err)
	}
	if err := config.ValidatePositiveDuration(c.Retry.Backoff.MaxDelay); err != nil {
		return fmt.Errorf("retry max delay: %w", err)
	}
	if c.Retry.Backoff.MaxDelay < c.Retry.Backoff.InitialDelay {
		return fmt.Errorf("retry max delay %v is below initial delay %v",
			c.Retry.Backoff.MaxDelay, c.Retry.Backoff.InitialDelay)
	}
	if c.Retry.Backoff.Multiplier < 1.0 {
		return fmt.Errorf("retry backoff multiplier must be >= 1.0, got %g", c.Retry.Backoff.Multiplier)
	}
	if err := config.ValidatePositiveDuration(c.CleanupMaxAge); err != nil {
		return fmt.Errorf("cleanup max age: %w", err)
	}
	if err := config.ValidateIntRange(c.RetentionDays, 1, 3650); err != nil {
		return fmt.Errorf("retention days: %w", err)
	}
	return nil
}
