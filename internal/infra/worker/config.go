// Package worker provides the operational shell for the scheduled digest
// pipeline: cron configuration, health endpoints, and job metrics.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"ai-news-digest/pkg/config"
)

// Config controls the worker's scheduling and operational parameters.
//
// All fields have defaults and validation rules so the worker can start
// safely even with missing or invalid environment configuration; invalid
// values fall back to the default with a warning.
type Config struct {
	// CronSchedule is the 5-field cron expression for the daily pipeline run.
	// Default: "0 6 * * *" (every day at 06:00).
	CronSchedule string

	// RetryCronSchedule is the cron expression for scheduled retry sweeps.
	// Default: "*/10 * * * *" (every 10 minutes).
	RetryCronSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Default: "Asia/Tokyo".
	Timezone string

	// PipelineTimeout bounds a single pipeline run (collect, summarize,
	// publish). Default: 30 minutes.
	PipelineTimeout time.Duration

	// RetryTimeout bounds a single scheduled retry sweep.
	// Default: 10 minutes.
	RetryTimeout time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091.
	HealthPort int

	// MetricsPort is the port for the Prometheus metrics HTTP server.
	// Range: 1024-65535. Default: 9090.
	MetricsPort int
}

// DefaultConfig returns a Config with production defaults: one pipeline
// run at 06:00 JST, retry sweeps every 10 minutes, 30-minute job timeout.
func DefaultConfig() Config {
	return Config{
		CronSchedule:      "0 6 * * *",
		RetryCronSchedule: "*/10 * * * *",
		Timezone:          "Asia/Tokyo",
		PipelineTimeout:   30 * time.Minute,
		RetryTimeout:      10 * time.Minute,
		HealthPort:        9091,
		MetricsPort:       9090,
	}
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables, falling back to defaults field by field on invalid values.
//
// Environment variables:
//   - CRON_SCHEDULE: pipeline cron expression (default "0 6 * * *")
//   - RETRY_CRON_SCHEDULE: retry sweep cron expression (default "*/10 * * * *")
//   - WORKER_TIMEZONE: IANA timezone (default "Asia/Tokyo")
//   - PIPELINE_TIMEOUT: duration string (default "30m")
//   - RETRY_SWEEP_TIMEOUT: duration string (default "10m")
//   - WORKER_HEALTH_PORT: 1024-65535 (default 9091)
//   - WORKER_METRICS_PORT: 1024-65535 (default 9090)
//
// The returned configuration is always valid.
func LoadConfigFromEnv(logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	cfg := Config{
		CronSchedule:      config.GetEnvString("CRON_SCHEDULE", def.CronSchedule),
		RetryCronSchedule: config.GetEnvString("RETRY_CRON_SCHEDULE", def.RetryCronSchedule),
		Timezone:          config.GetEnvString("WORKER_TIMEZONE", def.Timezone),
		PipelineTimeout:   config.GetEnvDuration("PIPELINE_TIMEOUT", def.PipelineTimeout),
		RetryTimeout:      config.GetEnvDuration("RETRY_SWEEP_TIMEOUT", def.RetryTimeout),
		HealthPort:        config.GetEnvInt("WORKER_HEALTH_PORT", def.HealthPort),
		MetricsPort:       config.GetEnvInt("WORKER_METRICS_PORT", def.MetricsPort),
	}

	// Fall back per field so one bad variable never blocks startup.
	if err := config.ValidateCronSchedule(cfg.CronSchedule); err != nil {
		logger.Warn("invalid pipeline cron schedule, using default",
			slog.String("value", cfg.CronSchedule),
			slog.String("default", def.CronSchedule),
			slog.String("error", err.Error()))
		cfg.CronSchedule = def.CronSchedule
	}
	if err := config.ValidateCronSchedule(cfg.RetryCronSchedule); err != nil {
		logger.Warn("invalid retry cron schedule, using default",
			slog.String("value", cfg.RetryCronSchedule),
			slog.String("default", def.RetryCronSchedule),
			slog.String("error", err.Error()))
		cfg.RetryCronSchedule = def.RetryCronSchedule
	}
	if err := config.ValidateTimezone(cfg.Timezone); err != nil {
		logger.Warn("invalid timezone, using default",
			slog.String("value", cfg.Timezone),
			slog.String("default", def.Timezone),
			slog.String("error", err.Error()))
		cfg.Timezone = def.Timezone
	}
	if err := config.ValidatePositiveDuration(cfg.PipelineTimeout); err != nil {
		cfg.PipelineTimeout = def.PipelineTimeout
	}
	if err := config.ValidatePositiveDuration(cfg.RetryTimeout); err != nil {
		cfg.RetryTimeout = def.RetryTimeout
	}
	if err := config.ValidateIntRange(cfg.HealthPort, 1024, 65535); err != nil {
		cfg.HealthPort = def.HealthPort
	}
	if err := config.ValidateIntRange(cfg.MetricsPort, 1024, 65535); err != nil {
		cfg.MetricsPort = def.MetricsPort
	}

	return cfg
}

// Validate checks all configuration fields, collecting every violation.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateCronSchedule(c.RetryCronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("retry cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.PipelineTimeout); err != nil {
		errs = append(errs, fmt.Errorf("pipeline timeout: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.RetryTimeout); err != nil {
		errs = append(errs, fmt.Errorf("retry timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}
