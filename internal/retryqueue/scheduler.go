package retryqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ai-news-digest/internal/domain/entity"
)

// BackoffConfig controls the exponential backoff between retry cycles.
type BackoffConfig struct {
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration

	// MaxDelay caps the delay regardless of retry count.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor per retry cycle.
	Multiplier float64
}

// DefaultBackoffConfig returns the standard backoff: 5 minutes doubling up
// to a 24 hour ceiling.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 5 * time.Minute,
		MaxDelay:     24 * time.Hour,
		Multiplier:   2.0,
	}
}

// Delay computes the backoff delay for an item that has already failed
// retryCount retry cycles: min(InitialDelay * Multiplier^retryCount,
// MaxDelay). The result is deterministic (no jitter) and non-decreasing in
// retryCount.
func (c BackoffConfig) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := c.InitialDelay
	for i := 0; i < retryCount; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// AttemptResult is the outcome of resubmitting a queued article through the
// orchestrator's single-item path.
type AttemptResult struct {
	// Provider is the last provider attempted, or ProviderNone when no
	// provider was available.
	Provider string

	// FailedProviders lists every provider that failed during the attempt,
	// in attempt order, so each one's failure count can be recorded.
	FailedProviders []string

	// Summarized is the successful result; only valid when Err is nil.
	Summarized entity.SummarizedArticle

	// Err is nil on success.
	Err error
}

// Resubmitter retries a queued article through the normal processing path,
// including provider selection and fallback. Implemented by the
// summarization orchestrator.
type Resubmitter interface {
	Resubmit(ctx context.Context, article entity.Article) AttemptResult
}

// RunStats summarizes one scheduler or manual retry pass.
type RunStats struct {
	Attempted int
	Succeeded int
	Failed    int

	// Recovered holds the successfully summarized articles so callers can
	// merge late successes into published output.
	Recovered []entity.SummarizedArticle
}

// Scheduler drives automatic re-submission of queued items whose backoff
// window has elapsed.
type Scheduler struct {
	manager     *Manager
	resubmitter Resubmitter
	logger      *slog.Logger
	now         func() time.Time
}

// NewScheduler creates a Scheduler on top of the queue manager.
func NewScheduler(manager *Manager, resubmitter Resubmitter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		manager:     manager,
		resubmitter: resubmitter,
		logger:      logger,
		now:         time.Now,
	}
}

// ExecuteScheduledRetries pulls the currently eligible items and resubmits
// each through the orchestrator, recording the outcome on the queue. Items
// not yet eligible are left untouched, so the pass is idempotent per
// invocation window. Persistence failures abort the pass.
func (s *Scheduler) ExecuteScheduledRetries(ctx context.Context) (*RunStats, error) {
	candidates := s.manager.RetryCandidates(s.now())
	stats := &RunStats{}
	if len(candidates) == 0 {
		s.logger.Debug("no retry candidates eligible")
		return stats, nil
	}

	s.logger.Info("executing scheduled retries",
		slog.Int("candidates", len(candidates)))

	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("scheduled retries aborted: %w", err)
		}

		stats.Attempted++
		result := s.resubmitter.Resubmit(ctx, item.Payload)
		if result.Err == nil {
			if err := s.manager.MarkSuccess(item.ID); err != nil {
				return stats, err
			}
			stats.Succeeded++
			stats.Recovered = append(stats.Recovered, result.Summarized)
			continue
		}

		s.logger.Warn("scheduled retry failed",
			slog.String("article_id", item.ID),
			slog.String("provider", result.Provider),
			slog.String("reason", Classify(result.Err).Reason))
		if err := s.manager.MarkFailure(item.ID, result.FailedProviders...); err != nil {
			return stats, err
		}
		stats.Failed++
	}

	s.logger.Info("scheduled retries finished",
		slog.Int("attempted", stats.Attempted),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed))
	return stats, nil
}
