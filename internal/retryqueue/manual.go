package retryqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ai-news-digest/internal/domain/entity"
)

// ManualHandler resubmits queued items on demand, bypassing the backoff
// schedule but still respecting MaxRetries. It is the operator-facing entry
// point used by the retryctl CLI.
type ManualHandler struct {
	manager     *Manager
	resubmitter Resubmitter
	logger      *slog.Logger
}

// NewManualHandler creates a ManualHandler on top of the queue manager.
func NewManualHandler(manager *Manager, resubmitter Resubmitter, logger *slog.Logger) *ManualHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManualHandler{
		manager:     manager,
		resubmitter: resubmitter,
		logger:      logger,
	}
}

// RetryAll immediately resubmits every non-exhausted queued item, ignoring
// NextRetryAt. When the provider pool is fully unavailable the pass aborts
// with an explicit error rather than burning a retry cycle on every item.
func (h *ManualHandler) RetryAll(ctx context.Context) (*RunStats, error) {
	return h.retryItems(ctx, h.manager.ActiveItems())
}

// RetryByProvider restricts the manual retry to items whose recorded
// failures implicate the given provider.
func (h *ManualHandler) RetryByProvider(ctx context.Context, provider string) (*RunStats, error) {
	var matched []Item
	for _, item := range h.manager.ActiveItems() {
		if item.ProviderFailures[provider] > 0 {
			matched = append(matched, item)
		}
	}
	h.logger.Info("manual retry scoped to provider",
		slog.String("provider", provider),
		slog.Int("matched", len(matched)))
	return h.retryItems(ctx, matched)
}

// Status returns the current queue summary. It never mutates state.
func (h *ManualHandler) Status() Status {
	return h.manager.Status()
}

func (h *ManualHandler) retryItems(ctx context.Context, items []Item) (*RunStats, error) {
	stats := &RunStats{}
	if len(items) == 0 {
		h.logger.Info("manual retry: queue has no matching items")
		return stats, nil
	}

	h.logger.Info("manual retry started", slog.Int("items", len(items)))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("manual retry aborted: %w", err)
		}

		stats.Attempted++
		result := h.resubmitter.Resubmit(ctx, item.Payload)
		if result.Err == nil {
			if err := h.manager.MarkSuccess(item.ID); err != nil {
				return stats, err
			}
			stats.Succeeded++
			stats.Recovered = append(stats.Recovered, result.Summarized)
			continue
		}

		// A fully exhausted provider pool on a mandatory synchronous path is
		// surfaced to the caller instead of being swallowed per item.
		if errors.Is(result.Err, entity.ErrNoProviderAvailable) {
			return stats, fmt.Errorf("manual retry: %w", result.Err)
		}

		if err := h.manager.MarkFailure(item.ID, result.FailedProviders...); err != nil {
			return stats, err
		}
		stats.Failed++
	}

	h.logger.Info("manual retry finished",
		slog.Int("attempted", stats.Attempted),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed))
	return stats, nil
}
