// Package summarize orchestrates batch summarization across multiple AI
// providers: it distributes items, tracks provider health, falls back
// between providers, and feeds retryable failures into the durable queue.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-news-digest/internal/domain/entity"
	"ai-news-digest/internal/provider"
	"ai-news-digest/internal/retryqueue"
)

// Provider is the capability the orchestrator consumes from each AI
// provider adapter. Errors are opaque values handed to the classifier.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, text string) (string, error)
}

// Config holds orchestration tuning knobs.
type Config struct {
	// RateLimitCooldown is how long a provider is benched after a
	// rate-limit or quota failure.
	RateLimitCooldown time.Duration

	// MaxInflightPerProvider bounds concurrent calls within one provider's
	// batch. Providers enforce their own rate limits, so this stays small;
	// 1 fully serializes the provider's call stream.
	MaxInflightPerProvider int
}

// DefaultConfig returns the standard orchestration settings.
func DefaultConfig() Config {
	return Config{
		RateLimitCooldown:      5 * time.Minute,
		MaxInflightPerProvider: 1,
	}
}

// Service is the composition root for a summarization run. Provider state is
// owned by the injected registry and queue state by the injected manager;
// the service itself is stateless across batches.
type Service struct {
	providers map[string]Provider
	registry  *provider.Registry
	selector  *provider.Selector
	queue     *retryqueue.Manager
	cfg       Config
	logger    *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates the orchestrator.
func NewService(providers map[string]Provider, registry *provider.Registry, selector *provider.Selector, queue *retryqueue.Manager, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = 5 * time.Minute
	}
	if cfg.MaxInflightPerProvider <= 0 {
		cfg.MaxInflightPerProvider = 1
	}
	return &Service{
		providers: providers,
		registry:  registry,
		selector:  selector,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// QueuedItem is an item that failed with a retryable error and entered the
// retry queue.
type QueuedItem struct {
	Article entity.Article
	Reason  string
}

// FailedItem is an item that failed permanently and was dropped from
// automatic processing.
type FailedItem struct {
	Article entity.Article
	Reason  string
}

// BatchResult partitions a processed batch. Succeeded preserves the original
// input ordering of items, not completion order. Individual item failures
// never abort the batch; only queue persistence failures do.
type BatchResult struct {
	Succeeded []entity.SummarizedArticle
	Queued    []QueuedItem
	Failed    []FailedItem
	Duration  time.Duration
}

// itemOutcome is the per-index result of a batch slot.
type itemOutcome struct {
	summarized entity.SummarizedArticle
	queued     bool
	failed     bool
	reason     string
}

// ProcessBatch summarizes a batch of articles. Items are distributed across
// available providers by weight, batches run in parallel across providers
// with calls serialized (bounded) within each provider, and failures are
// classified: retryable ones enter the durable queue, permanent ones are
// reported in the result.
func (s *Service) ProcessBatch(ctx context.Context, items []entity.Article) (*BatchResult, error) {
	start := s.now()
	result := &BatchResult{}
	if len(items) == 0 {
		return result, nil
	}

	outcomes := make([]itemOutcome, len(items))
	assignments, unassigned := s.selector.Distribute(len(items), s.now())

	// A fully unavailable pool fails the whole batch into the queue rather
	// than silently dropping it.
	for _, idx := range unassigned {
		if err := s.queue.AddFailedItem(items[idx], retryqueue.ReasonNoProvider, retryqueue.ProviderNone); err != nil {
			return result, err
		}
		outcomes[idx] = itemOutcome{queued: true, reason: retryqueue.ReasonNoProvider}
	}

	g, gctx := errgroup.WithContext(ctx)
	for providerName, indices := range assignments {
		pg := &errgroup.Group{}
		pg.SetLimit(s.cfg.MaxInflightPerProvider)
		first := providerName
		idxs := indices
		g.Go(func() error {
			for _, idx := range idxs {
				i := idx
				pg.Go(func() error {
					outcome, err := s.processAssigned(gctx, items[i], first)
					if err != nil {
						return err
					}
					outcomes[i] = outcome
					return nil
				})
			}
			return pg.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for i, out := range outcomes {
		switch {
		case out.queued:
			result.Queued = append(result.Queued, QueuedItem{Article: items[i], Reason: out.reason})
		case out.failed:
			result.Failed = append(result.Failed, FailedItem{Article: items[i], Reason: out.reason})
		default:
			result.Succeeded = append(result.Succeeded, out.summarized)
		}
	}
	result.Duration = s.now().Sub(start)

	s.logger.Info("batch processed",
		slog.Int("items", len(items)),
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("queued", len(result.Queued)),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// processAssigned runs one batch slot through the fallback chain and records
// the outcome on the queue. Only persistence errors propagate.
func (s *Service) processAssigned(ctx context.Context, article entity.Article, firstProvider string) (itemOutcome, error) {
	trace := s.attempt(ctx, article, firstProvider)
	if trace.err == nil && trace.attempted > 0 {
		return itemOutcome{summarized: trace.summarized}, nil
	}

	if trace.attempted == 0 {
		// Every provider became unavailable between distribution and the
		// call; retryable, same as an unassigned batch.
		if err := s.queue.AddFailedItem(article, retryqueue.ReasonNoProvider, retryqueue.ProviderNone); err != nil {
			return itemOutcome{}, err
		}
		return itemOutcome{queued: true, reason: retryqueue.ReasonNoProvider}, nil
	}

	if trace.anyRetryable {
		if err := s.queue.AddFailedItem(article, trace.retryReason, trace.failedProviders...); err != nil {
			return itemOutcome{}, err
		}
		return itemOutcome{queued: true, reason: trace.retryReason}, nil
	}

	s.logger.Warn("article failed permanently",
		slog.String("article_id", article.ID),
		slog.String("reason", trace.lastReason))
	return itemOutcome{failed: true, reason: trace.lastReason}, nil
}

// Resubmit retries a single queued article through the normal selection and
// fallback path. It implements retryqueue.Resubmitter for the scheduler and
// the manual retry handler; the caller records the outcome on the queue.
func (s *Service) Resubmit(ctx context.Context, article entity.Article) retryqueue.AttemptResult {
	trace := s.attempt(ctx, article, "")
	if trace.attempted == 0 {
		return retryqueue.AttemptResult{
			Provider: retryqueue.ProviderNone,
			Err:      fmt.Errorf("resubmit article %s: %w", article.ID, entity.ErrNoProviderAvailable),
		}
	}
	if trace.err != nil {
		return retryqueue.AttemptResult{
			Provider:        trace.lastProvider,
			FailedProviders: trace.failedProviders,
			Err:             trace.err,
		}
	}
	return retryqueue.AttemptResult{Provider: trace.summarized.Provider, Summarized: trace.summarized}
}

// attemptTrace records what happened while walking the fallback chain for
// one article.
type attemptTrace struct {
	summarized      entity.SummarizedArticle
	err             error // last error; nil after a success
	attempted       int
	lastProvider    string
	lastReason      string
	anyRetryable    bool
	retryReason     string   // reason of the last retryable failure
	failedProviders []string // every provider that failed, in attempt order
}

// attempt walks the preference-ordered available providers, starting with
// firstProvider when given, until one succeeds or the pool is exhausted.
// Every attempt updates the status registry.
func (s *Service) attempt(ctx context.Context, article entity.Article, firstProvider string) attemptTrace {
	trace := attemptTrace{}

	chain := s.selector.FallbackOrder(provider.TaskSummarize, s.now())
	if firstProvider != "" {
		reordered := []string{firstProvider}
		for _, p := range chain {
			if p != firstProvider {
				reordered = append(reordered, p)
			}
		}
		chain = reordered
	}

	for _, name := range chain {
		if !s.registry.IsAvailable(name, s.now()) {
			continue
		}
		impl, ok := s.providers[name]
		if !ok {
			continue
		}

		trace.attempted++
		trace.lastProvider = name
		summary, err := impl.Summarize(ctx, article.Text())
		if err == nil {
			s.registry.RecordSuccess(name)
			trace.err = nil
			trace.summarized = entity.SummarizedArticle{
				Article:      article,
				Summary:      summary,
				Provider:     name,
				SummarizedAt: s.now(),
			}
			return trace
		}

		cls := retryqueue.Classify(err)
		trace.err = err
		trace.lastReason = cls.Reason
		trace.failedProviders = append(trace.failedProviders, name)
		if cls.Reason == retryqueue.ReasonRateLimit || cls.Reason == retryqueue.ReasonQuota {
			s.registry.RecordRateLimit(name, s.cfg.RateLimitCooldown)
		} else {
			s.registry.RecordError(name, cls.Reason)
		}
		if cls.Retryable {
			trace.anyRetryable = true
			trace.retryReason = cls.Reason
		}

		s.logger.Warn("provider call failed, advancing to next provider",
			slog.String("article_id", article.ID),
			slog.String("provider", name),
			slog.String("reason", cls.Reason),
			slog.Bool("retryable", cls.Retryable))
	}

	return trace
}
