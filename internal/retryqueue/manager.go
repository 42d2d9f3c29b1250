package retryqueue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ai-news-digest/internal/domain/entity"
)

// Config holds the retry policy applied to queued items.
type Config struct {
	// MaxRetries is the number of retry cycles before an item is exhausted.
	MaxRetries int

	// Backoff controls the delay between retry cycles.
	Backoff BackoffConfig
}

// DefaultConfig returns the standard retry policy: 5 cycles with exponential
// backoff from 5 minutes up to 24 hours.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoffConfig(),
	}
}

// Manager exclusively owns the in-memory retry queue and is its only writer.
// All mutating operations are serialized behind a mutex and persist the
// updated queue write-through before returning, trading write amplification
// for crash safety. Callers needing batched writes must batch above this
// layer.
type Manager struct {
	mu      sync.Mutex
	queue   *Queue
	storage *Storage
	cfg     Config
	logger  *slog.Logger
	metrics QueueMetricsRecorder

	// now is injectable for tests.
	now func() time.Time
}

// NewManager loads persisted state and returns a ready manager.
func NewManager(storage *Storage, cfg Config, logger *slog.Logger, metrics QueueMetricsRecorder) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopQueueMetrics{}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	q, err := storage.Load()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		queue:   q,
		storage: storage,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
	m.metrics.SetQueueDepth(len(q.Items))
	return m, nil
}

// AddFailedItem enqueues an article that failed with a retryable error.
// Every provider attempted in the failing cycle is passed so each one's
// failure count increments exactly once per attempt. If the ID is already
// queued the entry is merged: the failure reason and timestamp are refreshed
// and the provider counts are bumped, while RetryCount and CreatedAt are
// left untouched so a re-failing item cannot dodge exhaustion by being
// re-added.
func (m *Manager) AddFailedItem(article entity.Article, reason string, providers ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	providers = normalizeProviders(providers)

	if existing := m.queue.Get(article.ID); existing != nil {
		existing.FailureReason = reason
		existing.FailedAt = now
		for _, p := range providers {
			existing.ProviderFailures[p]++
		}
		m.queue.LastUpdated = now
		m.logger.Debug("retry queue entry merged",
			slog.String("article_id", article.ID),
			slog.String("reason", reason),
			slog.Any("providers", providers))
		return m.persistLocked()
	}

	failures := make(map[string]int, len(providers))
	for _, p := range providers {
		failures[p]++
	}
	item := &Item{
		ID:               article.ID,
		Payload:          article,
		FailureReason:    reason,
		FailedAt:         now,
		RetryCount:       0,
		NextRetryAt:      now.Add(m.cfg.Backoff.Delay(0)),
		ProviderFailures: failures,
		MaxRetries:       m.cfg.MaxRetries,
		CreatedAt:        now,
	}
	m.queue.Add(item, now)
	m.metrics.RecordEnqueued(reason)
	m.logger.Info("article queued for retry",
		slog.String("article_id", article.ID),
		slog.String("reason", reason),
		slog.Any("providers", providers),
		slog.Time("next_retry_at", item.NextRetryAt))
	return m.persistLocked()
}

// MarkSuccess removes a queued item after a successful retry and bumps the
// running counters.
func (m *Manager) MarkSuccess(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.queue.Remove(id, m.now()) {
		return fmt.Errorf("retry queue: no item with id %s", id)
	}
	m.queue.TotalProcessed++
	m.queue.TotalSucceeded++
	m.metrics.RecordOutcome("success")
	m.logger.Info("retry succeeded, item removed from queue",
		slog.String("article_id", id))
	return m.persistLocked()
}

// MarkFailure records one failed retry cycle for the item: RetryCount
// increments once for the cycle, every attempted provider's failure count
// increments once per attempt, and the next eligibility time moves out on
// the backoff curve. An item that becomes exhausted is retained for
// observability and manual retry but excluded from automatic eligibility.
//
// The backoff exponent is the retry count before the increment, so an item
// failing at RetryCount 0 with the default policy becomes eligible again
// after the initial delay.
func (m *Manager) MarkFailure(id string, providers ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.queue.Get(id)
	if item == nil {
		return fmt.Errorf("retry queue: no item with id %s", id)
	}
	providers = normalizeProviders(providers)

	now := m.now()
	delay := m.cfg.Backoff.Delay(item.RetryCount)
	item.RetryCount++
	item.FailedAt = now
	item.NextRetryAt = now.Add(delay)
	if item.ProviderFailures == nil {
		item.ProviderFailures = make(map[string]int)
	}
	for _, p := range providers {
		item.ProviderFailures[p]++
	}
	m.queue.LastUpdated = now
	m.queue.TotalProcessed++
	m.queue.TotalFailed++
	m.metrics.RecordOutcome("failure")

	if item.Exhausted() {
		m.logger.Warn("retry item exhausted",
			slog.String("article_id", id),
			slog.Int("retry_count", item.RetryCount),
			slog.Int("max_retries", item.MaxRetries))
	} else {
		m.logger.Info("retry failed, rescheduled",
			slog.String("article_id", id),
			slog.Any("providers", providers),
			slog.Int("retry_count", item.RetryCount),
			slog.Duration("delay", delay),
			slog.Time("next_retry_at", item.NextRetryAt))
	}
	return m.persistLocked()
}

// RetryCandidates returns copies of all items eligible for automatic retry
// at now, in insertion order.
func (m *Manager) RetryCandidates(now time.Time) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyItems(m.queue.Candidates(now))
}

// ActiveItems returns copies of all non-exhausted items in insertion order,
// regardless of their scheduled retry time. Used by the manual retry path.
func (m *Manager) ActiveItems() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyItems(m.queue.Active())
}

// Item returns a copy of the queued item with the given ID.
func (m *Manager) Item(id string) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.queue.Get(id)
	if it == nil {
		return Item{}, false
	}
	return copyItem(it), true
}

// ResetExhausted is an out-of-band administrative action that returns an
// exhausted item to the active state: its retry count is cleared and it is
// immediately eligible. It is not part of the automatic loop.
func (m *Manager) ResetExhausted(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.queue.Get(id)
	if item == nil {
		return fmt.Errorf("retry queue: no item with id %s", id)
	}
	if !item.Exhausted() {
		return fmt.Errorf("retry queue: item %s is not exhausted", id)
	}

	now := m.now()
	item.RetryCount = 0
	item.NextRetryAt = now
	m.queue.LastUpdated = now
	m.logger.Info("exhausted retry item reset",
		slog.String("article_id", id))
	return m.persistLocked()
}

// Cleanup removes exhausted items and items older than maxAge, persisting
// when anything changed. Returns the number of removed items.
func (m *Manager) Cleanup(maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.queue.CleanupOld(m.now(), maxAge)
	if removed == 0 {
		return 0, nil
	}
	m.logger.Info("retry queue cleaned up",
		slog.Int("removed", removed),
		slog.Int("remaining", len(m.queue.Items)))
	if err := m.persistLocked(); err != nil {
		return 0, err
	}
	return removed, nil
}

// Status returns a read-only summary of queue state. It never mutates.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Stats(m.now())
}

// persistLocked writes the queue through to storage. The caller must hold
// the mutex. A persistence failure is fatal to the mutating operation.
func (m *Manager) persistLocked() error {
	if err := m.storage.Save(m.queue); err != nil {
		m.logger.Error("retry queue persistence failed",
			slog.String("error", err.Error()))
		return err
	}
	m.metrics.SetQueueDepth(len(m.queue.Items))
	return nil
}

// normalizeProviders maps an empty attempt list and empty names to
// ProviderNone so failure accounting always has a key.
func normalizeProviders(providers []string) []string {
	if len(providers) == 0 {
		return []string{ProviderNone}
	}
	out := make([]string, len(providers))
	for i, p := range providers {
		if p == "" {
			p = ProviderNone
		}
		out[i] = p
	}
	return out
}

func copyItems(items []*Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, copyItem(it))
	}
	return out
}

func copyItem(it *Item) Item {
	cp := *it
	cp.ProviderFailures = make(map[string]int, len(it.ProviderFailures))
	for k, v := range it.ProviderFailures {
		cp.ProviderFailures[k] = v
	}
	return cp
}
