package retryqueue

import (
	"time"

	"ai-news-digest/internal/domain/entity"
)

// DefaultMaxRetries is the number of retry cycles an item gets before it is
// considered exhausted.
const DefaultMaxRetries = 5

// Item is one queued entry for an article that failed with a retryable error.
//
// Invariants: RetryCount only increases, NextRetryAt only moves forward, and
// IDs are unique within a queue (re-adding an existing ID updates in place).
type Item struct {
	ID               string         `json:"id"`
	Payload          entity.Article `json:"article"`
	FailureReason    string         `json:"failure_reason"`
	FailedAt         time.Time      `json:"failed_at"`
	RetryCount       int            `json:"retry_count"`
	NextRetryAt      time.Time      `json:"next_retry_at"`
	ProviderFailures map[string]int `json:"provider_failures"`
	MaxRetries       int            `json:"max_retries"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Exhausted reports whether the item has used up all its retry cycles.
// Exhausted items are retained for observability and manual intervention but
// are excluded from automatic eligibility.
func (i *Item) Exhausted() bool {
	return i.RetryCount >= i.MaxRetries
}

// Eligible reports whether the item is due for an automatic retry at now.
func (i *Item) Eligible(now time.Time) bool {
	return !i.Exhausted() && !now.Before(i.NextRetryAt)
}

// Queue is the persisted aggregate of retry items plus running counters.
// Items keep insertion order; there is no priority ordering, which guarantees
// eventual fairness across items. Counters are monotonically non-decreasing
// and accumulate across persisted loads.
type Queue struct {
	Items          []*Item   `json:"items"`
	LastUpdated    time.Time `json:"last_updated"`
	TotalProcessed int       `json:"total_processed"`
	TotalSucceeded int       `json:"total_succeeded"`
	TotalFailed    int       `json:"total_failed"`
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Get returns the item with the given ID, or nil.
func (q *Queue) Get(id string) *Item {
	for _, it := range q.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// Add inserts an item, or replaces the existing item with the same ID in
// place so the queue never holds duplicates.
func (q *Queue) Add(item *Item, now time.Time) {
	for i, existing := range q.Items {
		if existing.ID == item.ID {
			q.Items[i] = item
			q.LastUpdated = now
			return
		}
	}
	q.Items = append(q.Items, item)
	q.LastUpdated = now
}

// Remove deletes the item with the given ID, reporting whether it was found.
func (q *Queue) Remove(id string, now time.Time) bool {
	for i, it := range q.Items {
		if it.ID == id {
			q.Items = append(q.Items[:i], q.Items[i+1:]...)
			q.LastUpdated = now
			return true
		}
	}
	return false
}

// Active returns all non-exhausted items in insertion order.
func (q *Queue) Active() []*Item {
	var out []*Item
	for _, it := range q.Items {
		if !it.Exhausted() {
			out = append(out, it)
		}
	}
	return out
}

// Candidates returns all items eligible for automatic retry at now, in
// insertion order.
func (q *Queue) Candidates(now time.Time) []*Item {
	var out []*Item
	for _, it := range q.Items {
		if it.Eligible(now) {
			out = append(out, it)
		}
	}
	return out
}

// CleanupOld removes exhausted items and items created before the cutoff,
// capping unbounded queue growth. Returns the number of removed items.
func (q *Queue) CleanupOld(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)
	kept := q.Items[:0]
	for _, it := range q.Items {
		if it.Exhausted() || it.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, it)
	}
	removed := len(q.Items) - len(kept)
	q.Items = kept
	if removed > 0 {
		q.LastUpdated = now
	}
	return removed
}

// Status is a read-only summary of queue state for dashboards and the CLI.
type Status struct {
	TotalItems       int            `json:"total_items"`
	ActiveItems      int            `json:"active_items"`
	EligibleNow      int            `json:"eligible_now"`
	ExhaustedItems   int            `json:"exhausted_items"`
	TotalProcessed   int            `json:"total_processed"`
	TotalSucceeded   int            `json:"total_succeeded"`
	TotalFailed      int            `json:"total_failed"`
	ProviderFailures map[string]int `json:"provider_failures"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// Stats computes the queue status at now.
func (q *Queue) Stats(now time.Time) Status {
	st := Status{
		TotalItems:       len(q.Items),
		TotalProcessed:   q.TotalProcessed,
		TotalSucceeded:   q.TotalSucceeded,
		TotalFailed:      q.TotalFailed,
		ProviderFailures: make(map[string]int),
		LastUpdated:      q.LastUpdated,
	}
	for _, it := range q.Items {
		if it.Exhausted() {
			st.ExhaustedItems++
		} else {
			st.ActiveItems++
			if it.Eligible(now) {
				st.EligibleNow++
			}
		}
		for provider, n := range it.ProviderFailures {
			st.ProviderFailures[provider] += n
		}
	}
	return st
}
