// Package provider tracks the health of configured AI providers and selects
// which provider handles which work. The Registry owns all mutable provider
// state; the Selector only reads it.
package provider

import (
	"log/slog"
	"sync"
	"time"
)

// errorThreshold is the number of consecutive errors after which a provider
// is marked unavailable until a success or manual reset.
const errorThreshold = 3

// Status is the health record for one provider. Available is derived state:
// it is false while a rate-limit window is open or while the consecutive
// error count has reached the threshold. Status is never persisted; it
// resets with each process.
type Status struct {
	Provider         string    `json:"provider"`
	Available        bool      `json:"available"`
	ErrorCount       int       `json:"error_count"`
	LastError        string    `json:"last_error,omitempty"`
	LastUsedAt       time.Time `json:"last_used_at,omitzero"`
	RateLimitResetAt time.Time `json:"rate_limit_reset_at,omitzero"`
}

// Registry tracks per-provider status. It is safe for concurrent use; batch
// processing reads availability from multiple goroutines while outcomes are
// recorded.
type Registry struct {
	mu       sync.Mutex
	statuses map[string]*Status
	order    []string
	logger   *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewRegistry creates a Registry with one entry per configured provider,
// all initially available.
func NewRegistry(providers []string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	statuses := make(map[string]*Status, len(providers))
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		statuses[p] = &Status{Provider: p, Available: true}
		order = append(order, p)
	}
	return &Registry{
		statuses: statuses,
		order:    order,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordSuccess clears the provider's error state and marks it available.
func (r *Registry) RecordSuccess(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[provider]
	if !ok {
		return
	}
	st.ErrorCount = 0
	st.LastError = ""
	st.Available = true
	st.LastUsedAt = r.now()
}

// RecordRateLimit opens a rate-limit window: the provider is unavailable
// until resetAfter has elapsed. Availability self-heals lazily through
// IsAvailable once the window passes.
func (r *Registry) RecordRateLimit(provider string, resetAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[provider]
	if !ok {
		return
	}
	st.RateLimitResetAt = r.now().Add(resetAfter)
	st.Available = false
	r.logger.Warn("provider rate limited",
		slog.String("provider", provider),
		slog.Time("reset_at", st.RateLimitResetAt))
}

// RecordError counts a failed call against the provider. Reaching the
// consecutive-error threshold marks it unavailable; only a success or a
// manual Reset clears that state.
func (r *Registry) RecordError(provider, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[provider]
	if !ok {
		return
	}
	st.ErrorCount++
	st.LastError = reason
	if st.ErrorCount >= errorThreshold {
		st.Available = false
		r.logger.Warn("provider disabled after consecutive errors",
			slog.String("provider", provider),
			slog.Int("error_count", st.ErrorCount),
			slog.String("last_error", reason))
	}
}

// IsAvailable reports whether the provider can take a call at now. An
// expired rate-limit window is cleared as a side effect; this lazy clearing
// is the only way rate-limit unavailability self-heals.
func (r *Registry) IsAvailable(provider string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isAvailableLocked(provider, now)
}

func (r *Registry) isAvailableLocked(provider string, now time.Time) bool {
	st, ok := r.statuses[provider]
	if !ok {
		return false
	}
	if !st.RateLimitResetAt.IsZero() && !now.Before(st.RateLimitResetAt) {
		st.RateLimitResetAt = time.Time{}
		if st.ErrorCount < errorThreshold {
			st.Available = true
			r.logger.Info("provider rate limit window expired",
				slog.String("provider", provider))
		}
	}
	if !st.RateLimitResetAt.IsZero() && now.Before(st.RateLimitResetAt) {
		return false
	}
	return st.Available
}

// Available returns the providers currently able to take calls, preserving
// registration order.
func (r *Registry) Available(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, p := range r.order {
		if r.isAvailableLocked(p, now) {
			out = append(out, p)
		}
	}
	return out
}

// Reset is a manual administrative action that restores a provider to the
// available state regardless of error count or rate-limit window.
func (r *Registry) Reset(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[provider]
	if !ok {
		return
	}
	st.ErrorCount = 0
	st.LastError = ""
	st.RateLimitResetAt = time.Time{}
	st.Available = true
	r.logger.Info("provider status manually reset",
		slog.String("provider", provider))
}

// Snapshot returns a read-only copy of all provider statuses in
// registration order, for diagnostics export.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, *r.statuses[p])
	}
	return out
}

// Providers returns the configured provider names in registration order.
func (r *Registry) Providers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
