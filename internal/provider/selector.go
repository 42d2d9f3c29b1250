package provider

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"ai-news-digest/internal/domain/entity"
)

// Task types with distinct provider preference orderings.
const (
	TaskSummarize = "summarize"
	TaskTranslate = "translate"
	TaskAnalyze   = "analyze"
)

// defaultWeight is applied to providers missing from the configured weight
// map so they still receive a share of batch traffic.
const defaultWeight = 0.1

// Selector chooses providers for single tasks and distributes batches across
// the available pool by weighted random choice. It only reads provider
// health from the Registry.
//
// The weighted distribution is nondeterministic by design; tests inject a
// seeded rand.Rand and assert proportions within tolerance.
type Selector struct {
	registry    *Registry
	weights     map[string]float64
	preferences map[string][]string
	logger      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector.
//
// weights need not sum to 1; they are normalized over the providers
// available at distribution time. preferences maps task types to
// preference-ordered provider lists; tasks without an entry fall back to
// registry registration order. rng may be nil, in which case a time-seeded
// source is used.
func NewSelector(registry *Registry, weights map[string]float64, preferences map[string][]string, rng *rand.Rand, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		// #nosec G404 -- load distribution does not need crypto randomness.
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		registry:    registry,
		weights:     weights,
		preferences: preferences,
		logger:      logger,
		rng:         rng,
	}
}

// SelectForTask returns the most preferred available provider for the task
// type, or entity.ErrNoProviderAvailable when the pool is empty. This is a
// reportable condition, not a crash.
func (s *Selector) SelectForTask(taskType string, now time.Time) (string, error) {
	order := s.FallbackOrder(taskType, now)
	if len(order) == 0 {
		s.logger.Warn("no provider available for task",
			slog.String("task", taskType))
		return "", entity.ErrNoProviderAvailable
	}
	return order[0], nil
}

// FallbackOrder returns all currently available providers in preference
// order for the task type. The orchestrator walks this list when a chosen
// provider's call fails.
func (s *Selector) FallbackOrder(taskType string, now time.Time) []string {
	available := s.registry.Available(now)
	if len(available) == 0 {
		return nil
	}

	prefs, ok := s.preferences[taskType]
	if !ok {
		return available
	}

	availSet := make(map[string]bool, len(available))
	for _, p := range available {
		availSet[p] = true
	}

	out := make([]string, 0, len(available))
	for _, p := range prefs {
		if availSet[p] {
			out = append(out, p)
			delete(availSet, p)
		}
	}
	// Providers absent from the preference list still participate, after
	// the preferred ones.
	for _, p := range available {
		if availSet[p] {
			out = append(out, p)
		}
	}
	return out
}

// Distribute assigns n batch slots to available providers by weighted random
// choice and returns provider → slot indices. When no provider is available
// the whole batch is returned unassigned so callers can fail every item into
// the retry queue instead of silently dropping it.
func (s *Selector) Distribute(n int, now time.Time) (assignments map[string][]int, unassigned []int) {
	available := s.registry.Available(now)
	if len(available) == 0 {
		s.logger.Warn("no provider available, returning batch unassigned",
			slog.Int("items", n))
		unassigned = make([]int, n)
		for i := range unassigned {
			unassigned[i] = i
		}
		return nil, unassigned
	}

	weights := make([]float64, len(available))
	var total float64
	for i, p := range available {
		w, ok := s.weights[p]
		if !ok || w <= 0 {
			w = defaultWeight
		}
		weights[i] = w
		total += w
	}

	assignments = make(map[string][]int, len(available))
	s.mu.Lock()
	for i := 0; i < n; i++ {
		p := available[weightedPick(s.rng, weights, total)]
		assignments[p] = append(assignments[p], i)
	}
	s.mu.Unlock()

	for p, idx := range assignments {
		s.logger.Info("batch slice assigned to provider",
			slog.String("provider", p),
			slog.Int("items", len(idx)))
	}
	return assignments, nil
}

// weightedPick returns an index into weights chosen proportionally to the
// weight values.
func weightedPick(rng *rand.Rand, weights []float64, total float64) int {
	x := rng.Float64() * total
	for i, w := range weights {
		x -= w
		if x < 0 {
			return i
		}
	}
	return len(weights) - 1
}
