package summarize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-news-digest/internal/domain/entity"
	"ai-news-digest/internal/provider"
	"ai-news-digest/internal/retryqueue"
)

// fakeProvider scripts the Summarize behavior and counts calls.
type fakeProvider struct {
	name string
	fn   func(text string) (string, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Summarize(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(text)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeeding(name string) *fakeProvider {
	return &fakeProvider{name: name, fn: func(text string) (string, error) {
		return "summary of " + text, nil
	}}
}

func failing(name, msg string) *fakeProvider {
	return &fakeProvider{name: name, fn: func(string) (string, error) {
		return "", errors.New(msg)
	}}
}

func newTestService(t *testing.T, providers ...*fakeProvider) (*Service, *provider.Registry, *retryqueue.Manager) {
	t.Helper()

	pmap := make(map[string]Provider, len(providers))
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		pmap[p.name] = p
		names = append(names, p.name)
	}
	registry := provider.NewRegistry(names, nil)
	selector := provider.NewSelector(registry, nil, nil, nil, nil)

	storage := retryqueue.NewStorage(filepath.Join(t.TempDir(), "queue.json"), nil)
	manager, err := retryqueue.NewManager(storage, retryqueue.DefaultConfig(), nil, nil)
	require.NoError(t, err)

	svc := NewService(pmap, registry, selector, manager, DefaultConfig(), nil)
	return svc, registry, manager
}

func batchOf(n int) []entity.Article {
	items := make([]entity.Article, n)
	for i := range items {
		items[i] = entity.Article{
			ID:      fmt.Sprintf("art-%03d", i),
			Title:   fmt.Sprintf("title %d", i),
			URL:     fmt.Sprintf("https://example.com/%d", i),
			Content: fmt.Sprintf("content %d", i),
		}
	}
	return items
}

func TestProcessBatchAllSucceed(t *testing.T) {
	svc, _, manager := newTestService(t, succeeding("claude"), succeeding("openai"))

	items := batchOf(20)
	result, err := svc.ProcessBatch(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 20)
	assert.Empty(t, result.Queued)
	assert.Empty(t, result.Failed)

	// Results preserve input order regardless of which provider finished
	// first.
	for i, s := range result.Succeeded {
		assert.Equal(t, items[i].ID, s.ID)
		assert.NotEmpty(t, s.Summary)
		assert.NotEmpty(t, s.Provider)
	}

	assert.Zero(t, manager.Status().TotalItems)
}

func TestProcessBatchEmptyInput(t *testing.T) {
	svc, _, _ := newTestService(t, succeeding("claude"))

	result, err := svc.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Queued)
	assert.Empty(t, result.Failed)
}

func TestProcessBatchFallsBackToSecondProvider(t *testing.T) {
	bad := failing("claude", "500 internal server error")
	good := succeeding("openai")
	svc, registry, manager := newTestService(t, bad, good)

	result, err := svc.ProcessBatch(context.Background(), batchOf(10))
	require.NoError(t, err)

	// Every item ends up summarized by the healthy provider, whether it was
	// assigned there initially or arrived via fallback.
	require.Len(t, result.Succeeded, 10)
	for _, s := range result.Succeeded {
		assert.Equal(t, "openai", s.Provider)
	}
	assert.Zero(t, manager.Status().TotalItems)

	// The failing provider accumulated errors; after three consecutive ones
	// it drops out of the pool.
	if bad.callCount() >= 3 {
		assert.False(t, registry.IsAvailable("claude", time.Now()))
	}
}

func TestProcessBatchRetryableFailureEntersQueue(t *testing.T) {
	bad := failing("claude", "429 too many requests")
	svc, registry, manager := newTestService(t, bad)

	result, err := svc.ProcessBatch(context.Background(), batchOf(1))
	require.NoError(t, err)

	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Queued, 1)
	assert.Equal(t, retryqueue.ReasonRateLimit, result.Queued[0].Reason)

	it, ok := manager.Item("art-000")
	require.True(t, ok)
	assert.Equal(t, retryqueue.ReasonRateLimit, it.FailureReason)
	assert.Equal(t, 1, it.ProviderFailures["claude"])

	// A rate limit benches the provider for the cooldown window.
	assert.False(t, registry.IsAvailable("claude", time.Now()))
	assert.True(t, registry.IsAvailable("claude", time.Now().Add(10*time.Minute)))
}

func TestProcessBatchPermanentFailureIsNotQueued(t *testing.T) {
	bad := failing("claude", "401 unauthorized: invalid api key")
	svc, _, manager := newTestService(t, bad)

	result, err := svc.ProcessBatch(context.Background(), batchOf(1))
	require.NoError(t, err)

	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Queued)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, retryqueue.ReasonAuth, result.Failed[0].Reason)
	assert.Zero(t, manager.Status().TotalItems)
}

func TestProcessBatchMixedRetryableWinsOverPermanent(t *testing.T) {
	// First provider fails permanently, second fails retryably. One
	// retryable attempt anywhere in the chain is enough to queue the item.
	svc, _, manager := newTestService(t,
		failing("claude", "400 bad request"),
		failing("openai", "503 service unavailable"))

	result, err := svc.ProcessBatch(context.Background(), batchOf(1))
	require.NoError(t, err)

	assert.Empty(t, result.Failed)
	require.Len(t, result.Queued, 1)
	assert.Equal(t, 1, manager.Status().TotalItems)
}

func TestProcessBatchChargesEveryFailedProvider(t *testing.T) {
	// Both providers fail retryably, so the item walks the whole fallback
	// chain. Each attempted provider is charged exactly once.
	svc, _, manager := newTestService(t,
		failing("claude", "429 too many requests"),
		failing("openai", "503 service unavailable"))

	result, err := svc.ProcessBatch(context.Background(), batchOf(1))
	require.NoError(t, err)
	require.Len(t, result.Queued, 1)

	it, ok := manager.Item("art-000")
	require.True(t, ok)
	assert.Equal(t, 1, it.ProviderFailures["claude"])
	assert.Equal(t, 1, it.ProviderFailures["openai"])
	assert.Equal(t, 0, it.RetryCount)
}

func TestProcessBatchNoProviderQueuesEverything(t *testing.T) {
	svc, _, manager := newTestService(t) // empty pool

	items := batchOf(3)
	result, err := svc.ProcessBatch(context.Background(), items)
	require.NoError(t, err)

	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Queued, 3)
	for _, q := range result.Queued {
		assert.Equal(t, retryqueue.ReasonNoProvider, q.Reason)
	}

	st := manager.Status()
	assert.Equal(t, 3, st.TotalItems)
	assert.Equal(t, 3, st.ProviderFailures[retryqueue.ProviderNone])
}

func TestProcessBatchSerializesWithinProvider(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	p := &fakeProvider{name: "claude", fn: func(text string) (string, error) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		return "s", nil
	}}
	svc, _, _ := newTestService(t, p)

	_, err := svc.ProcessBatch(context.Background(), batchOf(8))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak, "calls within one provider must be serialized")
}

func TestResubmitSuccess(t *testing.T) {
	svc, _, _ := newTestService(t, succeeding("claude"))

	article := entity.Article{ID: "a", Title: "t", URL: "https://example.com/a", Content: "body"}
	result := svc.Resubmit(context.Background(), article)

	require.NoError(t, result.Err)
	assert.Equal(t, "claude", result.Provider)
	assert.Equal(t, "summary of body", result.Summarized.Summary)
	assert.Equal(t, "a", result.Summarized.ID)
}

func TestResubmitNoProviderAvailable(t *testing.T) {
	svc, registry, _ := newTestService(t, failing("claude", "500 oops"))
	for i := 0; i < 3; i++ {
		registry.RecordError("claude", "service_error")
	}

	result := svc.Resubmit(context.Background(), batchOf(1)[0])
	require.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, entity.ErrNoProviderAvailable))
	assert.Equal(t, retryqueue.ProviderNone, result.Provider)
}

func TestResubmitFailureReportsLastProvider(t *testing.T) {
	svc, _, _ := newTestService(t, failing("claude", "503 service unavailable"))

	result := svc.Resubmit(context.Background(), batchOf(1)[0])
	require.Error(t, result.Err)
	assert.Equal(t, "claude", result.Provider)
	assert.Equal(t, []string{"claude"}, result.FailedProviders)
}

func TestResubmitFailureListsEveryAttemptedProvider(t *testing.T) {
	svc, _, _ := newTestService(t,
		failing("claude", "429 too many requests"),
		failing("openai", "503 service unavailable"))

	result := svc.Resubmit(context.Background(), batchOf(1)[0])
	require.Error(t, result.Err)
	assert.ElementsMatch(t, []string{"claude", "openai"}, result.FailedProviders,
		"queue accounting needs every failed attempt, not just the last")
}

func TestGenerateDigest(t *testing.T) {
	svc, _, _ := newTestService(t, succeeding("claude"))

	articles := []entity.SummarizedArticle{
		{Article: entity.Article{ID: "1", Title: "a", Source: entity.Source{Category: "research"}}, Provider: "claude"},
		{Article: entity.Article{ID: "2", Title: "b", Source: entity.Source{Category: "research"}}, Provider: "claude"},
		{Article: entity.Article{ID: "3", Title: "c", Source: entity.Source{Category: "tools"}}, Provider: "claude"},
	}

	digest := svc.GenerateDigest(context.Background(), "2026-08-25", articles)
	assert.Equal(t, "2026-08-25", digest.Date)
	assert.Equal(t, 3, digest.TotalArticles)
	assert.Equal(t, map[string]int{"research": 2, "tools": 1}, digest.CategoryBreakdown)
	assert.NotEmpty(t, digest.Summary)
	assert.Equal(t, "claude", digest.Provider)
}

func TestGenerateDigestFallsBackWithoutProvider(t *testing.T) {
	svc, _, _ := newTestService(t) // empty pool

	articles := []entity.SummarizedArticle{
		{Article: entity.Article{ID: "1", Title: "a", Source: entity.Source{Category: "research"}}},
	}
	digest := svc.GenerateDigest(context.Background(), "2026-08-25", articles)

	// Digest degrades to counts only instead of erroring.
	assert.Equal(t, 1, digest.TotalArticles)
	assert.Empty(t, digest.Summary)
	assert.Empty(t, digest.Provider)
}
