package publisher

import (
	"encoding/json"
	"fmt"
	"os"
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

func summarized(id, category, prov string) entity.SummarizedArticle {
	return entity.SummarizedArticle{
		Article: entity.Article{
			ID:    id,
			Title: "title " + id,
			URL:   "https://example.com/" + id,
			Source: entity.Source{
				Name:     "feed",
				Category: category,
			},
		},
		Summary:      "summary " + id,
		Provider:     prov,
		SummarizedAt: time.Now(),
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestPublishDailyNews(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	articles := []entity.SummarizedArticle{
		summarized("a", "research", "claude"),
		summarized("b", "research", "openai"),
		summarized("c", "tools", "claude"),
	}
	require.NoError(t, p.PublishDailyNews("2026-08-25", articles))

	var got []entity.SummarizedArticle
	readJSON(t, filepath.Join(root, "news", "2026-08-25", "articles.json"), &got)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)

	var meta struct {
		Date          string         `json:"date"`
		TotalArticles int            `json:"total_articles"`
		Categories    map[string]int `json:"categories"`
		Providers     map[string]int `json:"providers"`
	}
	readJSON(t, filepath.Join(root, "news", "2026-08-25", "metadata.json"), &meta)
	assert.Equal(t, "2026-08-25", meta.Date)
	assert.Equal(t, 3, meta.TotalArticles)
	assert.Equal(t, map[string]int{"research": 2, "tools": 1}, meta.Categories)
	assert.Equal(t, map[string]int{"claude": 2, "openai": 1}, meta.Providers)

	var latest []entity.SummarizedArticle
	readJSON(t, filepath.Join(root, "news", "latest.json"), &latest)
	assert.Len(t, latest, 3)
}

func TestMergeDailyNewsDeduplicates(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	require.NoError(t, p.PublishDailyNews("2026-08-25", []entity.SummarizedArticle{
		summarized("a", "research", "claude"),
	}))
	require.NoError(t, p.MergeDailyNews("2026-08-25", []entity.SummarizedArticle{
		summarized("a", "research", "claude"), // duplicate, dropped
		summarized("b", "tools", "openai"),
	}))

	var got []entity.SummarizedArticle
	readJSON(t, filepath.Join(root, "news", "2026-08-25", "articles.json"), &got)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMergeDailyNewsConcurrentMergesLoseNothing(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	// The pipeline job and the retry sweep can merge into the same day from
	// separate cron goroutines; no late recovery may be dropped.
	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.MergeDailyNews("2026-08-25", []entity.SummarizedArticle{
				summarized(fmt.Sprintf("art-%02d", i), "research", "claude"),
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var got []entity.SummarizedArticle
	readJSON(t, filepath.Join(root, "news", "2026-08-25", "articles.json"), &got)
	require.Len(t, got, writers)

	ids := make(map[string]bool, len(got))
	for _, a := range got {
		ids[a.ID] = true
	}
	for i := 0; i < writers; i++ {
		assert.True(t, ids[fmt.Sprintf("art-%02d", i)], "article %d must survive the concurrent merges", i)
	}
}

func TestMergeDailyNewsOnMissingDayPublishes(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	require.NoError(t, p.MergeDailyNews("2026-08-25", []entity.SummarizedArticle{
		summarized("a", "research", "claude"),
	}))

	var got []entity.SummarizedArticle
	readJSON(t, filepath.Join(root, "news", "2026-08-25", "articles.json"), &got)
	assert.Len(t, got, 1)
}

func TestPublishDigest(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	digest := entity.DailyDigest{
		Date:          "2026-08-25",
		TotalArticles: 5,
		Summary:       "a busy day",
		Provider:      "claude",
	}
	require.NoError(t, p.PublishDigest(digest))

	var got entity.DailyDigest
	readJSON(t, filepath.Join(root, "summaries", "2026-08-25.json"), &got)
	assert.Equal(t, digest.Summary, got.Summary)

	readJSON(t, filepath.Join(root, "summaries", "latest.json"), &got)
	assert.Equal(t, "2026-08-25", got.Date)
}

func TestPublishDiagnostics(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	require.NoError(t, p.PublishDiagnostics(
		[]provider.Status{{Provider: "claude", Available: true}},
		retryqueue.Status{TotalItems: 2, ActiveItems: 1},
	))

	var got struct {
		Providers  []provider.Status `json:"providers"`
		RetryQueue retryqueue.Status `json:"retry_queue"`
	}
	readJSON(t, filepath.Join(root, "diagnostics.json"), &got)
	require.Len(t, got.Providers, 1)
	assert.Equal(t, "claude", got.Providers[0].Provider)
	assert.Equal(t, 2, got.RetryQueue.TotalItems)
}

func TestCleanupOldNews(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)

	oldDate := time.Now().AddDate(0, 0, -40).Format("2006-01-02")
	newDate := time.Now().Format("2006-01-02")
	require.NoError(t, p.PublishDailyNews(oldDate, []entity.SummarizedArticle{summarized("a", "x", "claude")}))
	require.NoError(t, p.PublishDailyNews(newDate, []entity.SummarizedArticle{summarized("b", "x", "claude")}))
	require.NoError(t, p.PublishDigest(entity.DailyDigest{Date: oldDate}))

	removed, err := p.CleanupOldNews(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, statErr := os.Stat(filepath.Join(root, "news", oldDate))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "summaries", oldDate+".json"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "news", newDate))
	assert.NoError(t, statErr)
}

func TestCleanupOldNewsMissingDirectory(t *testing.T) {
	p := New(t.TempDir(), nil)
	removed, err := p.CleanupOldNews(30)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)
	require.NoError(t, p.PublishDailyNews("2026-08-25", []entity.SummarizedArticle{summarized("a", "x", "claude")}))

	entries, err := os.ReadDir(filepath.Join(root, "news", "2026-08-25"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".publish-")
	}
}
