// Package publisher writes the pipeline's final JSON artifacts to the
// directory the rendering frontend reads from. All writes are atomic
// (temp file + rename) so readers never observe a half-written document.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ai-news-digest/internal/domain/entity"
	"ai-news-digest/internal/provider"
	"ai-news-digest/internal/retryqueue"
)

// Publisher manages the published data directory:
//
//	<root>/news/<date>/articles.json   per-day article list
//	<root>/news/<date>/metadata.json   per-day counts
//	<root>/news/latest.json            most recent article list
//	<root>/summaries/<date>.json       daily digest
//	<root>/summaries/latest.json       most recent digest
//	<root>/diagnostics.json            provider + retry queue status
//
// Operations are serialized behind a mutex: the pipeline job and the retry
// sweep run on separate cron goroutines and both read-modify-write the same
// day's articles.json, so an unguarded merge could lose late recoveries.
type Publisher struct {
	mu     sync.Mutex
	root   string
	logger *slog.Logger
}

// New creates a Publisher rooted at the given output directory.
func New(root string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{root: root, logger: logger}
}

// metadata is the per-day summary document stored beside the articles.
type metadata struct {
	Date          string         `json:"date"`
	TotalArticles int            `json:"total_articles"`
	Categories    map[string]int `json:"categories"`
	Providers     map[string]int `json:"providers"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PublishDailyNews writes the day's article list, its metadata, and the
// latest.json pointer.
func (p *Publisher) PublishDailyNews(date string, articles []entity.SummarizedArticle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishDailyNewsLocked(date, articles)
}

// publishDailyNewsLocked writes the day's documents. The caller must hold
// the mutex.
func (p *Publisher) publishDailyNewsLocked(date string, articles []entity.SummarizedArticle) error {
	dayDir := filepath.Join(p.root, "news", date)

	if err := p.writeJSON(filepath.Join(dayDir, "articles.json"), articles); err != nil {
		return err
	}

	meta := metadata{
		Date:          date,
		TotalArticles: len(articles),
		Categories:    make(map[string]int),
		Providers:     make(map[string]int),
		UpdatedAt:     time.Now(),
	}
	for _, a := range articles {
		meta.Categories[a.Source.Category]++
		meta.Providers[a.Provider]++
	}
	if err := p.writeJSON(filepath.Join(dayDir, "metadata.json"), meta); err != nil {
		return err
	}

	if err := p.writeJSON(filepath.Join(p.root, "news", "latest.json"), articles); err != nil {
		return err
	}

	p.logger.Info("daily news published",
		slog.String("date", date),
		slog.Int("articles", len(articles)))
	return nil
}

// MergeDailyNews appends late arrivals (retry recoveries) to an already
// published day, deduplicating by article ID, and refreshes the metadata
// and latest.json. Publishing for a day that does not exist yet degrades
// to a plain publish.
func (p *Publisher) MergeDailyNews(date string, articles []entity.SummarizedArticle) error {
	if len(articles) == 0 {
		return nil
	}

	// The read-merge-write below must not interleave with another publish
	// for the same day.
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.readDailyNews(date)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a.ID] = true
	}
	merged := existing
	for _, a := range articles {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		merged = append(merged, a)
	}
	return p.publishDailyNewsLocked(date, merged)
}

// readDailyNews loads a day's published article list; a missing file is an
// empty list.
func (p *Publisher) readDailyNews(date string) ([]entity.SummarizedArticle, error) {
	path := filepath.Join(p.root, "news", date, "articles.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var articles []entity.SummarizedArticle
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return articles, nil
}

// PublishDigest writes the daily digest and its latest.json pointer.
func (p *Publisher) PublishDigest(digest entity.DailyDigest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writeJSON(filepath.Join(p.root, "summaries", digest.Date+".json"), digest); err != nil {
		return err
	}
	return p.writeJSON(filepath.Join(p.root, "summaries", "latest.json"), digest)
}

// diagnostics is the read-only operational snapshot exported for dashboards.
type diagnostics struct {
	Providers  []provider.Status `json:"providers"`
	RetryQueue retryqueue.Status `json:"retry_queue"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// PublishDiagnostics exports provider health and retry queue status.
func (p *Publisher) PublishDiagnostics(providers []provider.Status, queue retryqueue.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeJSON(filepath.Join(p.root, "diagnostics.json"), diagnostics{
		Providers:  providers,
		RetryQueue: queue,
		UpdatedAt:  time.Now(),
	})
}

// CleanupOldNews removes per-day news directories and digest files older
// than retentionDays. Returns the number of removed days.
func (p *Publisher) CleanupOldNews(retentionDays int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	newsDir := filepath.Join(p.root, "news")

	entries, err := os.ReadDir(newsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read news directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		day, err := time.Parse("2006-01-02", e.Name())
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(newsDir, e.Name())); err != nil {
				return removed, fmt.Errorf("remove old news %s: %w", e.Name(), err)
			}
			_ = os.Remove(filepath.Join(p.root, "summaries", e.Name()+".json"))
			removed++
		}
	}

	if removed > 0 {
		p.logger.Info("old published data removed",
			slog.Int("days", removed),
			slog.Int("retention_days", retentionDays))
	}
	return removed, nil
}

// writeJSON atomically writes v as indented JSON to path.
func (p *Publisher) writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".publish-*.json")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
