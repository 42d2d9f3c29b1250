// Package collector fetches raw articles from configured RSS/Atom feeds.
// It uses the gofeed library with circuit breaker and in-call backoff; the
// summarization pipeline downstream treats its output as opaque payloads.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"ai-news-digest/internal/domain/entity"
	"ai-news-digest/internal/resilience/backoff"
	"ai-news-digest/internal/resilience/circuitbreaker"
)

// userAgent identifies the collector to feed servers.
const userAgent = "ai-news-digest-bot"

// RSS collects articles from RSS/Atom sources.
type RSS struct {
	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	backoffConf backoff.Config
	logger      *slog.Logger
}

// NewRSS creates a collector with the given HTTP client.
func NewRSS(client *http.Client, logger *slog.Logger) *RSS {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSS{
		client:      client,
		breaker:     circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		backoffConf: backoff.FeedFetchConfig(),
		logger:      logger,
	}
}

// Collect fetches all enabled sources and returns the deduplicated articles.
// A failing source is logged and skipped; one broken feed never aborts the
// run. The returned error is non-nil only when every source failed.
func (r *RSS) Collect(ctx context.Context, sources []entity.Source) ([]entity.Article, error) {
	var (
		articles []entity.Article
		failures int
		fetched  int
		seen     = make(map[string]bool)
	)

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		fetched++

		items, err := r.fetchSource(ctx, src)
		if err != nil {
			failures++
			r.logger.Warn("feed collection failed, skipping source",
				slog.String("source", src.Name),
				slog.String("url", src.URL),
				slog.String("error", err.Error()))
			continue
		}

		for _, a := range items {
			if seen[a.URL] {
				continue
			}
			seen[a.URL] = true
			articles = append(articles, a)
		}
	}

	r.logger.Info("feed collection finished",
		slog.Int("sources", fetched),
		slog.Int("failed_sources", failures),
		slog.Int("articles", len(articles)))

	if fetched > 0 && failures == fetched {
		return articles, errors.New("all feed sources failed")
	}
	return articles, nil
}

// fetchSource fetches one feed with backoff and circuit breaker.
func (r *RSS) fetchSource(ctx context.Context, src entity.Source) ([]entity.Article, error) {
	var items []entity.Article

	retryErr := backoff.Retry(ctx, r.backoffConf, func() error {
		cbResult, err := r.breaker.Execute(func() (interface{}, error) {
			return r.doFetch(ctx, src)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				r.logger.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("url", src.URL),
					slog.String("state", r.breaker.State().String()))
			}
			return err
		}
		items = cbResult.([]entity.Article)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return items, nil
}

// doFetch performs the actual feed fetch and maps entries to articles.
func (r *RSS) doFetch(ctx context.Context, src entity.Source) ([]entity.Article, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = r.client

	feed, err := fp.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	articles := make([]entity.Article, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		// Prefer full content, fall back to the description.
		content := it.Content
		if content == "" {
			content = it.Description
		}

		articles = append(articles, entity.NewArticle(it.Title, it.Link, content, src, pubAt))
	}
	return articles, nil
}
