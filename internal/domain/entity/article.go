// Package entity defines the core domain types shared across the application.
package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source describes a configured feed source.
type Source struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category" yaml:"category"`
	Language string `json:"language" yaml:"language"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// Article is a collected content item before summarization.
// The retry subsystem treats this payload as opaque and round-trips it
// unchanged through the persisted queue.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content,omitempty"`
	Source      Source    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// NewArticle creates an Article with a generated ID.
func NewArticle(title, url, content string, source Source, publishedAt time.Time) Article {
	return Article{
		ID:          uuid.New().String(),
		Title:       title,
		URL:         url,
		Content:     content,
		Source:      source,
		PublishedAt: publishedAt,
	}
}

// Validate checks that the article carries the fields required for processing.
func (a Article) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("article: %w: missing id", ErrInvalidEntity)
	}
	if a.Title == "" {
		return fmt.Errorf("article %s: %w: missing title", a.ID, ErrInvalidEntity)
	}
	if a.URL == "" {
		return fmt.Errorf("article %s: %w: missing url", a.ID, ErrInvalidEntity)
	}
	return nil
}

// Text returns the content used as summarization input, falling back to the
// title when the feed carried no body.
func (a Article) Text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Title
}

// SummarizedArticle is the processed output of a successful provider call.
type SummarizedArticle struct {
	Article
	Summary      string    `json:"summary"`
	Provider     string    `json:"provider"`
	SummarizedAt time.Time `json:"summarized_at"`
}
