package entity

import "time"

// DailyDigest is the per-day roll-up published next to the article list.
type DailyDigest struct {
	Date              string         `json:"date"`
	TotalArticles     int            `json:"total_articles"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	Summary           string         `json:"summary"`
	Provider          string         `json:"provider,omitempty"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
