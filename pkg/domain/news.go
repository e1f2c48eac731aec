package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SummaryLimit is the maximum number of characters kept in a news summary.
const SummaryLimit = 500

// NewsCandidate is a news item produced by a source adapter before it is
// extracted, scored and persisted.
type NewsCandidate struct {
	// StockID is the stock the item is attached to. Market-wide news uses the
	// placeholder market stock.
	StockID string

	Title string

	// URL is absolute and is the dedup key.
	URL string

	// RawSummary is the provider-supplied short text. May be empty.
	RawSummary string

	PublishedAt time.Time

	// SourceLabel is the provider or publisher display name.
	SourceLabel string
}

// NewsRecord is a persisted news item.
type NewsRecord struct {
	ID          string    `json:"id" bson:"_id"`
	StockID     string    `json:"stock_id,omitempty" bson:"stock_id,omitempty"`
	Title       string    `json:"title" bson:"title"`
	Content     string    `json:"content" bson:"content"`
	Summary     string    `json:"summary" bson:"summary"`
	URL         string    `json:"url" bson:"url"`
	Source      string    `json:"source" bson:"source"`
	PublishedAt time.Time `json:"published_at" bson:"published_at"`
	ImpactScore int       `json:"impact_score" bson:"impact_score"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`

	// Stock is filled on read paths that join the owning stock.
	Stock *Stock `json:"stocks,omitempty" bson:"-"`
}

// NewRecord builds a record from a candidate. Content falls back to the raw
// summary and then to the title so it is never empty.
func NewRecord(c NewsCandidate, extracted string, score int, now time.Time) *NewsRecord {
	content := extracted
	if content == "" {
		content = c.RawSummary
	}
	if content == "" {
		content = c.Title
	}

	published := c.PublishedAt
	if published.IsZero() {
		published = now
	}

	return &NewsRecord{
		ID:          uuid.NewString(),
		StockID:     c.StockID,
		Title:       c.Title,
		Content:     content,
		Summary:     Truncate(content, SummaryLimit),
		URL:         c.URL,
		Source:      c.SourceLabel,
		PublishedAt: published.UTC(),
		ImpactScore: score,
		CreatedAt:   now.UTC(),
	}
}

// Truncate returns the first n characters of s. It cuts on rune boundaries
// without looking for word breaks.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
