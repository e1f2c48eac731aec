package parser

import (
	"context"
	"time"
)

// Entry is a single item read from a news feed
type Entry struct {
	Title     string
	Link      string
	Summary   string
	Source    string     // Publisher named by the feed item, when present
	Published *time.Time // Nil when the feed date is missing or unparsable
}

// Parser defines the interface for news feed parsers
type Parser interface {
	ParseFromURL(ctx context.Context, feedURL string) ([]Entry, error)
}
