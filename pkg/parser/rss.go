package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
)

const sourceKey = "source"

// RSSParser handles RSS/Atom feed parsing operations
type RSSParser struct {
	feedParser *gofeed.Parser
}

// NewRSSParser creates a new RSS parser. client may be nil.
func NewRSSParser(client *http.Client) *RSSParser {
	fp := gofeed.NewParser()
	fp.RSSTranslator = &sourceTranslator{}
	fp.UserAgent = "Mozilla/5.0 (compatible; stock-news/1.0)"
	if client != nil {
		fp.Client = client
	}
	return &RSSParser{
		feedParser: fp,
	}
}

// ParseFromURL fetches and parses an RSS/Atom feed from the given URL
func (p *RSSParser) ParseFromURL(ctx context.Context, feedURL string) ([]Entry, error) {
	feed, err := p.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	return entriesFromFeed(feed), nil
}

// ParseString parses an RSS/Atom document held in memory
func (p *RSSParser) ParseString(document string) ([]Entry, error) {
	feed, err := p.feedParser.ParseString(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	return entriesFromFeed(feed), nil
}

func entriesFromFeed(feed *gofeed.Feed) []Entry {
	if feed == nil {
		return nil
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entry := Entry{
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Summary:   plainText(item.Description),
			Published: item.PublishedParsed,
		}
		if entry.Published == nil {
			entry.Published = item.UpdatedParsed
		}
		if item.Custom != nil {
			entry.Source = item.Custom[sourceKey]
		}
		entries = append(entries, entry)
	}
	return entries
}

// plainText strips markup from feed descriptions. Google News wraps its
// summaries in anchor lists.
func plainText(description string) string {
	description = strings.TrimSpace(description)
	if !strings.Contains(description, "<") {
		return description
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return description
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// sourceTranslator keeps the RSS <source> element, which the universal
// gofeed item does not carry, in Item.Custom.
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	out, err := t.DefaultRSSTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}

	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return out, nil
	}
	for i, item := range rssFeed.Items {
		if i >= len(out.Items) || item == nil || item.Source == nil {
			continue
		}
		title := strings.TrimSpace(item.Source.Title)
		if title == "" {
			continue
		}
		if out.Items[i].Custom == nil {
			out.Items[i].Custom = make(map[string]string)
		}
		out.Items[i].Custom[sourceKey] = title
	}
	return out, nil
}
