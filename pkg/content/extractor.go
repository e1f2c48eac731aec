package content

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"stock-news/pkg/domain"
	"stock-news/pkg/httpclient"
)

// MinArticleLength is the number of characters an extraction must exceed to
// count as a real article.
const MinArticleLength = 100

// containerSelectors are known article-body containers, tried in order after
// readability.
var containerSelectors = []string{
	"article",
	"[itemprop='articleBody']",
	".caas-body",
	".article-body",
	".article-content",
	".story-body",
	".post-content",
	"main",
	"#content",
}

// Result is the outcome of an extraction attempt. A failed attempt has
// Success false and empty strings.
type Result struct {
	Content string
	Summary string
	Success bool
}

// Extractor downloads a page and extracts its main article text.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) Result
}

// ArticleExtractor implements Extractor over HTTP with a chain of
// readability, container selectors and a paragraph fallback.
type ArticleExtractor struct {
	client *httpclient.HTTPClient
	logger *slog.Logger
}

// NewArticleExtractor creates an extractor. A nil client gets a browser
// profile client with the default timeout.
func NewArticleExtractor(client *httpclient.HTTPClient, logger *slog.Logger) *ArticleExtractor {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleExtractor{client: client, logger: logger.With("component", "extractor")}
}

// Extract makes a single attempt to download pageURL and extract its text.
// Every failure is reported as a negative Result.
func (e *ArticleExtractor) Extract(ctx context.Context, pageURL string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Extractor: panic while extracting", "url", pageURL, "panic", r)
			result = Result{}
		}
	}()

	body, err := e.client.GetBody(ctx, pageURL)
	if err != nil {
		e.logger.Warn("Extractor: failed to download article", "url", pageURL, "error", err)
		return Result{}
	}

	text, err := ExtractArticle(string(body), pageURL)
	if err != nil {
		e.logger.Warn("Extractor: no article text", "url", pageURL, "error", err)
		return Result{}
	}

	e.logger.Debug("Extractor: extracted article", "url", pageURL, "chars", utf8.RuneCountInString(text))
	return Result{
		Content: text,
		Summary: domain.Truncate(text, domain.SummaryLimit),
		Success: true,
	}
}

// ExtractArticle runs the heuristic chain over htmlContent and returns the
// first text longer than MinArticleLength characters.
func ExtractArticle(htmlContent, pageURL string) (string, error) {
	if text, err := ExtractText(htmlContent, pageURL); err == nil && longEnough(text) {
		return text, nil
	}

	doc, err := parseDocument(htmlContent)
	if err != nil {
		return "", err
	}
	if text := containerText(doc); text != "" {
		return text, nil
	}
	if text := paragraphText(doc.Selection); longEnough(text) {
		return text, nil
	}

	return "", fmt.Errorf("article text shorter than %d characters", MinArticleLength+1)
}

// parseDocument parses htmlContent and drops page chrome.
func parseDocument(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()
	return doc, nil
}

// containerText returns the text of the first known article container that
// is long enough, or "".
func containerText(doc *goquery.Document) string {
	for _, selector := range containerSelectors {
		selection := doc.Find(selector).First()
		if selection.Length() == 0 {
			continue
		}
		if text := paragraphText(selection); longEnough(text) {
			return text
		}
		if text := collapseSpace(selection.Text()); longEnough(text) {
			return text
		}
	}
	return ""
}

// ExtractText extracts the main article text from HTML content with readability
func ExtractText(htmlContent, pageURL string) (string, error) {
	var parsedURL *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			parsedURL = u
		}
	}

	article, err := readability.FromReader(bytes.NewReader([]byte(htmlContent)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	return strings.TrimSpace(article.TextContent), nil
}

// paragraphText joins the trimmed text of every <p> under selection.
func paragraphText(selection *goquery.Selection) string {
	var parts []string
	selection.Find("p").Each(func(i int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func longEnough(text string) bool {
	return utf8.RuneCountInString(text) > MinArticleLength
}
