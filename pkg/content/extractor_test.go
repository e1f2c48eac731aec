package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"stock-news/pkg/domain"
	"stock-news/pkg/httpclient"
)

const longParagraph = "Shares of Acme Corp climbed in morning trading after the company reported quarterly revenue that beat expectations. " +
	"Executives said demand for the new product line remained strong across every region, and guidance for the next quarter was raised."

func articlePage(body string) string {
	return `<!DOCTYPE html><html><head><title>Acme climbs</title></head><body>
<nav>Home | Markets | Tech</nav>
<article><h1>Acme climbs</h1>` + body + `</article>
<footer>Copyright</footer></body></html>`
}

func newTestExtractor() *ArticleExtractor {
	return NewArticleExtractor(httpclient.NewClientWithTimeout(httpclient.BrowserClient, 2*time.Second), nil)
}

func TestArticleExtractor_Extract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage("<p>" + longParagraph + "</p><p>" + longParagraph + "</p>")))
	}))
	defer server.Close()

	result := newTestExtractor().Extract(context.Background(), server.URL+"/news/acme")

	if !result.Success {
		t.Fatal("Expected successful extraction")
	}
	if !strings.Contains(result.Content, "Shares of Acme Corp climbed") {
		t.Errorf("Content missing article text: %q", result.Content)
	}
	if utf8.RuneCountInString(result.Summary) > domain.SummaryLimit {
		t.Errorf("Summary has %d characters, want <= %d", utf8.RuneCountInString(result.Summary), domain.SummaryLimit)
	}
	if !strings.HasPrefix(result.Content, result.Summary) {
		t.Error("Summary must be a prefix of Content")
	}
}

func TestArticleExtractor_Extract_TooShort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articlePage("<p>Short note.</p>")))
	}))
	defer server.Close()

	result := newTestExtractor().Extract(context.Background(), server.URL)

	if result.Success {
		t.Fatal("Expected failure for short article")
	}
	if result.Content != "" || result.Summary != "" {
		t.Errorf("Expected empty strings on failure, got content=%q summary=%q", result.Content, result.Summary)
	}
}

func TestArticleExtractor_Extract_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	result := newTestExtractor().Extract(context.Background(), server.URL)

	if result != (Result{}) {
		t.Errorf("Expected zero Result on HTTP error, got %+v", result)
	}
}

func TestArticleExtractor_Extract_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := newTestExtractor().Extract(context.Background(), url)

	if result.Success {
		t.Fatal("Expected failure for unreachable host")
	}
}

func TestArticleExtractor_Extract_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(articlePage("<p>" + longParagraph + "</p>")))
	}))
	defer server.Close()

	extractor := NewArticleExtractor(httpclient.NewClientWithTimeout(httpclient.BrowserClient, 50*time.Millisecond), nil)
	result := extractor.Extract(context.Background(), server.URL)

	if result.Success {
		t.Fatal("Expected failure on timeout")
	}
}

func mustParse(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := parseDocument(page)
	if err != nil {
		t.Fatalf("parseDocument: %v", err)
	}
	return doc
}

// Test Case 1: TestContainerText
// Input: a short <article> teaser followed by a long Yahoo ".caas-body" container
// Expected Output: the ".caas-body" paragraphs; the teaser and nav are not included
func TestContainerText(t *testing.T) {
	page := `<html><body><nav>Markets</nav>` +
		`<article><p>Teaser only.</p></article>` +
		`<div class="caas-body"><p>` + longParagraph + `</p></div>` +
		`</body></html>`

	text := containerText(mustParse(t, page))
	if text != longParagraph {
		t.Errorf("containerText = %q, want the caas-body paragraph", text)
	}
}

func TestContainerText_BareTextContainer(t *testing.T) {
	page := `<html><body><div itemprop="articleBody">` + longParagraph + `</div></body></html>`

	if text := containerText(mustParse(t, page)); text != longParagraph {
		t.Errorf("containerText = %q, want the container text", text)
	}
}

func TestContainerText_NoKnownContainer(t *testing.T) {
	page := `<html><body><div class="unknown-layout"><p>` + longParagraph + `</p></div></body></html>`

	if text := containerText(mustParse(t, page)); text != "" {
		t.Errorf("containerText = %q, want empty", text)
	}
}

// Test Case 2: TestParagraphText_Fallback
// Input: paragraphs spread over unknown wrappers, each too short alone
// Expected Output: all paragraphs joined, long enough as a whole
func TestParagraphText_Fallback(t *testing.T) {
	part := longParagraph[:60]
	page := `<html><body>` +
		`<div class="a"><p>` + part + `</p></div>` +
		`<section><p>  ` + part + `  </p><p> </p></section>` +
		`</body></html>`

	doc := mustParse(t, page)
	if text := containerText(doc); text != "" {
		t.Fatalf("expected no container match, got %q", text)
	}
	text := paragraphText(doc.Selection)
	if text != part+"\n\n"+part {
		t.Errorf("paragraphText = %q", text)
	}
	if longEnough(part) || !longEnough(text) {
		t.Errorf("expected joined paragraphs above %d characters", MinArticleLength)
	}
}

func TestExtractArticle_EmptyDocument(t *testing.T) {
	if _, err := ExtractArticle("<html><body></body></html>", ""); err == nil {
		t.Fatal("Expected error for empty document")
	}
}
