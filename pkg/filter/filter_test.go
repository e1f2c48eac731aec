package filter

import (
	"context"
	"errors"
	"testing"

	"stock-news/pkg/domain"
)

// mockURLChecker is a mock implementation of URLChecker for testing
type mockURLChecker struct {
	existing  map[string]bool
	failURL   string
	callCount int
}

func (m *mockURLChecker) ExistsNewsByURL(ctx context.Context, url string) (bool, error) {
	m.callCount++
	if url == m.failURL {
		return false, errors.New("store unavailable")
	}
	return m.existing[url], nil
}

func candidate(title, url string) domain.NewsCandidate {
	return domain.NewsCandidate{Title: title, URL: url}
}

func TestCompleteFilter(t *testing.T) {
	f := NewCompleteFilter()
	ctx := context.Background()

	cases := []struct {
		c    domain.NewsCandidate
		want bool
	}{
		{candidate("Title", "https://x/1"), true},
		{candidate("", "https://x/1"), false},
		{candidate("Title", ""), false},
		{candidate("  ", "https://x/1"), false},
	}
	for _, tc := range cases {
		got, err := f.ShouldKeep(ctx, tc.c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Errorf("ShouldKeep(%+v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestBaseURLFilter(t *testing.T) {
	f := NewBaseURLFilter()
	ctx := context.Background()

	cases := map[string]bool{
		"https://example.com/news/1":        true,
		"https://example.com/read?id=7":     true,
		"https://example.com/":              false,
		"https://example.com":               false,
		"ftp://example.com/file":            false,
		"/relative/path":                    false,
		"https://news.google.com/rss/a/CBM": true,
	}
	for url, want := range cases {
		got, _ := f.ShouldKeep(ctx, candidate("t", url))
		if got != want {
			t.Errorf("ShouldKeep(%q) = %v, want %v", url, got, want)
		}
	}
}

// Test Case: FilterCandidates with a store error on one URL
// Input: 3 candidates, one already persisted, one whose lookup fails
// Expected Output: only the new candidate is kept, the lookup error is returned
func TestFilterCandidates_DedupAndErrorIsolation(t *testing.T) {
	checker := &mockURLChecker{
		existing: map[string]bool{"https://x/old": true},
		failURL:  "https://x/broken",
	}
	candidates := []domain.NewsCandidate{
		candidate("old", "https://x/old"),
		candidate("broken", "https://x/broken"),
		candidate("new", "https://x/new"),
	}

	kept, err := FilterCandidates(context.Background(), candidates,
		NewCompleteFilter(), NewAlreadyPersistedFilter(checker))

	if err == nil {
		t.Fatal("Expected lookup error to be reported")
	}
	if len(kept) != 1 || kept[0].URL != "https://x/new" {
		t.Fatalf("Expected only https://x/new to be kept, got %+v", kept)
	}
	if checker.callCount != 3 {
		t.Errorf("Expected 3 store lookups, got %d", checker.callCount)
	}
}

func TestFilterCandidates_IncompleteSkipsStoreLookup(t *testing.T) {
	checker := &mockURLChecker{existing: map[string]bool{}}

	kept, err := FilterCandidates(context.Background(),
		[]domain.NewsCandidate{candidate("", "https://x/1")},
		NewCompleteFilter(), NewAlreadyPersistedFilter(checker))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("Expected no candidates, got %d", len(kept))
	}
	if checker.callCount != 0 {
		t.Errorf("Expected no store lookup for incomplete candidate, got %d", checker.callCount)
	}
}

func TestAlreadySeenFilter(t *testing.T) {
	f := NewAlreadySeenFilter()
	ctx := context.Background()

	first, _ := f.ShouldKeep(ctx, candidate("a", "https://x/1"))
	second, _ := f.ShouldKeep(ctx, candidate("b", "https://x/1"))
	other, _ := f.ShouldKeep(ctx, candidate("c", "https://x/2"))

	if !first || second || !other {
		t.Errorf("got first=%v second=%v other=%v, want true false true", first, second, other)
	}
}
