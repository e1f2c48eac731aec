package filter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"stock-news/pkg/domain"
)

// Filter decides whether a news candidate should be processed
type Filter interface {
	ShouldKeep(ctx context.Context, candidate domain.NewsCandidate) (bool, error)
}

// FilterCandidates applies all filters to a list of candidates. A filter error
// drops only the candidate it happened on; the errors are joined and returned
// alongside the kept candidates.
func FilterCandidates(ctx context.Context, candidates []domain.NewsCandidate, filters ...Filter) ([]domain.NewsCandidate, error) {
	filtered := make([]domain.NewsCandidate, 0, len(candidates))
	var errs []error

	for _, candidate := range candidates {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, candidate)
			if err != nil {
				errs = append(errs, fmt.Errorf("filter error for URL %s: %w", candidate.URL, err))
				keep = false
				break
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, candidate)
		}
	}

	return filtered, errors.Join(errs...)
}

// CompleteFilter drops candidates without a title or URL
type CompleteFilter struct{}

// NewCompleteFilter creates a new complete-candidate filter
func NewCompleteFilter() *CompleteFilter {
	return &CompleteFilter{}
}

// ShouldKeep returns false if the title or URL is blank
func (f *CompleteFilter) ShouldKeep(ctx context.Context, candidate domain.NewsCandidate) (bool, error) {
	return strings.TrimSpace(candidate.Title) != "" && strings.TrimSpace(candidate.URL) != "", nil
}

// BaseURLFilter filters out base/root URLs and non-HTTP links
type BaseURLFilter struct{}

// NewBaseURLFilter creates a new base URL filter
func NewBaseURLFilter() *BaseURLFilter {
	return &BaseURLFilter{}
}

// ShouldKeep returns false if URL is a base/root URL or not absolute http(s)
func (f *BaseURLFilter) ShouldKeep(ctx context.Context, candidate domain.NewsCandidate) (bool, error) {
	parsed, err := url.Parse(candidate.URL)
	if err != nil {
		return false, nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, nil
	}

	path := strings.Trim(parsed.Path, "/")
	return path != "" || parsed.RawQuery != "", nil
}

// URLChecker reports whether a news URL is already persisted
type URLChecker interface {
	ExistsNewsByURL(ctx context.Context, url string) (bool, error)
}

// AlreadyPersistedFilter filters out candidates whose URL is already stored
type AlreadyPersistedFilter struct {
	checker URLChecker
}

// NewAlreadyPersistedFilter creates a new dedup filter backed by the store
func NewAlreadyPersistedFilter(checker URLChecker) *AlreadyPersistedFilter {
	return &AlreadyPersistedFilter{checker: checker}
}

// ShouldKeep returns false if the URL exists in the store
func (f *AlreadyPersistedFilter) ShouldKeep(ctx context.Context, candidate domain.NewsCandidate) (bool, error) {
	exists, err := f.checker.ExistsNewsByURL(ctx, candidate.URL)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// AlreadySeenFilter filters out URLs already seen by this filter instance,
// so the same link returned by two sources in one batch is processed once
type AlreadySeenFilter struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewAlreadySeenFilter creates a new already-seen filter
func NewAlreadySeenFilter() *AlreadySeenFilter {
	return &AlreadySeenFilter{seen: make(map[string]bool)}
}

// ShouldKeep returns false if URL was already passed through this filter
func (f *AlreadySeenFilter) ShouldKeep(ctx context.Context, candidate domain.NewsCandidate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[candidate.URL] {
		return false, nil
	}
	f.seen[candidate.URL] = true
	return true, nil
}
