package pipeline

import (
	"context"
	"time"

	"stock-news/pkg/content"
	"stock-news/pkg/domain"
	"stock-news/pkg/scorer"
)

// HTTPContentProcessor implements ContentProcessor by extracting the article
// behind the candidate URL and scoring the result.
type HTTPContentProcessor struct {
	extractor content.Extractor
	now       func() time.Time
}

// NewHTTPContentProcessor creates a processor around an extractor.
func NewHTTPContentProcessor(extractor content.Extractor) *HTTPContentProcessor {
	return &HTTPContentProcessor{
		extractor: extractor,
		now:       time.Now,
	}
}

// ProcessContent never fails: an unsuccessful extraction falls back to the
// candidate's raw summary, then its title.
func (p *HTTPContentProcessor) ProcessContent(ctx context.Context, candidate domain.NewsCandidate) (*domain.NewsRecord, error) {
	var extracted string
	if result := p.extractor.Extract(ctx, candidate.URL); result.Success {
		extracted = result.Content
	}

	record := domain.NewRecord(candidate, extracted, scorer.DefaultScore, p.now())
	record.ImpactScore = scorer.Score(record.Title, record.Content)
	return record, nil
}

// NewsInserter is the store write used by StoreContentSaver.
type NewsInserter interface {
	InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error)
}

// StoreContentSaver implements ContentSaver on a store.
type StoreContentSaver struct {
	store NewsInserter
}

// NewStoreContentSaver creates a saver backed by store.
func NewStoreContentSaver(store NewsInserter) *StoreContentSaver {
	return &StoreContentSaver{store: store}
}

// SaveNews inserts the record.
func (s *StoreContentSaver) SaveNews(ctx context.Context, record *domain.NewsRecord) (bool, error) {
	return s.store.InsertNews(ctx, record)
}
