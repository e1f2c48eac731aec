package ai

import (
	"context"
	"fmt"

	"stock-news/pkg/domain"
)

// NewsStore is the store access needed to re-analyze a record.
type NewsStore interface {
	GetNews(ctx context.Context, id string) (*domain.NewsRecord, error)
	UpdateNewsAnalysis(ctx context.Context, id, summary string, impactScore int) error
}

// Reanalyze summarizes a stored record and writes the AI summary and score
// back. This is an editorial path, separate from ingestion.
func (a *Analyzer) Reanalyze(ctx context.Context, store NewsStore, id string) (Summary, error) {
	record, err := store.GetNews(ctx, id)
	if err != nil {
		return Summary{}, fmt.Errorf("load news %s: %w", id, err)
	}

	summary := a.Summarize(ctx, record.Title, record.Content)
	if err := store.UpdateNewsAnalysis(ctx, id, summary.Summary, summary.ImpactScore); err != nil {
		return Summary{}, fmt.Errorf("update news %s: %w", id, err)
	}

	a.logger.Info("AI: news re-analyzed", "id", id, "impact_score", summary.ImpactScore)
	return summary, nil
}
