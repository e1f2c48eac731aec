// Package scorer rates news items for likely market impact.
package scorer

import (
	"strings"

	"stock-news/pkg/domain"
)

const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 3
)

// contentWindow is how much of the lowercased content is searched for
// high-impact keywords.
const contentWindow = 500

var highImpactKeywords = []string{
	"federal reserve", "fed", "interest rate", "inflation", "recession",
	"sec", "regulation", "policy", "earnings report", "market crash",
	"economic", "gdp", "unemployment", "forex", "exchange rate",
	"trade war", "tariff", "geopolitical", "bank crisis",
}

var mediumImpactKeywords = []string{
	"analyst", "upgrade", "downgrade", "price target", "market outlook",
	"sector", "industry", "merger", "acquisition", "ipo",
}

// Score maps a title and content to an impact score. High-impact keywords in
// the title or the start of the content score 5, medium-impact keywords in
// the title score 4, anything else scores 3. Matching is a case-insensitive
// substring test.
func Score(title, content string) int {
	titleLower := strings.ToLower(title)
	contentLower := domain.Truncate(strings.ToLower(content), contentWindow)

	for _, keyword := range highImpactKeywords {
		if strings.Contains(titleLower, keyword) || strings.Contains(contentLower, keyword) {
			return 5
		}
	}

	for _, keyword := range mediumImpactKeywords {
		if strings.Contains(titleLower, keyword) {
			return 4
		}
	}

	return DefaultScore
}

// Clamp bounds an externally supplied score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
