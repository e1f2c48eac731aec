package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"stock-news/pkg/domain"
	"stock-news/pkg/scorer"
)

const (
	summaryContentLimit  = 1000
	analysisContentLimit = 2000
	fallbackReplyLimit   = 200
	fallbackTitleLimit   = 100

	generalMarket      = "General Market"
	summaryUnavailable = "Summary unavailable"
	summaryMissing     = "Unable to generate summary"
)

const summaryPrompt = `Analyze this financial news and provide:
1. A 2-sentence summary in English
2. An impact score (1-5) where:
   1 = Minor news, no market impact
   2 = Low impact, sector-specific
   3 = Moderate impact, could affect stock price
   4 = High impact, significant market news
   5 = Critical impact, major market-moving event

Title: %s
Content: %s

Respond in JSON format:
{"summary": "...", "impact_score": 3}`

const analysisPrompt = `Analyze this financial news comprehensively:

Title: %s
Content: %s
Stock Ticker: %s

Provide detailed analysis in JSON format with:

1. market_impact:
   - short_term: {"volatility": "High/Medium/Low", "volume_change": "+X%%", "sentiment": "Bullish/Neutral/Bearish"}
   - long_term: {"growth_potential": "Strong/Moderate/Weak", "sector_influence": "Widespread/Limited", "risk_level": "High/Moderate/Low"}
   - sector_impacts: [{"sector": "Technology", "change": "+8.5%%", "description": "..."}]
   - market_sentiments: [{"source": "Institutional Investors", "score": 88, "label": "Very Positive"}]

2. investor_insights:
   - [{"investor_type": "retail", "opportunities": [...], "risks": [...], "action_items": [...]}]
   - [{"investor_type": "institutional", "opportunities": [...], "risks": [...], "action_items": [...]}]

3. ai_recommendation:
   - recommendation: "BUY/SELL/HOLD"
   - confidence: 0-100
   - target_price: number (optional)
   - risk_score: 0-10
   - hold_period: e.g. "6-12M"
   - reasoning: {"bullish": [...], "bearish": [...], "technical": [...], "financial": [...]}

Return ONLY valid JSON without markdown code blocks.`

// Summary is a short AI summary with an impact score in [1,5].
type Summary struct {
	Summary     string `json:"summary"`
	ImpactScore int    `json:"impact_score"`
}

// Analyzer summarizes and analyzes news through a Generator.
type Analyzer struct {
	gen    Generator
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(gen Generator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gen: gen, logger: logger.With("component", "ai")}
}

// Summarize never fails. A failed call yields the truncated title, an
// unparsable reply yields its first characters, both with the default score.
func (a *Analyzer) Summarize(ctx context.Context, title, content string) Summary {
	prompt := fmt.Sprintf(summaryPrompt, title, domain.Truncate(content, summaryContentLimit))

	reply, err := a.gen.Generate(ctx, prompt, summarySchema())
	if err != nil {
		a.logger.Warn("AI: summarize failed", "error", err)
		return Summary{
			Summary:     domain.Truncate(title, fallbackTitleLimit) + "...",
			ImpactScore: scorer.DefaultScore,
		}
	}

	reply = stripCodeFences(reply)
	var parsed struct {
		Summary     *string  `json:"summary"`
		ImpactScore *float64 `json:"impact_score"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		a.logger.Warn("AI: malformed summary reply", "error", err)
		text := domain.Truncate(reply, fallbackReplyLimit)
		if text == "" {
			text = summaryUnavailable
		}
		return Summary{Summary: text, ImpactScore: scorer.DefaultScore}
	}

	out := Summary{Summary: summaryMissing, ImpactScore: scorer.DefaultScore}
	if parsed.Summary != nil {
		out.Summary = *parsed.Summary
	}
	if parsed.ImpactScore != nil {
		out.ImpactScore = scorer.Clamp(int(math.Round(*parsed.ImpactScore)))
	}
	return out
}

// Analyze returns the detailed analysis as decoded JSON. A reply that is not
// valid JSON gives nil, nil; callers must treat that as unavailable.
func (a *Analyzer) Analyze(ctx context.Context, title, content, ticker string) (map[string]any, error) {
	if ticker == "" {
		ticker = generalMarket
	}
	prompt := fmt.Sprintf(analysisPrompt, title, domain.Truncate(content, analysisContentLimit), ticker)

	reply, err := a.gen.Generate(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze news: %w", err)
	}

	reply = stripCodeFences(reply)
	var analysis map[string]any
	if err := json.Unmarshal([]byte(reply), &analysis); err != nil {
		a.logger.Warn("AI: malformed analysis reply", "error", err, "reply", domain.Truncate(reply, fallbackReplyLimit))
		return nil, nil
	}
	return analysis, nil
}

// stripCodeFences unwraps a reply wrapped in ``` or ```json fences.
func stripCodeFences(reply string) string {
	reply = strings.TrimSpace(reply)
	if !strings.HasPrefix(reply, "```") {
		return reply
	}
	parts := strings.Split(reply, "```")
	if len(parts) < 2 {
		return reply
	}
	inner := strings.TrimPrefix(parts[1], "json")
	return strings.TrimSpace(inner)
}
