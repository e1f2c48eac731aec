/*
Package alert notifies subscribers about high-impact news over Telegram and
email.
*/
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"stock-news/pkg/domain"
)

// DefaultMinScore is the impact score at which alerts are sent.
const DefaultMinScore = 5

// Sender delivers one alert over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, record *domain.NewsRecord) error
}

// Message renders the alert text shared by every channel.
func Message(record *domain.NewsRecord) string {
	return fmt.Sprintf("📰 *Stock News Alert*\n\n%s\n\nImpact Score: %d/5\n\n%s\n\nRead more: %s",
		record.Title, record.ImpactScore, record.Summary, record.URL)
}

// Subject is the email subject line for a record.
func Subject(record *domain.NewsRecord) string {
	return "Stock Alert: " + record.Title
}

// Dispatcher fans an alert out to every configured sender.
type Dispatcher struct {
	senders  []Sender
	minScore int
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. minScore <= 0 uses DefaultMinScore.
func NewDispatcher(senders []Sender, minScore int, logger *slog.Logger) *Dispatcher {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{senders: senders, minScore: minScore, logger: logger.With("component", "alert")}
}

// Dispatch sends to all senders concurrently. Every sender is attempted: a
// failing channel does not cancel the others. The failures are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, record *domain.NewsRecord) error {
	errs := make([]error, len(d.senders))

	var g errgroup.Group
	for i, sender := range d.senders {
		g.Go(func() error {
			if err := sender.Send(ctx, record); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sender.Name(), err)
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}

	return errors.Join(errs...)
}

// Hook is an insert hook for the ingestion pipeline. Records below the
// threshold are ignored; delivery errors are logged only.
func (d *Dispatcher) Hook(ctx context.Context, record *domain.NewsRecord) {
	if len(d.senders) == 0 || record.ImpactScore < d.minScore {
		return
	}
	if err := d.Dispatch(ctx, record); err != nil {
		d.logger.Warn("Alert: delivery failed", "url", record.URL, "error", err)
		return
	}
	d.logger.Info("Alert: sent", "url", record.URL, "impact_score", record.ImpactScore, "channels", len(d.senders))
}
