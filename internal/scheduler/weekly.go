// Package scheduler runs the recurring availability request emails.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/notify"
	"github.com/nextvisit/practice-availability/internal/observability/metrics"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

// WeeklyNotifier emails every opted-in practice a per-specialty availability
// request once a week. Ticks are frequent but sends are gated by send day
// and per-practice cooldown, so a restarted process never double-sends.
type WeeklyNotifier struct {
	repo     directory.Repository
	sender   notify.EmailSender
	metrics  *metrics.Metrics
	logger   *logging.Logger
	interval time.Duration
	cooldown time.Duration
	sendDay  time.Weekday
	replyTo  string
	now      func() time.Time
}

// Summary reports one notifier run.
type Summary struct {
	Practices int
	Sent      int
	Failed    int
	Skipped   int
}

// NewWeeklyNotifier creates a notifier. metrics may be nil.
func NewWeeklyNotifier(repo directory.Repository, sender notify.EmailSender, m *metrics.Metrics, logger *logging.Logger) *WeeklyNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &WeeklyNotifier{
		repo:     repo,
		sender:   sender,
		metrics:  m,
		logger:   logger.WithComponent("weekly_notifier"),
		interval: 1 * time.Hour,
		cooldown: 7 * 24 * time.Hour,
		sendDay:  time.Monday,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithInterval sets the tick interval.
func (w *WeeklyNotifier) WithInterval(interval time.Duration) *WeeklyNotifier {
	w.interval = interval
	return w
}

// WithCooldown sets the minimum gap between emails to the same practice.
func (w *WeeklyNotifier) WithCooldown(cooldown time.Duration) *WeeklyNotifier {
	w.cooldown = cooldown
	return w
}

// WithReplyTo sets the reply-to address stamped on outbound requests.
func (w *WeeklyNotifier) WithReplyTo(addr string) *WeeklyNotifier {
	w.replyTo = addr
	return w
}

// WithClock overrides the time source for tests.
func (w *WeeklyNotifier) WithClock(now func() time.Time) *WeeklyNotifier {
	w.now = now
	return w
}

// Start runs the notifier loop. Blocks until context is cancelled.
func (w *WeeklyNotifier) Start(ctx context.Context) {
	w.logger.Info("starting weekly notifier",
		"interval", w.interval.String(),
		"cooldown", w.cooldown.String(),
		"send_day", w.sendDay.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("weekly notifier shutting down")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick sends only on the configured weekday; the cooldown keeps the hourly
// ticks on that day from re-emailing anyone.
func (w *WeeklyNotifier) tick(ctx context.Context) {
	if w.now().Weekday() != w.sendDay {
		return
	}
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("weekly notifier run failed", "error", err)
	}
}

// RunOnce emails every due practice now, regardless of send day. Used by the
// ticker on send day and by the manual admin trigger. A single practice's
// send failure never aborts the run.
func (w *WeeklyNotifier) RunOnce(ctx context.Context) (Summary, error) {
	now := w.now()

	practices, err := w.repo.ListNotifiable(ctx)
	if err != nil {
		w.metrics.ObserveNotifyRun("error")
		return Summary{}, fmt.Errorf("scheduler: listing notifiable practices: %w", err)
	}

	summary := Summary{Practices: len(practices)}
	for i := range practices {
		practice := &practices[i]

		if practice.LastEmailSent != nil && now.Sub(*practice.LastEmailSent) < w.cooldown {
			summary.Skipped++
			w.metrics.ObserveOutbound("skipped", true)
			continue
		}
		if len(practice.Specialties) == 0 {
			summary.Skipped++
			continue
		}

		attempted := 0
		for _, ps := range practice.Specialties {
			attempted++
			msg := notify.BuildAvailabilityRequest(practice, ps.Specialty, w.replyTo)
			if err := w.sender.Send(ctx, msg); err != nil {
				summary.Failed++
				w.metrics.ObserveOutbound("failed", false)
				w.logger.Error("availability request send failed",
					"practice_id", practice.ID,
					"specialty", ps.Code,
					"error", err,
				)
				continue
			}
			summary.Sent++
			w.metrics.ObserveOutbound("sent", false)
			w.appendLog(ctx, practice.ID, now)
		}

		// Mark even on partial failure so a flaky provider cannot cause a
		// practice to be re-emailed on every subsequent tick.
		if attempted > 0 {
			if err := w.repo.MarkContacted(ctx, practice.ID, now); err != nil {
				w.logger.Error("marking practice contacted failed",
					"practice_id", practice.ID, "error", err)
			}
		}
	}

	w.metrics.ObserveNotifyRun("ok")
	w.logger.Info("weekly notifier run complete",
		"practices", summary.Practices,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (w *WeeklyNotifier) appendLog(ctx context.Context, practiceID int64, now time.Time) {
	entry := &directory.EmailLog{
		ID:         uuid.NewString(),
		PracticeID: practiceID,
		EmailType:  directory.EmailTypeWeeklyRequest,
		CreatedAt:  now,
	}
	if err := w.repo.AppendEmailLog(ctx, entry); err != nil {
		w.logger.Error("appending email log failed", "practice_id", practiceID, "error", err)
	}
}
