package notify

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/susu3304/dagsplit/internal/ledger"
)

const (
	reminderPoll    = time.Minute
	reminderBackoff = 2 * time.Minute
)

// ReminderStore is what the reminder worker reads from and records in the
// mirror.
type ReminderStore interface {
	// DueReminders returns the groups with outstanding balances whose next
	// reminder is unset or not after now.
	DueReminders(ctx context.Context, now time.Time) ([]ledger.Group, error)
	Balances(ctx context.Context, groupID string) ([]ledger.Balance, error)
	MarkReminderSent(ctx context.Context, groupID string, sentAt, nextDue time.Time) error
	DelayReminder(ctx context.Context, groupID string, nextDue time.Time) error
}

// ReminderWorker posts the settlement plan of every group that still has
// outstanding balances, at most once per interval for each group.
type ReminderWorker struct {
	store    ReminderStore
	notifier Notifier
	interval time.Duration
	stopChan chan struct{}
	ticker   *time.Ticker
	now      func() time.Time
	log      *log.Entry
}

func NewReminderWorker(store ReminderStore, notifier Notifier, interval time.Duration) *ReminderWorker {
	return &ReminderWorker{
		store:    store,
		notifier: notifier,
		interval: interval,
		stopChan: make(chan struct{}),
		now:      time.Now,
		log:      log.WithField("component", "reminder"),
	}
}

func (w *ReminderWorker) Start() {
	if w == nil || w.interval <= 0 {
		return
	}
	w.ticker = time.NewTicker(minDuration(reminderPoll, w.interval))
	go w.loop()
}

func (w *ReminderWorker) Stop() {
	if w == nil || w.ticker == nil {
		return
	}
	close(w.stopChan)
	w.ticker.Stop()
}

func (w *ReminderWorker) loop() {
	ctx := context.Background()
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

func (w *ReminderWorker) tick(ctx context.Context) {
	now := w.now()
	groups, err := w.store.DueReminders(ctx, now)
	if err != nil {
		w.log.WithError(err).Warn("failed to load due reminders")
		return
	}

	for _, g := range groups {
		logger := w.log.WithField("group", g.ID)
		balances, err := w.store.Balances(ctx, g.ID)
		if err != nil {
			logger.WithError(err).Warn("failed to load balances")
			continue
		}
		transfers := ledger.Plan(balances)
		if len(transfers) == 0 {
			continue
		}
		if err := w.notifier.Reminder(ctx, g, transfers); err != nil {
			logger.WithError(err).Warn("failed to post reminder")
			// Back off so a failing channel is not retried on every poll.
			next := now.Add(minDuration(reminderBackoff, w.interval))
			if derr := w.store.DelayReminder(ctx, g.ID, next); derr != nil {
				logger.WithError(derr).Warn("failed to delay reminder")
			}
			continue
		}
		if err := w.store.MarkReminderSent(ctx, g.ID, now, now.Add(w.interval)); err != nil {
			logger.WithError(err).Warn("failed to mark reminder sent")
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
