package db

import (
	"context"
	"time"

	"github.com/susu3304/dagsplit/internal/ledger"
)

// DueReminders returns the groups with a nonzero balance whose next
// reminder is unset or due by now.
func (db *DB) DueReminders(ctx context.Context, now time.Time) ([]ledger.Group, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+groupColumns+`, '0'
		 FROM groups g
		 WHERE (g.next_reminder_at IS NULL OR g.next_reminder_at <= $1)
		   AND EXISTS (SELECT 1 FROM balances o WHERE o.group_id = g.id AND o.amount <> 0)
		 ORDER BY g.created_at`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return collectGroups(rows)
}

func (db *DB) MarkReminderSent(ctx context.Context, groupID string, sentAt, nextDue time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE groups
		 SET last_reminded_at = $2, next_reminder_at = $3
		 WHERE id = $1`,
		groupID, sentAt, nextDue,
	)
	return err
}

// DelayReminder moves next_reminder_at without touching last_reminded_at.
func (db *DB) DelayReminder(ctx context.Context, groupID string, nextDue time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE groups
		 SET next_reminder_at = $2
		 WHERE id = $1`,
		groupID, nextDue,
	)
	return err
}
