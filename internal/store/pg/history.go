package pg

import (
	"context"
	"database/sql"
	"hash/fnv"

	"zonegate.org/internal/access"
)

// History stores bounded per-(user, action) decision history.
type History struct {
	db *sql.DB
}

var _ access.HistoryRepository = (*History)(nil)

// Append inserts the entry and trims the key back to limit rows. The
// advisory lock serializes concurrent appends for the same key so the trim
// never undercounts.
func (r *History) Append(ctx context.Context, userID, actionKey string, entry access.HistoryEntry, limit int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, historyLockKey(userID, actionKey)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into access_history (user_id, action_key, occurred_at, zone_id, allowed, reason)
		values ($1, $2, $3, $4, $5, $6)
	`, userID, actionKey, entry.OccurredAt, entry.ZoneID, entry.Allowed, entry.Reason); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from access_history
		where user_id=$1 and action_key=$2 and id not in (
			select id from access_history
			where user_id=$1 and action_key=$2
			order by occurred_at desc, id desc
			limit $3
		)
	`, userID, actionKey, limit); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *History) List(ctx context.Context, userID, actionKey string) ([]access.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		select occurred_at, zone_id, allowed, reason
		from access_history
		where user_id=$1 and action_key=$2
		order by occurred_at, id
	`, userID, actionKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []access.HistoryEntry
	for rows.Next() {
		var entry access.HistoryEntry
		if err := rows.Scan(&entry.OccurredAt, &entry.ZoneID, &entry.Allowed, &entry.Reason); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func historyLockKey(userID, actionKey string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(actionKey))
	return int64(h.Sum64())
}
