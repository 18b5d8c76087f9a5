package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// HistoryLimit is the number of most-recent entries kept per
// (user, action) pair. Older entries are evicted on append.
const HistoryLimit = 100

// HistoryTracker appends bounded per-user, per-action decision history.
// Atomicity of the read-append-trim cycle is a repository obligation, so the
// tracker stays correct over in-memory, Postgres and Redis backends alike.
type HistoryTracker struct {
	store HistoryRepository
	limit int
}

func NewHistoryTracker(store HistoryRepository) (*HistoryTracker, error) {
	if store == nil {
		return nil, errors.New("history repository is required")
	}
	return &HistoryTracker{store: store, limit: HistoryLimit}, nil
}

// Append records one decision for (userID, actionKey), trimming the history
// to the configured bound.
func (t *HistoryTracker) Append(ctx context.Context, userID, actionKey string, entry HistoryEntry) error {
	userID = strings.TrimSpace(userID)
	actionKey = strings.TrimSpace(actionKey)
	if userID == "" || actionKey == "" {
		return fmt.Errorf("%w: user_id and action key are required", ErrInvalidInput)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	return t.store.Append(ctx, userID, actionKey, entry, t.limit)
}

// List returns the recorded history, oldest first and most recent last.
func (t *HistoryTracker) List(ctx context.Context, userID, actionKey string) ([]HistoryEntry, error) {
	userID = strings.TrimSpace(userID)
	actionKey = strings.TrimSpace(actionKey)
	if userID == "" || actionKey == "" {
		return nil, fmt.Errorf("%w: user_id and action key are required", ErrInvalidInput)
	}
	return t.store.List(ctx, userID, actionKey)
}
