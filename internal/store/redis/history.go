// Package redis keeps the bounded access history in Redis lists, one list
// per (user, action) key. LPUSH followed by LTRIM makes the append-and-trim
// cycle atomic within a pipeline, so a separate lock is unnecessary.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"zonegate.org/internal/access"
)

// History implements access.HistoryRepository over a Redis client.
type History struct {
	client *redis.Client
}

var _ access.HistoryRepository = (*History)(nil)

func NewHistory(client *redis.Client) *History {
	return &History{client: client}
}

func historyKey(userID, actionKey string) string {
	return fmt.Sprintf("history:%s:%s", userID, actionKey)
}

func (r *History) Append(ctx context.Context, userID, actionKey string, entry access.HistoryEntry, limit int) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	key := historyKey(userID, actionKey)

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(limit)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append history: %v", access.ErrUnavailable, err)
	}
	return nil
}

func (r *History) List(ctx context.Context, userID, actionKey string) ([]access.HistoryEntry, error) {
	raw, err := r.client.LRange(ctx, historyKey(userID, actionKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", access.ErrUnavailable, err)
	}

	// Lists store newest first; callers expect oldest first.
	result := make([]access.HistoryEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var entry access.HistoryEntry
		if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		result = append(result, entry)
	}
	return result, nil
}
