package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newHistoryFixture(t *testing.T) *HistoryTracker {
	t.Helper()
	tracker, err := NewHistoryTracker(NewMemoryHistory())
	if err != nil {
		t.Fatalf("NewHistoryTracker: %v", err)
	}
	return tracker
}

func TestHistoryBoundedAtLimit(t *testing.T) {
	tracker := newHistoryFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 150; i++ {
		entry := HistoryEntry{
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
			ZoneID:     fmt.Sprintf("z-%d", i),
			Allowed:    true,
		}
		if err := tracker.Append(ctx, "u1", ActionEnter, entry); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, err := tracker.List(ctx, "u1", ActionEnter)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != HistoryLimit {
		t.Fatalf("expected %d entries, got %d", HistoryLimit, len(entries))
	}
	// Oldest 50 evicted; order must stay chronological, most recent last.
	if entries[0].ZoneID != "z-50" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[len(entries)-1].ZoneID != "z-149" {
		t.Fatalf("unexpected last entry: %+v", entries[len(entries)-1])
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].OccurredAt.Before(entries[i-1].OccurredAt) {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestHistoryKeysAreIndependent(t *testing.T) {
	tracker := newHistoryFixture(t)
	ctx := context.Background()

	_ = tracker.Append(ctx, "u1", ActionEnter, HistoryEntry{ZoneID: "a"})
	_ = tracker.Append(ctx, "u1", ActionExit, HistoryEntry{ZoneID: "b"})
	_ = tracker.Append(ctx, "u2", ActionEnter, HistoryEntry{ZoneID: "c"})

	enter, _ := tracker.List(ctx, "u1", ActionEnter)
	exit, _ := tracker.List(ctx, "u1", ActionExit)
	other, _ := tracker.List(ctx, "u2", ActionEnter)
	if len(enter) != 1 || len(exit) != 1 || len(other) != 1 {
		t.Fatalf("keys bled into each other: %d/%d/%d", len(enter), len(exit), len(other))
	}
	if enter[0].ZoneID != "a" || exit[0].ZoneID != "b" || other[0].ZoneID != "c" {
		t.Fatal("entries landed under wrong keys")
	}
}

func TestHistoryConcurrentAppends(t *testing.T) {
	tracker := newHistoryFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	const writers = 150
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tracker.Append(ctx, "u1", ActionEnter, HistoryEntry{ZoneID: fmt.Sprintf("z-%d", i)})
		}(i)
	}
	wg.Wait()

	entries, err := tracker.List(ctx, "u1", ActionEnter)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != HistoryLimit {
		t.Fatalf("racy trim: expected exactly %d entries, got %d", HistoryLimit, len(entries))
	}
}

func TestHistoryValidation(t *testing.T) {
	tracker := newHistoryFixture(t)
	ctx := context.Background()

	if err := tracker.Append(ctx, "", ActionEnter, HistoryEntry{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := tracker.List(ctx, "u1", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	// Zero timestamps are stamped on append.
	if err := tracker.Append(ctx, "u1", ActionEnter, HistoryEntry{ZoneID: "z"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, _ := tracker.List(ctx, "u1", ActionEnter)
	if entries[0].OccurredAt.IsZero() {
		t.Fatal("expected timestamp to be stamped")
	}
}
