package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newAlertFixture(t *testing.T) *AlertService {
	t.Helper()
	svc, err := NewAlertService(NewMemoryAlerts())
	if err != nil {
		t.Fatalf("NewAlertService: %v", err)
	}
	return svc
}

func TestAlertLifecycle(t *testing.T) {
	svc := newAlertFixture(t)
	ctx := context.Background()

	alert, err := svc.Raise(ctx, AlertUnauthorized, "z-1", "u-1", AlertDetails{AttemptedAccess: "Vault"})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if alert.Status != AlertStatusActive || alert.ID == "" {
		t.Fatalf("unexpected alert: %+v", alert)
	}

	if err := svc.Resolve(ctx, alert.ID, "guard-7"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, _ := svc.Get(ctx, alert.ID)
	if got.Status != AlertStatusResolved || got.ResolvedBy != "guard-7" || got.ResolvedAt == nil {
		t.Fatalf("unexpected resolved alert: %+v", got)
	}
}

func TestAlertImmutableOnceResolved(t *testing.T) {
	svc := newAlertFixture(t)
	ctx := context.Background()

	alert, _ := svc.Raise(ctx, AlertRestricted, "z-1", "u-1", AlertDetails{})
	if err := svc.Resolve(ctx, alert.ID, "guard-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	resolved, _ := svc.Get(ctx, alert.ID)

	if err := svc.Resolve(ctx, alert.ID, "guard-2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second resolve, got %v", err)
	}
	if err := svc.Dismiss(ctx, alert.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict dismissing resolved alert, got %v", err)
	}

	after, _ := svc.Get(ctx, alert.ID)
	if !after.ResolvedAt.Equal(*resolved.ResolvedAt) || after.ResolvedBy != "guard-1" {
		t.Fatalf("terminal alert mutated: %+v", after)
	}
}

func TestAlertDismiss(t *testing.T) {
	svc := newAlertFixture(t)
	ctx := context.Background()

	alert, _ := svc.Raise(ctx, AlertHighSecurity, "z-1", "u-1", AlertDetails{})
	if err := svc.Dismiss(ctx, alert.ID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	got, _ := svc.Get(ctx, alert.ID)
	if got.Status != AlertStatusDismissed {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if err := svc.Resolve(ctx, alert.ID, "guard-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict resolving dismissed alert, got %v", err)
	}
}

func TestConcurrentResolversSingleWinner(t *testing.T) {
	svc := newAlertFixture(t)
	ctx := context.Background()
	alert, _ := svc.Raise(ctx, AlertUnauthorized, "z-1", "u-1", AlertDetails{})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Resolve(ctx, alert.ID, "guard")
		}(i)
	}
	wg.Wait()

	var winners int
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning resolve, got %d", winners)
	}
}

func TestAlertValidation(t *testing.T) {
	svc := newAlertFixture(t)
	ctx := context.Background()

	if _, err := svc.Raise(ctx, "weird", "z", "u", AlertDetails{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}
	if _, err := svc.Raise(ctx, AlertUnauthorized, "", "u", AlertDetails{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty zone, got %v", err)
	}
	if err := svc.Resolve(ctx, "a-1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty resolver, got %v", err)
	}
	if err := svc.Resolve(ctx, "missing", "guard"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertList(t *testing.T) {
	svc := newAlertFixture(t)
	ctx := context.Background()

	first, _ := svc.Raise(ctx, AlertUnauthorized, "z-1", "u-1", AlertDetails{CurrentTime: time.Now()})
	second, _ := svc.Raise(ctx, AlertRestricted, "z-2", "u-2", AlertDetails{})
	_ = svc.Resolve(ctx, first.ID, "guard")

	active, err := svc.List(ctx, AlertStatusActive)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("unexpected active alerts: %+v", active)
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(all))
	}

	if _, err := svc.List(ctx, "sparkling"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown status, got %v", err)
	}
}
