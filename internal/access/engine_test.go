package access

import (
	"context"
	"errors"
	"testing"
	"time"
)

type engineFixture struct {
	zones   *MemoryZones
	users   *MemoryUsers
	alerts  *AlertService
	history *HistoryTracker
	engine  *Engine
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()
	zones := NewMemoryZones()
	users := NewMemoryUsers()
	alerts, err := NewAlertService(NewMemoryAlerts())
	if err != nil {
		t.Fatalf("NewAlertService: %v", err)
	}
	history, err := NewHistoryTracker(NewMemoryHistory())
	if err != nil {
		t.Fatalf("NewHistoryTracker: %v", err)
	}
	engine, err := NewEngine(zones, users, alerts, history, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &engineFixture{zones: zones, users: users, alerts: alerts, history: history, engine: engine}
}

func (f *engineFixture) addZone(t *testing.T, zone Zone) Zone {
	t.Helper()
	if zone.ID == "" {
		zone.ID = "zone-" + zone.Name
	}
	if err := f.zones.Create(context.Background(), &zone); err != nil {
		t.Fatalf("add zone: %v", err)
	}
	return zone
}

// Tuesday 10:00 UTC.
var tuesdayMorning = time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)

var businessHours = Schedule{
	Tier:  TierAllowed,
	Slots: []TimeSlot{{Start: "09:00", End: "17:00", Days: []int{1, 2, 3, 4, 5}}},
}

func TestEvaluateAccessAllowed(t *testing.T) {
	f := newEngineFixture(t)
	zone := f.addZone(t, Zone{ID: "A", Name: "A", Level: 5, Schedules: []Schedule{businessHours}})
	f.users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive, AccessLevel: 5, AllowedZones: []string{"A"}})

	decision, err := f.engine.EvaluateAccess(context.Background(), "u1", zone.ID, tuesdayMorning, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if !decision.Allowed || decision.Reason != "" || decision.AlertID != "" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	entries, err := f.history.List(context.Background(), "u1", ActionEnter)
	if err != nil {
		t.Fatalf("List history: %v", err)
	}
	if len(entries) != 1 || !entries[0].Allowed || entries[0].ZoneID != "A" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestEvaluateAccessInsufficientLevel(t *testing.T) {
	f := newEngineFixture(t)
	zone := f.addZone(t, Zone{ID: "B", Name: "B", Level: 6, Schedules: []Schedule{businessHours}})
	f.users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive, AccessLevel: 5, AllowedZones: []string{"B"}})

	decision, err := f.engine.EvaluateAccess(context.Background(), "u1", zone.ID, tuesdayMorning, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonInsufficientLevel {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if decision.AlertID == "" {
		t.Fatal("expected an alert id")
	}

	alert, err := f.alerts.Get(context.Background(), decision.AlertID)
	if err != nil {
		t.Fatalf("Get alert: %v", err)
	}
	if alert.Status != AlertStatusActive || alert.ZoneID != "B" || alert.UserID != "u1" {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if alert.Details.UserAccessLevel != 5 || alert.Details.UserRole != "operator" {
		t.Fatalf("details snapshot wrong: %+v", alert.Details)
	}
}

func TestEvaluateAccessLevelGatingDominates(t *testing.T) {
	// Level gating applies regardless of schedule or membership breadth.
	f := newEngineFixture(t)
	f.addZone(t, Zone{ID: "Z", Name: "Z", Level: 9})
	for _, level := range []int{0, 3, 8} {
		f.users.Put(User{ID: "u", Role: "operator", Status: UserStatusActive, AccessLevel: level, AllowedZones: []string{"Z"}})
		decision, err := f.engine.EvaluateAccess(context.Background(), "u", "Z", tuesdayMorning, ActionEnter)
		if err != nil {
			t.Fatalf("EvaluateAccess: %v", err)
		}
		if decision.Allowed || decision.Reason != ReasonInsufficientLevel {
			t.Fatalf("level %d: unexpected decision %+v", level, decision)
		}
	}
}

func TestEvaluateAccessDenialReasons(t *testing.T) {
	f := newEngineFixture(t)
	f.addZone(t, Zone{ID: "gate", Name: "Gate", Level: 1})
	f.addZone(t, Zone{ID: "vault", Name: "Vault", Level: 1, RequiredAccess: []string{"gate"}})

	cases := []struct {
		name   string
		user   User
		zoneID string
		reason string
	}{
		{
			name:   "suspended user",
			user:   User{ID: "u1", Role: "operator", Status: UserStatusSuspended, AccessLevel: 9, AllowedZones: []string{"gate", "vault"}},
			zoneID: "vault",
			reason: ReasonInactiveUser,
		},
		{
			name:   "missing prerequisite zone",
			user:   User{ID: "u2", Role: "operator", Status: UserStatusActive, AccessLevel: 9, AllowedZones: []string{"vault"}},
			zoneID: "vault",
			reason: ReasonMissingPrerequisite,
		},
		{
			name:   "zone not in allowed set",
			user:   User{ID: "u3", Role: "operator", Status: UserStatusActive, AccessLevel: 9, AllowedZones: []string{"gate"}},
			zoneID: "vault",
			reason: ReasonUnauthorized,
		},
	}
	for _, tc := range cases {
		f.users.Put(tc.user)
		decision, err := f.engine.EvaluateAccess(context.Background(), tc.user.ID, tc.zoneID, tuesdayMorning, ActionEnter)
		if err != nil {
			t.Fatalf("%s: EvaluateAccess: %v", tc.name, err)
		}
		if decision.Allowed || decision.Reason != tc.reason {
			t.Fatalf("%s: unexpected decision %+v", tc.name, decision)
		}
		if decision.AlertID == "" {
			t.Fatalf("%s: expected alert", tc.name)
		}
		alert, _ := f.alerts.Get(context.Background(), decision.AlertID)
		if alert.Type != AlertUnauthorized {
			t.Fatalf("%s: expected unauthorized alert, got %s", tc.name, alert.Type)
		}
	}
}

func TestEvaluateAccessOutsideSchedule(t *testing.T) {
	f := newEngineFixture(t)
	f.addZone(t, Zone{ID: "A", Name: "A", Level: 1, Schedules: []Schedule{businessHours}})
	f.users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive, AccessLevel: 1, AllowedZones: []string{"A"}})

	saturday := time.Date(2024, 1, 13, 10, 0, 0, 0, time.UTC)
	decision, err := f.engine.EvaluateAccess(context.Background(), "u1", "A", saturday, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonOutsideSchedule {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	alert, _ := f.alerts.Get(context.Background(), decision.AlertID)
	if alert.Type != AlertRestricted {
		t.Fatalf("expected restricted alert, got %s", alert.Type)
	}
	if len(alert.Details.AllowedTimeSlots) != 1 {
		t.Fatalf("expected slot snapshot in alert details: %+v", alert.Details)
	}
}

func TestEvaluateAccessHighSecurityTier(t *testing.T) {
	f := newEngineFixture(t)
	nightWindow := Schedule{
		Tier:  TierHighSecurity,
		Slots: []TimeSlot{{Start: "00:00", End: "06:00", Days: []int{1, 2, 3, 4, 5}}},
	}
	f.addZone(t, Zone{ID: "core", Name: "Core", Level: 1, Schedules: []Schedule{nightWindow}})
	f.users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive, AccessLevel: 9, AllowedZones: []string{"core"}})

	// Level 9 qualifies for the high-security tier; its window is closed at
	// mid-morning, so the denial is a high-security alert.
	decision, err := f.engine.EvaluateAccess(context.Background(), "u1", "core", tuesdayMorning, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonOutsideSchedule {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	alert, _ := f.alerts.Get(context.Background(), decision.AlertID)
	if alert.Type != AlertHighSecurity {
		t.Fatalf("expected high_security alert, got %s", alert.Type)
	}

	earlyTuesday := time.Date(2024, 1, 9, 5, 0, 0, 0, time.UTC)
	decision, err = f.engine.EvaluateAccess(context.Background(), "u1", "core", earlyTuesday, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess inside window: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow inside high-security window: %+v", decision)
	}
}

func TestEvaluateAccessNoScheduleMeansNoTimeGate(t *testing.T) {
	f := newEngineFixture(t)
	f.addZone(t, Zone{ID: "open", Name: "Open", Level: 0})
	f.users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive, AccessLevel: 0, AllowedZones: []string{"open"}})

	sundayNight := time.Date(2024, 1, 7, 23, 30, 0, 0, time.UTC)
	decision, err := f.engine.EvaluateAccess(context.Background(), "u1", "open", sundayNight, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow without schedules: %+v", decision)
	}
}

func TestAdministratorBypassStillAudited(t *testing.T) {
	f := newEngineFixture(t)
	// Inactive-user check still precedes the bypass; an active admin skips
	// everything else, including level and schedule.
	f.addZone(t, Zone{ID: "vault", Name: "Vault", Level: 99, Schedules: []Schedule{businessHours}})
	f.users.Put(User{ID: "root", Role: RoleAdministrator, Status: UserStatusActive, AccessLevel: 0})

	sunday := time.Date(2024, 1, 7, 3, 0, 0, 0, time.UTC)
	decision, err := f.engine.EvaluateAccess(context.Background(), "root", "vault", sunday, ActionExit)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected admin bypass: %+v", decision)
	}
	entries, _ := f.history.List(context.Background(), "root", ActionExit)
	if len(entries) != 1 {
		t.Fatalf("admin access must still be audited, got %d entries", len(entries))
	}

	f.users.Put(User{ID: "ex-root", Role: RoleAdministrator, Status: UserStatusInactive})
	decision, err = f.engine.EvaluateAccess(context.Background(), "ex-root", "vault", sunday, ActionEnter)
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonInactiveUser {
		t.Fatalf("inactive admin must be denied: %+v", decision)
	}
}

func TestEvaluateAccessNotFound(t *testing.T) {
	f := newEngineFixture(t)
	f.users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive})

	if _, err := f.engine.EvaluateAccess(context.Background(), "u1", "missing", tuesdayMorning, ActionEnter); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for zone, got %v", err)
	}
	f.addZone(t, Zone{ID: "A", Name: "A"})
	if _, err := f.engine.EvaluateAccess(context.Background(), "ghost", "A", tuesdayMorning, ActionEnter); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}
	if _, err := f.engine.EvaluateAccess(context.Background(), "u1", "A", tuesdayMorning, "loiter"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad action, got %v", err)
	}
}

type failingZones struct{}

func (failingZones) Create(ctx context.Context, zone *Zone) error  { return errors.New("storage down") }
func (failingZones) Update(ctx context.Context, zone *Zone) error  { return errors.New("storage down") }
func (failingZones) Delete(ctx context.Context, id string) error   { return errors.New("storage down") }
func (failingZones) Find(ctx context.Context, id string) (*Zone, error) {
	return nil, errors.New("storage down")
}
func (failingZones) List(ctx context.Context) ([]*Zone, error) { return nil, errors.New("storage down") }
func (failingZones) Children(ctx context.Context, id string) ([]*Zone, error) {
	return nil, errors.New("storage down")
}

func TestEvaluateAccessFailsClosed(t *testing.T) {
	users := NewMemoryUsers()
	users.Put(User{ID: "u1", Role: "operator", Status: UserStatusActive})
	alerts, _ := NewAlertService(NewMemoryAlerts())
	history, _ := NewHistoryTracker(NewMemoryHistory())
	engine, err := NewEngine(failingZones{}, users, alerts, history)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	decision, err := engine.EvaluateAccess(context.Background(), "u1", "any", tuesdayMorning, ActionEnter)
	if err == nil {
		t.Fatal("expected surfaced storage error")
	}
	if decision.Allowed {
		t.Fatal("storage failure must never allow")
	}
	if decision.Reason != ReasonSystemError {
		t.Fatalf("expected system_error reason, got %q", decision.Reason)
	}
}
