package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zonegate.org/internal/obs"
)

const (
	defaultEvaluateTimeout      = 3 * time.Second
	defaultRestrictedMinLevel   = 5
	defaultHighSecurityMinLevel = 8
)

// Engine orchestrates zone lookup, user state, level comparison and schedule
// evaluation into a single allow/deny verdict. Storage failure during
// evaluation denies the attempt; the engine never fails open.
type Engine struct {
	zones   ZoneRepository
	users   UserRepository
	alerts  *AlertService
	history *HistoryTracker

	timeout              time.Duration
	restrictedMinLevel   int
	highSecurityMinLevel int
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithEvaluateTimeout bounds store I/O for a single evaluation.
func WithEvaluateTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTierThresholds sets the minimum access levels that qualify a user for
// the restricted and high-security schedule tiers.
func WithTierThresholds(restricted, highSecurity int) EngineOption {
	return func(e *Engine) {
		e.restrictedMinLevel = restricted
		e.highSecurityMinLevel = highSecurity
	}
}

func NewEngine(zones ZoneRepository, users UserRepository, alerts *AlertService, history *HistoryTracker, opts ...EngineOption) (*Engine, error) {
	if zones == nil {
		return nil, errors.New("zone repository is required")
	}
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if alerts == nil {
		return nil, errors.New("alert service is required")
	}
	if history == nil {
		return nil, errors.New("history tracker is required")
	}
	e := &Engine{
		zones:                zones,
		users:                users,
		alerts:               alerts,
		history:              history,
		timeout:              defaultEvaluateTimeout,
		restrictedMinLevel:   defaultRestrictedMinLevel,
		highSecurityMinLevel: defaultHighSecurityMinLevel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EvaluateAccess decides whether userID may perform action on zoneID at ts.
// Every outcome, allowed or denied, is appended to the audit history; every
// denial raises an alert whose id travels back with the verdict.
func (e *Engine) EvaluateAccess(ctx context.Context, userID, zoneID string, ts time.Time, action string) (Decision, error) {
	userID = strings.TrimSpace(userID)
	zoneID = strings.TrimSpace(zoneID)
	if userID == "" || zoneID == "" {
		return Decision{}, fmt.Errorf("%w: user_id and zone_id are required", ErrInvalidInput)
	}
	if !validAction(action) {
		return Decision{}, fmt.Errorf("%w: action must be %q or %q", ErrInvalidInput, ActionEnter, ActionExit)
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	zone, err := e.zones.Find(ctx, zoneID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{}, fmt.Errorf("%w: zone %s", ErrNotFound, zoneID)
		}
		return e.failClosed(ctx, err)
	}
	user, err := e.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return e.failClosed(ctx, err)
	}

	if user.Status != UserStatusActive {
		return e.deny(ctx, user, zone, ts, action, ReasonInactiveUser, nil)
	}

	// Administrator bypass lives here and nowhere else. The attempt is still
	// written to the audit history.
	if user.Role == RoleAdministrator {
		return e.allow(ctx, user, zone, ts, action)
	}

	allowed := make(map[string]struct{}, len(user.AllowedZones))
	for _, z := range user.AllowedZones {
		allowed[z] = struct{}{}
	}
	for _, req := range zone.RequiredAccess {
		if _, ok := allowed[req]; !ok {
			return e.deny(ctx, user, zone, ts, action, ReasonMissingPrerequisite, nil)
		}
	}
	if _, ok := allowed[zone.ID]; !ok {
		return e.deny(ctx, user, zone, ts, action, ReasonUnauthorized, nil)
	}
	if user.AccessLevel < zone.Level {
		return e.deny(ctx, user, zone, ts, action, ReasonInsufficientLevel, nil)
	}

	tier, slots, restricted := e.scheduleFor(zone, user)
	if restricted && !anySlotContains(slots, ts) {
		return e.deny(ctx, user, zone, ts, action, ReasonOutsideSchedule, &scheduleContext{tier: tier, slots: slots})
	}

	return e.allow(ctx, user, zone, ts, action)
}

type scheduleContext struct {
	tier  string
	slots []TimeSlot
}

func (e *Engine) allow(ctx context.Context, user *User, zone *Zone, ts time.Time, action string) (Decision, error) {
	entry := HistoryEntry{OccurredAt: ts.UTC(), ZoneID: zone.ID, Allowed: true}
	if err := e.history.Append(ctx, user.ID, action, entry); err != nil {
		return e.failClosed(ctx, err)
	}
	obs.RecordDecision("allowed", "")
	return Decision{Allowed: true}, nil
}

func (e *Engine) deny(ctx context.Context, user *User, zone *Zone, ts time.Time, action, reason string, sched *scheduleContext) (Decision, error) {
	details := AlertDetails{
		AttemptedAccess: zone.Name,
		CurrentTime:     ts.UTC(),
		UserRole:        user.Role,
		UserAccessLevel: user.AccessLevel,
	}
	if sched != nil {
		details.AllowedTimeSlots = sched.slots
	}

	decision := Decision{Allowed: false, Reason: reason}
	obs.RecordDecision("denied", reason)

	alertType := alertTypeFor(reason, sched)
	alert, err := e.alerts.Raise(ctx, alertType, zone.ID, user.ID, details)
	if err != nil {
		return decision, fmt.Errorf("%w: raise alert: %v", ErrUnavailable, err)
	}
	decision.AlertID = alert.ID
	obs.RecordAlert(alertType)

	entry := HistoryEntry{OccurredAt: ts.UTC(), ZoneID: zone.ID, Allowed: false, Reason: reason}
	if err := e.history.Append(ctx, user.ID, action, entry); err != nil {
		return decision, fmt.Errorf("%w: append history: %v", ErrUnavailable, err)
	}
	return decision, nil
}

// failClosed converts a storage or dependency failure into a deny verdict
// while surfacing the underlying error for operator visibility.
func (e *Engine) failClosed(ctx context.Context, cause error) (Decision, error) {
	obs.RecordDecision("denied", ReasonSystemError)
	return Decision{Allowed: false, Reason: ReasonSystemError},
		fmt.Errorf("%w: %v", ErrUnavailable, cause)
}

// scheduleFor selects the slots applying to the user: the highest tier the
// user qualifies for that defines slots, falling back to lower tiers. A zone
// without schedules imposes no time restriction.
func (e *Engine) scheduleFor(zone *Zone, user *User) (tier string, slots []TimeSlot, restricted bool) {
	if len(zone.Schedules) == 0 {
		return "", nil, false
	}
	byTier := make(map[string][]TimeSlot, len(zone.Schedules))
	for _, sched := range zone.Schedules {
		byTier[sched.Tier] = append(byTier[sched.Tier], sched.Slots...)
	}
	for _, candidate := range e.qualifiedTiers(user.AccessLevel) {
		if ts := byTier[candidate]; len(ts) > 0 {
			return candidate, ts, true
		}
	}
	// Schedules exist but none at or below the user's tier: no window is
	// open for this user.
	return e.qualifiedTiers(user.AccessLevel)[0], nil, true
}

// qualifiedTiers lists the tiers available to a level, highest first.
func (e *Engine) qualifiedTiers(level int) []string {
	switch {
	case level >= e.highSecurityMinLevel:
		return []string{TierHighSecurity, TierRestricted, TierAllowed}
	case level >= e.restrictedMinLevel:
		return []string{TierRestricted, TierAllowed}
	default:
		return []string{TierAllowed}
	}
}

func anySlotContains(slots []TimeSlot, ts time.Time) bool {
	for _, slot := range slots {
		if slot.Contains(ts) {
			return true
		}
	}
	return false
}

// alertTypeFor maps a denial to the alert type surfaced for review.
func alertTypeFor(reason string, sched *scheduleContext) string {
	switch reason {
	case ReasonInactiveUser, ReasonMissingPrerequisite, ReasonUnauthorized:
		return AlertUnauthorized
	case ReasonOutsideSchedule:
		if sched != nil && sched.tier == TierHighSecurity {
			return AlertHighSecurity
		}
		return AlertRestricted
	default:
		return AlertRestricted
	}
}
