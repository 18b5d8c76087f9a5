package access

import "time"

// Schedule tiers, ordered by required clearance.
const (
	TierAllowed      = "allowed"
	TierRestricted   = "restricted"
	TierHighSecurity = "high_security"
)

// Alert types raised on denied attempts.
const (
	AlertUnauthorized = "unauthorized"
	AlertRestricted   = "restricted"
	AlertHighSecurity = "high_security"
)

// Alert lifecycle states. Resolved and dismissed are terminal.
const (
	AlertStatusActive    = "active"
	AlertStatusResolved  = "resolved"
	AlertStatusDismissed = "dismissed"
)

// Denial reasons returned by the decision engine.
const (
	ReasonInactiveUser        = "inactive_user"
	ReasonMissingPrerequisite = "missing_prerequisite_zone"
	ReasonUnauthorized        = "unauthorized"
	ReasonInsufficientLevel   = "insufficient_level"
	ReasonOutsideSchedule     = "outside_schedule"
	ReasonSystemError         = "system_error"
)

// User status values. Users are owned by the identity provider; the engine
// only reads them.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// RoleAdministrator bypasses all checks except audit recording.
const RoleAdministrator = "administrator"

// TimeSlot is a recurring weekly window. Start and End are "HH:mm" clock
// values; Days holds weekdays 0 (Sunday) through 6 (Saturday).
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  []int  `json:"days"`
}

// Schedule groups the time slots of one tier on a zone.
type Schedule struct {
	Tier  string     `json:"tier"`
	Slots []TimeSlot `json:"slots"`
}

// Zone is a hierarchical physical or logical area. The parent relation forms
// a forest: no zone may be its own ancestor.
type Zone struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Level          int            `json:"level"`
	ParentID       string         `json:"parent_id,omitempty"`
	RequiredAccess []string       `json:"required_access,omitempty"`
	Locations      []string       `json:"locations,omitempty"`
	Schedules      []Schedule     `json:"schedules,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// User is the read-only projection of an identity-provider account.
type User struct {
	ID           string   `json:"id"`
	Role         string   `json:"role"`
	Status       string   `json:"status"`
	AccessLevel  int      `json:"access_level"`
	AllowedZones []string `json:"allowed_zones,omitempty"`
}

// Permission is a role-scoped grant of an action on a resource, optionally
// scoped to a location. The four fields form the composite key; there are no
// wildcards.
type Permission struct {
	Role      string         `json:"role"`
	Resource  string         `json:"resource"`
	Action    string         `json:"action"`
	Location  string         `json:"location,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AlertDetails is the decision-time snapshot attached to an alert.
type AlertDetails struct {
	AttemptedAccess  string     `json:"attempted_access"`
	CurrentTime      time.Time  `json:"current_time"`
	AllowedTimeSlots []TimeSlot `json:"allowed_time_slots,omitempty"`
	UserRole         string     `json:"user_role"`
	UserAccessLevel  int        `json:"user_access_level"`
}

// AccessAlert records a denied access attempt for human review.
type AccessAlert struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	ZoneID     string       `json:"zone_id"`
	UserID     string       `json:"user_id"`
	Details    AlertDetails `json:"details"`
	Status     string       `json:"status"`
	ResolvedBy string       `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// HistoryEntry is one recorded access decision.
type HistoryEntry struct {
	OccurredAt time.Time `json:"occurred_at"`
	ZoneID     string    `json:"zone_id"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
}

// Decision is the outcome of one evaluateAccess call.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	AlertID string `json:"alert_id,omitempty"`
}

// Actions recorded in the audit history.
const (
	ActionEnter = "enter"
	ActionExit  = "exit"
)

func validTier(tier string) bool {
	switch tier {
	case TierAllowed, TierRestricted, TierHighSecurity:
		return true
	}
	return false
}

func validAction(action string) bool {
	return action == ActionEnter || action == ActionExit
}
