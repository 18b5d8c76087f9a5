package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryZones implements ZoneRepository with in-process concurrency safety.
type MemoryZones struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

func NewMemoryZones() *MemoryZones {
	return &MemoryZones{zones: make(map[string]*Zone)}
}

func (m *MemoryZones) Create(ctx context.Context, zone *Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[zone.ID]; ok {
		return fmt.Errorf("%w: zone %s already exists", ErrConflict, zone.ID)
	}
	m.zones[zone.ID] = copyZone(zone)
	return nil
}

func (m *MemoryZones) Update(ctx context.Context, zone *Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[zone.ID]; !ok {
		return fmt.Errorf("%w: zone %s", ErrNotFound, zone.ID)
	}
	m.zones[zone.ID] = copyZone(zone)
	return nil
}

func (m *MemoryZones) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[id]; !ok {
		return fmt.Errorf("%w: zone %s", ErrNotFound, id)
	}
	delete(m.zones, id)
	return nil
}

func (m *MemoryZones) Find(ctx context.Context, id string) (*Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	zone, ok := m.zones[id]
	if !ok {
		return nil, fmt.Errorf("%w: zone %s", ErrNotFound, id)
	}
	return copyZone(zone), nil
}

func (m *MemoryZones) List(ctx context.Context) ([]*Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Zone, 0, len(m.zones))
	for _, zone := range m.zones {
		out = append(out, copyZone(zone))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryZones) Children(ctx context.Context, id string) ([]*Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Zone
	for _, zone := range m.zones {
		if zone.ParentID == id {
			out = append(out, copyZone(zone))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyZone(z *Zone) *Zone {
	out := *z
	out.RequiredAccess = append([]string(nil), z.RequiredAccess...)
	out.Locations = append([]string(nil), z.Locations...)
	out.Schedules = make([]Schedule, len(z.Schedules))
	for i, sched := range z.Schedules {
		out.Schedules[i] = Schedule{Tier: sched.Tier, Slots: append([]TimeSlot(nil), sched.Slots...)}
	}
	out.Metadata = make(map[string]any, len(z.Metadata))
	for k, v := range z.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

// MemoryUsers implements UserRepository. Put exists because user records are
// owned externally; tests and seeds push projections in directly.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*User)}
}

func (m *MemoryUsers) Put(user User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := user
	copied.AllowedZones = append([]string(nil), user.AllowedZones...)
	m.users[user.ID] = &copied
}

func (m *MemoryUsers) Find(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	out := *user
	out.AllowedZones = append([]string(nil), user.AllowedZones...)
	return &out, nil
}

// MemoryPermissions implements PermissionRepository keyed by the composite
// (role, resource, action, location).
type MemoryPermissions struct {
	mu    sync.RWMutex
	perms map[string]*Permission
}

func NewMemoryPermissions() *MemoryPermissions {
	return &MemoryPermissions{perms: make(map[string]*Permission)}
}

func permKey(role, resource, action, location string) string {
	return strings.Join([]string{role, resource, action, location}, "\x00")
}

func (m *MemoryPermissions) Upsert(ctx context.Context, perm *Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *perm
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.perms[permKey(perm.Role, perm.Resource, perm.Action, perm.Location)] = &copied
	return nil
}

func (m *MemoryPermissions) Delete(ctx context.Context, role, resource, action, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := permKey(role, resource, action, location)
	if _, ok := m.perms[key]; !ok {
		return fmt.Errorf("%w: permission", ErrNotFound)
	}
	delete(m.perms, key)
	return nil
}

func (m *MemoryPermissions) Find(ctx context.Context, role, resource, action, location string) (*Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perm, ok := m.perms[permKey(role, resource, action, location)]
	if !ok {
		return nil, fmt.Errorf("%w: permission", ErrNotFound)
	}
	out := *perm
	return &out, nil
}

func (m *MemoryPermissions) List(ctx context.Context) ([]*Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Permission, 0, len(m.perms))
	for _, perm := range m.perms {
		copied := *perm
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

// MemoryAlerts implements AlertRepository. Transition holds the write lock
// across the status check and the mutation, so a second resolve or dismiss
// of the same alert always observes the terminal state.
type MemoryAlerts struct {
	mu     sync.RWMutex
	alerts map[string]*AccessAlert
}

func NewMemoryAlerts() *MemoryAlerts {
	return &MemoryAlerts{alerts: make(map[string]*AccessAlert)}
}

func (m *MemoryAlerts) Create(ctx context.Context, alert *AccessAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[alert.ID]; ok {
		return fmt.Errorf("%w: alert %s already exists", ErrConflict, alert.ID)
	}
	copied := *alert
	m.alerts[alert.ID] = &copied
	return nil
}

func (m *MemoryAlerts) Find(ctx context.Context, id string) (*AccessAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alert, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", ErrNotFound, id)
	}
	out := *alert
	return &out, nil
}

func (m *MemoryAlerts) Transition(ctx context.Context, id, toStatus, resolvedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("%w: alert %s", ErrNotFound, id)
	}
	if alert.Status != AlertStatusActive {
		return fmt.Errorf("%w: alert %s is already %s", ErrConflict, id, alert.Status)
	}
	alert.Status = toStatus
	alert.ResolvedBy = resolvedBy
	alert.ResolvedAt = &at
	return nil
}

func (m *MemoryAlerts) List(ctx context.Context, status string) ([]*AccessAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*AccessAlert
	for _, alert := range m.alerts {
		if status != "" && alert.Status != status {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryHistory implements HistoryRepository. A single mutex serializes the
// read-append-trim cycle for every key; contention is acceptable because
// entries are small and appends are rare relative to reads.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]HistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]HistoryEntry)}
}

func historyKey(userID, actionKey string) string {
	return userID + "\x00" + actionKey
}

func (m *MemoryHistory) Append(ctx context.Context, userID, actionKey string, entry HistoryEntry, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := historyKey(userID, actionKey)
	list := append(m.entries[key], entry)
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	m.entries[key] = list
	return nil
}

func (m *MemoryHistory) List(ctx context.Context, userID, actionKey string) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]HistoryEntry(nil), m.entries[historyKey(userID, actionKey)]...), nil
}
