package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"zonegate.org/internal/ids"
)

// ZoneService owns the zone hierarchy. All tree mutations run under a single
// writer lock so concurrent reparents cannot both pass cycle detection
// against a stale snapshot.
type ZoneService struct {
	mu      sync.Mutex
	store   ZoneRepository
	devices DeviceRegistry
}

// ZoneUpdate carries the mutable zone fields. Nil pointers and nil slices
// leave the current value unchanged; an empty ParentID detaches the zone.
type ZoneUpdate struct {
	Name           *string
	Level          *int
	ParentID       *string
	RequiredAccess []string
	Locations      []string
	Schedules      []Schedule
	Metadata       map[string]any
}

func NewZoneService(store ZoneRepository, devices DeviceRegistry) (*ZoneService, error) {
	if store == nil {
		return nil, errors.New("zone repository is required")
	}
	if devices == nil {
		return nil, errors.New("device registry is required")
	}
	return &ZoneService{store: store, devices: devices}, nil
}

// Create validates and persists a new zone. The zone id is generated here.
func (s *ZoneService) Create(ctx context.Context, zone Zone) (Zone, error) {
	zone.Name = strings.TrimSpace(zone.Name)
	if zone.Name == "" {
		return Zone{}, fmt.Errorf("%w: zone name is required", ErrInvalidInput)
	}
	if zone.Level < 0 {
		return Zone{}, fmt.Errorf("%w: zone level must be >= 0", ErrInvalidInput)
	}
	if err := validateSchedules(zone.Schedules); err != nil {
		return Zone{}, err
	}
	zone.ParentID = strings.TrimSpace(zone.ParentID)
	zone.RequiredAccess = dedupeStrings(zone.RequiredAccess)
	zone.Locations = dedupeStrings(zone.Locations)
	if zone.Metadata == nil {
		zone.Metadata = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if zone.ParentID != "" {
		if _, err := s.store.Find(ctx, zone.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Zone{}, fmt.Errorf("%w: parent zone %s", ErrNotFound, zone.ParentID)
			}
			return Zone{}, err
		}
	}
	for _, req := range zone.RequiredAccess {
		if _, err := s.store.Find(ctx, req); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Zone{}, fmt.Errorf("%w: required zone %s does not exist", ErrInvalidInput, req)
			}
			return Zone{}, err
		}
	}
	if err := s.checkNameConflict(ctx, zone.Name, zone.Locations, ""); err != nil {
		return Zone{}, err
	}

	now := time.Now().UTC()
	zone.ID = ids.New()
	zone.CreatedAt = now
	zone.UpdatedAt = now
	if err := s.store.Create(ctx, &zone); err != nil {
		return Zone{}, err
	}
	return zone, nil
}

// Update applies the given changes. Reparenting walks the full ancestor
// chain of the proposed parent and refuses any move that would make the
// zone its own ancestor.
func (s *ZoneService) Update(ctx context.Context, id string, upd ZoneUpdate) (Zone, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Zone{}, fmt.Errorf("%w: zone_id is required", ErrInvalidInput)
	}
	if upd.Schedules != nil {
		if err := validateSchedules(upd.Schedules); err != nil {
			return Zone{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	zone, err := s.store.Find(ctx, id)
	if err != nil {
		return Zone{}, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Zone{}, fmt.Errorf("%w: zone name is required", ErrInvalidInput)
		}
		zone.Name = name
	}
	if upd.Level != nil {
		if *upd.Level < 0 {
			return Zone{}, fmt.Errorf("%w: zone level must be >= 0", ErrInvalidInput)
		}
		zone.Level = *upd.Level
	}
	if upd.Locations != nil {
		zone.Locations = dedupeStrings(upd.Locations)
	}
	if upd.RequiredAccess != nil {
		reqs := dedupeStrings(upd.RequiredAccess)
		for _, req := range reqs {
			if req == id {
				return Zone{}, fmt.Errorf("%w: zone cannot require itself", ErrInvalidInput)
			}
			if _, err := s.store.Find(ctx, req); err != nil {
				if errors.Is(err, ErrNotFound) {
					return Zone{}, fmt.Errorf("%w: required zone %s does not exist", ErrInvalidInput, req)
				}
				return Zone{}, err
			}
		}
		zone.RequiredAccess = reqs
	}
	if upd.Schedules != nil {
		zone.Schedules = upd.Schedules
	}
	if upd.Metadata != nil {
		zone.Metadata = upd.Metadata
	}
	if upd.ParentID != nil {
		parentID := strings.TrimSpace(*upd.ParentID)
		if parentID != "" {
			if parentID == id {
				return Zone{}, fmt.Errorf("%w: zone cannot be its own parent", ErrConflict)
			}
			if err := s.checkCycle(ctx, id, parentID); err != nil {
				return Zone{}, err
			}
		}
		zone.ParentID = parentID
	}
	if err := s.checkNameConflict(ctx, zone.Name, zone.Locations, zone.ID); err != nil {
		return Zone{}, err
	}

	zone.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, zone); err != nil {
		return Zone{}, err
	}
	return *zone, nil
}

// Delete removes a zone. Deletion is refused while the zone has child zones
// or attached devices; a device-registry failure blocks deletion rather than
// allowing it through.
func (s *ZoneService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: zone_id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Find(ctx, id); err != nil {
		return err
	}
	children, err := s.store.Children(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: cannot delete zone with child zones", ErrConflict)
	}
	count, err := s.devices.DeviceCount(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: device registry check failed: %v", ErrUnavailable, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: cannot delete zone with attached devices", ErrConflict)
	}
	return s.store.Delete(ctx, id)
}

// Get returns a single zone.
func (s *ZoneService) Get(ctx context.Context, id string) (Zone, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Zone{}, fmt.Errorf("%w: zone_id is required", ErrInvalidInput)
	}
	zone, err := s.store.Find(ctx, id)
	if err != nil {
		return Zone{}, err
	}
	return *zone, nil
}

// List returns all zones.
func (s *ZoneService) List(ctx context.Context) ([]Zone, error) {
	zones, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, *z)
	}
	return out, nil
}

// Ancestors returns the parent chain of a zone, nearest first.
func (s *ZoneService) Ancestors(ctx context.Context, id string) ([]Zone, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: zone_id is required", ErrInvalidInput)
	}
	zone, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	var chain []Zone
	seen := map[string]struct{}{zone.ID: {}}
	current := zone.ParentID
	for current != "" {
		if _, ok := seen[current]; ok {
			return nil, fmt.Errorf("%w: cycle detected at zone %s", ErrConflict, current)
		}
		seen[current] = struct{}{}
		parent, err := s.store.Find(ctx, current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *parent)
		current = parent.ParentID
	}
	return chain, nil
}

// checkCycle walks the full ancestor chain of the proposed parent and
// rejects the move if the zone being reparented appears anywhere in it.
func (s *ZoneService) checkCycle(ctx context.Context, zoneID, parentID string) error {
	seen := make(map[string]struct{})
	current := parentID
	for current != "" {
		if current == zoneID {
			return fmt.Errorf("%w: reparenting %s under %s creates a cycle", ErrConflict, zoneID, parentID)
		}
		if _, ok := seen[current]; ok {
			return fmt.Errorf("%w: cycle detected at zone %s", ErrConflict, current)
		}
		seen[current] = struct{}{}
		parent, err := s.store.Find(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: parent zone %s", ErrNotFound, current)
			}
			return err
		}
		current = parent.ParentID
	}
	return nil
}

// checkNameConflict enforces name uniqueness within a location set. Zones
// with no locations are treated as global and conflict with every location.
func (s *ZoneService) checkNameConflict(ctx context.Context, name string, locations []string, excludeID string) error {
	zones, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, z := range zones {
		if z.ID == excludeID || z.Name != name {
			continue
		}
		if locationsOverlap(locations, z.Locations) {
			return fmt.Errorf("%w: zone name %q already used in this location set", ErrConflict, name)
		}
	}
	return nil
}

func locationsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(a))
	for _, loc := range a {
		set[loc] = struct{}{}
	}
	for _, loc := range b {
		if _, ok := set[loc]; ok {
			return true
		}
	}
	return false
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
