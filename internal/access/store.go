package access

import (
	"context"
	"time"
)

// ZoneRepository persists the zone hierarchy.
type ZoneRepository interface {
	Create(ctx context.Context, zone *Zone) error
	Update(ctx context.Context, zone *Zone) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, id string) (*Zone, error)
	List(ctx context.Context) ([]*Zone, error)
	Children(ctx context.Context, id string) ([]*Zone, error)
}

// UserRepository reads identity-provider user records. The engine never
// mutates users; audit history lives in its own repository.
type UserRepository interface {
	Find(ctx context.Context, id string) (*User, error)
}

// PermissionRepository persists the permission catalog keyed by
// (role, resource, action, location).
type PermissionRepository interface {
	Upsert(ctx context.Context, perm *Permission) error
	Delete(ctx context.Context, role, resource, action, location string) error
	Find(ctx context.Context, role, resource, action, location string) (*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
}

// AlertRepository persists access alerts. Transition must atomically refuse
// to move an alert that is no longer active, so two concurrent reviewers
// cannot both resolve the same alert.
type AlertRepository interface {
	Create(ctx context.Context, alert *AccessAlert) error
	Find(ctx context.Context, id string) (*AccessAlert, error)
	Transition(ctx context.Context, id, toStatus, resolvedBy string, at time.Time) error
	List(ctx context.Context, status string) ([]*AccessAlert, error)
}

// HistoryRepository stores bounded per-(user, action) decision history.
// Append must run its read-append-trim cycle atomically per key.
type HistoryRepository interface {
	Append(ctx context.Context, userID, actionKey string, entry HistoryEntry, limit int) error
	List(ctx context.Context, userID, actionKey string) ([]HistoryEntry, error)
}

// DeviceRegistry reports how many devices (cameras, access points) are
// attached to a zone. It is an external collaborator; failures gate zone
// deletion closed.
type DeviceRegistry interface {
	DeviceCount(ctx context.Context, zoneID string) (int, error)
}
