package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PermissionService resolves role/resource/action permissions with
// deny-by-default semantics and manages the permission catalog.
type PermissionService struct {
	store PermissionRepository
}

func NewPermissionService(store PermissionRepository) (*PermissionService, error) {
	if store == nil {
		return nil, errors.New("permission repository is required")
	}
	return &PermissionService{store: store}, nil
}

// Resolve reports whether role may perform action on resource, optionally
// scoped to location. Administrators always resolve true. Any other role
// needs an exact-match catalog entry; absence means deny. No wildcard or
// partial matching is supported.
func (s *PermissionService) Resolve(ctx context.Context, role, resource, action, location string) (bool, error) {
	role = strings.TrimSpace(role)
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	location = strings.TrimSpace(location)
	if role == "" || resource == "" || action == "" {
		return false, fmt.Errorf("%w: role, resource and action are required", ErrInvalidInput)
	}
	if role == RoleAdministrator {
		return true, nil
	}
	_, err := s.store.Find(ctx, role, resource, action, location)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upsert creates or replaces a catalog entry.
func (s *PermissionService) Upsert(ctx context.Context, perm Permission) (Permission, error) {
	perm.Role = strings.TrimSpace(perm.Role)
	perm.Resource = strings.TrimSpace(perm.Resource)
	perm.Action = strings.TrimSpace(perm.Action)
	perm.Location = strings.TrimSpace(perm.Location)
	if perm.Role == "" || perm.Resource == "" || perm.Action == "" {
		return Permission{}, fmt.Errorf("%w: role, resource and action are required", ErrInvalidInput)
	}
	if perm.Metadata == nil {
		perm.Metadata = map[string]any{}
	}
	if err := s.store.Upsert(ctx, &perm); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// Delete removes a catalog entry.
func (s *PermissionService) Delete(ctx context.Context, role, resource, action, location string) error {
	role = strings.TrimSpace(role)
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	location = strings.TrimSpace(location)
	if role == "" || resource == "" || action == "" {
		return fmt.Errorf("%w: role, resource and action are required", ErrInvalidInput)
	}
	return s.store.Delete(ctx, role, resource, action, location)
}

// List returns the full catalog.
func (s *PermissionService) List(ctx context.Context) ([]Permission, error) {
	perms, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		out = append(out, *p)
	}
	return out, nil
}
