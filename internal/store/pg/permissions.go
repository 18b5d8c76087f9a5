package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zonegate.org/internal/access"
)

// Permissions persists the permission catalog keyed by
// (role, resource, action, location).
type Permissions struct {
	db *sql.DB
}

var _ access.PermissionRepository = (*Permissions)(nil)

func (r *Permissions) Upsert(ctx context.Context, perm *access.Permission) error {
	metadata, err := marshalJSON(perm.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		insert into permissions (role, resource, action, location, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (role, resource, action, location) do update
		set metadata = excluded.metadata
	`, perm.Role, perm.Resource, perm.Action, perm.Location, metadata, perm.CreatedAt)
	return err
}

func (r *Permissions) Delete(ctx context.Context, role, resource, action, location string) error {
	res, err := r.db.ExecContext(ctx, `
		delete from permissions
		where role=$1 and resource=$2 and action=$3 and location=$4
	`, role, resource, action, location)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: permission %s/%s/%s", access.ErrNotFound, role, resource, action)
	}
	return nil
}

func (r *Permissions) Find(ctx context.Context, role, resource, action, location string) (*access.Permission, error) {
	var (
		perm     access.Permission
		metadata []byte
	)
	err := r.db.QueryRowContext(ctx, `
		select role, resource, action, location, metadata, created_at
		from permissions
		where role=$1 and resource=$2 and action=$3 and location=$4
	`, role, resource, action, location).Scan(&perm.Role, &perm.Resource, &perm.Action, &perm.Location, &metadata, &perm.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: permission %s/%s/%s", access.ErrNotFound, role, resource, action)
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadata, &perm.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &perm, nil
}

func (r *Permissions) List(ctx context.Context) ([]*access.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		select role, resource, action, location, metadata, created_at
		from permissions
		order by role, resource, action, location
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*access.Permission
	for rows.Next() {
		var (
			perm     access.Permission
			metadata []byte
		)
		if err := rows.Scan(&perm.Role, &perm.Resource, &perm.Action, &perm.Location, &metadata, &perm.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(metadata, &perm.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		result = append(result, &perm)
	}
	return result, rows.Err()
}
