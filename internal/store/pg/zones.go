package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zonegate.org/internal/access"
)

// Zones persists the zone hierarchy.
type Zones struct {
	db *sql.DB
}

var _ access.ZoneRepository = (*Zones)(nil)

const zoneColumns = `id, name, level, parent_id, required_access, locations, schedules, metadata, created_at, updated_at`

func (r *Zones) Create(ctx context.Context, zone *access.Zone) error {
	required, locations, schedules, metadata, err := zoneJSON(zone)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		insert into zones (id, name, level, parent_id, required_access, locations, schedules, metadata, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, zone.ID, zone.Name, zone.Level, nullString(zone.ParentID), required, locations, schedules, metadata, zone.CreatedAt, zone.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: zone %s already exists", access.ErrConflict, zone.ID)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: parent zone %s", access.ErrNotFound, zone.ParentID)
			}
		}
		return err
	}
	return nil
}

func (r *Zones) Update(ctx context.Context, zone *access.Zone) error {
	required, locations, schedules, metadata, err := zoneJSON(zone)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		update zones
		set name=$2, level=$3, parent_id=$4, required_access=$5, locations=$6, schedules=$7, metadata=$8, updated_at=$9
		where id=$1
	`, zone.ID, zone.Name, zone.Level, nullString(zone.ParentID), required, locations, schedules, metadata, zone.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: parent zone %s", access.ErrNotFound, zone.ParentID)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: zone %s", access.ErrNotFound, zone.ID)
	}
	return nil
}

func (r *Zones) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `delete from zones where id=$1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: zone %s has children", access.ErrConflict, id)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: zone %s", access.ErrNotFound, id)
	}
	return nil
}

func (r *Zones) Find(ctx context.Context, id string) (*access.Zone, error) {
	row := r.db.QueryRowContext(ctx, `select `+zoneColumns+` from zones where id=$1`, id)
	zone, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: zone %s", access.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return zone, nil
}

func (r *Zones) List(ctx context.Context) ([]*access.Zone, error) {
	return r.queryZones(ctx, `select `+zoneColumns+` from zones order by name`)
}

func (r *Zones) Children(ctx context.Context, id string) ([]*access.Zone, error) {
	return r.queryZones(ctx, `select `+zoneColumns+` from zones where parent_id=$1 order by name`, id)
}

func (r *Zones) queryZones(ctx context.Context, query string, args ...any) ([]*access.Zone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*access.Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, zone)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(row rowScanner) (*access.Zone, error) {
	var (
		zone      access.Zone
		parent    sql.NullString
		required  []byte
		locations []byte
		schedules []byte
		metadata  []byte
	)
	if err := row.Scan(&zone.ID, &zone.Name, &zone.Level, &parent, &required, &locations, &schedules, &metadata, &zone.CreatedAt, &zone.UpdatedAt); err != nil {
		return nil, err
	}
	zone.ParentID = parent.String
	if err := unmarshalJSON(required, &zone.RequiredAccess); err != nil {
		return nil, fmt.Errorf("decode required_access: %w", err)
	}
	if err := unmarshalJSON(locations, &zone.Locations); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	if err := unmarshalJSON(schedules, &zone.Schedules); err != nil {
		return nil, fmt.Errorf("decode schedules: %w", err)
	}
	if err := unmarshalJSON(metadata, &zone.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &zone, nil
}

func zoneJSON(zone *access.Zone) (required, locations, schedules, metadata []byte, err error) {
	if required, err = marshalJSON(zone.RequiredAccess); err != nil {
		return
	}
	if locations, err = marshalJSON(zone.Locations); err != nil {
		return
	}
	if schedules, err = marshalJSON(zone.Schedules); err != nil {
		return
	}
	metadata, err = marshalJSON(zone.Metadata)
	return
}
