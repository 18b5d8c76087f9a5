package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zonegate.org/internal/access"
)

// Alerts persists access alerts.
type Alerts struct {
	db *sql.DB
}

var _ access.AlertRepository = (*Alerts)(nil)

func (r *Alerts) Create(ctx context.Context, alert *access.AccessAlert) error {
	details, err := marshalJSON(alert.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		insert into access_alerts (id, type, zone_id, user_id, details, status, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, alert.ID, alert.Type, alert.ZoneID, alert.UserID, details, alert.Status, alert.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: alert %s already exists", access.ErrConflict, alert.ID)
		}
		return err
	}
	return nil
}

func (r *Alerts) Find(ctx context.Context, id string) (*access.AccessAlert, error) {
	row := r.db.QueryRowContext(ctx, `
		select id, type, zone_id, user_id, details, status, resolved_by, resolved_at, created_at
		from access_alerts
		where id=$1
	`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alert %s", access.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// Transition moves an active alert to a terminal status. The conditional
// update keeps two concurrent reviewers from both claiming the alert.
func (r *Alerts) Transition(ctx context.Context, id, toStatus, resolvedBy string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		update access_alerts
		set status=$2, resolved_by=$3, resolved_at=$4
		where id=$1 and status=$5
	`, id, toStatus, nullString(resolvedBy), at, access.AlertStatusActive)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `select status from access_alerts where id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: alert %s", access.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: alert %s is %s", access.ErrConflict, id, status)
}

func (r *Alerts) List(ctx context.Context, status string) ([]*access.AccessAlert, error) {
	query := `
		select id, type, zone_id, user_id, details, status, resolved_by, resolved_at, created_at
		from access_alerts
	`
	var args []any
	if status != "" {
		query += ` where status=$1`
		args = append(args, status)
	}
	query += ` order by created_at desc`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*access.AccessAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

func scanAlert(row rowScanner) (*access.AccessAlert, error) {
	var (
		alert      access.AccessAlert
		details    []byte
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&alert.ID, &alert.Type, &alert.ZoneID, &alert.UserID, &details, &alert.Status, &resolvedBy, &resolvedAt, &alert.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(details, &alert.Details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	alert.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		at := resolvedAt.Time
		alert.ResolvedAt = &at
	}
	return &alert, nil
}
