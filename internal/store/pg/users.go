package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zonegate.org/internal/access"
)

// Users reads the identity-provider projection table.
type Users struct {
	db *sql.DB
}

var _ access.UserRepository = (*Users)(nil)

func (r *Users) Find(ctx context.Context, id string) (*access.User, error) {
	var (
		user    access.User
		allowed []byte
	)
	err := r.db.QueryRowContext(ctx, `
		select id, role, status, access_level, allowed_zones
		from users
		where id=$1
	`, id).Scan(&user.ID, &user.Role, &user.Status, &user.AccessLevel, &allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", access.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(allowed, &user.AllowedZones); err != nil {
		return nil, fmt.Errorf("decode allowed_zones: %w", err)
	}
	return &user, nil
}
