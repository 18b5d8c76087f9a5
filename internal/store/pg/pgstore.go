// Package pg backs the access repositories with PostgreSQL.
package pg

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store carries the shared connection pool for all repositories.
type Store struct {
	db *sql.DB
}

// Open connects with tuned pool defaults; adjust under load tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (tests use sqlmock here).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Zones returns the zone repository view of the store.
func (s *Store) Zones() *Zones { return &Zones{db: s.db} }

// Users returns the user repository view of the store.
func (s *Store) Users() *Users { return &Users{db: s.db} }

// Permissions returns the permission repository view of the store.
func (s *Store) Permissions() *Permissions { return &Permissions{db: s.db} }

// Alerts returns the alert repository view of the store.
func (s *Store) Alerts() *Alerts { return &Alerts{db: s.db} }

// History returns the history repository view of the store.
func (s *Store) History() *History { return &History{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return data, nil
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
