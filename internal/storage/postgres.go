package storage

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

const defaultPostgresDSN = "postgres://localhost/fwdpop?sslmode=disable"

// PostgresStore persists records in Postgres through the pgx driver.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore returns an uninitialized store; an empty dsn falls back
// to a local default.
func NewPostgresStore(dsn string) *PostgresStore {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	return &PostgresStore{sqlStore: &sqlStore{driver: "pgx", dsn: dsn, numbered: true}}
}
