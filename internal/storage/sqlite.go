//go:build sqlite

package storage

import (
	"context"
	"errors"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	*sqlStore
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{sqlStore: &sqlStore{driver: "sqlite", dsn: path}}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.dsn == "" {
		return errors.New("sqlite path is required")
	}
	return s.sqlStore.Init(ctx)
}
